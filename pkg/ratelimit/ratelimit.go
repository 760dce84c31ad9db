// Package ratelimit 提供基于令牌桶的进程内限流器
package ratelimit

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter 令牌桶限流器封装
type Limiter struct {
	limiter *rate.Limiter
}

// New 创建限流器；qps 为每秒放行数，burst 为突发容量
func New(qps float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		limiter: rate.NewLimiter(rate.Limit(qps), burst),
	}
}

// Allow 非阻塞判断是否放行
func (l *Limiter) Allow() bool {
	return l.limiter.Allow()
}

// Wait 阻塞等待令牌，context 取消时返回错误
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
