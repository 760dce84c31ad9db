// Package snapshot 将组合风险快照发布到 Redis，供看板与下游服务读取
package snapshot

import (
	"context"
	"time"

	"github.com/wyfcoding/riskanalytics/internal/risk/application"
	"github.com/wyfcoding/riskanalytics/pkg/cache"
)

// RedisPublisher Redis 快照发布器
type RedisPublisher struct {
	cache *cache.RedisCache
	key   string
	ttl   time.Duration
}

// NewRedisPublisher 创建快照发布器
func NewRedisPublisher(c *cache.RedisCache, key string, ttl time.Duration) *RedisPublisher {
	if key == "" {
		key = "riskengine:snapshot"
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisPublisher{
		cache: c,
		key:   key,
		ttl:   ttl,
	}
}

// PublishSnapshot 写入最新快照，带 TTL 防止陈旧数据长期可见
func (p *RedisPublisher) PublishSnapshot(ctx context.Context, s *application.RiskSnapshot) error {
	return p.cache.SetJSON(ctx, p.key, s, p.ttl)
}
