// 历史模拟法单标的 VaR：对收益率环形缓冲做 quickselect 取分位，
// 结果带 TTL 缓存；每次追加样本都会显式失效对应缓存
package domain

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// varCacheEntry VaR 缓存项；整体通过原子指针发布，保证 (值, 时间戳) 作为一个单元读取
type varCacheEntry struct {
	varReturn  float64
	computedAt int64
}

// VaRCalculator 单标的历史模拟 VaR 计算器
type VaRCalculator struct {
	history    *ReturnHistory
	confidence float64
	ttl        int64 // 纳秒

	cache   []atomic.Pointer[varCacheEntry]
	scratch sync.Pool
}

// NewVaRCalculator 创建 VaR 计算器
func NewVaRCalculator(history *ReturnHistory, confidence float64, ttl time.Duration) *VaRCalculator {
	c := &VaRCalculator{
		history:    history,
		confidence: confidence,
		ttl:        ttl.Nanoseconds(),
		cache:      make([]atomic.Pointer[varCacheEntry], history.MaxSymbols()),
	}
	depth := history.Depth()
	c.scratch.New = func() any {
		buf := make([]float64, depth)
		return &buf
	}
	return c
}

// AddReturn 追加收益率样本并失效缓存；越界 id 返回 false
func (c *VaRCalculator) AddReturn(symbol uint32, r float64) bool {
	if !c.history.Append(symbol, r) {
		return false
	}
	// 追加后必须重算，这是缓存唯一的正确性约束
	c.cache[symbol].Store(nil)
	return true
}

// VaR 计算持仓的单标的 VaR（美元，损失为正）
// 样本不足时返回 0
func (c *VaRCalculator) VaR(symbol uint32, positionValue float64) float64 {
	r := c.ReturnVaR(symbol)
	return r * math.Abs(positionValue)
}

// ReturnVaR 单位持仓的日 VaR（收益率尺度，损失为正）
// 缓存新鲜时直接返回，否则重算并更新缓存
func (c *VaRCalculator) ReturnVaR(symbol uint32) float64 {
	if int(symbol) >= c.history.MaxSymbols() {
		return 0
	}
	length := c.history.Length(symbol)
	if length < MinHistorySamples {
		return 0
	}

	now := time.Now().UnixNano()
	if entry := c.cache[symbol].Load(); entry != nil && now-entry.computedAt < c.ttl {
		return entry.varReturn
	}

	bufPtr := c.scratch.Get().(*[]float64)
	buf := *bufPtr
	n := c.history.Snapshot(symbol, buf)
	if n < MinHistorySamples {
		c.scratch.Put(bufPtr)
		return 0
	}

	k := int(float64(n) * (1.0 - c.confidence))
	varReturn := -quickSelect(buf[:n], k)
	c.scratch.Put(bufPtr)

	c.cache[symbol].Store(&varCacheEntry{
		varReturn:  varReturn,
		computedAt: now,
	})
	return varReturn
}

// quickSelect 原地选择升序第 k 个元素（0-based），相等元素间的次序不确定
func quickSelect(a []float64, k int) float64 {
	lo, hi := 0, len(a)-1
	for lo < hi {
		p := partition(a, lo, hi)
		switch {
		case p == k:
			return a[k]
		case p < k:
			lo = p + 1
		default:
			hi = p - 1
		}
	}
	return a[k]
}

// partition Lomuto 划分，取中位作为 pivot 以避免有序输入退化
func partition(a []float64, lo, hi int) int {
	mid := lo + (hi-lo)/2
	a[mid], a[hi] = a[hi], a[mid]
	pivot := a[hi]

	i := lo
	for j := lo; j < hi; j++ {
		if a[j] < pivot {
			a[i], a[j] = a[j], a[i]
			i++
		}
	}
	a[i], a[hi] = a[hi], a[i]
	return i
}
