package domain

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCalculator(t *testing.T) (*ReturnHistory, *VaRCalculator) {
	t.Helper()
	h := NewReturnHistory(8, 252)
	return h, NewVaRCalculator(h, VaRConfidence, time.Second)
}

func TestVaRInsufficientHistory(t *testing.T) {
	_, c := newTestCalculator(t)

	for i := 0; i < MinHistorySamples-1; i++ {
		require.True(t, c.AddReturn(0, -0.01))
	}
	assert.Equal(t, 0.0, c.VaR(0, 1_000_000))
}

func TestVaRKnownQuantile(t *testing.T) {
	_, c := newTestCalculator(t)

	// 100 个样本，k = ⌊100·0.01⌋ = 1：取第二小的收益率
	for i := 0; i < 98; i++ {
		c.AddReturn(0, 0.001*float64(i+1))
	}
	c.AddReturn(0, -0.10)
	c.AddReturn(0, -0.05)

	assert.InDelta(t, 0.05, c.ReturnVaR(0), 1e-12)
	assert.InDelta(t, 50_000.0, c.VaR(0, 1_000_000), 1e-6)
	// 空头持仓取绝对值
	assert.InDelta(t, 50_000.0, c.VaR(0, -1_000_000), 1e-6)
}

func TestVaRCacheInvalidatedOnAppend(t *testing.T) {
	_, c := newTestCalculator(t)

	for i := 0; i < 98; i++ {
		c.AddReturn(0, 0.001*float64(i+1))
	}
	c.AddReturn(0, -0.10)
	c.AddReturn(0, -0.05)
	require.InDelta(t, 0.05, c.ReturnVaR(0), 1e-12)

	// TTL 未到，但追加样本后必须重算：现在 k=1 对应第二小 = -0.10
	c.AddReturn(0, -0.50)
	assert.InDelta(t, 0.10, c.ReturnVaR(0), 1e-12)
}

func TestVaRCacheServedWhileFresh(t *testing.T) {
	_, c := newTestCalculator(t)

	for i := 0; i < 98; i++ {
		c.AddReturn(0, 0.001*float64(i+1))
	}
	c.AddReturn(0, -0.10)
	c.AddReturn(0, -0.05)

	first := c.ReturnVaR(0)
	second := c.ReturnVaR(0)
	assert.Equal(t, first, second)
}

func TestVaRMonotoneInPositionValue(t *testing.T) {
	_, c := newTestCalculator(t)

	rng := rand.New(rand.NewPCG(7, 0))
	for i := 0; i < 120; i++ {
		c.AddReturn(0, rng.NormFloat64()*0.01)
	}

	small := c.VaR(0, 1_000_000)
	large := c.VaR(0, 2_000_000)
	assert.GreaterOrEqual(t, large, small)
}

func TestVaROutOfRange(t *testing.T) {
	_, c := newTestCalculator(t)
	assert.False(t, c.AddReturn(99, 0.01))
	assert.Equal(t, 0.0, c.VaR(99, 1_000_000))
}

func TestVaRNormalReturns(t *testing.T) {
	_, c := newTestCalculator(t)

	// 252 个 iid N(0, 0.01) 日收益率：99% VaR ≈ 0.01 · 2.326 · 1e6 ≈ 23,300
	rng := rand.New(rand.NewPCG(42, 0))
	for i := 0; i < 252; i++ {
		require.True(t, c.AddReturn(0, rng.NormFloat64()*0.01))
	}

	got := c.VaR(0, 1_000_000)
	assert.Greater(t, got, 12_000.0)
	assert.Less(t, got, 36_000.0)
}

func TestQuickSelect(t *testing.T) {
	values := []float64{0.5, -0.3, 0.1, -0.7, 0.0, 0.2, -0.1}

	buf := make([]float64, len(values))
	copy(buf, values)
	assert.Equal(t, -0.7, quickSelect(buf, 0))

	copy(buf, values)
	assert.Equal(t, -0.3, quickSelect(buf, 1))

	copy(buf, values)
	assert.Equal(t, 0.5, quickSelect(buf, len(values)-1))

	copy(buf, values)
	assert.Equal(t, 0.0, quickSelect(buf, 3))
}
