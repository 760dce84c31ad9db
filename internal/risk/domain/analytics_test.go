package domain

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, mutate func(*EngineConfig)) *RiskAnalytics {
	t.Helper()
	cfg := EngineConfig{
		MaxSymbols:  16,
		Simulations: 2000,
		Seed:        12345,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRiskAnalytics(cfg)
}

func TestCheckEmptyBookPasses(t *testing.T) {
	engine := newTestEngine(t, nil)

	result := engine.Check()
	assert.True(t, result.Passed)
	assert.Empty(t, result.Reason)

	metrics := engine.Metrics()
	assert.Equal(t, uint64(1), metrics.RiskChecksPerformed)
	assert.Equal(t, uint64(0), metrics.RiskViolations)
	assert.Equal(t, 0.0, metrics.ViolationRate)
}

func TestCheckConcentrationViolation(t *testing.T) {
	engine := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.Limits = DefaultRiskLimits()
		cfg.Limits.MaxConcentration = 0.4
	})

	require.NoError(t, engine.UpdatePosition(0, 100, 1_000_000, 1.0))
	require.NoError(t, engine.UpdatePosition(1, 100, 1_000_000, 1.0))

	// 无历史数据：组合 VaR 与单持仓 VaR 均为 0，集中度 50% > 40%
	result := engine.Check()
	require.False(t, result.Passed)
	assert.Equal(t, ViolationConcentration, result.Reason)
	assert.InDelta(t, 0.5, result.Observed, 1e-9)
	assert.Equal(t, 0.4, result.Limit)

	metrics := engine.Metrics()
	assert.Equal(t, uint64(1), metrics.RiskViolations)
}

func TestCheckPortfolioVaRViolation(t *testing.T) {
	engine := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.Limits = RiskLimits{
			MaxPortfolioVaR:  1_000_000,
			MaxPositionVaR:   1e12,
			MaxCorrelation:   0.8,
			MaxStressLoss:    1e12,
			MaxConcentration: 1.0,
		}
	})

	rng := rand.New(rand.NewPCG(42, 0))
	for i := 0; i < 252; i++ {
		require.NoError(t, engine.AddReturn(0, rng.NormFloat64()*0.01))
	}
	require.NoError(t, engine.UpdatePosition(0, 1000, 100_000_000, 1.0))

	result := engine.Check()
	require.False(t, result.Passed)
	assert.Equal(t, ViolationPortfolioVaR, result.Reason)
	assert.Greater(t, result.Observed, 1_000_000.0)
}

func TestCheckPositionVaRViolation(t *testing.T) {
	engine := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.Limits = RiskLimits{
			MaxPortfolioVaR:  1e12,
			MaxPositionVaR:   10_000,
			MaxCorrelation:   0.8,
			MaxStressLoss:    1e12,
			MaxConcentration: 1.0,
		}
	})

	rng := rand.New(rand.NewPCG(42, 0))
	for i := 0; i < 252; i++ {
		require.NoError(t, engine.AddReturn(0, rng.NormFloat64()*0.01))
	}
	require.NoError(t, engine.UpdatePosition(0, 100, 1_000_000, 1.0))

	result := engine.Check()
	require.False(t, result.Passed)
	assert.Equal(t, ViolationPositionVaR, result.Reason)
	assert.Equal(t, uint32(0), result.SymbolID)
}

func TestCheckStressViolationSampled(t *testing.T) {
	engine := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.StressCheckInterval = 1
		cfg.Limits = RiskLimits{
			MaxPortfolioVaR:  1e12,
			MaxPositionVaR:   1e12,
			MaxCorrelation:   0.8,
			MaxStressLoss:    1_000_000,
			MaxConcentration: 1.0,
		}
	})

	// 无历史：只有压力测试可触发；2008 场景损失 = 1e7·0.5 = 5e6
	require.NoError(t, engine.UpdatePosition(0, 100, 10_000_000, 1.0))

	result := engine.Check()
	require.False(t, result.Passed)
	assert.Equal(t, ViolationStressLoss, result.Reason)
	assert.InDelta(t, 5_000_000.0, result.Observed, 1e-6)
}

func TestCheckStressSkippedOffInterval(t *testing.T) {
	engine := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.StressCheckInterval = 100
		cfg.Limits = RiskLimits{
			MaxPortfolioVaR:  1e12,
			MaxPositionVaR:   1e12,
			MaxCorrelation:   0.8,
			MaxStressLoss:    1_000_000,
			MaxConcentration: 1.0,
		}
	})

	require.NoError(t, engine.UpdatePosition(0, 100, 10_000_000, 1.0))

	// 前 99 次不采样压力测试
	for i := 0; i < 99; i++ {
		result := engine.Check()
		assert.True(t, result.Passed)
	}
	// 第 100 次采样并违规
	result := engine.Check()
	require.False(t, result.Passed)
	assert.Equal(t, ViolationStressLoss, result.Reason)
}

func TestAddReturnOutOfRange(t *testing.T) {
	engine := newTestEngine(t, nil)

	assert.ErrorIs(t, engine.AddReturn(16, 0.01), ErrSymbolOutOfRange)
	assert.ErrorIs(t, engine.UpdatePosition(99, 1, 1, 1), ErrSymbolOutOfRange)
	assert.ErrorIs(t, engine.UpdateGreeks(99, 0, 0, 0, 0), ErrSymbolOutOfRange)
}

func TestUpdatePositionComputesVaRContribution(t *testing.T) {
	engine := newTestEngine(t, nil)

	rng := rand.New(rand.NewPCG(7, 0))
	for i := 0; i < 252; i++ {
		require.NoError(t, engine.AddReturn(3, rng.NormFloat64()*0.01))
	}

	require.NoError(t, engine.UpdatePosition(3, 100, 1_000_000, 1.0))
	position, ok := engine.Book().Get(3)
	require.True(t, ok)
	assert.Greater(t, position.VaRContribution, 0.0)
	assert.InDelta(t, engine.PositionVaR(3, 1_000_000), position.VaRContribution, position.VaRContribution*0.01)
}

func TestCurrentPortfolioVaRDeterministicWithSeed(t *testing.T) {
	build := func() *RiskAnalytics {
		engine := newTestEngine(t, nil)
		rng := rand.New(rand.NewPCG(9, 0))
		for i := 0; i < 120; i++ {
			require.NoError(t, engine.AddReturn(0, rng.NormFloat64()*0.01))
			require.NoError(t, engine.AddReturn(1, rng.NormFloat64()*0.02))
		}
		require.NoError(t, engine.UpdatePosition(0, 10, 500_000, 1.0))
		require.NoError(t, engine.UpdatePosition(1, 10, 250_000, 1.0))
		return engine
	}

	first := build().CurrentPortfolioVaR()
	second := build().CurrentPortfolioVaR()
	assert.Equal(t, first, second)
	assert.Greater(t, first, 0.0)
}

func TestEmptyBookPortfolioVaRIsZero(t *testing.T) {
	engine := newTestEngine(t, nil)
	assert.Equal(t, 0.0, engine.CurrentPortfolioVaR())
}

func TestSweepCorrelations(t *testing.T) {
	engine := newTestEngine(t, nil)

	r := series(80)
	for i := range r {
		require.NoError(t, engine.AddReturn(0, r[i]))
		require.NoError(t, engine.AddReturn(1, r[i]))
	}
	require.NoError(t, engine.UpdatePosition(0, 1, 1000, 1.0))
	require.NoError(t, engine.UpdatePosition(1, 1, 1000, 1.0))

	updated := engine.SweepCorrelations(256)
	assert.Greater(t, updated, 0)
	assert.InDelta(t, 1.0, float64(engine.Correlations().Correlation(0, 1)), 1e-6)

	// 脏集合已清空
	assert.Equal(t, 0, engine.SweepCorrelations(256))
}

func TestUpdateCorrelationPairDelegates(t *testing.T) {
	engine := newTestEngine(t, nil)
	r := series(60)
	engine.UpdateCorrelationPair(2, 5, r, r)
	assert.InDelta(t, 1.0, float64(engine.Correlations().Correlation(2, 5)), 1e-6)
}

func TestRefreshPortfolioVaRCachesValue(t *testing.T) {
	engine := newTestEngine(t, func(cfg *EngineConfig) {
		cfg.VaRCacheTTL = time.Hour
	})

	rng := rand.New(rand.NewPCG(3, 0))
	for i := 0; i < 120; i++ {
		require.NoError(t, engine.AddReturn(0, rng.NormFloat64()*0.01))
	}
	require.NoError(t, engine.UpdatePosition(0, 10, 1_000_000, 1.0))

	refreshed := engine.RefreshPortfolioVaR()
	require.Greater(t, refreshed, 0.0)

	// TTL 内 check 读取缓存值，不重新模拟
	result := engine.Check()
	assert.True(t, result.Passed)
}

func TestMetricsAveragesLatency(t *testing.T) {
	engine := newTestEngine(t, nil)

	for i := 0; i < 10; i++ {
		engine.Check()
	}

	metrics := engine.Metrics()
	assert.Equal(t, uint64(10), metrics.RiskChecksPerformed)
	assert.GreaterOrEqual(t, metrics.AvgLatencyNS, 0.0)
}
