package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultScenarios(t *testing.T) {
	scenarios := DefaultScenarios()
	require.Len(t, scenarios, 4)

	names := make([]string, 0, len(scenarios))
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Financial Crisis 2008")
	assert.Contains(t, names, "Flash Crash")
	assert.Contains(t, names, "Interest Rate Shock")
	assert.Contains(t, names, "Liquidity Crisis")
}

func TestStressSinglePositionLoss(t *testing.T) {
	e := NewStressEngine(nil)
	positions := []PositionRisk{{SymbolID: 0, Quantity: 100, MarketValue: 1_000_000}}

	losses := e.RunAll(positions)
	require.Len(t, losses, 4)

	byName := make(map[string]float64, len(losses))
	for _, l := range losses {
		byName[l.Name] = l.Loss
	}

	// gamma = 0、var_contribution = 0：损失只有价格直接冲击
	assert.InDelta(t, 200_000.0, byName["Flash Crash"], 1e-6)
	assert.InDelta(t, 500_000.0, byName["Financial Crisis 2008"], 1e-6)

	// 最坏场景为 2008
	assert.InDelta(t, 500_000.0, e.WorstCase(positions), 1e-6)
}

func TestStressGammaAndCorrelationTerms(t *testing.T) {
	e := NewStressEngine([]StressScenario{{
		Name:                 "Custom",
		MarketShock:          -0.10,
		VolatilityMultiplier: 2.0,
		CorrelationShock:     0.3,
	}})
	positions := []PositionRisk{{
		SymbolID:        0,
		Quantity:        10,
		MarketValue:     1_000_000,
		Gamma:           0.5,
		VaRContribution: 50_000,
	}}

	// direct = 1e6·(-0.10) = -100000
	// gamma  = 0.5·0.5·1e6·0.01·2 = 5000
	// corr   = 50000·0.3 = 15000
	// |direct + gamma + corr| = 80000
	losses := e.RunAll(positions)
	require.Len(t, losses, 1)
	assert.InDelta(t, 80_000.0, losses[0].Loss, 1e-6)
}

func TestStressPerSymbolShockOverride(t *testing.T) {
	e := NewStressEngine([]StressScenario{{
		Name:        "Sector",
		MarketShock: -0.10,
		SymbolShocks: map[uint32]float64{
			1: -0.40,
		},
	}})
	positions := []PositionRisk{
		{SymbolID: 0, Quantity: 1, MarketValue: 1_000_000},
		{SymbolID: 1, Quantity: 1, MarketValue: 1_000_000},
	}

	losses := e.RunAll(positions)
	require.Len(t, losses, 1)
	assert.InDelta(t, 100_000.0+400_000.0, losses[0].Loss, 1e-6)
}

func TestStressHedgedBookIsConservative(t *testing.T) {
	e := NewStressEngine(nil)

	// 多空对冲的组合与同等总敞口的单边组合给出相同的压力损失
	hedged := []PositionRisk{
		{SymbolID: 0, Quantity: 100, MarketValue: 1_000_000},
		{SymbolID: 1, Quantity: -100, MarketValue: -1_000_000},
	}
	long := []PositionRisk{
		{SymbolID: 0, Quantity: 100, MarketValue: 1_000_000},
		{SymbolID: 1, Quantity: 100, MarketValue: 1_000_000},
	}

	assert.InDelta(t, e.WorstCase(long), e.WorstCase(hedged), 1e-6)
}

func TestStressEmptyBook(t *testing.T) {
	e := NewStressEngine(nil)
	assert.Equal(t, 0.0, e.WorstCase(nil))

	losses := e.RunAll(nil)
	for _, l := range losses {
		assert.Equal(t, 0.0, l.Loss)
	}
}
