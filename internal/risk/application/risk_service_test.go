package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
)

func newTestService(t *testing.T) *RiskApplicationService {
	t.Helper()
	engine := domain.NewRiskAnalytics(domain.EngineConfig{
		MaxSymbols:  16,
		Simulations: 1000,
		Seed:        1,
	})
	return NewRiskApplicationService(engine, nil, nil, nil)
}

func TestIngestReturn(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	require.NoError(t, svc.IngestReturn(ctx, &IngestReturnRequest{SymbolID: 0, LogReturn: 0.01}))
	assert.Equal(t, 1, svc.Engine().ReturnLength(0))

	err := svc.IngestReturn(ctx, &IngestReturnRequest{SymbolID: 16, LogReturn: 0.01})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSymbolOutOfRange)
}

func TestUpdatePositionParsesDecimals(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	dto, err := svc.UpdatePosition(ctx, &UpdatePositionRequest{
		SymbolID:    2,
		Quantity:    "100",
		MarketValue: "1000000.50",
		Delta:       "0.9",
	})
	require.NoError(t, err)
	assert.Equal(t, uint32(2), dto.SymbolID)
	assert.Equal(t, "100", dto.Quantity)
	assert.Equal(t, "1000000.5", dto.MarketValue)
	assert.Equal(t, "0.9", dto.Delta)

	// delta 缺省为 1
	dto, err = svc.UpdatePosition(ctx, &UpdatePositionRequest{
		SymbolID:    3,
		Quantity:    "10",
		MarketValue: "1000",
	})
	require.NoError(t, err)
	assert.Equal(t, "1", dto.Delta)
}

func TestUpdatePositionRejectsBadInput(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdatePosition(ctx, &UpdatePositionRequest{SymbolID: 0, Quantity: "abc", MarketValue: "1"})
	assert.Error(t, err)

	_, err = svc.UpdatePosition(ctx, &UpdatePositionRequest{SymbolID: 0, Quantity: "1", MarketValue: "x"})
	assert.Error(t, err)

	_, err = svc.UpdatePosition(ctx, &UpdatePositionRequest{SymbolID: 99, Quantity: "1", MarketValue: "1"})
	assert.ErrorIs(t, err, domain.ErrSymbolOutOfRange)
}

func TestUpdateGreeks(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdatePosition(ctx, &UpdatePositionRequest{SymbolID: 1, Quantity: "10", MarketValue: "1000"})
	require.NoError(t, err)

	require.NoError(t, svc.UpdateGreeks(ctx, &UpdateGreeksRequest{
		SymbolID: 1,
		Gamma:    "0.02",
		Vega:     "0.3",
		Theta:    "-0.05",
		Beta:     "1.1",
	}))

	position, ok := svc.Engine().Book().Get(1)
	require.True(t, ok)
	assert.Equal(t, 0.02, position.Gamma)
	assert.Equal(t, 1.1, position.Beta)

	assert.Error(t, svc.UpdateGreeks(ctx, &UpdateGreeksRequest{SymbolID: 1, Gamma: "bad"}))
}

func TestCheckTradeEmptyBook(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	dto := svc.CheckTrade(ctx)
	assert.True(t, dto.Passed)
	assert.Empty(t, dto.Reason)

	metrics := svc.PerformanceMetrics(ctx)
	assert.Equal(t, uint64(1), metrics.RiskChecksPerformed)
	assert.Equal(t, uint64(0), metrics.RiskViolations)
}

func TestCheckTradeViolationReported(t *testing.T) {
	engine := domain.NewRiskAnalytics(domain.EngineConfig{
		MaxSymbols:  16,
		Simulations: 1000,
		Seed:        1,
		Limits: domain.RiskLimits{
			MaxPortfolioVaR:  1e12,
			MaxPositionVaR:   1e12,
			MaxCorrelation:   0.8,
			MaxStressLoss:    1e12,
			MaxConcentration: 0.4,
		},
	})
	svc := NewRiskApplicationService(engine, nil, nil, nil)
	ctx := context.Background()

	_, err := svc.UpdatePosition(ctx, &UpdatePositionRequest{SymbolID: 0, Quantity: "1", MarketValue: "1000000"})
	require.NoError(t, err)
	_, err = svc.UpdatePosition(ctx, &UpdatePositionRequest{SymbolID: 1, Quantity: "1", MarketValue: "1000000"})
	require.NoError(t, err)

	dto := svc.CheckTrade(ctx)
	require.False(t, dto.Passed)
	assert.Equal(t, string(domain.ViolationConcentration), dto.Reason)
	assert.Equal(t, "0.4", dto.Limit)
}

func TestPortfolioVaRView(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	view := svc.PortfolioVaR(ctx)
	assert.Equal(t, "0", view.PortfolioVaR)
	assert.Equal(t, 0, view.Positions)

	_, err := svc.UpdatePosition(ctx, &UpdatePositionRequest{SymbolID: 0, Quantity: "1", MarketValue: "-500000"})
	require.NoError(t, err)

	view = svc.PortfolioVaR(ctx)
	assert.Equal(t, 1, view.Positions)
	assert.Equal(t, "500000", view.GrossExposure)
}

func TestStressReportView(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdatePosition(ctx, &UpdatePositionRequest{SymbolID: 0, Quantity: "100", MarketValue: "1000000"})
	require.NoError(t, err)

	report := svc.StressReport(ctx)
	require.Len(t, report, 4)

	byName := make(map[string]string, len(report))
	for _, entry := range report {
		byName[entry.Name] = entry.Loss
	}
	assert.Equal(t, "200000", byName["Flash Crash"])
}

func TestCorrelationView(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	dto := svc.Correlation(ctx, 0, 0)
	assert.Equal(t, 1.0, dto.Correlation)

	dto = svc.Correlation(ctx, 0, 1)
	assert.Equal(t, 0.0, dto.Correlation)
}

func TestPositionsView(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.UpdatePosition(ctx, &UpdatePositionRequest{SymbolID: 4, Quantity: "5", MarketValue: "100"})
	require.NoError(t, err)

	positions := svc.Positions(ctx)
	require.Len(t, positions, 1)
	assert.Equal(t, uint32(4), positions[0].SymbolID)
}

func TestRecentViolationsWithoutRepo(t *testing.T) {
	svc := newTestService(t)
	violations, err := svc.RecentViolations(context.Background(), 10)
	assert.NoError(t, err)
	assert.Nil(t, violations)
}
