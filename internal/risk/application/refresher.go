// 后台刷新器：周期性扫描待重估的相关性 pair、重算组合蒙特卡洛 VaR，
// 并把组合风险快照发布到下游。关停时通过 context 协作退出。
package application

import (
	"context"
	"math"
	"time"

	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
	"github.com/wyfcoding/riskanalytics/pkg/logger"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
)

// RefresherConfig 后台刷新器配置
type RefresherConfig struct {
	// 刷新周期
	Interval time.Duration
	// 每轮相关性扫描的最大 pair 数
	SweepMaxPairs int
}

// RiskRefresher 后台刷新器
type RiskRefresher struct {
	engine     *domain.RiskAnalytics
	metrics    *metrics.Metrics
	snapshots  SnapshotPublisher
	timeseries TimeseriesSink
	cfg        RefresherConfig
}

// NewRiskRefresher 创建后台刷新器；snapshots 与 timeseries 允许为 nil
func NewRiskRefresher(
	engine *domain.RiskAnalytics,
	m *metrics.Metrics,
	snapshots SnapshotPublisher,
	timeseries TimeseriesSink,
	cfg RefresherConfig,
) *RiskRefresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 500 * time.Millisecond
	}
	if cfg.SweepMaxPairs <= 0 {
		cfg.SweepMaxPairs = 256
	}
	return &RiskRefresher{
		engine:     engine,
		metrics:    m,
		snapshots:  snapshots,
		timeseries: timeseries,
		cfg:        cfg,
	}
}

// Start 运行刷新循环直到 ctx 取消
func (r *RiskRefresher) Start(ctx context.Context) {
	logger.Info(ctx, "Risk refresher started",
		"interval", r.cfg.Interval,
		"sweep_max_pairs", r.cfg.SweepMaxPairs,
	)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Risk refresher stopped")
			return
		case <-ticker.C:
			r.refresh(ctx)
		}
	}
}

// refresh 执行一轮后台刷新
func (r *RiskRefresher) refresh(ctx context.Context) {
	pairs := r.engine.SweepCorrelations(r.cfg.SweepMaxPairs)
	if pairs > 0 && r.metrics != nil {
		r.metrics.CorrelationUpdatesTotal.Add(float64(pairs))
	}

	portfolioVaR := r.engine.RefreshPortfolioVaR()

	positions := r.engine.Book().Snapshot()
	gross := 0.0
	for i := range positions {
		gross += math.Abs(positions[i].MarketValue)
	}

	if r.metrics != nil {
		r.metrics.PortfolioVaR.Set(portfolioVaR)
		r.metrics.GrossExposure.Set(gross)
		r.metrics.PositionsActive.Set(float64(len(positions)))
	}

	now := time.Now().UnixNano()
	if r.timeseries != nil {
		r.timeseries.WriteMetric("portfolio_var", portfolioVaR, now)
		r.timeseries.WriteMetric("gross_exposure", gross, now)
	}

	if r.snapshots != nil {
		engineMetrics := r.engine.Metrics()
		snapshot := &RiskSnapshot{
			PortfolioVaR:    portfolioVaR,
			GrossExposure:   gross,
			Positions:       len(positions),
			ChecksPerformed: engineMetrics.RiskChecksPerformed,
			Violations:      engineMetrics.RiskViolations,
			UpdatedAtNS:     now,
		}
		if err := r.snapshots.PublishSnapshot(ctx, snapshot); err != nil {
			logger.Error(ctx, "Failed to publish risk snapshot", "error", err)
		}
	}
}
