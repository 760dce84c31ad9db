// Package application 封装风险引擎的应用服务与后台刷新器
package application

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/wyfcoding/riskanalytics/internal/risk/domain"
	"github.com/wyfcoding/riskanalytics/pkg/logger"
	"github.com/wyfcoding/riskanalytics/pkg/metrics"
	"github.com/wyfcoding/riskanalytics/pkg/utils"
)

// TimeseriesSink 时序数据下游（Kafka 批量发布器实现）
type TimeseriesSink interface {
	// WriteReturn 记录收益率样本
	WriteReturn(symbolID uint32, logReturn float64, timestampNS int64)
	// WriteMetric 记录风险指标点
	WriteMetric(name string, value float64, timestampNS int64)
}

// SnapshotPublisher 组合风险快照下游（Redis 实现）
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, snapshot *RiskSnapshot) error
}

// RiskApplicationService 风险应用服务
type RiskApplicationService struct {
	engine        *domain.RiskAnalytics
	metrics       *metrics.Metrics
	violationRepo domain.RiskViolationRepository
	timeseries    TimeseriesSink
	idgen         *utils.SnowflakeID
}

// NewRiskApplicationService 创建风险应用服务；
// metrics、violationRepo、timeseries 均允许为 nil（对应能力关闭）
func NewRiskApplicationService(
	engine *domain.RiskAnalytics,
	m *metrics.Metrics,
	violationRepo domain.RiskViolationRepository,
	timeseries TimeseriesSink,
) *RiskApplicationService {
	return &RiskApplicationService{
		engine:        engine,
		metrics:       m,
		violationRepo: violationRepo,
		timeseries:    timeseries,
		idgen:         utils.NewSnowflakeID(1),
	}
}

// Engine 底层风险引擎
func (s *RiskApplicationService) Engine() *domain.RiskAnalytics {
	return s.engine
}

// IngestReturn 写入一个收益率样本
func (s *RiskApplicationService) IngestReturn(ctx context.Context, req *IngestReturnRequest) error {
	if err := s.engine.AddReturn(req.SymbolID, req.LogReturn); err != nil {
		return fmt.Errorf("ingest return for symbol %d: %w", req.SymbolID, err)
	}

	if s.metrics != nil {
		s.metrics.ReturnsIngestedTotal.Inc()
	}
	if s.timeseries != nil {
		s.timeseries.WriteReturn(req.SymbolID, req.LogReturn, time.Now().UnixNano())
	}
	return nil
}

// UpdatePosition 交易后更新持仓
func (s *RiskApplicationService) UpdatePosition(ctx context.Context, req *UpdatePositionRequest) (*PositionDTO, error) {
	quantity, err := decimal.NewFromString(req.Quantity)
	if err != nil {
		return nil, fmt.Errorf("invalid quantity: %w", err)
	}
	marketValue, err := decimal.NewFromString(req.MarketValue)
	if err != nil {
		return nil, fmt.Errorf("invalid market value: %w", err)
	}
	delta := 1.0
	if req.Delta != "" {
		d, err := decimal.NewFromString(req.Delta)
		if err != nil {
			return nil, fmt.Errorf("invalid delta: %w", err)
		}
		delta = d.InexactFloat64()
	}

	if err := s.engine.UpdatePosition(req.SymbolID, quantity.InexactFloat64(), marketValue.InexactFloat64(), delta); err != nil {
		return nil, fmt.Errorf("update position for symbol %d: %w", req.SymbolID, err)
	}

	if s.metrics != nil {
		s.metrics.PositionsActive.Set(float64(s.engine.Book().Size()))
	}

	position, _ := s.engine.Book().Get(req.SymbolID)
	return positionToDTO(&position), nil
}

// UpdateGreeks 更新持仓的希腊字母
func (s *RiskApplicationService) UpdateGreeks(ctx context.Context, req *UpdateGreeksRequest) error {
	parse := func(v string) (float64, error) {
		if v == "" {
			return 0, nil
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return 0, err
		}
		return d.InexactFloat64(), nil
	}

	gamma, err := parse(req.Gamma)
	if err != nil {
		return fmt.Errorf("invalid gamma: %w", err)
	}
	vega, err := parse(req.Vega)
	if err != nil {
		return fmt.Errorf("invalid vega: %w", err)
	}
	theta, err := parse(req.Theta)
	if err != nil {
		return fmt.Errorf("invalid theta: %w", err)
	}
	beta, err := parse(req.Beta)
	if err != nil {
		return fmt.Errorf("invalid beta: %w", err)
	}

	if err := s.engine.UpdateGreeks(req.SymbolID, gamma, vega, theta, beta); err != nil {
		return fmt.Errorf("update greeks for symbol %d: %w", req.SymbolID, err)
	}
	return nil
}

// CheckTrade 对候选交易执行同步风控检查
func (s *RiskApplicationService) CheckTrade(ctx context.Context) *CheckResultDTO {
	start := time.Now()
	result := s.engine.Check()

	if s.metrics != nil {
		s.metrics.RiskChecksTotal.Inc()
		s.metrics.RiskCheckDuration.Observe(time.Since(start).Seconds())
	}

	if !result.Passed {
		if s.metrics != nil {
			s.metrics.RiskViolationsTotal.WithLabelValues(string(result.Reason)).Inc()
		}
		logger.Warn(ctx, "Risk limit violated",
			"reason", result.Reason,
			"symbol_id", result.SymbolID,
			"observed", result.Observed,
			"limit", result.Limit,
		)
		s.recordViolation(result)
	}

	dto := &CheckResultDTO{Passed: result.Passed}
	if !result.Passed {
		dto.Reason = string(result.Reason)
		dto.SymbolID = result.SymbolID
		dto.Observed = formatFloat(result.Observed)
		dto.Limit = formatFloat(result.Limit)
	}
	return dto
}

// recordViolation 异步落库违规审计；落库失败只记日志，不影响交易路径
func (s *RiskApplicationService) recordViolation(result domain.CheckResult) {
	if s.violationRepo == nil {
		return
	}

	engineMetrics := s.engine.Metrics()
	violation := &domain.RiskViolation{
		ViolationID:     fmt.Sprintf("VIO-%d", s.idgen.Generate()),
		Reason:          string(result.Reason),
		SymbolID:        result.SymbolID,
		Observed:        decimal.NewFromFloat(result.Observed),
		LimitValue:      decimal.NewFromFloat(result.Limit),
		PortfolioVaR:    decimal.NewFromFloat(s.engine.CurrentPortfolioVaR()),
		ChecksPerformed: engineMetrics.RiskChecksPerformed,
		OccurredAt:      time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.violationRepo.Save(ctx, violation); err != nil {
			logger.Error(ctx, "Failed to persist risk violation", "violation_id", violation.ViolationID, "error", err)
		}
	}()
}

// PortfolioVaR 当前组合风险视图
func (s *RiskApplicationService) PortfolioVaR(ctx context.Context) *PortfolioVaRDTO {
	positions := s.engine.Book().Snapshot()
	gross := 0.0
	for i := range positions {
		gross += math.Abs(positions[i].MarketValue)
	}

	return &PortfolioVaRDTO{
		PortfolioVaR:    formatFloat(s.engine.CurrentPortfolioVaR()),
		CorrelationRisk: formatFloat(s.engine.CorrelationRisk()),
		GrossExposure:   formatFloat(gross),
		Positions:       len(positions),
	}
}

// StressReport 对当前持仓簿运行全部压力场景
func (s *RiskApplicationService) StressReport(ctx context.Context) []ScenarioLossDTO {
	losses := s.engine.StressReport()
	dtos := make([]ScenarioLossDTO, 0, len(losses))
	for _, l := range losses {
		dtos = append(dtos, ScenarioLossDTO{
			Name: l.Name,
			Loss: formatFloat(l.Loss),
		})
	}
	return dtos
}

// Correlation 读取一对标的的相关系数
func (s *RiskApplicationService) Correlation(ctx context.Context, a, b uint32) *CorrelationDTO {
	return &CorrelationDTO{
		SymbolA:     a,
		SymbolB:     b,
		Correlation: float64(s.engine.Correlations().Correlation(a, b)),
	}
}

// Positions 持仓列表
func (s *RiskApplicationService) Positions(ctx context.Context) []PositionDTO {
	snapshot := s.engine.Book().Snapshot()
	dtos := make([]PositionDTO, 0, len(snapshot))
	for i := range snapshot {
		dtos = append(dtos, *positionToDTO(&snapshot[i]))
	}
	return dtos
}

// PerformanceMetrics 风控检查性能统计
func (s *RiskApplicationService) PerformanceMetrics(ctx context.Context) *PerformanceMetricsDTO {
	m := s.engine.Metrics()
	return &PerformanceMetricsDTO{
		RiskChecksPerformed: m.RiskChecksPerformed,
		RiskViolations:      m.RiskViolations,
		AvgLatencyNS:        m.AvgLatencyNS,
		ViolationRate:       m.ViolationRate,
	}
}

// RecentViolations 最近的违规审计记录
func (s *RiskApplicationService) RecentViolations(ctx context.Context, limit int) ([]*domain.RiskViolation, error) {
	if s.violationRepo == nil {
		return nil, nil
	}
	return s.violationRepo.ListRecent(ctx, limit)
}

func positionToDTO(p *domain.PositionRisk) *PositionDTO {
	return &PositionDTO{
		SymbolID:        p.SymbolID,
		Quantity:        formatFloat(p.Quantity),
		MarketValue:     formatFloat(p.MarketValue),
		Delta:           formatFloat(p.Delta),
		Gamma:           formatFloat(p.Gamma),
		Vega:            formatFloat(p.Vega),
		Theta:           formatFloat(p.Theta),
		Beta:            formatFloat(p.Beta),
		VaRContribution: formatFloat(p.VaRContribution),
		LastUpdateNS:    p.LastUpdateNS,
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
