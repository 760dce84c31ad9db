// Package domain 包含实时组合风险分析引擎的领域模型：收益率历史、相关性矩阵、
// VaR 计算、压力测试、持仓簿与风险闸门
package domain

import (
	"errors"
	"time"
)

// 风险计算常量
const (
	// DefaultMaxSymbols 标的数量上限（密集 symbol id 空间）
	DefaultMaxSymbols = 1000
	// DefaultHistoryDepth 收益率历史深度（一年交易日）
	DefaultHistoryDepth = 252
	// DefaultCorrelationWindow 相关性滚动窗口
	DefaultCorrelationWindow = 60
	// VaRConfidence VaR 置信度
	VaRConfidence = 0.99
	// MinHistorySamples 计算 VaR 所需的最少样本数
	MinHistorySamples = 30
	// DefaultVaRCacheTTL 单标的 VaR 缓存有效期
	DefaultVaRCacheTTL = time.Second
	// DefaultSimulations 蒙特卡洛模拟次数
	DefaultSimulations = 10000
	// DefaultStressCheckInterval 每多少次 check 执行一次压力测试
	DefaultStressCheckInterval = 100
	// VaRToVolatility 99% VaR 换算为隐含日波动率的系数
	VaRToVolatility = 2.33
)

// ErrSymbolOutOfRange symbol id 超出密集 id 空间
var ErrSymbolOutOfRange = errors.New("symbol id out of range")

// RiskLimits 风险限额，启动后不可变
type RiskLimits struct {
	// 组合 VaR 上限（美元）
	MaxPortfolioVaR float64 `json:"max_portfolio_var"`
	// 单一持仓 VaR 上限（美元）
	MaxPositionVaR float64 `json:"max_position_var"`
	// 相关系数上限
	MaxCorrelation float64 `json:"max_correlation"`
	// 压力损失上限（美元）
	MaxStressLoss float64 `json:"max_stress_loss"`
	// 单一持仓集中度上限
	MaxConcentration float64 `json:"max_concentration"`
}

// DefaultRiskLimits 默认风险限额
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPortfolioVaR:  1000000.0,
		MaxPositionVaR:   100000.0,
		MaxCorrelation:   0.8,
		MaxStressLoss:    2000000.0,
		MaxConcentration: 0.2,
	}
}

// EngineConfig 风险引擎构造配置
type EngineConfig struct {
	// 标的数量上限
	MaxSymbols int
	// 收益率历史深度
	HistoryDepth int
	// 相关性滚动窗口
	CorrelationWindow int
	// VaR 缓存有效期
	VaRCacheTTL time.Duration
	// 蒙特卡洛模拟次数
	Simulations int
	// 每多少次 check 执行一次压力测试
	StressCheckInterval int
	// 蒙特卡洛随机种子（0 表示按时间播种）
	Seed uint64
	// 是否使用 Cholesky 分解注入相关性
	UseCholesky bool
	// 风险限额
	Limits RiskLimits
	// 压力测试场景（空则使用默认场景目录）
	Scenarios []StressScenario
}

// Normalize 填充零值字段的默认值
func (c *EngineConfig) Normalize() {
	if c.MaxSymbols <= 0 {
		c.MaxSymbols = DefaultMaxSymbols
	}
	if c.HistoryDepth <= 0 {
		c.HistoryDepth = DefaultHistoryDepth
	}
	if c.CorrelationWindow <= 0 {
		c.CorrelationWindow = DefaultCorrelationWindow
	}
	if c.CorrelationWindow > c.HistoryDepth {
		c.CorrelationWindow = c.HistoryDepth
	}
	if c.VaRCacheTTL <= 0 {
		c.VaRCacheTTL = DefaultVaRCacheTTL
	}
	if c.Simulations <= 0 {
		c.Simulations = DefaultSimulations
	}
	if c.StressCheckInterval <= 0 {
		c.StressCheckInterval = DefaultStressCheckInterval
	}
	if c.Limits == (RiskLimits{}) {
		c.Limits = DefaultRiskLimits()
	}
	if len(c.Scenarios) == 0 {
		c.Scenarios = DefaultScenarios()
	}
}

// ViolationReason 限额违规类别
type ViolationReason string

const (
	ViolationPortfolioVaR  ViolationReason = "PORTFOLIO_VAR"
	ViolationPositionVaR   ViolationReason = "POSITION_VAR"
	ViolationConcentration ViolationReason = "CONCENTRATION"
	ViolationStressLoss    ViolationReason = "STRESS_LOSS"
)

// CheckResult 风控检查结果
// 第一个失败的判定即终止后续检查
type CheckResult struct {
	Passed bool            `json:"passed"`
	Reason ViolationReason `json:"reason,omitempty"`
	// 触发违规的标的（仅对单标的类违规有意义）
	SymbolID uint32 `json:"symbol_id,omitempty"`
	// 观测值
	Observed float64 `json:"observed,omitempty"`
	// 限额值
	Limit float64 `json:"limit,omitempty"`
}

// PerformanceMetrics 风控检查性能统计
type PerformanceMetrics struct {
	RiskChecksPerformed uint64  `json:"risk_checks_performed"`
	RiskViolations      uint64  `json:"risk_violations"`
	AvgLatencyNS        float64 `json:"avg_latency_ns"`
	ViolationRate       float64 `json:"violation_rate"`
}
