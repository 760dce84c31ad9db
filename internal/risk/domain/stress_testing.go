// 压力测试引擎：对当前持仓簿施加预定义冲击场景，估计尾部损失。
// 每个持仓的损失取绝对值后求和——对冲完备的组合与同等总敞口的裸头寸
// 给出相同的压力损失，属于有意的保守估计。
package domain

import "math"

// StressScenario 压力测试场景，构造后不可变
type StressScenario struct {
	Name string `json:"name"`
	// 全市场价格冲击（如 -0.50 表示下跌 50%）
	MarketShock float64 `json:"market_shock"`
	// 波动率放大倍数
	VolatilityMultiplier float64 `json:"volatility_multiplier"`
	// 相关性冲击（分散化失效程度）
	CorrelationShock float64 `json:"correlation_shock"`
	// 按标的覆盖的价格冲击；未命中时使用 MarketShock
	SymbolShocks map[uint32]float64 `json:"symbol_shocks,omitempty"`
}

// ScenarioLoss 单场景的组合总损失
type ScenarioLoss struct {
	Name string  `json:"name"`
	Loss float64 `json:"loss"`
}

// DefaultScenarios 内置标准场景目录
func DefaultScenarios() []StressScenario {
	return []StressScenario{
		{
			// 2008 金融危机
			Name:                 "Financial Crisis 2008",
			MarketShock:          -0.50,
			VolatilityMultiplier: 4.0,
			CorrelationShock:     0.3,
		},
		{
			// 闪崩
			Name:                 "Flash Crash",
			MarketShock:          -0.20,
			VolatilityMultiplier: 10.0,
			CorrelationShock:     0.5,
		},
		{
			// 利率冲击
			Name:                 "Interest Rate Shock",
			MarketShock:          -0.15,
			VolatilityMultiplier: 2.0,
			CorrelationShock:     0.2,
		},
		{
			// 流动性危机
			Name:                 "Liquidity Crisis",
			MarketShock:          -0.30,
			VolatilityMultiplier: 5.0,
			CorrelationShock:     0.4,
		},
	}
}

// StressEngine 压力测试引擎
type StressEngine struct {
	scenarios []StressScenario
}

// NewStressEngine 创建压力测试引擎；scenarios 为空时使用默认目录
func NewStressEngine(scenarios []StressScenario) *StressEngine {
	if len(scenarios) == 0 {
		scenarios = DefaultScenarios()
	}
	return &StressEngine{scenarios: scenarios}
}

// Scenarios 场景目录
func (e *StressEngine) Scenarios() []StressScenario {
	return e.scenarios
}

// RunAll 对持仓簿运行全部场景，返回每个场景的总损失
func (e *StressEngine) RunAll(positions []PositionRisk) []ScenarioLoss {
	losses := make([]ScenarioLoss, 0, len(e.scenarios))
	for i := range e.scenarios {
		losses = append(losses, ScenarioLoss{
			Name: e.scenarios[i].Name,
			Loss: e.scenarioLoss(positions, &e.scenarios[i]),
		})
	}
	return losses
}

// WorstCase 所有场景中的最大损失
func (e *StressEngine) WorstCase(positions []PositionRisk) float64 {
	worst := 0.0
	for i := range e.scenarios {
		if loss := e.scenarioLoss(positions, &e.scenarios[i]); loss > worst {
			worst = loss
		}
	}
	return worst
}

// scenarioLoss 单场景组合损失
func (e *StressEngine) scenarioLoss(positions []PositionRisk, scenario *StressScenario) float64 {
	totalLoss := 0.0

	for i := range positions {
		position := &positions[i]

		shock := scenario.MarketShock
		if s, ok := scenario.SymbolShocks[position.SymbolID]; ok {
			shock = s
		}

		// 价格直接冲击
		direct := position.MarketValue * shock

		// 波动率冲击（期权 gamma 效应）
		gammaTerm := 0.5 * position.Gamma * position.MarketValue * shock * shock * scenario.VolatilityMultiplier

		// 相关性冲击（分散化失效）
		corrTerm := position.VaRContribution * scenario.CorrelationShock

		totalLoss += math.Abs(direct + gammaTerm + corrTerm)
	}

	return totalLoss
}
