// 实时风险分析引擎：组合收益率历史、相关性矩阵、VaR 计算器、压力测试引擎
// 与持仓簿，对每笔候选交易提供同步的限额检查。
//
// 热路径（追加收益率、读相关性、带缓存的单标的 VaR、持仓更新、check 快路径）
// 不做任何 I/O 也不阻塞；蒙特卡洛组合 VaR 仅在缓存过期时同步重算，
// 或由后台刷新器周期性重算。
package domain

import (
	"math"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"
)

// RiskAnalytics 实时风险分析引擎
type RiskAnalytics struct {
	cfg EngineConfig

	history      *ReturnHistory
	correlations *CorrelationMatrix
	varCalc      *VaRCalculator
	stress       *StressEngine
	book         *PositionBook
	limits       RiskLimits

	// 蒙特卡洛路径：rng 由 mcMu 串行化；组合 VaR 缓存的值与时间戳各自原子存取
	mcMu             sync.Mutex
	rng              *rand.Rand
	portfolioVaRBits atomic.Uint64
	portfolioVaRAt   atomic.Int64

	// 待重估相关性的标的集合
	dirtyMu sync.Mutex
	dirty   map[uint32]struct{}

	// 性能计数器
	checksPerformed atomic.Uint64
	violations      atomic.Uint64
	totalCalcTimeNS atomic.Uint64
}

// NewRiskAnalytics 创建风险分析引擎
func NewRiskAnalytics(cfg EngineConfig) *RiskAnalytics {
	cfg.Normalize()

	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	history := NewReturnHistory(cfg.MaxSymbols, cfg.HistoryDepth)
	return &RiskAnalytics{
		cfg:          cfg,
		history:      history,
		correlations: NewCorrelationMatrix(cfg.MaxSymbols, cfg.CorrelationWindow),
		varCalc:      NewVaRCalculator(history, VaRConfidence, cfg.VaRCacheTTL),
		stress:       NewStressEngine(cfg.Scenarios),
		book:         NewPositionBook(cfg.MaxSymbols),
		limits:       cfg.Limits,
		rng:          rand.New(rand.NewPCG(seed, 0)),
		dirty:        make(map[uint32]struct{}),
	}
}

// Limits 生效的风险限额
func (ra *RiskAnalytics) Limits() RiskLimits {
	return ra.limits
}

// Book 持仓簿
func (ra *RiskAnalytics) Book() *PositionBook {
	return ra.book
}

// Correlations 相关性矩阵
func (ra *RiskAnalytics) Correlations() *CorrelationMatrix {
	return ra.correlations
}

// Stress 压力测试引擎
func (ra *RiskAnalytics) Stress() *StressEngine {
	return ra.stress
}

// ReturnLength 标的当前样本数
func (ra *RiskAnalytics) ReturnLength(symbol uint32) int {
	return ra.history.Length(symbol)
}

// SnapshotReturns 拷贝标的的收益率序列（旧 → 新），返回样本数
func (ra *RiskAnalytics) SnapshotReturns(symbol uint32, out []float64) int {
	return ra.history.Snapshot(symbol, out)
}

// AddReturn 追加收益率样本，失效 VaR 缓存并标记相关性待重估
func (ra *RiskAnalytics) AddReturn(symbol uint32, logReturn float64) error {
	if !ra.varCalc.AddReturn(symbol, logReturn) {
		return ErrSymbolOutOfRange
	}

	ra.dirtyMu.Lock()
	ra.dirty[symbol] = struct{}{}
	ra.dirtyMu.Unlock()
	return nil
}

// UpdateCorrelationPair 用外部提供的对齐序列重估一对标的的相关性
func (ra *RiskAnalytics) UpdateCorrelationPair(a, b uint32, returnsA, returnsB []float64) {
	ra.correlations.Update(a, b, returnsA, returnsB)
}

// SweepCorrelations 后台相关性扫描：取出待重估标的，与持仓簿中的标的两两重估，
// 最多处理 maxPairs 对，返回实际更新的 pair 数
func (ra *RiskAnalytics) SweepCorrelations(maxPairs int) int {
	ra.dirtyMu.Lock()
	if len(ra.dirty) == 0 {
		ra.dirtyMu.Unlock()
		return 0
	}
	dirty := make([]uint32, 0, len(ra.dirty))
	for symbol := range ra.dirty {
		dirty = append(dirty, symbol)
	}
	ra.dirty = make(map[uint32]struct{})
	ra.dirtyMu.Unlock()

	// 候选对端：持仓标的与本轮变脏标的的并集
	peerSet := make(map[uint32]struct{})
	for _, symbol := range ra.book.Symbols() {
		peerSet[symbol] = struct{}{}
	}
	for _, symbol := range dirty {
		peerSet[symbol] = struct{}{}
	}

	bufA := make([]float64, ra.history.Depth())
	bufB := make([]float64, ra.history.Depth())
	updated := 0

	for _, a := range dirty {
		nA := ra.history.Snapshot(a, bufA)
		if nA < ra.correlations.Window() {
			continue
		}
		for b := range peerSet {
			if b == a {
				continue
			}
			if updated >= maxPairs {
				return updated
			}
			nB := ra.history.Snapshot(b, bufB)
			if nB < ra.correlations.Window() {
				continue
			}
			// 对齐到共同长度的最近样本
			n := min(nA, nB)
			ra.correlations.Update(a, b, bufA[nA-n:nA], bufB[nB-n:nB])
			updated++
		}
	}
	return updated
}

// UpdatePosition 交易后更新持仓并重算其 VaR 贡献
func (ra *RiskAnalytics) UpdatePosition(symbol uint32, quantity, marketValue, delta float64) error {
	start := time.Now()

	varContribution := ra.varCalc.VaR(symbol, marketValue)
	err := ra.book.Update(symbol, quantity, marketValue, delta, varContribution, start.UnixNano())

	ra.totalCalcTimeNS.Add(uint64(time.Since(start).Nanoseconds()))
	return err
}

// UpdateGreeks 更新持仓的希腊字母
func (ra *RiskAnalytics) UpdateGreeks(symbol uint32, gamma, vega, theta, beta float64) error {
	return ra.book.UpdateGreeks(symbol, gamma, vega, theta, beta, time.Now().UnixNano())
}

// Check 对当前持仓簿执行限额检查。
// 判定顺序：组合 VaR → 单持仓 VaR → 集中度 →（每 StressCheckInterval 次）压力损失；
// 第一个失败即返回。
func (ra *RiskAnalytics) Check() CheckResult {
	start := time.Now()
	n := ra.checksPerformed.Add(1)

	positions := ra.book.Snapshot()
	result := ra.evaluate(positions, n)

	if !result.Passed {
		ra.violations.Add(1)
	}
	ra.totalCalcTimeNS.Add(uint64(time.Since(start).Nanoseconds()))
	return result
}

// evaluate 按顺序执行各项判定
func (ra *RiskAnalytics) evaluate(positions []PositionRisk, checkSeq uint64) CheckResult {
	portfolioVaR := ra.cachedPortfolioVaR(positions)
	if portfolioVaR > ra.limits.MaxPortfolioVaR {
		return CheckResult{
			Reason:   ViolationPortfolioVaR,
			Observed: portfolioVaR,
			Limit:    ra.limits.MaxPortfolioVaR,
		}
	}

	for i := range positions {
		if positions[i].VaRContribution > ra.limits.MaxPositionVaR {
			return CheckResult{
				Reason:   ViolationPositionVaR,
				SymbolID: positions[i].SymbolID,
				Observed: positions[i].VaRContribution,
				Limit:    ra.limits.MaxPositionVaR,
			}
		}
	}

	totalValue := 0.0
	for i := range positions {
		totalValue += math.Abs(positions[i].MarketValue)
	}
	if totalValue > 0 {
		for i := range positions {
			concentration := math.Abs(positions[i].MarketValue) / totalValue
			if concentration > ra.limits.MaxConcentration {
				return CheckResult{
					Reason:   ViolationConcentration,
					SymbolID: positions[i].SymbolID,
					Observed: concentration,
					Limit:    ra.limits.MaxConcentration,
				}
			}
		}
	}

	// 压力测试按采样频率执行
	if checkSeq%uint64(ra.cfg.StressCheckInterval) == 0 {
		worst := ra.stress.WorstCase(positions)
		if worst > ra.limits.MaxStressLoss {
			return CheckResult{
				Reason:   ViolationStressLoss,
				Observed: worst,
				Limit:    ra.limits.MaxStressLoss,
			}
		}
	}

	return CheckResult{Passed: true}
}

// cachedPortfolioVaR 读取缓存的组合 VaR；缓存过期时同步重算
func (ra *RiskAnalytics) cachedPortfolioVaR(positions []PositionRisk) float64 {
	if len(positions) == 0 {
		return 0
	}

	now := time.Now().UnixNano()
	if now-ra.portfolioVaRAt.Load() < ra.cfg.VaRCacheTTL.Nanoseconds() {
		return math.Float64frombits(ra.portfolioVaRBits.Load())
	}
	return ra.refreshPortfolioVaR(positions)
}

// RefreshPortfolioVaR 用当前持仓簿快照重算组合 VaR 并更新缓存（后台刷新器调用）
func (ra *RiskAnalytics) RefreshPortfolioVaR() float64 {
	return ra.refreshPortfolioVaR(ra.book.Snapshot())
}

// CurrentPortfolioVaR 当前组合 VaR（美元）；读取缓存值，缓存过期时同步重算
func (ra *RiskAnalytics) CurrentPortfolioVaR() float64 {
	return ra.cachedPortfolioVaR(ra.book.Snapshot())
}

func (ra *RiskAnalytics) refreshPortfolioVaR(positions []PositionRisk) float64 {
	if len(positions) == 0 {
		ra.portfolioVaRBits.Store(math.Float64bits(0))
		ra.portfolioVaRAt.Store(time.Now().UnixNano())
		return 0
	}

	varReturns := make([]float64, len(positions))
	for k := range positions {
		varReturns[k] = ra.varCalc.ReturnVaR(positions[k].SymbolID)
	}

	ra.mcMu.Lock()
	portfolioVaR := SimulatePortfolioVaR(MonteCarloInput{
		Positions:    positions,
		Correlations: ra.correlations,
		VarReturns:   varReturns,
		Simulations:  ra.cfg.Simulations,
		Confidence:   VaRConfidence,
		UseCholesky:  ra.cfg.UseCholesky,
	}, ra.rng)
	ra.mcMu.Unlock()

	ra.portfolioVaRBits.Store(math.Float64bits(portfolioVaR))
	ra.portfolioVaRAt.Store(time.Now().UnixNano())
	return portfolioVaR
}

// PositionVaR 单标的 VaR（美元）
func (ra *RiskAnalytics) PositionVaR(symbol uint32, positionValue float64) float64 {
	return ra.varCalc.VaR(symbol, positionValue)
}

// StressReport 对当前持仓簿运行全部压力场景
func (ra *RiskAnalytics) StressReport() []ScenarioLoss {
	return ra.stress.RunAll(ra.book.Snapshot())
}

// WorstCaseStressLoss 当前持仓簿的最坏压力损失
func (ra *RiskAnalytics) WorstCaseStressLoss() float64 {
	return ra.stress.WorstCase(ra.book.Snapshot())
}

// CorrelationRisk 当前持仓簿的组合相关性风险诊断值
func (ra *RiskAnalytics) CorrelationRisk() float64 {
	return ra.correlations.PortfolioCorrelationRisk(ra.book.Snapshot())
}

// Metrics 风控检查性能统计
func (ra *RiskAnalytics) Metrics() PerformanceMetrics {
	metrics := PerformanceMetrics{
		RiskChecksPerformed: ra.checksPerformed.Load(),
		RiskViolations:      ra.violations.Load(),
	}
	if metrics.RiskChecksPerformed > 0 {
		metrics.AvgLatencyNS = float64(ra.totalCalcTimeNS.Load()) / float64(metrics.RiskChecksPerformed)
		metrics.ViolationRate = float64(metrics.RiskViolations) / float64(metrics.RiskChecksPerformed)
	}
	return metrics
}
