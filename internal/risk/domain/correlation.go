// 滚动相关性矩阵：对每一对标的维护最近 window 个对齐样本上的 Pearson 相关系数。
// 单元格以 float32 位存储在原子变量中，写者 release 发布、读者 acquire 读取；
// 跨单元格的撕裂读取是可接受的（仅作统计用途）。
package domain

import (
	"math"
	"sync/atomic"
	"time"
)

// CorrelationMatrix 对称相关性矩阵，对角线为 1
type CorrelationMatrix struct {
	maxSymbols int
	window     int

	// 行优先存储 float32 位
	cells      []atomic.Uint32
	lastUpdate []atomic.Int64
}

// NewCorrelationMatrix 创建相关性矩阵
func NewCorrelationMatrix(maxSymbols, window int) *CorrelationMatrix {
	m := &CorrelationMatrix{
		maxSymbols: maxSymbols,
		window:     window,
		cells:      make([]atomic.Uint32, maxSymbols*maxSymbols),
		lastUpdate: make([]atomic.Int64, maxSymbols),
	}
	one := math.Float32bits(1.0)
	for i := 0; i < maxSymbols; i++ {
		m.cells[i*maxSymbols+i].Store(one)
	}
	return m
}

// Window 相关性滚动窗口
func (m *CorrelationMatrix) Window() int {
	return m.window
}

// Update 用两组对齐的收益率序列重估 ρ(i,j)
// 序列长度不相等或不足 window 时不做任何修改
func (m *CorrelationMatrix) Update(i, j uint32, returnsI, returnsJ []float64) {
	if int(i) >= m.maxSymbols || int(j) >= m.maxSymbols {
		return
	}
	if len(returnsI) != len(returnsJ) || len(returnsI) < m.window {
		return
	}

	// 取最近 window 个样本
	n := m.window
	ri := returnsI[len(returnsI)-n:]
	rj := returnsJ[len(returnsJ)-n:]

	var sumI, sumJ float64
	for k := 0; k < n; k++ {
		sumI += ri[k]
		sumJ += rj[k]
	}
	meanI := sumI / float64(n)
	meanJ := sumJ / float64(n)

	var cov, varI, varJ float64
	for k := 0; k < n; k++ {
		di := ri[k] - meanI
		dj := rj[k] - meanJ
		cov += di * dj
		varI += di * di
		varJ += dj * dj
	}

	correlation := 0.0
	if varI > 0 && varJ > 0 {
		correlation = cov / (math.Sqrt(varI) * math.Sqrt(varJ))
	}
	correlation = math.Max(-1.0, math.Min(1.0, correlation))

	bits := math.Float32bits(float32(correlation))
	m.cells[int(i)*m.maxSymbols+int(j)].Store(bits)
	m.cells[int(j)*m.maxSymbols+int(i)].Store(bits)

	now := time.Now().UnixNano()
	m.lastUpdate[i].Store(now)
	m.lastUpdate[j].Store(now)
}

// Correlation O(1) 读取 ρ(i,j)；越界 id 返回 0
func (m *CorrelationMatrix) Correlation(i, j uint32) float32 {
	if int(i) >= m.maxSymbols || int(j) >= m.maxSymbols {
		return 0
	}
	return math.Float32frombits(m.cells[int(i)*m.maxSymbols+int(j)].Load())
}

// LastUpdate 标的相关性行最近一次更新时间（纳秒）
func (m *CorrelationMatrix) LastUpdate(symbol uint32) int64 {
	if int(symbol) >= m.maxSymbols {
		return 0
	}
	return m.lastUpdate[symbol].Load()
}

// PortfolioCorrelationRisk 组合相关性风险诊断值：
// 对无序持仓对 (i<j) 求和 2·ρ(i,j)·var_i·var_j
func (m *CorrelationMatrix) PortfolioCorrelationRisk(positions []PositionRisk) float64 {
	totalRisk := 0.0
	for i := 0; i < len(positions); i++ {
		for j := i + 1; j < len(positions); j++ {
			correlation := m.Correlation(positions[i].SymbolID, positions[j].SymbolID)
			totalRisk += 2.0 * float64(correlation) * positions[i].VaRContribution * positions[j].VaRContribution
		}
	}
	return totalRisk
}
