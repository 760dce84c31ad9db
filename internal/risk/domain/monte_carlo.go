// 组合蒙特卡洛 VaR：按当前相关性矩阵生成关联正态因子，
// 用单标的 VaR 推出的隐含日波动率模拟组合损益分布并取分位。
// 默认保留简化的相关性注入（factor += 0.1·ρ·z_j）；
// 可选 Cholesky 分解路径提供严格的关联变换。
package domain

import (
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// MonteCarloInput 组合蒙特卡洛模拟输入
type MonteCarloInput struct {
	Positions    []PositionRisk
	Correlations *CorrelationMatrix
	// VarReturns[k] 为 Positions[k] 的单位日 VaR（收益率尺度）
	VarReturns  []float64
	Simulations int
	Confidence  float64
	UseCholesky bool
}

// SimulatePortfolioVaR 模拟组合 VaR（美元，损失为正）
// 给定相同的 rng 种子结果可复现
func SimulatePortfolioVaR(input MonteCarloInput, rng *rand.Rand) float64 {
	n := len(input.Positions)
	if n == 0 || input.Simulations <= 0 {
		return 0
	}

	// 隐含日波动率
	sigmas := make([]float64, n)
	for k := 0; k < n; k++ {
		sigmas[k] = input.VarReturns[k] * VaRToVolatility
	}

	var lower *mat.TriDense
	if input.UseCholesky {
		lower = choleskyFactor(input, sigmas)
	}

	portfolioReturns := make([]float64, input.Simulations)
	z := make([]float64, n)
	x := make([]float64, n)

	for sim := 0; sim < input.Simulations; sim++ {
		for k := 0; k < n; k++ {
			z[k] = rng.NormFloat64()
		}

		var portfolioReturn float64
		if lower != nil {
			// x = L·z 已含波动率尺度
			xv := mat.NewVecDense(n, x)
			xv.MulVec(lower, mat.NewVecDense(n, z))
			for k := 0; k < n; k++ {
				portfolioReturn += x[k] * input.Positions[k].MarketValue
			}
		} else {
			for k := 0; k < n; k++ {
				factor := z[k]
				for j := 0; j < k; j++ {
					rho := input.Correlations.Correlation(input.Positions[k].SymbolID, input.Positions[j].SymbolID)
					factor += float64(rho) * z[j] * 0.1
				}
				portfolioReturn += factor * sigmas[k] * input.Positions[k].MarketValue
			}
		}

		portfolioReturns[sim] = portfolioReturn
	}

	slices.Sort(portfolioReturns)
	idx := int(float64(input.Simulations) * (1.0 - input.Confidence))
	if idx >= input.Simulations {
		idx = input.Simulations - 1
	}
	return -portfolioReturns[idx]
}

// choleskyFactor 构建协方差矩阵并分解；非正定（如含零波动率持仓）时返回 nil，
// 调用方回退到简化注入
func choleskyFactor(input MonteCarloInput, sigmas []float64) *mat.TriDense {
	n := len(input.Positions)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			rho := 1.0
			if i != j {
				rho = float64(input.Correlations.Correlation(input.Positions[i].SymbolID, input.Positions[j].SymbolID))
			}
			cov.SetSym(i, j, rho*sigmas[i]*sigmas[j])
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(cov); !ok {
		return nil
	}
	lower := mat.NewTriDense(n, mat.Lower, nil)
	chol.LTo(lower)
	return lower
}
