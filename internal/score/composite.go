package score

import (
	"math"
)

const (
	weightPerformance = 0.30
	weightConsistency = 0.25
	weightTiming      = 0.20
	weightRisk        = 0.15
	weightImpact      = 0.10

	goodTradeSize      = 10_000.0
	goodLiquidityRatio = 0.05
	maxRiskReward      = 3.0

	washMinTrades      = 10
	washMarketFraction = 0.8
	washPnlRatio       = 0.01
)

// Breakdown decomposed composite score
type Breakdown struct {
	Performance float64
	Consistency float64
	Timing      float64
	Risk        float64
	Impact      float64
	WhaleScore  int
	Wash        bool
}

// Composite weighted five factor score, dampened for young wallets and suspected wash trading
func Composite(m Metrics, ageDays float64) Breakdown {
	b := Breakdown{
		Performance: 0.7*scale(m.ROI, -0.5, 0.5) + 0.3*m.WinRate*100,
		Timing:      ((1-m.EntryPercentile)*100 + m.ExitPercentile*100) / 2,
	}

	cv := 0.0
	if m.MeanAbsPnl > 0 {
		cv = m.StddevPnl / m.MeanAbsPnl
	}
	b.Consistency = clamp(m.WinRate*100-clamp(cv*20, 0, 50), 0, 100)

	ddRatio := 0.0
	if m.TotalVolume > 0 {
		ddRatio = m.MaxDrawdown / m.TotalVolume
	}
	b.Risk = 0.7*(100-scale(ddRatio, 0, 1)) + 0.3*scale(m.RiskReward, 0, maxRiskReward)

	b.Impact = 0.5*logScale(m.AvgTradeSize, goodTradeSize) + 0.5*scale(m.LiquidityRatio, 0, goodLiquidityRatio)

	total := weightPerformance*b.Performance +
		weightConsistency*b.Consistency +
		weightTiming*b.Timing +
		weightRisk*b.Risk +
		weightImpact*b.Impact

	switch {
	case ageDays < 7:
		total *= 0.4
	case ageDays < 14:
		total *= 0.7
	}

	b.Wash = IsWash(m)
	if b.Wash {
		total *= 0.2
	}
	b.WhaleScore = clampInt(int(math.Round(total)), 0, 100)
	return b
}

// IsWash many trades concentrated in one market with near zero net pnl
func IsWash(m Metrics) bool {
	if m.Trades < washMinTrades || m.TotalVolume <= 0 {
		return false
	}
	return m.TopMarketFraction >= washMarketFraction && math.Abs(m.TotalPnl)/m.TotalVolume < washPnlRatio
}

// scale maps [lo,hi] onto [0,100]
func scale(v, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	return clamp((v-lo)/(hi-lo)*100, 0, 100)
}

// logScale log10(1+v) relative to log10(1+good), capped at 100
func logScale(v, good float64) float64 {
	if v <= 0 {
		return 0
	}
	return clamp(math.Log10(1+v)/math.Log10(1+good)*100, 0, 100)
}
