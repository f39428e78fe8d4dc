package score

import (
	"math"
	"sort"
)

// MinWindowTrades windows with fewer trades are ignored by Combine
const MinWindowTrades = 5

// TradeRow one historical trade in float space for statistics
type TradeRow struct {
	MarketID string
	Buy      bool
	Price    float64
	USD      float64
	Pnl      float64
}

// MarketContext distribution of a market over the scoring window
type MarketContext struct {
	// Prices sorted ascending
	Prices []float64
	Volume float64
}

// Metrics window statistics behind the composite score
type Metrics struct {
	Trades            int
	Wins              int
	Closed            int
	WinRate           float64
	TotalPnl          float64
	TotalVolume       float64
	ROI               float64
	AvgTradeSize      float64
	MaxDrawdown       float64
	StddevPnl         float64
	MeanAbsPnl        float64
	EntryPercentile   float64
	ExitPercentile    float64
	RiskReward        float64
	LiquidityRatio    float64
	TopMarketFraction float64
}

// NewMarketContext sorts prices once for percentile lookups
func NewMarketContext(prices []float64, volume float64) *MarketContext {
	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)
	return &MarketContext{Prices: sorted, Volume: volume}
}

// Percentile mid-rank of price within the market distribution, 0.5 without data
func (m *MarketContext) Percentile(price float64) float64 {
	n := len(m.Prices)
	if n == 0 {
		return 0.5
	}
	below := sort.SearchFloat64s(m.Prices, price)
	upper := sort.Search(n, func(i int) bool { return m.Prices[i] > price })
	return (float64(below) + float64(upper-below)/2) / float64(n)
}

// ComputeMetrics rows must be oldest first; markets may miss entries
func ComputeMetrics(rows []TradeRow, markets map[string]*MarketContext) Metrics {
	m := Metrics{Trades: len(rows), EntryPercentile: 0.5, ExitPercentile: 0.5}
	if len(rows) == 0 {
		return m
	}

	var (
		cum, peak         float64
		closedPnl         []float64
		winSum, lossSum   float64
		losses            int
		entrySum, exitSum float64
		entries, exits    int
	)
	perMarket := make(map[string]float64)
	for _, r := range rows {
		m.TotalVolume += r.USD
		m.TotalPnl += r.Pnl
		perMarket[r.MarketID] += r.USD

		cum += r.Pnl
		if cum > peak {
			peak = cum
		}
		if dd := peak - cum; dd > m.MaxDrawdown {
			m.MaxDrawdown = dd
		}

		if r.Pnl != 0 {
			closedPnl = append(closedPnl, r.Pnl)
			if r.Pnl > 0 {
				m.Wins++
				winSum += r.Pnl
			} else {
				losses++
				lossSum += -r.Pnl
			}
		}

		if mc, ok := markets[r.MarketID]; ok && len(mc.Prices) > 0 {
			p := mc.Percentile(r.Price)
			if r.Buy {
				entrySum += p
				entries++
			} else {
				exitSum += p
				exits++
			}
		}
	}

	m.Closed = len(closedPnl)
	if m.Closed > 0 {
		m.WinRate = float64(m.Wins) / float64(m.Closed)
	}
	if m.TotalVolume > 0 {
		m.ROI = m.TotalPnl / m.TotalVolume
	}
	m.AvgTradeSize = m.TotalVolume / float64(m.Trades)
	m.StddevPnl, m.MeanAbsPnl = dispersion(closedPnl)

	if entries > 0 {
		m.EntryPercentile = entrySum / float64(entries)
	}
	if exits > 0 {
		m.ExitPercentile = exitSum / float64(exits)
	}

	switch {
	case losses > 0 && m.Wins > 0:
		m.RiskReward = (winSum / float64(m.Wins)) / (lossSum / float64(losses))
	case m.Wins > 0:
		m.RiskReward = 3
	}

	var top, marketVolume float64
	for id, v := range perMarket {
		if v > top {
			top = v
		}
		if mc, ok := markets[id]; ok {
			marketVolume += mc.Volume
		}
	}
	if m.TotalVolume > 0 {
		m.TopMarketFraction = top / m.TotalVolume
	}
	if marketVolume > 0 {
		m.LiquidityRatio = m.TotalVolume / marketVolume
	}
	return m
}

// dispersion population stddev and mean absolute value
func dispersion(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}
	var sum, abs float64
	for _, v := range values {
		sum += v
		abs += math.Abs(v)
	}
	n := float64(len(values))
	mean := sum / n
	var sq float64
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	return math.Sqrt(sq / n), abs / n
}

// Combine blends the 7 and 30 day windows, falling back to all time when neither has enough trades
func Combine(w7, w30, all Metrics) Metrics {
	ok7 := w7.Trades >= MinWindowTrades
	ok30 := w30.Trades >= MinWindowTrades
	switch {
	case ok7 && ok30:
		out := w30
		blend := func(a, b float64) float64 { return (a + b) / 2 }
		out.WinRate = blend(w7.WinRate, w30.WinRate)
		out.ROI = blend(w7.ROI, w30.ROI)
		out.AvgTradeSize = blend(w7.AvgTradeSize, w30.AvgTradeSize)
		out.StddevPnl = blend(w7.StddevPnl, w30.StddevPnl)
		out.MeanAbsPnl = blend(w7.MeanAbsPnl, w30.MeanAbsPnl)
		out.EntryPercentile = blend(w7.EntryPercentile, w30.EntryPercentile)
		out.ExitPercentile = blend(w7.ExitPercentile, w30.ExitPercentile)
		out.RiskReward = blend(w7.RiskReward, w30.RiskReward)
		out.LiquidityRatio = blend(w7.LiquidityRatio, w30.LiquidityRatio)
		out.TopMarketFraction = blend(w7.TopMarketFraction, w30.TopMarketFraction)
		return out
	case ok30:
		return w30
	case ok7:
		return w7
	case all.Trades > 0:
		return all
	default:
		return w30
	}
}
