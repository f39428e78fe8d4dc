package score

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRealtime(t *testing.T) {
	cases := []struct {
		name string
		in   RealtimeInput
		want int
	}{
		{
			name: "top tier without enough closed trades",
			in:   RealtimeInput{Volume30d: decimal.NewFromInt(60_000), Wins: 3, Losses: 1},
			want: 92,
		},
		{
			name: "bonuses are clamped",
			in: RealtimeInput{
				Volume30d: decimal.NewFromInt(60_000), Wins: 8, Losses: 2,
				RealizedPnl: decimal.NewFromInt(30_000), TotalVolume: decimal.NewFromInt(100_000),
			},
			want: 100,
		},
		{
			name: "poor record",
			in: RealtimeInput{
				Volume30d: decimal.NewFromInt(3_000), Wins: 3, Losses: 7,
				RealizedPnl: decimal.NewFromInt(-2_000), TotalVolume: decimal.NewFromInt(10_000),
			},
			want: 40,
		},
		{
			name: "modest win rate",
			in: RealtimeInput{
				Volume30d: decimal.NewFromInt(12_000), Wins: 6, Losses: 4,
				RealizedPnl: decimal.NewFromInt(500), TotalVolume: decimal.NewFromInt(10_000),
			},
			want: 83,
		},
		{
			name: "tier boundary is inclusive",
			in:   RealtimeInput{Volume30d: decimal.NewFromInt(5_000)},
			want: 67,
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, Realtime(c.in))
		})
	}
}

func sampleMetrics() Metrics {
	return Metrics{
		Trades:            20,
		WinRate:           0.6,
		ROI:               0.2,
		TotalVolume:       100_000,
		TotalPnl:          20_000,
		MaxDrawdown:       10_000,
		StddevPnl:         100,
		MeanAbsPnl:        100,
		EntryPercentile:   0.3,
		ExitPercentile:    0.7,
		RiskReward:        1.5,
		AvgTradeSize:      10_000,
		LiquidityRatio:    0.05,
		TopMarketFraction: 0.5,
	}
}

func TestComposite(t *testing.T) {
	b := Composite(sampleMetrics(), 30)
	assert.InDelta(t, 67, b.Performance, 1e-6)
	assert.InDelta(t, 40, b.Consistency, 1e-6)
	assert.InDelta(t, 70, b.Timing, 1e-6)
	assert.InDelta(t, 78, b.Risk, 1e-6)
	assert.InDelta(t, 100, b.Impact, 1e-6)
	assert.False(t, b.Wash)
	assert.Equal(t, 66, b.WhaleScore)
}

func TestCompositeDampeners(t *testing.T) {
	assert.Equal(t, 26, Composite(sampleMetrics(), 5).WhaleScore)
	assert.Equal(t, 46, Composite(sampleMetrics(), 10).WhaleScore)

	wash := sampleMetrics()
	wash.TopMarketFraction = 0.9
	wash.TotalPnl = 500
	b := Composite(wash, 30)
	assert.True(t, b.Wash)
	assert.Equal(t, 13, b.WhaleScore)

	few := wash
	few.Trades = 9
	assert.False(t, IsWash(few))
}

func TestComputeMetrics(t *testing.T) {
	rows := []TradeRow{
		{MarketID: "m1", Buy: true, Price: 0.4, USD: 400},
		{MarketID: "m1", Buy: false, Price: 0.6, USD: 300, Pnl: 100},
		{MarketID: "m1", Buy: false, Price: 0.3, USD: 150, Pnl: -50},
		{MarketID: "m2", Buy: true, Price: 0.5, USD: 150},
	}
	markets := map[string]*MarketContext{
		"m1": NewMarketContext([]float64{0.6, 0.3, 0.4}, 1700),
	}
	m := ComputeMetrics(rows, markets)

	assert.Equal(t, 4, m.Trades)
	assert.Equal(t, 2, m.Closed)
	assert.Equal(t, 1, m.Wins)
	assert.InDelta(t, 0.5, m.WinRate, 1e-9)
	assert.InDelta(t, 1000, m.TotalVolume, 1e-9)
	assert.InDelta(t, 0.05, m.ROI, 1e-9)
	assert.InDelta(t, 250, m.AvgTradeSize, 1e-9)
	assert.InDelta(t, 50, m.MaxDrawdown, 1e-9)
	assert.InDelta(t, 75, m.StddevPnl, 1e-9)
	assert.InDelta(t, 75, m.MeanAbsPnl, 1e-9)
	assert.InDelta(t, 2, m.RiskReward, 1e-9)
	assert.InDelta(t, 0.85, m.TopMarketFraction, 1e-9)
	assert.InDelta(t, 1000.0/1700.0, m.LiquidityRatio, 1e-9)
	assert.InDelta(t, 0.5, m.EntryPercentile, 1e-9)

	empty := ComputeMetrics(nil, nil)
	assert.Equal(t, 0.5, empty.EntryPercentile)
	assert.Equal(t, 0.0, empty.RiskReward)
}

func TestRiskRewardWithoutLosses(t *testing.T) {
	m := ComputeMetrics([]TradeRow{{MarketID: "m", Price: 0.5, USD: 10, Pnl: 5}}, nil)
	assert.Equal(t, 3.0, m.RiskReward)
}

func TestPercentile(t *testing.T) {
	mc := NewMarketContext([]float64{0.6, 0.3, 0.4}, 0)
	assert.InDelta(t, 2.5/3, mc.Percentile(0.6), 1e-9)
	assert.InDelta(t, 0.0, mc.Percentile(0.1), 1e-9)
	assert.InDelta(t, 1.0, mc.Percentile(0.9), 1e-9)
	assert.Equal(t, 0.5, NewMarketContext(nil, 0).Percentile(0.2))
}

func TestCombine(t *testing.T) {
	w7 := Metrics{Trades: 6, WinRate: 0.8}
	w30 := Metrics{Trades: 12, WinRate: 0.4}
	all := Metrics{Trades: 40, WinRate: 0.55}

	both := Combine(w7, w30, all)
	assert.Equal(t, 12, both.Trades)
	assert.InDelta(t, 0.6, both.WinRate, 1e-9)

	w7.Trades = 4
	assert.Equal(t, 0.4, Combine(w7, w30, all).WinRate)

	w30.Trades = 3
	assert.Equal(t, 0.55, Combine(w7, w30, all).WinRate)

	assert.Equal(t, 3, Combine(w7, w30, Metrics{}).Trades)
}
