package behavior

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/common"
)

var th = Thresholds{
	Micro:    10 * time.Minute,
	Macro:    20 * time.Minute,
	SpikeUSD: decimal.NewFromInt(10_000),
	BuildUSD: decimal.NewFromInt(10_000),
	ExitUSD:  decimal.NewFromInt(5_000),
}

func trade(side common.Side, amount, price string, ago time.Duration, now time.Time) Trade {
	return Trade{
		Side:      side,
		Amount:    decimal.RequireFromString(amount),
		Price:     decimal.RequireFromString(price),
		Timestamp: now.Add(-ago),
	}
}

func TestDetect(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name     string
		trades   []Trade
		want     common.Behavior
		side     common.Side
		amount   string
		price    string
		matching bool
	}{
		{
			name:     "nothing",
			trades:   []Trade{trade(common.SideBuy, "100", "0.5", time.Minute, now)},
			matching: false,
		},
		{
			name: "spike picks the largest trade in the micro window",
			trades: []Trade{
				trade(common.SideBuy, "30000", "0.5", 2*time.Minute, now),
				trade(common.SideSell, "40000", "0.5", time.Minute, now),
				trade(common.SideBuy, "90000", "0.5", 15*time.Minute, now),
			},
			want: common.BehaviorSpike, side: common.SideSell, amount: "40000", price: "0.5", matching: true,
		},
		{
			name: "large trade outside micro window is not a spike",
			trades: []Trade{
				trade(common.SideBuy, "40000", "0.5", 15*time.Minute, now),
			},
			matching: false,
		},
		{
			name: "build uses vwap of buys",
			trades: []Trade{
				trade(common.SideBuy, "10000", "0.3", 18*time.Minute, now),
				trade(common.SideBuy, "10000", "0.4", 12*time.Minute, now),
				trade(common.SideBuy, "10000", "0.5", time.Minute, now),
			},
			want: common.BehaviorBuild, side: common.SideBuy, amount: "30000", price: "0.4", matching: true,
		},
		{
			name: "two buys are not a build",
			trades: []Trade{
				trade(common.SideBuy, "10000", "0.45", 5*time.Minute, now),
				trade(common.SideBuy, "10000", "0.45", time.Minute, now),
			},
			matching: false,
		},
		{
			name: "exit after buying",
			trades: []Trade{
				trade(common.SideBuy, "20000", "0.4", 15*time.Minute, now),
				trade(common.SideSell, "8000", "0.5", 3*time.Minute, now),
				trade(common.SideSell, "4000", "0.6", time.Minute, now),
			},
			want: common.BehaviorExit, side: common.SideSell, amount: "12000", price: "0.5333333333333333", matching: true,
		},
		{
			name: "selling without prior buys is not an exit",
			trades: []Trade{
				trade(common.SideSell, "15000", "0.6", time.Minute, now),
			},
			matching: false,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			m, ok := Detect(c.trades, now, th)
			require.Equal(t, c.matching, ok)
			if !ok {
				return
			}
			assert.Equal(t, c.want, m.Behavior)
			assert.Equal(t, c.side, m.Side)
			assert.True(t, m.Amount.Equal(decimal.RequireFromString(c.amount)), m.Amount.String())
			assert.True(t, m.Price.Equal(decimal.RequireFromString(c.price)), m.Price.String())
		})
	}
}

func TestConfidenceByBehavior(t *testing.T) {
	now := time.Now()
	m, ok := Detect([]Trade{trade(common.SideBuy, "50000", "0.5", 0, now)}, now, th)
	require.True(t, ok)
	assert.Equal(t, ConfidenceSpike, m.Confidence)
	assert.True(t, m.USD().Equal(decimal.NewFromInt(25_000)))
}
