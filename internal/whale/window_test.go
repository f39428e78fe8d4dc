package whale

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/behavior"
	"github.com/ninja0404/whale-signal/internal/common"
)

func wt(side common.Side, amount, price string, ts time.Time) behavior.Trade {
	return behavior.Trade{Side: side, Amount: dec(amount), Price: dec(price), Timestamp: ts}
}

func TestTradeWindowOrderingAndDedup(t *testing.T) {
	w := NewTradeWindow("0xabc|m1")
	span := 20 * time.Minute
	now := time.Now()

	assert.True(t, w.Add("t2", wt(common.SideBuy, "10", "0.5", base.Add(2*time.Minute)), span, now))
	assert.True(t, w.Add("t1", wt(common.SideBuy, "10", "0.4", base), span, now))
	assert.True(t, w.Add("t3", wt(common.SideSell, "4", "0.6", base.Add(3*time.Minute)), span, now))
	assert.False(t, w.Add("t1", wt(common.SideBuy, "10", "0.4", base), span, now))

	trades := w.Trades()
	require.Len(t, trades, 3)
	assert.True(t, trades[0].Timestamp.Equal(base))
	assert.True(t, trades[2].Timestamp.Equal(base.Add(3*time.Minute)))

	buy, sell := w.Volumes()
	assert.True(t, buy.Equal(dec("9")))
	assert.True(t, sell.Equal(dec("2.4")))
}

func TestTradeWindowExpiry(t *testing.T) {
	w := NewTradeWindow("0xabc|m1")
	span := 10 * time.Minute
	now := time.Now()

	w.Add("t1", wt(common.SideBuy, "10", "1", base), span, now)
	w.Add("t2", wt(common.SideSell, "5", "1", base.Add(5*time.Minute)), span, now)
	w.Add("t3", wt(common.SideBuy, "1", "1", base.Add(12*time.Minute)), span, now)

	require.Equal(t, 2, w.Len())
	buy, sell := w.Volumes()
	assert.True(t, buy.Equal(dec("1")))
	assert.True(t, sell.Equal(dec("5")))

	// a late trade older than the window is accepted and expired straight away
	assert.True(t, w.Add("t1", wt(common.SideBuy, "10", "1", base), span, now))
	assert.Equal(t, 2, w.Len())
}

func TestTradeWindowIdle(t *testing.T) {
	w := NewTradeWindow("k")
	touched := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	w.Add("t1", wt(common.SideBuy, "1", "1", base), time.Minute, touched)

	assert.False(t, w.Idle(touched.Add(-time.Second)))
	assert.True(t, w.Idle(touched.Add(time.Second)))
}
