package whale

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/behavior"
	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
)

// initialCapacity expected trades per (wallet, market) window
const initialCapacity = 16

type windowTrade struct {
	id    string
	trade behavior.Trade
}

// TradeWindow recent trades of one (wallet, market), ordered by trade time, with running totals.
// A window is owned by a single shard worker and is not safe for concurrent use.
type TradeWindow struct {
	Key string

	trades []windowTrade
	ids    map[string]struct{}

	buyUSD  decimal.Decimal
	sellUSD decimal.Decimal

	latest  time.Time // newest trade time seen
	touched time.Time // wall clock of the last write, drives eviction
}

func NewTradeWindow(key string) *TradeWindow {
	return &TradeWindow{
		Key:     key,
		trades:  make([]windowTrade, 0, initialCapacity),
		ids:     make(map[string]struct{}, initialCapacity),
		buyUSD:  decimal.Zero,
		sellUSD: decimal.Zero,
	}
}

// Seed fills a fresh window from persisted history
func (w *TradeWindow) Seed(rows []*model.WhaleTradeHistory, span time.Duration, now time.Time) {
	for _, h := range rows {
		w.Add(h.TradeID, behavior.Trade{
			Side:      h.Side,
			Amount:    h.Size,
			Price:     h.Price,
			Timestamp: h.Timestamp,
		}, span, now)
	}
}

// Add inserts the trade in time order and drops trades older than span before the newest one.
// Trades already in the window are ignored; the return value reports whether t was added.
func (w *TradeWindow) Add(id string, t behavior.Trade, span time.Duration, now time.Time) bool {
	w.touched = now
	if _, ok := w.ids[id]; ok {
		return false
	}

	idx := sort.Search(len(w.trades), func(i int) bool {
		return w.trades[i].trade.Timestamp.After(t.Timestamp)
	})
	w.trades = append(w.trades, windowTrade{})
	copy(w.trades[idx+1:], w.trades[idx:])
	w.trades[idx] = windowTrade{id: id, trade: t}
	w.ids[id] = struct{}{}
	w.addStats(t)

	if t.Timestamp.After(w.latest) {
		w.latest = t.Timestamp
	}
	w.expire(w.latest.Add(-span))
	return true
}

// expire removes every trade before cutoff
func (w *TradeWindow) expire(cutoff time.Time) {
	expired := 0
	for expired < len(w.trades) && w.trades[expired].trade.Timestamp.Before(cutoff) {
		expired++
	}
	if expired == 0 {
		return
	}

	for i := 0; i < expired; i++ {
		w.removeStats(w.trades[i].trade)
		delete(w.ids, w.trades[i].id)
	}
	n := copy(w.trades, w.trades[expired:])
	for i := n; i < len(w.trades); i++ {
		w.trades[i] = windowTrade{}
	}
	w.trades = w.trades[:n]
}

func (w *TradeWindow) addStats(t behavior.Trade) {
	if t.Side == common.SideSell {
		w.sellUSD = w.sellUSD.Add(t.USD())
		return
	}
	w.buyUSD = w.buyUSD.Add(t.USD())
}

func (w *TradeWindow) removeStats(t behavior.Trade) {
	if t.Side == common.SideSell {
		w.sellUSD = w.sellUSD.Sub(t.USD())
		return
	}
	w.buyUSD = w.buyUSD.Sub(t.USD())
}

// Trades copy of the window, oldest first
func (w *TradeWindow) Trades() []behavior.Trade {
	out := make([]behavior.Trade, len(w.trades))
	for i, wt := range w.trades {
		out[i] = wt.trade
	}
	return out
}

func (w *TradeWindow) Len() int {
	return len(w.trades)
}

// Volumes buy and sell USD currently held
func (w *TradeWindow) Volumes() (decimal.Decimal, decimal.Decimal) {
	return w.buyUSD, w.sellUSD
}

// Idle true when nothing was written since before cutoff
func (w *TradeWindow) Idle(cutoff time.Time) bool {
	return w.touched.Before(cutoff)
}
