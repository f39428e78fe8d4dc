package whale

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/internal/behavior"
	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/position"
	"github.com/ninja0404/whale-signal/internal/queue"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/score"
	"github.com/ninja0404/whale-signal/internal/shard"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

const (
	volumeLookback = 30 * 24 * time.Hour
	evictInterval  = time.Minute
	evictAfter     = time.Hour
)

// StatsReader batch scores written by the stats job
type StatsReader interface {
	GetStats(ctx context.Context, wallet string) (*model.WhaleStats, error)
}

// Engine position and score stage. Every (wallet, market) is owned by one shard worker,
// so the read-modify-write of its position never races.
type Engine struct {
	positions repo.PositionRepo
	stats     StatsReader
	signals   repo.SignalRepo
	live      *config.Live
	pub       queue.Publisher
	output    string

	pool    *shard.Pool
	windows []map[string]*TradeWindow // indexed by worker, touched only on that worker
	now     func() time.Time
}

func NewEngine(positions repo.PositionRepo, stats StatsReader, signals repo.SignalRepo, live *config.Live, pub queue.Publisher, output string, shards int) *Engine {
	if shards <= 0 {
		shards = 1
	}
	e := &Engine{
		positions: positions,
		stats:     stats,
		signals:   signals,
		live:      live,
		pub:       pub,
		output:    output,
		windows:   make([]map[string]*TradeWindow, shards),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for i := range e.windows {
		e.windows[i] = make(map[string]*TradeWindow)
	}
	e.pool = shard.NewPool("whale", shards, shard.WithTicker(evictInterval, e.evict))
	return e
}

// Stop waits for the in-flight trades of every shard
func (e *Engine) Stop() {
	e.pool.Stop()
}

// Handle queue.Handler of the trade queue
func (e *Engine) Handle(ctx context.Context, payload []byte) error {
	trade, err := common.DecodeEvent[common.TradeIngested](payload)
	if err != nil {
		return err
	}
	_, err = e.Process(ctx, trade)
	return err
}

// Process applies one trade on its owning shard; the signal is nil when the trade did not qualify
// or was already signaled
func (e *Engine) Process(ctx context.Context, t *common.TradeIngested) (*common.WhaleSignal, error) {
	t.Wallet = strings.ToLower(strings.TrimSpace(t.Wallet))
	key := t.Wallet + "|" + t.MarketID
	ctx = logger.ContextWith(ctx, logger.FieldTradeID(t.TradeID), logger.FieldWallet(t.Wallet))

	// out is only safe to read once Do reports the task finished
	var out *common.WhaleSignal
	err := e.pool.Do(ctx, key, func(ctx context.Context) error {
		sig, err := e.process(ctx, e.pool.WorkerFor(key), key, t)
		out = sig
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *Engine) process(ctx context.Context, worker int, key string, t *common.TradeIngested) (*common.WhaleSignal, error) {
	th := e.live.Thresholds()

	hist, applied, err := e.applyPosition(ctx, t)
	if err != nil {
		return nil, err
	}
	if applied {
		metrics.TradesProcessed.WithLabelValues("applied").Inc()
	} else {
		metrics.TradesProcessed.WithLabelValues("duplicate").Inc()
		stored, err := e.signals.GetWhaleTrade(ctx, t.TradeID)
		if err != nil {
			return nil, errors.Wrap(err, "load whale trade")
		}
		if stored != nil {
			if stored.Published {
				return nil, nil
			}
			logger.LogFromContext(ctx).Warn("🔁 republishing whale signal")
			return e.publish(ctx, stored)
		}
	}

	window, err := e.window(ctx, worker, key, t, th.MacroWindow.D())
	if err != nil {
		return nil, err
	}

	whaleScore, err := e.score(ctx, t.Wallet, t.Timestamp, th)
	if err != nil {
		return nil, err
	}

	match, matched := behavior.Detect(window.Trades(), t.Timestamp, th.Behavior())
	if matched {
		metrics.Behaviors.WithLabelValues(string(match.Behavior)).Inc()
		if match.Confidence > whaleScore {
			whaleScore = match.Confidence
		}
	}

	level, ok := Qualify(whaleScore, t.USD(), matched, th)
	if !ok {
		logger.LogFromContext(ctx).Debug("📊 trade below qualification bar",
			logger.Int("score", whaleScore),
			logger.String("usd", t.USD().StringFixed(2)))
		return nil, nil
	}
	metrics.TradesProcessed.WithLabelValues("qualified").Inc()

	wt := &model.WhaleTrade{
		ID:          utils.StableID("wt", t.TradeID),
		TradeID:     t.TradeID,
		Wallet:      t.Wallet,
		MarketID:    t.MarketID,
		WhaleScore:  whaleScore,
		ActionType:  repo.ActionOf(hist),
		Side:        t.Side,
		Amount:      t.Amount,
		Price:       t.Price,
		SignalLevel: level,
		CreatedAt:   e.now(),
	}
	if matched {
		wt.Behavior = match.Behavior
		wt.Side = match.Side
		wt.Amount = match.Amount
		wt.Price = match.Price
	}
	wt.TradeUSD = wt.Amount.Mul(wt.Price)

	inserted, err := e.signals.InsertWhaleTrade(ctx, wt)
	if err != nil {
		return nil, errors.Wrap(err, "insert whale trade")
	}
	if !inserted {
		return nil, nil
	}
	return e.publish(ctx, wt)
}

// publish puts the stored signal row on the queue and marks it published. Until the mark lands
// a redelivered trade publishes it again; the alert stage dedups on whale_trade_id.
func (e *Engine) publish(ctx context.Context, wt *model.WhaleTrade) (*common.WhaleSignal, error) {
	sig := &common.WhaleSignal{
		WhaleTradeID: wt.ID,
		TradeID:      wt.TradeID,
		Wallet:       wt.Wallet,
		MarketID:     wt.MarketID,
		WhaleScore:   wt.WhaleScore,
		ActionType:   wt.ActionType,
		Behavior:     wt.Behavior,
		Side:         wt.Side,
		Amount:       wt.Amount,
		Price:        wt.Price,
		TradeUSD:     wt.TradeUSD,
		SignalLevel:  wt.SignalLevel,
		CreatedAt:    wt.CreatedAt,
	}
	err := utils.Retry(ctx, utils.DefaultRetry, func(ctx context.Context) error {
		return queue.PublishEvent(ctx, e.pub, e.output, wt.Wallet, sig)
	})
	if err != nil {
		return nil, errors.Wrap(err, "publish whale signal")
	}
	if err := e.signals.MarkWhaleTradePublished(ctx, wt.ID); err != nil {
		return nil, errors.Wrap(err, "mark whale trade published")
	}
	metrics.TradesProcessed.WithLabelValues("signal").Inc()

	logger.LogFromContext(ctx).Info("🐋 whale signal",
		logger.FieldMarket(wt.MarketID),
		logger.Int("score", sig.WhaleScore),
		logger.String("action", string(sig.ActionType)),
		logger.String("behavior", string(sig.Behavior)),
		logger.String("level", string(sig.SignalLevel)),
		logger.String("usd", sig.TradeUSD.StringFixed(2)))
	return sig, nil
}

// applyPosition folds the trade into the stored position. A replayed trade changes nothing
// and returns the history row recorded the first time.
func (e *Engine) applyPosition(ctx context.Context, t *common.TradeIngested) (*model.WhaleTradeHistory, bool, error) {
	pos, err := e.positions.GetPosition(ctx, t.Wallet, t.MarketID)
	if err != nil {
		return nil, false, errors.Wrap(err, "load position")
	}

	res := position.Apply(position.Position{Size: pos.NetSize, AvgPrice: pos.AvgPrice}, t.Side, t.Amount, t.Price)
	pos.NetSize = res.Position.Size
	pos.AvgPrice = res.Position.AvgPrice

	applied, hist, err := e.positions.ApplyTrade(ctx, &repo.TradeApplication{
		History: &model.WhaleTradeHistory{
			TradeID:    t.TradeID,
			Wallet:     t.Wallet,
			MarketID:   t.MarketID,
			Side:       t.Side,
			ActionType: res.Action,
			Price:      t.Price,
			Size:       t.Amount,
			Pnl:        res.Realized,
			TradeUSD:   t.USD(),
			Timestamp:  t.Timestamp,
		},
		Position:        pos,
		PositionChanged: res.Changed,
	})
	if err != nil {
		return nil, false, errors.Wrap(err, "apply trade")
	}
	return hist, applied, nil
}

// window the (wallet, market) window containing t; a window missing from memory is seeded from history
func (e *Engine) window(ctx context.Context, worker int, key string, t *common.TradeIngested, span time.Duration) (*TradeWindow, error) {
	now := e.now()
	windows := e.windows[worker]

	w, ok := windows[key]
	if !ok {
		rows, err := e.positions.RecentHistory(ctx, t.Wallet, t.MarketID, t.Timestamp.Add(-span))
		if err != nil {
			return nil, errors.Wrap(err, "load recent history")
		}
		w = NewTradeWindow(key)
		w.Seed(rows, span, now)
		windows[key] = w
	}
	w.Add(t.TradeID, behavior.Trade{
		Side:      t.Side,
		Amount:    t.Amount,
		Price:     t.Price,
		Timestamp: t.Timestamp,
	}, span, now)
	return w, nil
}

// score cached batch score while fresh, otherwise the real-time volume tier score
func (e *Engine) score(ctx context.Context, wallet string, at time.Time, th config.Thresholds) (int, error) {
	stats, err := e.stats.GetStats(ctx, wallet)
	if err != nil {
		logger.Warn("⚠️ stats read failed, using real-time score", logger.FieldWallet(wallet), logger.FieldErr(err))
	}
	if stats != nil && e.now().Sub(stats.UpdatedAt) <= th.StatsFreshFor.D() {
		return stats.WhaleScore, nil
	}

	volume, err := e.positions.VolumeSince(ctx, wallet, at.Add(-volumeLookback))
	if err != nil {
		return 0, errors.Wrap(err, "30d volume")
	}
	in := score.RealtimeInput{Volume30d: volume}
	profile, err := e.positions.GetProfile(ctx, wallet)
	if err != nil {
		return 0, errors.Wrap(err, "load profile")
	}
	if profile != nil {
		in.Wins = profile.Wins
		in.Losses = profile.Losses
		in.RealizedPnl = profile.RealizedPnl
		in.TotalVolume = profile.TotalVolume
	}
	return score.Realtime(in), nil
}

// evict drops windows idle for evictAfter; runs on the owning worker
func (e *Engine) evict(worker int) {
	cutoff := e.now().Add(-evictAfter)
	windows := e.windows[worker]
	for key, w := range windows {
		if w.Idle(cutoff) {
			delete(windows, key)
		}
	}
}
