package alert

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/queue"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/state"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// cooldown rule labels
const (
	RuleWalletCache   = "wallet_cache"
	RuleMarketCache   = "market_cache"
	RuleWalletHistory = "wallet_history"
	RuleMarketHistory = "market_history"
	RuleClear         = "clear"
)

var two = decimal.NewFromInt(2)

// Decision outcome of the cooldown check
type Decision struct {
	Allow bool
	Rule  string
}

// Escalates a repeat alert passes when the grace period is over and the size did not shrink,
// or at any time when the size at least doubled. A baseline without USD or time always blocks.
func Escalates(lastUSD decimal.Decimal, lastAt time.Time, usd decimal.Decimal, now time.Time, grace time.Duration) bool {
	if !lastUSD.IsPositive() || lastAt.IsZero() {
		return false
	}
	if now.Sub(lastAt) >= grace && usd.GreaterThanOrEqual(lastUSD) {
		return true
	}
	return usd.GreaterThanOrEqual(lastUSD.Mul(two))
}

// Engine turns whale signals into alerts behind the cooldown rules
type Engine struct {
	signals  repo.SignalRepo
	store    *state.Store
	resolver *Resolver
	live     *config.Live
	pub      queue.Publisher
	output   string
	now      func() time.Time
}

func NewEngine(signals repo.SignalRepo, store *state.Store, resolver *Resolver, live *config.Live, pub queue.Publisher, output string) *Engine {
	return &Engine{
		signals:  signals,
		store:    store,
		resolver: resolver,
		live:     live,
		pub:      pub,
		output:   output,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Handle queue.Handler of the whale signal queue
func (e *Engine) Handle(ctx context.Context, payload []byte) error {
	sig, err := common.DecodeEvent[common.WhaleSignal](payload)
	if err != nil {
		return err
	}
	_, err = e.Process(ctx, sig)
	return err
}

// Process returns the published alert, nil when the signal was blocked or already alerted
func (e *Engine) Process(ctx context.Context, sig *common.WhaleSignal) (*common.AlertCreated, error) {
	th := e.live.Thresholds()
	now := e.now()
	wallet := strings.ToLower(sig.Wallet)
	ctx = logger.ContextWith(ctx, logger.FieldWhaleTradeID(sig.WhaleTradeID))
	log := logger.LogFromContext(ctx)

	existing, err := e.signals.GetAlertByWhaleTrade(ctx, sig.WhaleTradeID)
	if err != nil {
		return nil, errors.Wrap(err, "load alert")
	}
	if existing != nil {
		if existing.Published {
			metrics.AlertDecisions.WithLabelValues("duplicate", RuleClear).Inc()
			return nil, nil
		}
		// an earlier attempt stored the alert but never got it on the queue
		log.Warn("🔁 republishing alert")
		return e.publish(ctx, existing, sig, "republish")
	}

	d, err := e.Decide(ctx, wallet, sig.MarketID, sig.TradeUSD, now, th)
	if err != nil {
		return nil, errors.Wrap(err, "cooldown")
	}
	if !d.Allow {
		metrics.AlertDecisions.WithLabelValues("blocked", d.Rule).Inc()
		log.Debug("🧊 alert suppressed by cooldown",
			logger.FieldWallet(wallet),
			logger.FieldMarket(sig.MarketID),
			logger.String("rule", d.Rule))
		return nil, nil
	}

	alert := &model.Alert{
		ID:           utils.StableID("al", sig.WhaleTradeID),
		WhaleTradeID: sig.WhaleTradeID,
		MarketID:     sig.MarketID,
		Wallet:       wallet,
		WhaleScore:   sig.WhaleScore,
		AlertType:    common.AlertTypeForSide(sig.Side),
		TradeUSD:     sig.TradeUSD,
		CreatedAt:    now,
	}
	inserted, err := e.signals.InsertAlert(ctx, alert)
	if err != nil {
		return nil, errors.Wrap(err, "insert alert")
	}
	if !inserted {
		metrics.AlertDecisions.WithLabelValues("duplicate", d.Rule).Inc()
		return nil, nil
	}
	metrics.AlertDecisions.WithLabelValues("allowed", d.Rule).Inc()

	e.refreshCooldowns(ctx, wallet, sig.MarketID, sig.TradeUSD, now, th)
	return e.publish(ctx, alert, sig, d.Rule)
}

// publish sends the AlertCreated of a stored alert and marks it published. Fanout dedups on
// (recipient, whale_trade_id), so publishing twice before the mark lands is harmless.
func (e *Engine) publish(ctx context.Context, alert *model.Alert, sig *common.WhaleSignal, rule string) (*common.AlertCreated, error) {
	event := &common.AlertCreated{
		AlertID:      alert.ID,
		WhaleTradeID: alert.WhaleTradeID,
		MarketID:     alert.MarketID,
		MarketTitle:  e.resolver.Title(ctx, alert.MarketID),
		Wallet:       alert.Wallet,
		WalletName:   e.resolver.WalletName(ctx, alert.Wallet),
		WhaleScore:   alert.WhaleScore,
		AlertType:    alert.AlertType,
		ActionType:   sig.ActionType,
		Behavior:     sig.Behavior,
		Side:         sig.Side,
		Size:         alert.TradeUSD,
		Price:        sig.Price,
		SignalLevel:  sig.SignalLevel,
		CreatedAt:    alert.CreatedAt,
	}
	err := utils.Retry(ctx, utils.DefaultRetry, func(ctx context.Context) error {
		return queue.PublishEvent(ctx, e.pub, e.output, alert.MarketID, event)
	})
	if err != nil {
		return nil, errors.Wrap(err, "publish alert")
	}
	if err := e.signals.MarkAlertPublished(ctx, alert.ID); err != nil {
		return nil, errors.Wrap(err, "mark alert published")
	}

	logger.LogFromContext(ctx).Info("🚨 alert created",
		logger.FieldWallet(alert.Wallet),
		logger.FieldMarket(alert.MarketID),
		logger.String("usd", alert.TradeUSD.StringFixed(2)),
		logger.String("level", string(sig.SignalLevel)),
		logger.String("rule", rule))
	return event, nil
}

// Decide evaluates the cooldown rules in order: wallet cache, market cache, durable history.
// Cache read failures fall through to the history, which is the record of truth.
func (e *Engine) Decide(ctx context.Context, wallet, marketID string, usd decimal.Decimal, now time.Time, th config.Thresholds) (Decision, error) {
	grace := th.IncreasedPositionGrace.D()
	cross := th.CrossWalletCooldown.D()

	wc, err := e.store.GetWalletCooldown(ctx, wallet, marketID)
	if err != nil {
		logger.Warn("⚠️ wallet cooldown read failed", logger.FieldWallet(wallet), logger.FieldMarket(marketID), logger.FieldErr(err))
	}
	if wc != nil {
		return Decision{Allow: Escalates(wc.LastUSD, wc.LastAt, usd, now, grace), Rule: RuleWalletCache}, nil
	}

	if cross > 0 {
		mc, err := e.store.GetMarketCooldown(ctx, marketID)
		if err != nil {
			logger.Warn("⚠️ market cooldown read failed", logger.FieldMarket(marketID), logger.FieldErr(err))
		}
		if mc != nil && !strings.EqualFold(mc.LastWallet, wallet) {
			return Decision{Allow: false, Rule: RuleMarketCache}, nil
		}
	}

	last, err := e.signals.LatestAlertForWallet(ctx, wallet, marketID, now.Add(-th.SameWalletCooldown.D()))
	if err != nil {
		return Decision{}, err
	}
	if last != nil {
		return Decision{Allow: Escalates(last.TradeUSD, last.CreatedAt, usd, now, grace), Rule: RuleWalletHistory}, nil
	}

	if cross <= 0 {
		return Decision{Allow: true, Rule: RuleClear}, nil
	}
	other, err := e.signals.LatestAlertForMarket(ctx, marketID, now.Add(-cross))
	if err != nil {
		return Decision{}, err
	}
	if other == nil {
		return Decision{Allow: true, Rule: RuleClear}, nil
	}
	return Decision{Allow: strings.EqualFold(other.Wallet, wallet), Rule: RuleMarketHistory}, nil
}

// refreshCooldowns best effort; a missing entry only costs a history query later
func (e *Engine) refreshCooldowns(ctx context.Context, wallet, marketID string, usd decimal.Decimal, now time.Time, th config.Thresholds) {
	walletTTL := th.SameWalletCooldown.D()
	if grace := th.IncreasedPositionGrace.D(); grace > walletTTL {
		walletTTL = grace
	}
	if walletTTL > 0 {
		err := e.store.SetWalletCooldown(ctx, wallet, marketID, state.WalletCooldown{LastUSD: usd, LastAt: now}, walletTTL)
		if err != nil {
			logger.Warn("⚠️ wallet cooldown write failed", logger.FieldWallet(wallet), logger.FieldMarket(marketID), logger.FieldErr(err))
		}
	}
	if cross := th.CrossWalletCooldown.D(); cross > 0 {
		err := e.store.SetMarketCooldown(ctx, marketID, state.MarketCooldown{LastWallet: wallet, LastAt: now}, cross)
		if err != nil {
			logger.Warn("⚠️ market cooldown write failed", logger.FieldMarket(marketID), logger.FieldErr(err))
		}
	}
}
