package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/config"
	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/notifier"
	"github.com/ninja0404/whale-signal/internal/queue"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/state"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

const (
	requeueDelay = time.Minute
	requeueTTL   = 10 * time.Minute
)

// delivery outcomes
const (
	OutcomeSent      = "sent"
	OutcomeScheduled = "scheduled"
	OutcomeFiltered  = "filtered"
	OutcomeCapped    = "capped"
	OutcomeLimited   = "limited"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
)

// Options static settings of the fanout stage
type Options struct {
	// Input queue the alert events are consumed from, rate limited events go back onto it
	Input string
	// Operator broadcast recipient, empty disables it
	Operator  string
	TagSecret string
	Parallel  int
	// SmartCollections resolves smart collection subscribers; off when the tables are missing
	SmartCollections bool
}

// Engine fans an alert out to its recipients under their plan policy
type Engine struct {
	subs      repo.SubscriberRepo
	signals   repo.SignalRepo
	store     *state.Store
	messenger notifier.Messenger
	live      *config.Live
	pub       queue.Publisher
	opts      Options

	scheduler    *Scheduler
	requeueDelay time.Duration
	now          func() time.Time
}

func NewEngine(subs repo.SubscriberRepo, signals repo.SignalRepo, store *state.Store, messenger notifier.Messenger, live *config.Live, pub queue.Publisher, opts Options) *Engine {
	if opts.Parallel <= 0 {
		opts.Parallel = 8
	}
	return &Engine{
		subs:         subs,
		signals:      signals,
		store:        store,
		messenger:    messenger,
		live:         live,
		pub:          pub,
		opts:         opts,
		scheduler:    NewScheduler(),
		requeueDelay: requeueDelay,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Stop cancels delayed sends that have not fired yet
func (e *Engine) Stop() {
	e.scheduler.Stop()
}

// Handle queue.Handler of the alert queue
func (e *Engine) Handle(ctx context.Context, payload []byte) error {
	a, err := common.DecodeEvent[common.AlertCreated](payload)
	if err != nil {
		return err
	}
	if err := e.waitDue(ctx, a); err != nil {
		return err
	}
	return e.Process(ctx, a)
}

// waitDue holds a requeued alert until its RetryAfter, never longer than the requeue delay.
// A cancelled wait returns an error so the queue keeps the event.
func (e *Engine) waitDue(ctx context.Context, a *common.AlertCreated) error {
	if a.RetryAfter == nil {
		return nil
	}
	wait := time.Until(*a.RetryAfter)
	if wait <= 0 {
		return nil
	}
	if wait > e.requeueDelay {
		wait = e.requeueDelay
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Process delivers a to every recipient. Per recipient I/O failures are collected and returned
// so the event is redelivered; recipients already served are skipped by the delivery gate.
func (e *Engine) Process(ctx context.Context, a *common.AlertCreated) error {
	ctx = logger.ContextWith(ctx, logger.FieldWhaleTradeID(a.WhaleTradeID))
	now := e.now()
	recipients, err := e.resolve(ctx, a, now)
	if err != nil {
		logger.Error("❌ subscriber lookup failed, operator only",
			logger.FieldWhaleTradeID(a.WhaleTradeID),
			logger.FieldErr(err))
		recipients = e.withOperator(nil)
	}
	if len(recipients) == 0 {
		logger.Debug("📭 alert has no recipients", logger.FieldWhaleTradeID(a.WhaleTradeID))
		return nil
	}

	var (
		mu      sync.Mutex
		result  *multierror.Error
		limited []string
	)
	g := new(errgroup.Group)
	g.SetLimit(e.opts.Parallel)
	for _, r := range recipients {
		r := r
		g.Go(func() error {
			wasLimited, err := e.deliver(ctx, a, r, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result = multierror.Append(result, errors.Wrapf(err, "recipient %s", r.ID))
			}
			if wasLimited {
				limited = append(limited, r.ID)
			}
			return nil
		})
	}
	_ = g.Wait()

	if len(limited) > 0 {
		if err := e.requeue(ctx, a, limited, now); err != nil {
			result = multierror.Append(result, err)
		}
	}

	logger.LogFromContext(ctx).Info("📣 alert fanned out",
		logger.FieldMarket(a.MarketID),
		logger.Int("recipients", len(recipients)))
	return result.ErrorOrNil()
}

// policy of r; the operator is never delayed or capped
func (e *Engine) policy(r Recipient, plans config.Plans) config.PlanPolicy {
	if r.Operator {
		return config.PlanPolicy{MaxAlertsPerDay: -1}
	}
	return plans.Policy(r.Plan)
}

func planLabel(r Recipient) string {
	if r.Operator {
		return "operator"
	}
	return string(r.Plan)
}

// deliver runs the gates in order: confidence, daily cap, rate limit, delivery row, then the
// immediate or delayed send. The bool reports a rate limited recipient.
func (e *Engine) deliver(ctx context.Context, a *common.AlertCreated, r Recipient, now time.Time) (bool, error) {
	plans := e.live.Plans()
	pol := e.policy(r, plans)
	label := planLabel(r)

	if pol.HighConfidenceOnly && a.SignalLevel != common.SignalHigh {
		metrics.Deliveries.WithLabelValues(OutcomeFiltered, label).Inc()
		return false, nil
	}

	if pol.MaxAlertsPerDay >= 0 {
		count, err := e.store.DailyCount(ctx, r.ID, now)
		if err != nil {
			return false, errors.Wrap(err, "daily count")
		}
		if count >= int64(pol.MaxAlertsPerDay) {
			metrics.Deliveries.WithLabelValues(OutcomeCapped, label).Inc()
			logger.Info("🚫 daily alert cap reached",
				logger.FieldRecipient(r.ID),
				logger.String("plan", label),
				logger.Int64("count", count))
			return false, nil
		}
	}

	allowed, err := e.store.Allow(ctx, r.ID, plans.RatePerMinute)
	if err != nil {
		return false, errors.Wrap(err, "rate limiter")
	}
	if !allowed {
		metrics.Deliveries.WithLabelValues(OutcomeLimited, label).Inc()
		return true, nil
	}

	inserted, err := e.signals.InsertDelivery(ctx, r.ID, a.WhaleTradeID, now)
	if err != nil {
		return false, errors.Wrap(err, "insert delivery")
	}
	if !inserted {
		metrics.Deliveries.WithLabelValues(OutcomeDuplicate, label).Inc()
		return false, nil
	}

	delay := pol.Delay.D()
	if r.Plan == model.PlanElite && !r.Operator && a.SignalLevel == common.SignalLow {
		focus, err := e.store.GetFocus(ctx, r.ID)
		if err != nil {
			logger.Warn("⚠️ focus read failed", logger.FieldRecipient(r.ID), logger.FieldErr(err))
		}
		if focus != state.FocusValue(a.Wallet, a.MarketID) && plans.EliteLowConfidenceDelay.D() > delay {
			delay = plans.EliteLowConfidenceDelay.D()
		}
	}

	if delay > 0 {
		scheduled := e.scheduler.Schedule(delay, func(ctx context.Context) {
			e.send(ctx, a, r)
		})
		if scheduled {
			metrics.Deliveries.WithLabelValues(OutcomeScheduled, label).Inc()
			logger.Debug("⏳ send scheduled",
				logger.FieldRecipient(r.ID),
				logger.FieldWhaleTradeID(a.WhaleTradeID),
				logger.Duration("delay", delay))
		}
		return false, nil
	}
	e.send(ctx, a, r)
	return false, nil
}

// send dispatches the message; a failure is logged and never retried, the delivery row stays
func (e *Engine) send(ctx context.Context, a *common.AlertCreated, r Recipient) {
	label := planLabel(r)
	text := Format(a, utils.ShortTag(e.opts.TagSecret, r.ID))
	if err := e.messenger.Send(ctx, r.ID, text); err != nil {
		metrics.Deliveries.WithLabelValues(OutcomeFailed, label).Inc()
		logger.Error("❌ alert send failed",
			logger.FieldRecipient(r.ID),
			logger.FieldWhaleTradeID(a.WhaleTradeID),
			logger.FieldErr(err))
		return
	}
	metrics.Deliveries.WithLabelValues(OutcomeSent, label).Inc()

	if err := e.store.IncrDaily(ctx, r.ID, e.now()); err != nil {
		logger.Warn("⚠️ daily counter update failed", logger.FieldRecipient(r.ID), logger.FieldErr(err))
	}
	if r.Plan == model.PlanElite && !r.Operator {
		plans := e.live.Plans()
		if err := e.store.SetFocus(ctx, r.ID, state.FocusValue(a.Wallet, a.MarketID), plans.FocusTTL.D()); err != nil {
			logger.Warn("⚠️ focus update failed", logger.FieldRecipient(r.ID), logger.FieldErr(err))
		}
	}
}

// requeue puts the alert straight back on the durable input queue with a RetryAfter one limiter
// window ahead. Only the first pass requeues; recipients still limited on the requeued pass are
// dropped. A failed publish releases the marker and fails the event so redelivery tries again.
func (e *Engine) requeue(ctx context.Context, a *common.AlertCreated, limited []string, now time.Time) error {
	if a.RetryAfter != nil {
		logger.LogFromContext(ctx).Info("🚫 rate limited again, dropping",
			logger.Strings("recipients", limited))
		return nil
	}

	first, err := e.store.MarkRequeued(ctx, a.AlertID, requeueTTL)
	if err != nil {
		return errors.Wrap(err, "requeue marker")
	}
	if !first {
		return nil
	}

	retry := *a
	due := now.Add(e.requeueDelay)
	retry.RetryAfter = &due
	err = utils.Retry(ctx, utils.DefaultRetry, func(ctx context.Context) error {
		return queue.PublishEvent(ctx, e.pub, e.opts.Input, a.MarketID, &retry)
	})
	if err != nil {
		if cerr := e.store.ClearRequeued(context.Background(), a.AlertID); cerr != nil {
			logger.LogFromContext(ctx).Warn("⚠️ requeue marker release failed", logger.FieldErr(cerr))
		}
		return errors.Wrap(err, "requeue publish")
	}

	logger.LogFromContext(ctx).Info("🔁 rate limited alert requeued",
		logger.Strings("recipients", limited),
		logger.Time("retry_after", due))
	return nil
}
