package stats

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/score"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

const (
	window7d  = 7 * 24 * time.Hour
	window30d = 30 * 24 * time.Hour
)

// ProfileReader first-seen time for the wallet age dampener
type ProfileReader interface {
	GetProfile(ctx context.Context, wallet string) (*model.WhaleProfile, error)
}

// Job recomputes the composite score of every recently active wallet
type Job struct {
	stats        repo.StatsRepo
	profiles     ProfileReader
	activeWindow time.Duration
	now          func() time.Time
}

func NewJob(stats repo.StatsRepo, profiles ProfileReader, activeWindow time.Duration) *Job {
	if activeWindow <= 0 {
		activeWindow = window30d
	}
	return &Job{
		stats:        stats,
		profiles:     profiles,
		activeWindow: activeWindow,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (j *Job) Name() string {
	return "whale_stats"
}

// Run scores every wallet active within the window. A failing wallet is logged and skipped;
// the returned count is the number of rows written.
func (j *Job) Run(ctx context.Context) (int, error) {
	now := j.now()
	wallets, err := j.stats.ActiveWallets(ctx, now.Add(-j.activeWindow))
	if err != nil {
		return 0, errors.Wrap(err, "active wallets")
	}

	written := 0
	for _, wallet := range wallets {
		if ctx.Err() != nil {
			return written, ctx.Err()
		}
		row, err := j.Compute(ctx, wallet, now)
		if err != nil {
			logger.Warn("⚠️ wallet stats failed", logger.FieldWallet(wallet), logger.FieldErr(err))
			continue
		}
		if row == nil {
			continue
		}
		if err := j.stats.SaveStats(ctx, row); err != nil {
			logger.Warn("⚠️ save wallet stats failed", logger.FieldWallet(wallet), logger.FieldErr(err))
			continue
		}
		written++
	}

	logger.Info("📊 whale stats refreshed",
		logger.Int("wallets", len(wallets)),
		logger.Int("written", written))
	return written, nil
}

// Compute the stats row of one wallet; nil when the wallet has no history
func (j *Job) Compute(ctx context.Context, wallet string, now time.Time) (*model.WhaleStats, error) {
	all, err := j.stats.WalletHistory(ctx, wallet, time.Time{})
	if err != nil {
		return nil, errors.Wrap(err, "wallet history")
	}
	if len(all) == 0 {
		return nil, nil
	}

	since30 := now.Add(-window30d)
	markets, err := j.marketContexts(ctx, all, since30)
	if err != nil {
		return nil, err
	}

	rows := toRows(all)
	m := score.Combine(
		score.ComputeMetrics(rowsSince(all, rows, now.Add(-window7d)), markets),
		score.ComputeMetrics(rowsSince(all, rows, since30), markets),
		score.ComputeMetrics(rows, markets),
	)

	firstSeen := all[0].Timestamp
	profile, err := j.profiles.GetProfile(ctx, wallet)
	if err != nil {
		return nil, errors.Wrap(err, "load profile")
	}
	if profile != nil && !profile.FirstSeenAt.IsZero() && profile.FirstSeenAt.Before(firstSeen) {
		firstSeen = profile.FirstSeenAt
	}
	b := score.Composite(m, now.Sub(firstSeen).Hours()/24)

	return &model.WhaleStats{
		Wallet:               wallet,
		Performance:          b.Performance,
		Consistency:          b.Consistency,
		Timing:               b.Timing,
		Risk:                 b.Risk,
		Impact:               b.Impact,
		WhaleScore:           b.WhaleScore,
		Trades:               int64(m.Trades),
		WinRate:              m.WinRate,
		ROI:                  m.ROI,
		MaxDrawdown:          m.MaxDrawdown,
		StddevPnl:            m.StddevPnl,
		AvgEntryPercentile:   m.EntryPercentile,
		AvgExitPercentile:    m.ExitPercentile,
		RiskRewardRatio:      m.RiskReward,
		MarketLiquidityRatio: m.LiquidityRatio,
		WashSuspected:        b.Wash,
		UpdatedAt:            now,
	}, nil
}

// marketContexts price distribution and volume of every market the wallet traded in the window
func (j *Job) marketContexts(ctx context.Context, history []*model.WhaleTradeHistory, since time.Time) (map[string]*score.MarketContext, error) {
	ids := make([]string, 0)
	seen := make(map[string]struct{})
	for _, h := range history {
		if _, ok := seen[h.MarketID]; ok {
			continue
		}
		seen[h.MarketID] = struct{}{}
		ids = append(ids, h.MarketID)
	}

	volumes, err := j.stats.MarketVolumes(ctx, ids, since)
	if err != nil {
		return nil, errors.Wrap(err, "market volumes")
	}
	out := make(map[string]*score.MarketContext, len(ids))
	for _, id := range ids {
		prices, err := j.stats.MarketPrices(ctx, id, since)
		if err != nil {
			return nil, errors.Wrapf(err, "market prices %s", id)
		}
		out[id] = score.NewMarketContext(prices, volumes[id].InexactFloat64())
	}
	return out, nil
}

func toRows(history []*model.WhaleTradeHistory) []score.TradeRow {
	rows := make([]score.TradeRow, len(history))
	for i, h := range history {
		rows[i] = score.TradeRow{
			MarketID: h.MarketID,
			Buy:      h.Side == common.SideBuy,
			Price:    h.Price.InexactFloat64(),
			USD:      h.TradeUSD.InexactFloat64(),
			Pnl:      h.Pnl.InexactFloat64(),
		}
	}
	return rows
}

// rowsSince suffix of rows whose history timestamp is at or after since; history is oldest first
func rowsSince(history []*model.WhaleTradeHistory, rows []score.TradeRow, since time.Time) []score.TradeRow {
	for i, h := range history {
		if !h.Timestamp.Before(since) {
			return rows[i:]
		}
	}
	return nil
}

// runJob records the outcome of one scheduled run
func runJob(ctx context.Context, name string, run func(context.Context) (int, error)) {
	start := time.Now()
	n, err := run(ctx)
	if err != nil {
		metrics.StatsRuns.WithLabelValues(name, "error").Inc()
		logger.Error("❌ batch job failed", logger.String("job", name), logger.FieldErr(err))
		return
	}
	metrics.StatsRuns.WithLabelValues(name, "ok").Inc()
	logger.Debug("✅ batch job done",
		logger.String("job", name),
		logger.Int("rows", n),
		logger.Duration("elapsed", time.Since(start)))
}
