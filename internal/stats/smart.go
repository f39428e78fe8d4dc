package stats

import (
	"context"
	"time"

	simplejson "github.com/bitly/go-simplejson"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

// Rule membership filter of a smart collection
type Rule struct {
	MinScore       int
	MinTotalVolume decimal.Decimal
	MinTotalTrades int64
	// TopN keeps the N best scored wallets, zero keeps all
	TopN int
}

// ParseRule reads {min_score, min_total_volume, min_total_trades, top_n_by_score}; absent keys
// leave the filter open
func ParseRule(raw string) (Rule, error) {
	js, err := simplejson.NewJson([]byte(raw))
	if err != nil {
		return Rule{}, errors.Wrap(err, "rule json")
	}
	if _, err := js.Map(); err != nil {
		return Rule{}, errors.New("rule must be a json object")
	}

	rule := Rule{
		MinScore:       js.Get("min_score").MustInt(0),
		MinTotalTrades: js.Get("min_total_trades").MustInt64(0),
		TopN:           js.Get("top_n_by_score").MustInt(0),
		MinTotalVolume: decimal.Zero,
	}
	if v, ok := js.CheckGet("min_total_volume"); ok {
		if f, err := v.Float64(); err == nil {
			rule.MinTotalVolume = decimal.NewFromFloat(f)
		} else if s, err := v.String(); err == nil {
			d, err := decimal.NewFromString(s)
			if err != nil {
				return Rule{}, errors.Wrap(err, "min_total_volume")
			}
			rule.MinTotalVolume = d
		}
	}
	if rule.MinScore < 0 || rule.MinTotalTrades < 0 || rule.TopN < 0 || rule.MinTotalVolume.IsNegative() {
		return Rule{}, errors.New("rule bounds must not be negative")
	}
	return rule, nil
}

// Select applies the rule to wallets already ranked by descending score
func (r Rule) Select(ranked []*repo.RankedWallet) []string {
	out := make([]string, 0)
	for _, w := range ranked {
		if w.WhaleScore < r.MinScore {
			continue
		}
		if w.TotalVolume.LessThan(r.MinTotalVolume) || w.TotalTrades < r.MinTotalTrades {
			continue
		}
		out = append(out, w.Wallet)
		if r.TopN > 0 && len(out) == r.TopN {
			break
		}
	}
	return out
}

// SmartJob rebuilds the membership snapshot of every enabled smart collection
type SmartJob struct {
	stats repo.StatsRepo
	now   func() time.Time
}

func NewSmartJob(stats repo.StatsRepo) *SmartJob {
	return &SmartJob{
		stats: stats,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (j *SmartJob) Name() string {
	return "smart_collections"
}

// Run returns the number of collections rebuilt; a collection with a broken rule keeps its
// previous snapshot
func (j *SmartJob) Run(ctx context.Context) (int, error) {
	collections, err := j.stats.ListSmartCollections(ctx)
	if err != nil {
		return 0, errors.Wrap(err, "list smart collections")
	}
	if len(collections) == 0 {
		return 0, nil
	}

	snapshot := j.now().Truncate(24 * time.Hour)
	ranked := make(map[int][]*repo.RankedWallet)
	rebuilt := 0
	for _, c := range collections {
		rule, err := ParseRule(c.RuleJSON)
		if err != nil {
			logger.Warn("⚠️ skipping smart collection with invalid rule",
				logger.Uint64("collection_id", c.ID),
				logger.String("name", c.Name),
				logger.FieldErr(err))
			continue
		}

		candidates, ok := ranked[rule.MinScore]
		if !ok {
			candidates, err = j.stats.RankedWallets(ctx, rule.MinScore)
			if err != nil {
				return rebuilt, errors.Wrap(err, "ranked wallets")
			}
			ranked[rule.MinScore] = candidates
		}

		wallets := rule.Select(candidates)
		if err := j.stats.ReplaceSmartCollection(ctx, c.ID, wallets, snapshot); err != nil {
			return rebuilt, errors.Wrapf(err, "replace smart collection %d", c.ID)
		}
		rebuilt++
		logger.Info("🧠 smart collection rebuilt",
			logger.Uint64("collection_id", c.ID),
			logger.String("name", c.Name),
			logger.Int("wallets", len(wallets)))
	}
	return rebuilt, nil
}
