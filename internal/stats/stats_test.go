package stats

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/testutil"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// roundTrips writes n buy 1000@0.4 / sell 1000@0.6 pairs for wallet, one pair per hour before at
func roundTrips(t *testing.T, db *gorm.DB, wallet, market string, n int, at time.Time) {
	t.Helper()
	for i := 0; i < n; i++ {
		ts := at.Add(-time.Duration(n-i) * time.Hour)
		rows := []*model.WhaleTradeHistory{
			{
				TradeID: fmt.Sprintf("%s-%s-b%d", wallet, market, i), Wallet: wallet, MarketID: market,
				Side: common.SideBuy, ActionType: common.ActionEntry,
				Price: dec("0.4"), Size: dec("1000"), Pnl: decimal.Zero, TradeUSD: dec("400"),
				Timestamp: ts,
			},
			{
				TradeID: fmt.Sprintf("%s-%s-s%d", wallet, market, i), Wallet: wallet, MarketID: market,
				Side: common.SideSell, ActionType: common.ActionExit,
				Price: dec("0.6"), Size: dec("1000"), Pnl: dec("200"), TradeUSD: dec("600"),
				Timestamp: ts.Add(30 * time.Minute),
			},
		}
		require.NoError(t, db.Create(rows).Error)
	}
}

func newJob(db *gorm.DB) *Job {
	j := NewJob(repo.NewStatsRepo(db), repo.NewPositionRepo(db), 30*24*time.Hour)
	j.now = func() time.Time { return now }
	return j
}

func TestJobScoresActiveWallets(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	roundTrips(t, db, "0xactive", "m1", 6, now.Add(-24*time.Hour))
	roundTrips(t, db, "0xidle", "m1", 3, now.Add(-60*24*time.Hour))

	written, err := newJob(db).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, written)

	statsRepo := repo.NewStatsRepo(db)
	active, err := statsRepo.GetStats(ctx, "0xactive")
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.EqualValues(t, 12, active.Trades)
	assert.InDelta(t, 1.0, active.WinRate, 1e-9)
	assert.InDelta(t, 0.2, active.ROI, 1e-9)
	assert.GreaterOrEqual(t, active.WhaleScore, 0)
	assert.LessOrEqual(t, active.WhaleScore, 100)
	assert.False(t, active.WashSuspected)
	assert.True(t, active.UpdatedAt.Equal(now))

	idle, err := statsRepo.GetStats(ctx, "0xidle")
	require.NoError(t, err)
	assert.Nil(t, idle)
}

func TestYoungWalletIsDampened(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)
	roundTrips(t, db, "0xyoung", "m1", 3, now)
	roundTrips(t, db, "0xold", "m1", 3, now)
	require.NoError(t, db.Create(&model.WhaleProfile{
		Wallet:      "0xold",
		TotalVolume: dec("3000"),
		TotalTrades: 6,
		RealizedPnl: dec("600"),
		Wins:        3,
		FirstSeenAt: now.Add(-60 * 24 * time.Hour),
		LastSeenAt:  now,
	}).Error)

	j := newJob(db)
	young, err := j.Compute(ctx, "0xyoung", now)
	require.NoError(t, err)
	old, err := j.Compute(ctx, "0xold", now)
	require.NoError(t, err)

	assert.Greater(t, old.WhaleScore, 0)
	assert.Less(t, young.WhaleScore, old.WhaleScore)
	assert.InDelta(t, old.Performance, young.Performance, 1e-9)
}

func TestComputeWithoutHistory(t *testing.T) {
	db := testutil.NewDB(t)
	row, err := newJob(db).Compute(context.Background(), "0xnobody", now)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestParseRule(t *testing.T) {
	cases := []struct {
		name    string
		raw     string
		want    Rule
		wantErr bool
	}{
		{"empty object", `{}`, Rule{MinTotalVolume: decimal.Zero}, false},
		{"all keys", `{"min_score":70,"min_total_volume":25000,"min_total_trades":10,"top_n_by_score":5}`,
			Rule{MinScore: 70, MinTotalVolume: dec("25000"), MinTotalTrades: 10, TopN: 5}, false},
		{"volume as string", `{"min_total_volume":"1500.5"}`, Rule{MinTotalVolume: dec("1500.5")}, false},
		{"not json", `min_score=70`, Rule{}, true},
		{"not an object", `[1,2]`, Rule{}, true},
		{"negative", `{"top_n_by_score":-1}`, Rule{}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseRule(tc.raw)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want.MinScore, got.MinScore)
			assert.Equal(t, tc.want.MinTotalTrades, got.MinTotalTrades)
			assert.Equal(t, tc.want.TopN, got.TopN)
			assert.True(t, tc.want.MinTotalVolume.Equal(got.MinTotalVolume), got.MinTotalVolume.String())
		})
	}
}

func TestSmartJobRebuildsMembership(t *testing.T) {
	ctx := context.Background()
	db := testutil.NewDB(t)

	for _, w := range []struct {
		wallet string
		score  int
		volume string
		trades int64
	}{
		{"0xw1", 90, "50000", 4},
		{"0xw2", 80, "20000", 40},
		{"0xw3", 60, "90000", 90},
	} {
		require.NoError(t, db.Create(&model.WhaleStats{Wallet: w.wallet, WhaleScore: w.score, UpdatedAt: now}).Error)
		require.NoError(t, db.Create(&model.WhaleProfile{
			Wallet: w.wallet, TotalVolume: dec(w.volume), TotalTrades: w.trades,
			RealizedPnl: decimal.Zero, FirstSeenAt: now, LastSeenAt: now,
		}).Error)
	}

	collections := []*model.SmartCollection{
		{ID: 1, Name: "top", RuleJSON: `{"min_score":70,"min_total_volume":"1000","top_n_by_score":1}`, Enabled: true},
		{ID: 2, Name: "active", RuleJSON: `{"min_score":70,"min_total_trades":10}`, Enabled: true},
		{ID: 3, Name: "broken", RuleJSON: `{"min_score":`, Enabled: true},
	}
	require.NoError(t, db.Create(collections).Error)
	require.NoError(t, db.Create(&model.SmartCollectionWhale{SmartCollectionID: 1, Wallet: "0xstale", SnapshotDate: now}).Error)
	require.NoError(t, db.Create(&model.SmartCollectionWhale{SmartCollectionID: 3, Wallet: "0xkept", SnapshotDate: now}).Error)

	job := NewSmartJob(repo.NewStatsRepo(db))
	job.now = func() time.Time { return now }
	rebuilt, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, rebuilt)

	members := func(id uint64) []string {
		var wallets []string
		require.NoError(t, db.Model(&model.SmartCollectionWhale{}).
			Where("smart_collection_id = ?", id).Order("wallet").Pluck("wallet", &wallets).Error)
		return wallets
	}
	assert.Equal(t, []string{"0xw1"}, members(1))
	assert.Equal(t, []string{"0xw2"}, members(2))
	assert.Equal(t, []string{"0xkept"}, members(3))
}
