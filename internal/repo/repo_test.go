package repo

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, db.AutoMigrate(model.AllModels()...))
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func history(tid string, side common.Side, size, price, pnl string, ts time.Time) *model.WhaleTradeHistory {
	return &model.WhaleTradeHistory{
		TradeID:    tid,
		Wallet:     "0xabc",
		MarketID:   "m1",
		Side:       side,
		ActionType: common.ActionEntry,
		Price:      dec(price),
		Size:       dec(size),
		Pnl:        dec(pnl),
		TradeUSD:   dec(size).Mul(dec(price)),
		Timestamp:  ts,
	}
}

func TestApplyTradeIsIdempotent(t *testing.T) {
	ctx := context.Background()
	r := NewPositionRepo(newTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	pos, err := r.GetPosition(ctx, "0xabc", "m1")
	require.NoError(t, err)
	assert.True(t, pos.NetSize.IsZero())

	pos.NetSize = dec("10")
	pos.AvgPrice = dec("0.4")
	app := &TradeApplication{
		History:         history("t1", common.SideBuy, "10", "0.4", "0", now),
		Position:        pos,
		PositionChanged: true,
	}
	inserted, stored, err := r.ApplyTrade(ctx, app)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, "t1", stored.TradeID)

	// replay with a different position must not touch state
	replay := &TradeApplication{
		History:         history("t1", common.SideBuy, "10", "0.4", "0", now),
		Position:        &model.WalletPosition{Wallet: "0xabc", MarketID: "m1", NetSize: dec("99"), AvgPrice: dec("9")},
		PositionChanged: true,
	}
	replay.History.ActionType = common.ActionAdd
	inserted, stored, err = r.ApplyTrade(ctx, replay)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, common.ActionEntry, ActionOf(stored))

	pos, err = r.GetPosition(ctx, "0xabc", "m1")
	require.NoError(t, err)
	assert.True(t, pos.NetSize.Equal(dec("10")), pos.NetSize.String())
	assert.True(t, pos.AvgPrice.Equal(dec("0.4")), pos.AvgPrice.String())

	profile, err := r.GetProfile(ctx, "0xabc")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, int64(1), profile.TotalTrades)
	assert.True(t, profile.TotalVolume.Equal(dec("4")), profile.TotalVolume.String())
}

func TestApplyTradeAccumulatesProfile(t *testing.T) {
	ctx := context.Background()
	r := NewPositionRepo(newTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	trades := []*model.WhaleTradeHistory{
		history("a", common.SideBuy, "10", "0.5", "0", now.Add(-3*time.Minute)),
		history("b", common.SideSell, "5", "0.7", "1", now.Add(-2*time.Minute)),
		history("c", common.SideSell, "5", "0.3", "-1", now.Add(-time.Minute)),
	}
	var lastTrades int64
	for _, h := range trades {
		_, _, err := r.ApplyTrade(ctx, &TradeApplication{History: h})
		require.NoError(t, err)

		p, err := r.GetProfile(ctx, "0xabc")
		require.NoError(t, err)
		assert.Greater(t, p.TotalTrades, lastTrades)
		lastTrades = p.TotalTrades
	}

	p, err := r.GetProfile(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.TotalTrades)
	assert.Equal(t, int64(1), p.Wins)
	assert.Equal(t, int64(1), p.Losses)
	assert.True(t, p.RealizedPnl.IsZero(), p.RealizedPnl.String())
	assert.True(t, p.TotalVolume.Equal(dec("10")), p.TotalVolume.String())

	vol, err := r.VolumeSince(ctx, "0xabc", now.Add(-150*time.Second))
	require.NoError(t, err)
	assert.True(t, vol.Equal(dec("5")), vol.String())

	rows, err := r.RecentHistory(ctx, "0xabc", "m1", now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "a", rows[0].TradeID)
}

func TestSignalRepoDedup(t *testing.T) {
	ctx := context.Background()
	r := NewSignalRepo(newTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	wt := &model.WhaleTrade{
		ID: "wt1", TradeID: "t1", Wallet: "0xabc", MarketID: "m1", WhaleScore: 90,
		ActionType: common.ActionEntry, Side: common.SideBuy, Amount: dec("10"), Price: dec("0.5"),
		TradeUSD: dec("5"), SignalLevel: common.SignalHigh, CreatedAt: now,
	}
	ok, err := r.InsertWhaleTrade(ctx, wt)
	require.NoError(t, err)
	assert.True(t, ok)
	dup := *wt
	dup.ID = "wt2"
	ok, err = r.InsertWhaleTrade(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, ok)

	alert := func(id, wtID, wallet string, at time.Time) *model.Alert {
		return &model.Alert{
			ID: id, WhaleTradeID: wtID, MarketID: "m1", Wallet: wallet, WhaleScore: 90,
			AlertType: common.AlertWhaleEntry, TradeUSD: dec("5000"), CreatedAt: at,
		}
	}
	ok, err = r.InsertAlert(ctx, alert("al1", "wt1", "0xabc", now.Add(-10*time.Minute)))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.InsertAlert(ctx, alert("al1b", "wt1", "0xabc", now))
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.InsertAlert(ctx, alert("al2", "wt2", "0xdef", now.Add(-time.Minute)))
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := r.LatestAlertForWallet(ctx, "0xABC", "m1", now.Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "al1", got.ID)
	assert.True(t, got.TradeUSD.Equal(dec("5000")))

	got, err = r.LatestAlertForWallet(ctx, "0xabc", "m1", now.Add(-5*time.Minute))
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = r.LatestAlertForMarket(ctx, "m1", now.Add(-time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "0xdef", got.Wallet)

	ok, err = r.InsertDelivery(ctx, "r1", "wt1", now)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.InsertDelivery(ctx, "r1", "wt1", now)
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = r.InsertDelivery(ctx, "r2", "wt1", now)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSignalRepoPublishedFlags(t *testing.T) {
	ctx := context.Background()
	r := NewSignalRepo(newTestDB(t))
	now := time.Now().UTC().Truncate(time.Second)

	missing, err := r.GetWhaleTrade(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = r.InsertWhaleTrade(ctx, &model.WhaleTrade{
		ID: "wt1", TradeID: "t1", Wallet: "0xabc", MarketID: "m1", WhaleScore: 90,
		ActionType: common.ActionEntry, Side: common.SideBuy, Amount: dec("10"), Price: dec("0.5"),
		TradeUSD: dec("5"), SignalLevel: common.SignalHigh, CreatedAt: now,
	})
	require.NoError(t, err)

	wt, err := r.GetWhaleTrade(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, wt)
	assert.False(t, wt.Published)
	require.NoError(t, r.MarkWhaleTradePublished(ctx, "wt1"))
	wt, err = r.GetWhaleTrade(ctx, "t1")
	require.NoError(t, err)
	assert.True(t, wt.Published)

	_, err = r.InsertAlert(ctx, &model.Alert{
		ID: "al1", WhaleTradeID: "wt1", MarketID: "m1", Wallet: "0xabc", WhaleScore: 90,
		AlertType: common.AlertWhaleEntry, TradeUSD: dec("5"), CreatedAt: now,
	})
	require.NoError(t, err)
	a, err := r.GetAlertByWhaleTrade(ctx, "wt1")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.False(t, a.Published)
	require.NoError(t, r.MarkAlertPublished(ctx, "al1"))
	a, err = r.GetAlertByWhaleTrade(ctx, "wt1")
	require.NoError(t, err)
	assert.True(t, a.Published)
}

func TestSubscriberRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := NewSubscriberRepo(db)
	now := time.Now().UTC()

	require.NoError(t, db.Create([]*model.Subscription{
		{ID: "s1", RecipientID: "r1", Plan: model.PlanFree, Status: "active", CurrentPeriodEnd: now.Add(time.Hour)},
		{ID: "s2", RecipientID: "r1", Plan: model.PlanElite, Status: "trialing", CurrentPeriodEnd: now.Add(time.Hour)},
		{ID: "s3", RecipientID: "r2", Plan: model.PlanPro, Status: "active", CurrentPeriodEnd: now.Add(-time.Hour)},
		{ID: "s4", RecipientID: "r3", Plan: model.PlanPro, Status: "canceled", CurrentPeriodEnd: now.Add(time.Hour)},
	}).Error)
	plans, err := r.ActivePlans(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, map[string]model.Plan{"r1": model.PlanElite}, plans)

	require.NoError(t, db.Create([]*model.WhaleFollow{
		{RecipientID: "f1", Wallet: "0xABC", MinSize: dec("100"), MinScore: 50, AlertEntry: true, Enabled: true},
		{RecipientID: "f2", Wallet: "0xabc", MinSize: dec("100000"), MinScore: 0, AlertEntry: true, Enabled: true},
		{RecipientID: "f3", Wallet: "0xabc", MinScore: 0, AlertExit: true, Enabled: true},
		{RecipientID: "f4", Wallet: "0xabc", MinScore: 0, AlertEntry: true, Enabled: false},
	}).Error)
	ids, err := r.FollowRecipients(ctx, "0xabc", dec("500"), 80, common.ActionEntry)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"f1"}, ids)
	ids, err = r.FollowRecipients(ctx, "0xabc", dec("500"), 80, common.ActionExit)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"f3"}, ids)

	c := &model.Collection{RecipientID: "c1", Name: "mine", Enabled: true}
	require.NoError(t, db.Create(c).Error)
	require.NoError(t, db.Create(&model.CollectionWhale{CollectionID: c.ID, Wallet: "0xabc"}).Error)
	ids, err = r.CollectionRecipients(ctx, "0xABC")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)

	sc := &model.SmartCollection{Name: "top", RuleJSON: `{"min_score":80}`, Enabled: true}
	require.NoError(t, db.Create(sc).Error)
	require.NoError(t, db.Create(&model.SmartCollectionSubscription{SmartCollectionID: sc.ID, RecipientID: "sc1"}).Error)
	stats := NewStatsRepo(db)
	require.NoError(t, stats.ReplaceSmartCollection(ctx, sc.ID, []string{"0xabc", "0xdef"}, now))
	require.NoError(t, stats.ReplaceSmartCollection(ctx, sc.ID, []string{"0xabc"}, now))
	ids, err = r.SmartCollectionRecipients(ctx, "0xabc")
	require.NoError(t, err)
	assert.Equal(t, []string{"sc1"}, ids)
	ids, err = r.SmartCollectionRecipients(ctx, "0xdef")
	require.NoError(t, err)
	assert.Empty(t, ids)

	configured, err := r.ConfiguredRecipients(ctx, true)
	require.NoError(t, err)
	assert.Len(t, configured, 5)
	assert.Contains(t, configured, "sc1")
	configured, err = r.ConfiguredRecipients(ctx, false)
	require.NoError(t, err)
	assert.NotContains(t, configured, "sc1")
}

func TestMarketRepo(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	r := NewMarketRepo(db)

	title, err := r.GetTitle(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, title)

	require.NoError(t, r.SaveTitle(ctx, "m1", "Will it rain?"))
	require.NoError(t, r.SaveTitle(ctx, "m1", "Will it rain tomorrow?"))
	title, err = r.GetTitle(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Will it rain tomorrow?", title)

	require.NoError(t, db.Create(&model.WalletName{Wallet: "0xabc", EnsName: "whale.eth"}).Error)
	name, err := r.GetWalletName(ctx, "0xABC")
	require.NoError(t, err)
	assert.Equal(t, "whale.eth", name)
}
