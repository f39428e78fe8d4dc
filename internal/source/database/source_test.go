package database

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/internal/testutil"
)

func insertTrade(t *testing.T, r repo.TradeRawRepo, id string, side common.Side, ts time.Time) {
	t.Helper()
	ok, err := r.Insert(context.Background(), &model.TradeRaw{
		TradeID:   id,
		MarketID:  "m1",
		Wallet:    "0xw1",
		Side:      side,
		Amount:    decimal.NewFromInt(1000),
		Price:     decimal.RequireFromString("0.5"),
		Timestamp: ts,
	})
	require.NoError(t, err)
	require.True(t, ok)
}

func receive(t *testing.T, ch <-chan *common.TradeIngested) *common.TradeIngested {
	t.Helper()
	select {
	case trade := <-ch:
		return trade
	case <-time.After(2 * time.Second):
		t.Fatal("no trade received")
		return nil
	}
}

func TestInitialReplayHonorsWindow(t *testing.T) {
	tradeRepo := repo.NewTradeRawRepo(testutil.NewDB(t))
	now := time.Now().UTC()
	insertTrade(t, tradeRepo, "old", common.SideBuy, now.Add(-3*time.Hour))
	insertTrade(t, tradeRepo, "t1", common.SideBuy, now.Add(-20*time.Minute))
	insertTrade(t, tradeRepo, "bogus", common.Side("swap"), now.Add(-15*time.Minute))
	insertTrade(t, tradeRepo, "t2", common.SideSell, now.Add(-10*time.Minute))

	src := NewSource(SourceConfig{QueryInterval: 20 * time.Millisecond, InitWindow: time.Hour, BatchSize: 1}, tradeRepo)
	require.NoError(t, src.Start(context.Background()))

	first := receive(t, src.Subscribe())
	second := receive(t, src.Subscribe())
	assert.Equal(t, "t1", first.TradeID)
	assert.Equal(t, "t2", second.TradeID)
	assert.Equal(t, common.SideSell, second.Side)
	assert.True(t, decimal.NewFromInt(500).Equal(second.USD()))

	assert.Eventually(t, src.IsInitialDataLoaded, time.Second, 10*time.Millisecond)
	require.NoError(t, src.Stop())

	_, open := <-src.Subscribe()
	assert.False(t, open)
}

func TestPollPicksUpNewTrades(t *testing.T) {
	tradeRepo := repo.NewTradeRawRepo(testutil.NewDB(t))
	now := time.Now().UTC()
	insertTrade(t, tradeRepo, "before", common.SideBuy, now.Add(-time.Minute))

	src := NewSource(SourceConfig{QueryInterval: 20 * time.Millisecond}, tradeRepo)
	require.NoError(t, src.Start(context.Background()))
	defer src.Stop()

	require.Eventually(t, src.IsInitialDataLoaded, time.Second, 10*time.Millisecond)
	insertTrade(t, tradeRepo, "after", common.SideBuy, now)

	trade := receive(t, src.Subscribe())
	assert.Equal(t, "after", trade.TradeID)
	assert.Equal(t, "0xw1", trade.Wallet)
}
