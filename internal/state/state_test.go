package state

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewStore(client), mr
}

func TestWalletCooldown(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	c, err := s.GetWalletCooldown(ctx, "w", "m")
	require.NoError(t, err)
	assert.Nil(t, c)

	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	require.NoError(t, s.SetWalletCooldown(ctx, "w", "m", WalletCooldown{LastUSD: decimal.NewFromInt(5000), LastAt: at}, time.Hour))

	c, err = s.GetWalletCooldown(ctx, "w", "m")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.True(t, c.Valid())
	assert.True(t, c.LastUSD.Equal(decimal.NewFromInt(5000)))
	assert.True(t, c.LastAt.Equal(at))

	mr.FastForward(time.Hour + time.Second)
	c, err = s.GetWalletCooldown(ctx, "w", "m")
	require.NoError(t, err)
	assert.Nil(t, c)

	require.NoError(t, mr.Set("cooldown:w:m", "not json"))
	c, err = s.GetWalletCooldown(ctx, "w", "m")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.False(t, c.Valid())
}

func TestMarketCooldown(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	require.NoError(t, s.SetMarketCooldown(ctx, "m", MarketCooldown{LastWallet: "0xabc", LastAt: time.Now()}, time.Minute))
	c, err := s.GetMarketCooldown(ctx, "m")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "0xabc", c.LastWallet)

	c, err = s.GetMarketCooldown(ctx, "other")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestLimiter(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)

	for i := 0; i < 3; i++ {
		ok, err := s.Allow(ctx, "r1", 3)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := s.Allow(ctx, "r1", 3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Allow(ctx, "r2", 3)
	require.NoError(t, err)
	assert.True(t, ok)

	mr.FastForward(time.Minute + time.Second)
	ok, err = s.Allow(ctx, "r1", 3)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDailyCounter(t *testing.T) {
	ctx := context.Background()
	s, mr := newStore(t)
	now := time.Date(2025, 3, 1, 23, 59, 0, 0, time.UTC)

	n, err := s.DailyCount(ctx, "r1", now)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, s.IncrDaily(ctx, "r1", now))
	require.NoError(t, s.IncrDaily(ctx, "r1", now))
	n, err = s.DailyCount(ctx, "r1", now)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.True(t, mr.Exists("alert_limit:r1:2025-03-01"))
	assert.Equal(t, 25*time.Hour, mr.TTL("alert_limit:r1:2025-03-01"))

	n, err = s.DailyCount(ctx, "r1", now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFocusAndRequeue(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	focus, err := s.GetFocus(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, focus)
	require.NoError(t, s.SetFocus(ctx, "r1", FocusValue("0xabc", "m1"), time.Hour))
	focus, err = s.GetFocus(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "0xabc|m1", focus)

	first, err := s.MarkRequeued(ctx, "wt1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
	again, err := s.MarkRequeued(ctx, "wt1", time.Minute)
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, s.ClearRequeued(ctx, "wt1"))
	first, err = s.MarkRequeued(ctx, "wt1", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestTitleCache(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	title, err := s.GetTitle(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, title)
	require.NoError(t, s.SetTitle(ctx, "m1", "Election", time.Hour))
	title, err = s.GetTitle(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Election", title)
}
