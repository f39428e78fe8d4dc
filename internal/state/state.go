package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

const (
	dailyCounterTTL = 25 * time.Hour
	limiterWindow   = time.Minute
)

// WalletCooldown last alert of a (wallet, market)
type WalletCooldown struct {
	LastUSD decimal.Decimal `json:"last_usd"`
	LastAt  time.Time       `json:"last_at"`
}

// Valid false for entries that carry no usable baseline
func (c *WalletCooldown) Valid() bool {
	return c.LastUSD.IsPositive() && !c.LastAt.IsZero()
}

// MarketCooldown last alerting wallet of a market
type MarketCooldown struct {
	LastWallet string    `json:"last_wallet"`
	LastAt     time.Time `json:"last_at"`
}

// Store ephemeral TTL-bound state; a missing key always means "no recent activity"
type Store struct {
	client redis.Cmdable
}

func NewStore(client redis.Cmdable) *Store {
	return &Store{client: client}
}

func walletCooldownKey(wallet, marketID string) string {
	return fmt.Sprintf("cooldown:%s:%s", wallet, marketID)
}

func marketCooldownKey(marketID string) string {
	return fmt.Sprintf("cooldown_market:%s", marketID)
}

func titleKey(marketID string) string {
	return fmt.Sprintf("market_title:%s", marketID)
}

func limiterKey(recipient string) string {
	return fmt.Sprintf("rl:%s", recipient)
}

func dailyKey(recipient string, now time.Time) string {
	return fmt.Sprintf("alert_limit:%s:%s", recipient, now.UTC().Format("2006-01-02"))
}

func focusKey(recipient string) string {
	return fmt.Sprintf("elite:last:%s", recipient)
}

func requeueKey(id string) string {
	return fmt.Sprintf("requeue:%s", id)
}

// getString "" for a missing key
func (s *Store) getString(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// GetWalletCooldown nil when absent; an unreadable entry comes back invalid rather than absent
func (s *Store) GetWalletCooldown(ctx context.Context, wallet, marketID string) (*WalletCooldown, error) {
	raw, err := s.getString(ctx, walletCooldownKey(wallet, marketID))
	if err != nil || raw == "" {
		return nil, err
	}
	var c WalletCooldown
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		logger.Warn("⚠️ unreadable cooldown entry",
			logger.FieldWallet(wallet),
			logger.FieldMarket(marketID),
			logger.FieldErr(err))
		return &WalletCooldown{}, nil
	}
	return &c, nil
}

func (s *Store) SetWalletCooldown(ctx context.Context, wallet, marketID string, c WalletCooldown, ttl time.Duration) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, walletCooldownKey(wallet, marketID), data, ttl).Err()
}

// GetMarketCooldown nil when absent or unreadable
func (s *Store) GetMarketCooldown(ctx context.Context, marketID string) (*MarketCooldown, error) {
	raw, err := s.getString(ctx, marketCooldownKey(marketID))
	if err != nil || raw == "" {
		return nil, err
	}
	var c MarketCooldown
	if err := json.Unmarshal([]byte(raw), &c); err != nil || c.LastWallet == "" {
		return nil, nil
	}
	return &c, nil
}

func (s *Store) SetMarketCooldown(ctx context.Context, marketID string, c MarketCooldown, ttl time.Duration) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, marketCooldownKey(marketID), data, ttl).Err()
}

func (s *Store) GetTitle(ctx context.Context, marketID string) (string, error) {
	return s.getString(ctx, titleKey(marketID))
}

func (s *Store) SetTitle(ctx context.Context, marketID, title string, ttl time.Duration) error {
	return s.client.Set(ctx, titleKey(marketID), title, ttl).Err()
}

// Allow fixed one minute window per recipient
func (s *Store) Allow(ctx context.Context, recipient string, perMinute int) (bool, error) {
	if perMinute <= 0 {
		return true, nil
	}
	key := limiterKey(recipient)
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		if err := s.client.Expire(ctx, key, limiterWindow).Err(); err != nil {
			return false, err
		}
	}
	return n <= int64(perMinute), nil
}

// DailyCount alerts delivered to recipient on the UTC day of now
func (s *Store) DailyCount(ctx context.Context, recipient string, now time.Time) (int64, error) {
	n, err := s.client.Get(ctx, dailyKey(recipient, now)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (s *Store) IncrDaily(ctx context.Context, recipient string, now time.Time) error {
	key := dailyKey(recipient, now)
	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, dailyCounterTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetFocus "wallet|market" last delivered to an elite recipient
func (s *Store) GetFocus(ctx context.Context, recipient string) (string, error) {
	return s.getString(ctx, focusKey(recipient))
}

func (s *Store) SetFocus(ctx context.Context, recipient, focus string, ttl time.Duration) error {
	return s.client.Set(ctx, focusKey(recipient), focus, ttl).Err()
}

// MarkRequeued true only for the first caller of id within ttl
func (s *Store) MarkRequeued(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, requeueKey(id), 1, ttl).Result()
}

// ClearRequeued releases the marker of id after a failed requeue
func (s *Store) ClearRequeued(ctx context.Context, id string) error {
	return s.client.Del(ctx, requeueKey(id)).Err()
}

// FocusValue focus marker of a (wallet, market)
func FocusValue(wallet, marketID string) string {
	return wallet + "|" + marketID
}
