package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// WalletPosition signed net size and cost basis per (wallet, market)
type WalletPosition struct {
	Wallet    string          `gorm:"column:wallet;type:varchar(128);primaryKey"`
	MarketID  string          `gorm:"column:market_id;type:varchar(128);primaryKey"`
	NetSize   decimal.Decimal `gorm:"column:net_size;type:decimal(38,18);not null;comment:+long / -short"`
	AvgPrice  decimal.Decimal `gorm:"column:avg_price;type:decimal(38,18);not null;comment:zero while flat"`
	UpdatedAt time.Time       `gorm:"column:updated_at;not null"`
}

func (*WalletPosition) TableName() string {
	return "whale_positions"
}

// WhaleProfile cumulative per-wallet counters, only ever incremented
type WhaleProfile struct {
	Wallet      string          `gorm:"column:wallet;type:varchar(128);primaryKey"`
	TotalVolume decimal.Decimal `gorm:"column:total_volume;type:decimal(38,18);not null;default:0"`
	TotalTrades int64           `gorm:"column:total_trades;not null;default:0"`
	RealizedPnl decimal.Decimal `gorm:"column:realized_pnl;type:decimal(38,18);not null;default:0"`
	Wins        int64           `gorm:"column:wins;not null;default:0"`
	Losses      int64           `gorm:"column:losses;not null;default:0"`
	FirstSeenAt time.Time       `gorm:"column:first_seen_at;not null"`
	LastSeenAt  time.Time       `gorm:"column:last_seen_at;index;not null"`
}

func (*WhaleProfile) TableName() string {
	return "whale_profiles"
}

// WinRate wins over closed trades, zero without closed trades
func (p *WhaleProfile) WinRate() float64 {
	closed := p.Wins + p.Losses
	if closed == 0 {
		return 0
	}
	return float64(p.Wins) / float64(closed)
}
