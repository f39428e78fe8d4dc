package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/common"
)

// TradeRaw normalized upstream trades, polled by id by the database source
type TradeRaw struct {
	ID        uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	TradeID   string          `gorm:"column:trade_id;type:varchar(128);uniqueIndex;not null"`
	MarketID  string          `gorm:"column:market_id;type:varchar(128);index;not null"`
	Wallet    string          `gorm:"column:wallet;type:varchar(128);index;not null"`
	Side      common.Side     `gorm:"column:side;type:varchar(16);not null"`
	Amount    decimal.Decimal `gorm:"column:amount;type:decimal(38,18);not null"`
	Price     decimal.Decimal `gorm:"column:price;type:decimal(38,18);not null"`
	Timestamp time.Time       `gorm:"column:timestamp;index;not null"`
}

func (*TradeRaw) TableName() string {
	return "trades_raw"
}

// WhaleTradeHistory one row per processed trade, written with the position update
type WhaleTradeHistory struct {
	TradeID    string            `gorm:"column:trade_id;type:varchar(128);primaryKey"`
	Wallet     string            `gorm:"column:wallet;type:varchar(128);index:idx_history_wallet_market_ts,priority:1;not null"`
	MarketID   string            `gorm:"column:market_id;type:varchar(128);index:idx_history_wallet_market_ts,priority:2;index:idx_history_market_ts,priority:1;not null"`
	Side       common.Side       `gorm:"column:side;type:varchar(16);not null"`
	ActionType common.ActionType `gorm:"column:action_type;type:varchar(16);not null;default:''"`
	Price      decimal.Decimal   `gorm:"column:price;type:decimal(38,18);not null"`
	Size       decimal.Decimal   `gorm:"column:size;type:decimal(38,18);not null"`
	Pnl        decimal.Decimal   `gorm:"column:pnl;type:decimal(38,18);not null;comment:realized pnl of this trade"`
	TradeUSD   decimal.Decimal   `gorm:"column:trade_usd;type:decimal(38,18);not null"`
	Timestamp  time.Time         `gorm:"column:timestamp;index:idx_history_wallet_market_ts,priority:3;index:idx_history_market_ts,priority:2;index;not null"`
}

func (*WhaleTradeHistory) TableName() string {
	return "whale_trade_history"
}
