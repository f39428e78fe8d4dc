package model

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/common"
)

// WhaleTrade the signal row; unique trade_id keeps one signal per trade. Published flips once
// the WhaleSignal is on the queue, so a redelivered trade can finish an interrupted publish.
type WhaleTrade struct {
	ID          string             `gorm:"column:id;type:varchar(64);primaryKey"`
	TradeID     string             `gorm:"column:trade_id;type:varchar(128);uniqueIndex;not null"`
	Wallet      string             `gorm:"column:wallet;type:varchar(128);index;not null"`
	MarketID    string             `gorm:"column:market_id;type:varchar(128);index;not null"`
	WhaleScore  int                `gorm:"column:whale_score;not null"`
	ActionType  common.ActionType  `gorm:"column:action_type;type:varchar(16);not null"`
	Behavior    common.Behavior    `gorm:"column:behavior;type:varchar(16);not null;default:''"`
	Side        common.Side        `gorm:"column:side;type:varchar(16);not null"`
	Amount      decimal.Decimal    `gorm:"column:amount;type:decimal(38,18);not null"`
	Price       decimal.Decimal    `gorm:"column:price;type:decimal(38,18);not null"`
	TradeUSD    decimal.Decimal    `gorm:"column:trade_usd;type:decimal(38,18);not null"`
	SignalLevel common.SignalLevel `gorm:"column:signal_level;type:varchar(8);not null"`
	Published   bool               `gorm:"column:published;not null;default:false"`
	CreatedAt   time.Time          `gorm:"column:created_at;index;not null"`
}

func (*WhaleTrade) TableName() string {
	return "whale_trades"
}

// Alert at most one per whale trade
type Alert struct {
	ID           string           `gorm:"column:id;type:varchar(64);primaryKey"`
	WhaleTradeID string           `gorm:"column:whale_trade_id;type:varchar(64);uniqueIndex:uq_alerts_whale_trade_id;not null"`
	MarketID     string           `gorm:"column:market_id;type:varchar(128);index:idx_alerts_market_created,priority:1;not null"`
	Wallet       string           `gorm:"column:wallet;type:varchar(128);index;not null"`
	WhaleScore   int              `gorm:"column:whale_score;not null"`
	AlertType    common.AlertType `gorm:"column:alert_type;type:varchar(32);index;not null"`
	TradeUSD     decimal.Decimal  `gorm:"column:trade_usd;type:decimal(38,18);not null;default:0"`
	Published    bool             `gorm:"column:published;not null;default:false"`
	CreatedAt    time.Time        `gorm:"column:created_at;index:idx_alerts_market_created,priority:2;not null"`
}

func (*Alert) TableName() string {
	return "alerts"
}

// Delivery existence means the recipient was already handled for the whale trade
type Delivery struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	RecipientID  string    `gorm:"column:recipient_id;type:varchar(64);uniqueIndex:uq_deliveries,priority:1;not null"`
	WhaleTradeID string    `gorm:"column:whale_trade_id;type:varchar(64);uniqueIndex:uq_deliveries,priority:2;not null"`
	DeliveredAt  time.Time `gorm:"column:delivered_at;not null"`
}

func (*Delivery) TableName() string {
	return "deliveries"
}
