package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type Plan string

const (
	PlanFree  Plan = "free"
	PlanPro   Plan = "pro"
	PlanElite Plan = "elite"
)

// Subscription billing state mirrored by the payment collaborator
type Subscription struct {
	ID               string    `gorm:"column:id;type:varchar(64);primaryKey"`
	RecipientID      string    `gorm:"column:recipient_id;type:varchar(64);index;not null;comment:chat id"`
	Plan             Plan      `gorm:"column:plan;type:varchar(16);not null;default:'free'"`
	Status           string    `gorm:"column:status;type:varchar(16);index;not null"`
	CurrentPeriodEnd time.Time `gorm:"column:current_period_end;index;not null"`
}

func (*Subscription) TableName() string {
	return "subscriptions"
}

// WhaleFollow per-wallet follow with size/score filters and event kind flags
type WhaleFollow struct {
	ID          uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	RecipientID string          `gorm:"column:recipient_id;type:varchar(64);index;not null"`
	Wallet      string          `gorm:"column:wallet;type:varchar(128);index;not null"`
	MinSize     decimal.Decimal `gorm:"column:min_size;type:decimal(38,18);not null;default:0"`
	MinScore    int             `gorm:"column:min_score;not null;default:0"`
	AlertEntry  bool            `gorm:"column:alert_entry;not null"`
	AlertExit   bool            `gorm:"column:alert_exit;not null"`
	AlertAdd    bool            `gorm:"column:alert_add;not null"`
	Enabled     bool            `gorm:"column:enabled;not null"`
}

func (*WhaleFollow) TableName() string {
	return "whale_follows"
}

type Collection struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	RecipientID string `gorm:"column:recipient_id;type:varchar(64);index;not null"`
	Name        string `gorm:"column:name;type:varchar(128);not null"`
	Enabled     bool   `gorm:"column:enabled;not null"`
}

func (*Collection) TableName() string {
	return "collections"
}

type CollectionWhale struct {
	CollectionID uint64 `gorm:"column:collection_id;primaryKey"`
	Wallet       string `gorm:"column:wallet;type:varchar(128);primaryKey;index"`
}

func (*CollectionWhale) TableName() string {
	return "collection_whales"
}

// SmartCollection wallets selected by a JSON rule, rebuilt by the stats job
type SmartCollection struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	Name     string `gorm:"column:name;type:varchar(128);not null"`
	RuleJSON string `gorm:"column:rule_json;type:text;not null"`
	Enabled  bool   `gorm:"column:enabled;not null"`
}

func (*SmartCollection) TableName() string {
	return "smart_collections"
}

type SmartCollectionSubscription struct {
	SmartCollectionID uint64 `gorm:"column:smart_collection_id;primaryKey"`
	RecipientID       string `gorm:"column:recipient_id;type:varchar(64);primaryKey;index"`
}

func (*SmartCollectionSubscription) TableName() string {
	return "smart_collection_subscriptions"
}

// SmartCollectionWhale holds only the latest snapshot per collection
type SmartCollectionWhale struct {
	SmartCollectionID uint64    `gorm:"column:smart_collection_id;primaryKey"`
	Wallet            string    `gorm:"column:wallet;type:varchar(128);primaryKey;index"`
	SnapshotDate      time.Time `gorm:"column:snapshot_date;not null"`
}

func (*SmartCollectionWhale) TableName() string {
	return "smart_collection_whales"
}

// AllModels every table the service owns, in migration order
func AllModels() []any {
	return []any{
		&TradeRaw{}, &WhaleTradeHistory{}, &WalletPosition{}, &WhaleProfile{}, &WhaleStats{},
		&WhaleTrade{}, &Alert{}, &Delivery{}, &Market{}, &WalletName{},
		&Subscription{}, &WhaleFollow{}, &Collection{}, &CollectionWhale{},
		&SmartCollection{}, &SmartCollectionSubscription{}, &SmartCollectionWhale{},
	}
}
