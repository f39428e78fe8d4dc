package model

import (
	"time"
)

// Market durable cache of resolved market titles
type Market struct {
	ID        string    `gorm:"column:id;type:varchar(128);primaryKey"`
	Title     string    `gorm:"column:title;type:varchar(512);not null"`
	Status    string    `gorm:"column:status;type:varchar(32);not null;default:'active'"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (*Market) TableName() string {
	return "markets"
}

type WalletName struct {
	Wallet    string    `gorm:"column:wallet;type:varchar(128);primaryKey"`
	Username  string    `gorm:"column:username;type:varchar(128);not null;default:''"`
	EnsName   string    `gorm:"column:ens_name;type:varchar(128);not null;default:''"`
	Source    string    `gorm:"column:source;type:varchar(64);not null;default:''"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (*WalletName) TableName() string {
	return "wallet_names"
}

// DisplayName prefers the username over the ENS name
func (w *WalletName) DisplayName() string {
	if w.Username != "" {
		return w.Username
	}
	return w.EnsName
}
