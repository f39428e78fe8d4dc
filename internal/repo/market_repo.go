package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ninja0404/whale-signal/internal/model"
)

type MarketRepo interface {
	// GetTitle "" when the market is unknown
	GetTitle(ctx context.Context, marketID string) (string, error)

	// SaveTitle upserts the resolved title
	SaveTitle(ctx context.Context, marketID, title string) error

	// GetWalletName username or ENS name, "" when unknown
	GetWalletName(ctx context.Context, wallet string) (string, error)
}

type marketRepoImpl struct {
	db *gorm.DB
}

func NewMarketRepo(db *gorm.DB) MarketRepo {
	return &marketRepoImpl{
		db: db,
	}
}

func (r *marketRepoImpl) GetTitle(ctx context.Context, marketID string) (string, error) {
	m, err := firstOrNil[model.Market](r.db.WithContext(ctx).Where("id = ?", marketID))
	if err != nil || m == nil {
		return "", err
	}
	return m.Title, nil
}

func (r *marketRepoImpl) SaveTitle(ctx context.Context, marketID, title string) error {
	now := time.Now().UTC()
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"title", "updated_at"}),
	}).Create(&model.Market{
		ID:        marketID,
		Title:     title,
		Status:    "active",
		CreatedAt: now,
		UpdatedAt: now,
	}).Error
}

func (r *marketRepoImpl) GetWalletName(ctx context.Context, wallet string) (string, error) {
	w, err := firstOrNil[model.WalletName](r.db.WithContext(ctx).Where("LOWER(wallet) = LOWER(?)", wallet))
	if err != nil || w == nil {
		return "", err
	}
	return w.DisplayName(), nil
}
