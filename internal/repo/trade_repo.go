package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/model"
)

type TradeRawRepo interface {
	// GetTradesAfterId trades with id greater than lastId, ascending
	GetTradesAfterId(ctx context.Context, lastId uint64, limit int) ([]*model.TradeRaw, error)

	// GetMaxId current max id, 0 for an empty table
	GetMaxId(ctx context.Context) (uint64, error)

	// GetMinIdSince smallest id of trades at or after since
	GetMinIdSince(ctx context.Context, since time.Time) (uint64, error)

	// Insert stores one raw trade, ignoring an existing trade_id
	Insert(ctx context.Context, trade *model.TradeRaw) (bool, error)
}

type tradeRawRepoImpl struct {
	db *gorm.DB
}

func NewTradeRawRepo(db *gorm.DB) TradeRawRepo {
	return &tradeRawRepoImpl{
		db: db,
	}
}

func (r *tradeRawRepoImpl) GetTradesAfterId(ctx context.Context, lastId uint64, limit int) ([]*model.TradeRaw, error) {
	var trades []*model.TradeRaw

	err := r.db.WithContext(ctx).
		Where("id > ?", lastId).
		Order("id ASC").
		Limit(limit).
		Find(&trades).Error

	return trades, err
}

func (r *tradeRawRepoImpl) GetMaxId(ctx context.Context) (uint64, error) {
	var maxId uint64

	err := r.db.WithContext(ctx).Model(&model.TradeRaw{}).
		Select("COALESCE(MAX(id), 0)").
		Scan(&maxId).Error

	return maxId, err
}

func (r *tradeRawRepoImpl) GetMinIdSince(ctx context.Context, since time.Time) (uint64, error) {
	var minId uint64

	err := r.db.WithContext(ctx).Model(&model.TradeRaw{}).
		Where("timestamp >= ?", since).
		Select("COALESCE(MIN(id), 0)").
		Scan(&minId).Error

	return minId, err
}

func (r *tradeRawRepoImpl) Insert(ctx context.Context, trade *model.TradeRaw) (bool, error) {
	return insertIgnore(r.db.WithContext(ctx), trade)
}
