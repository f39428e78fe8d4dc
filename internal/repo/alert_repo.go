package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/ninja0404/whale-signal/internal/model"
)

type SignalRepo interface {
	// InsertWhaleTrade false when the trade already produced a signal
	InsertWhaleTrade(ctx context.Context, wt *model.WhaleTrade) (bool, error)

	// GetWhaleTrade signal row of tradeID, nil if none
	GetWhaleTrade(ctx context.Context, tradeID string) (*model.WhaleTrade, error)

	MarkWhaleTradePublished(ctx context.Context, id string) error

	// InsertAlert false when the whale trade already produced an alert
	InsertAlert(ctx context.Context, a *model.Alert) (bool, error)

	// GetAlertByWhaleTrade alert of whaleTradeID, nil if none
	GetAlertByWhaleTrade(ctx context.Context, whaleTradeID string) (*model.Alert, error)

	MarkAlertPublished(ctx context.Context, id string) error

	// LatestAlertForWallet newest alert of (wallet, market) at or after since, nil if none
	LatestAlertForWallet(ctx context.Context, wallet, marketID string, since time.Time) (*model.Alert, error)

	// LatestAlertForMarket newest alert of any wallet on market at or after since, nil if none
	LatestAlertForMarket(ctx context.Context, marketID string, since time.Time) (*model.Alert, error)

	// InsertDelivery the atomic gate before sending; false when already delivered
	InsertDelivery(ctx context.Context, recipientID, whaleTradeID string, at time.Time) (bool, error)
}

type signalRepoImpl struct {
	db *gorm.DB
}

func NewSignalRepo(db *gorm.DB) SignalRepo {
	return &signalRepoImpl{
		db: db,
	}
}

func (r *signalRepoImpl) InsertWhaleTrade(ctx context.Context, wt *model.WhaleTrade) (bool, error) {
	return insertIgnore(r.db.WithContext(ctx), wt)
}

func (r *signalRepoImpl) GetWhaleTrade(ctx context.Context, tradeID string) (*model.WhaleTrade, error) {
	return firstOrNil[model.WhaleTrade](r.db.WithContext(ctx).Where("trade_id = ?", tradeID))
}

func (r *signalRepoImpl) MarkWhaleTradePublished(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.WhaleTrade{}).Where("id = ?", id).Update("published", true).Error
}

func (r *signalRepoImpl) InsertAlert(ctx context.Context, a *model.Alert) (bool, error) {
	return insertIgnore(r.db.WithContext(ctx), a)
}

func (r *signalRepoImpl) GetAlertByWhaleTrade(ctx context.Context, whaleTradeID string) (*model.Alert, error) {
	return firstOrNil[model.Alert](r.db.WithContext(ctx).Where("whale_trade_id = ?", whaleTradeID))
}

func (r *signalRepoImpl) MarkAlertPublished(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Model(&model.Alert{}).Where("id = ?", id).Update("published", true).Error
}

func (r *signalRepoImpl) LatestAlertForWallet(ctx context.Context, wallet, marketID string, since time.Time) (*model.Alert, error) {
	return firstOrNil[model.Alert](r.db.WithContext(ctx).
		Where("LOWER(wallet) = LOWER(?) AND market_id = ? AND created_at >= ?", wallet, marketID, since).
		Order("created_at DESC"))
}

func (r *signalRepoImpl) LatestAlertForMarket(ctx context.Context, marketID string, since time.Time) (*model.Alert, error) {
	return firstOrNil[model.Alert](r.db.WithContext(ctx).
		Where("market_id = ? AND created_at >= ?", marketID, since).
		Order("created_at DESC"))
}

func (r *signalRepoImpl) InsertDelivery(ctx context.Context, recipientID, whaleTradeID string, at time.Time) (bool, error) {
	return insertIgnore(r.db.WithContext(ctx), &model.Delivery{
		RecipientID:  recipientID,
		WhaleTradeID: whaleTradeID,
		DeliveredAt:  at,
	})
}
