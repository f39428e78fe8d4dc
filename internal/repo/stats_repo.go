package repo

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ninja0404/whale-signal/internal/model"
)

// RankedWallet stats joined with the cumulative profile
type RankedWallet struct {
	Wallet      string          `gorm:"column:wallet"`
	WhaleScore  int             `gorm:"column:whale_score"`
	TotalVolume decimal.Decimal `gorm:"column:total_volume"`
	TotalTrades int64           `gorm:"column:total_trades"`
}

type StatsRepo interface {
	// GetStats nil when the wallet was never scored
	GetStats(ctx context.Context, wallet string) (*model.WhaleStats, error)

	SaveStats(ctx context.Context, stats *model.WhaleStats) error

	// ActiveWallets wallets with at least one trade at or after since
	ActiveWallets(ctx context.Context, since time.Time) ([]string, error)

	// WalletHistory trades of a wallet at or after since, oldest first; zero since means all time
	WalletHistory(ctx context.Context, wallet string, since time.Time) ([]*model.WhaleTradeHistory, error)

	// MarketPrices trade prices of a market at or after since
	MarketPrices(ctx context.Context, marketID string, since time.Time) ([]float64, error)

	// MarketVolumes USD volume per market at or after since
	MarketVolumes(ctx context.Context, marketIDs []string, since time.Time) (map[string]decimal.Decimal, error)

	// RankedWallets scored wallets by descending score
	RankedWallets(ctx context.Context, minScore int) ([]*RankedWallet, error)

	ListSmartCollections(ctx context.Context) ([]*model.SmartCollection, error)

	// ReplaceSmartCollection swaps the membership snapshot of one collection
	ReplaceSmartCollection(ctx context.Context, collectionID uint64, wallets []string, snapshot time.Time) error
}

type statsRepoImpl struct {
	db *gorm.DB
}

func NewStatsRepo(db *gorm.DB) StatsRepo {
	return &statsRepoImpl{
		db: db,
	}
}

func (r *statsRepoImpl) GetStats(ctx context.Context, wallet string) (*model.WhaleStats, error) {
	return firstOrNil[model.WhaleStats](r.db.WithContext(ctx).Where("wallet = ?", wallet))
}

func (r *statsRepoImpl) SaveStats(ctx context.Context, stats *model.WhaleStats) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "wallet"}},
		UpdateAll: true,
	}).Create(stats).Error
}

func (r *statsRepoImpl) ActiveWallets(ctx context.Context, since time.Time) ([]string, error) {
	var wallets []string

	err := r.db.WithContext(ctx).Model(&model.WhaleTradeHistory{}).
		Where("timestamp >= ?", since).
		Distinct().
		Order("wallet").
		Pluck("wallet", &wallets).Error

	return wallets, err
}

func (r *statsRepoImpl) WalletHistory(ctx context.Context, wallet string, since time.Time) ([]*model.WhaleTradeHistory, error) {
	var rows []*model.WhaleTradeHistory

	query := r.db.WithContext(ctx).Where("wallet = ?", wallet)
	if !since.IsZero() {
		query = query.Where("timestamp >= ?", since)
	}
	err := query.Order("timestamp ASC").Find(&rows).Error

	return rows, err
}

func (r *statsRepoImpl) MarketPrices(ctx context.Context, marketID string, since time.Time) ([]float64, error) {
	var prices []float64

	err := r.db.WithContext(ctx).Model(&model.WhaleTradeHistory{}).
		Where("market_id = ? AND timestamp >= ?", marketID, since).
		Pluck("price", &prices).Error

	return prices, err
}

func (r *statsRepoImpl) MarketVolumes(ctx context.Context, marketIDs []string, since time.Time) (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(marketIDs))
	if len(marketIDs) == 0 {
		return out, nil
	}

	var rows []struct {
		MarketID string          `gorm:"column:market_id"`
		Volume   decimal.Decimal `gorm:"column:volume"`
	}
	err := r.db.WithContext(ctx).Model(&model.WhaleTradeHistory{}).
		Select("market_id, SUM(trade_usd) AS volume").
		Where("market_id IN ? AND timestamp >= ?", marketIDs, since).
		Group("market_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.MarketID] = row.Volume
	}
	return out, nil
}

func (r *statsRepoImpl) RankedWallets(ctx context.Context, minScore int) ([]*RankedWallet, error) {
	var rows []*RankedWallet

	err := r.db.WithContext(ctx).
		Table("whale_stats AS s").
		Select("s.wallet AS wallet, s.whale_score AS whale_score, COALESCE(p.total_volume, 0) AS total_volume, COALESCE(p.total_trades, 0) AS total_trades").
		Joins("LEFT JOIN whale_profiles AS p ON p.wallet = s.wallet").
		Where("s.whale_score >= ?", minScore).
		Order("s.whale_score DESC, s.wallet ASC").
		Scan(&rows).Error

	return rows, err
}

func (r *statsRepoImpl) ListSmartCollections(ctx context.Context) ([]*model.SmartCollection, error) {
	var rows []*model.SmartCollection

	err := r.db.WithContext(ctx).
		Where("enabled = ?", true).
		Order("id ASC").
		Find(&rows).Error

	return rows, err
}

func (r *statsRepoImpl) ReplaceSmartCollection(ctx context.Context, collectionID uint64, wallets []string, snapshot time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("smart_collection_id = ?", collectionID).
			Delete(&model.SmartCollectionWhale{}).Error
		if err != nil {
			return err
		}
		if len(wallets) == 0 {
			return nil
		}
		rows := make([]*model.SmartCollectionWhale, 0, len(wallets))
		for _, w := range wallets {
			rows = append(rows, &model.SmartCollectionWhale{
				SmartCollectionID: collectionID,
				Wallet:            w,
				SnapshotDate:      snapshot,
			})
		}
		return tx.CreateInBatches(rows, 200).Error
	})
}
