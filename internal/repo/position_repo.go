package repo

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
)

// TradeApplication everything the whale stage persists for one trade
type TradeApplication struct {
	History  *model.WhaleTradeHistory
	Position *model.WalletPosition
	// PositionChanged false for zero amount or zero price trades
	PositionChanged bool
}

type PositionRepo interface {
	// GetPosition current position, a flat zero position when none is stored
	GetPosition(ctx context.Context, wallet, marketID string) (*model.WalletPosition, error)

	// ApplyTrade records the history row, position and profile increments in one transaction.
	// When the trade_id was already applied nothing changes and the stored history row is returned.
	ApplyTrade(ctx context.Context, app *TradeApplication) (bool, *model.WhaleTradeHistory, error)

	// GetProfile nil when the wallet has never traded
	GetProfile(ctx context.Context, wallet string) (*model.WhaleProfile, error)

	// RecentHistory trades of one (wallet, market) at or after since, oldest first
	RecentHistory(ctx context.Context, wallet, marketID string, since time.Time) ([]*model.WhaleTradeHistory, error)

	// VolumeSince USD volume of a wallet at or after since
	VolumeSince(ctx context.Context, wallet string, since time.Time) (decimal.Decimal, error)
}

type positionRepoImpl struct {
	db *gorm.DB
}

func NewPositionRepo(db *gorm.DB) PositionRepo {
	return &positionRepoImpl{
		db: db,
	}
}

func (r *positionRepoImpl) GetPosition(ctx context.Context, wallet, marketID string) (*model.WalletPosition, error) {
	pos, err := firstOrNil[model.WalletPosition](r.db.WithContext(ctx).
		Where("wallet = ? AND market_id = ?", wallet, marketID))
	if err != nil {
		return nil, err
	}
	if pos == nil {
		pos = &model.WalletPosition{
			Wallet:   wallet,
			MarketID: marketID,
			NetSize:  decimal.Zero,
			AvgPrice: decimal.Zero,
		}
	}
	return pos, nil
}

func (r *positionRepoImpl) ApplyTrade(ctx context.Context, app *TradeApplication) (bool, *model.WhaleTradeHistory, error) {
	h := app.History
	var stored *model.WhaleTradeHistory
	inserted := false

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := insertIgnore(tx, h)
		if err != nil {
			return errors.Wrap(err, "insert history")
		}
		if !ok {
			stored, err = firstOrNil[model.WhaleTradeHistory](tx.Where("trade_id = ?", h.TradeID))
			if err != nil {
				return errors.Wrap(err, "load history")
			}
			return nil
		}
		inserted = true
		stored = h

		if app.PositionChanged && app.Position != nil {
			app.Position.UpdatedAt = h.Timestamp
			err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "wallet"}, {Name: "market_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"net_size", "avg_price", "updated_at"}),
			}).Create(app.Position).Error
			if err != nil {
				return errors.Wrap(err, "save position")
			}
		}
		return errors.Wrap(upsertProfile(tx, h), "upsert profile")
	})
	if err != nil {
		return false, nil, err
	}
	return inserted, stored, nil
}

// upsertProfile increments the aggregate in place; never read-modify-write
func upsertProfile(tx *gorm.DB, h *model.WhaleTradeHistory) error {
	var wins, losses int64
	switch h.Pnl.Sign() {
	case 1:
		wins = 1
	case -1:
		losses = 1
	}
	profile := &model.WhaleProfile{
		Wallet:      h.Wallet,
		TotalVolume: h.TradeUSD,
		TotalTrades: 1,
		RealizedPnl: h.Pnl,
		Wins:        wins,
		Losses:      losses,
		FirstSeenAt: h.Timestamp,
		LastSeenAt:  h.Timestamp,
	}
	return tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_volume": gorm.Expr("total_volume + ?", h.TradeUSD),
			"total_trades": gorm.Expr("total_trades + ?", 1),
			"realized_pnl": gorm.Expr("realized_pnl + ?", h.Pnl),
			"wins":         gorm.Expr("wins + ?", wins),
			"losses":       gorm.Expr("losses + ?", losses),
			"last_seen_at": h.Timestamp,
		}),
	}).Create(profile).Error
}

func (r *positionRepoImpl) GetProfile(ctx context.Context, wallet string) (*model.WhaleProfile, error) {
	return firstOrNil[model.WhaleProfile](r.db.WithContext(ctx).Where("wallet = ?", wallet))
}

func (r *positionRepoImpl) RecentHistory(ctx context.Context, wallet, marketID string, since time.Time) ([]*model.WhaleTradeHistory, error) {
	var rows []*model.WhaleTradeHistory

	err := r.db.WithContext(ctx).
		Where("wallet = ? AND market_id = ? AND timestamp >= ?", wallet, marketID, since).
		Order("timestamp ASC").
		Find(&rows).Error

	return rows, err
}

func (r *positionRepoImpl) VolumeSince(ctx context.Context, wallet string, since time.Time) (decimal.Decimal, error) {
	var rows []decimal.Decimal

	err := r.db.WithContext(ctx).Model(&model.WhaleTradeHistory{}).
		Where("wallet = ? AND timestamp >= ?", wallet, since).
		Pluck("trade_usd", &rows).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, v := range rows {
		total = total.Add(v)
	}
	return total, nil
}

// ActionOf the stored action of an already applied trade, falling back by side
func ActionOf(h *model.WhaleTradeHistory) common.ActionType {
	if h == nil {
		return ""
	}
	if h.ActionType != "" {
		return h.ActionType
	}
	if h.Side == common.SideSell {
		return common.ActionExit
	}
	return common.ActionEntry
}
