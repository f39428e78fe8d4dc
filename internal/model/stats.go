package model

import (
	"time"
)

// WhaleStats batch computed composite score per wallet
type WhaleStats struct {
	Wallet string `gorm:"column:wallet;type:varchar(128);primaryKey"`

	Performance float64 `gorm:"column:performance;not null;default:0"`
	Consistency float64 `gorm:"column:consistency;not null;default:0"`
	Timing      float64 `gorm:"column:timing;not null;default:0"`
	Risk        float64 `gorm:"column:risk;not null;default:0"`
	Impact      float64 `gorm:"column:impact;not null;default:0"`
	WhaleScore  int     `gorm:"column:whale_score;index;not null;default:0"`

	Trades               int64   `gorm:"column:trades;not null;default:0"`
	WinRate              float64 `gorm:"column:win_rate;not null;default:0"`
	ROI                  float64 `gorm:"column:roi;not null;default:0"`
	MaxDrawdown          float64 `gorm:"column:max_drawdown;not null;default:0"`
	StddevPnl            float64 `gorm:"column:stddev_pnl;not null;default:0"`
	AvgEntryPercentile   float64 `gorm:"column:avg_entry_percentile;not null;default:0"`
	AvgExitPercentile    float64 `gorm:"column:avg_exit_percentile;not null;default:0"`
	RiskRewardRatio      float64 `gorm:"column:risk_reward_ratio;not null;default:0"`
	MarketLiquidityRatio float64 `gorm:"column:market_liquidity_ratio;not null;default:0"`
	WashSuspected        bool    `gorm:"column:wash_suspected;not null"`

	UpdatedAt time.Time `gorm:"column:updated_at;index;not null"`
}

func (*WhaleStats) TableName() string {
	return "whale_stats"
}
