package whale

import (
	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/config"
)

// Qualify signal level of a trade; a behavior match always qualifies at high
func Qualify(score int, usd decimal.Decimal, behaviorMatched bool, th config.Thresholds) (common.SignalLevel, bool) {
	switch {
	case score >= th.HighScore && usd.GreaterThanOrEqual(th.HighUSD):
		return common.SignalHigh, true
	case behaviorMatched:
		return common.SignalHigh, true
	case score >= th.LowScore && usd.GreaterThanOrEqual(th.LowUSD):
		return common.SignalLow, true
	}
	return "", false
}
