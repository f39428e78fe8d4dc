package score

import (
	"github.com/shopspring/decimal"
)

// MinClosedTrades below this many wins+losses the record is not trusted
const MinClosedTrades = 10

var volumeTiers = []struct {
	min   decimal.Decimal
	score int
}{
	{decimal.NewFromInt(50_000), 95},
	{decimal.NewFromInt(20_000), 88},
	{decimal.NewFromInt(10_000), 80},
	{decimal.NewFromInt(5_000), 70},
}

// RealtimeInput cheap per-trade inputs: trailing 30 day volume and the cumulative profile
type RealtimeInput struct {
	Volume30d   decimal.Decimal
	Wins        int64
	Losses      int64
	RealizedPnl decimal.Decimal
	TotalVolume decimal.Decimal
}

// Realtime tiered volume score adjusted by win rate and ROI bands, clamped to [0,100]
func Realtime(in RealtimeInput) int {
	base := 50
	for _, tier := range volumeTiers {
		if in.Volume30d.GreaterThanOrEqual(tier.min) {
			base = tier.score
			break
		}
	}

	closed := in.Wins + in.Losses
	if closed < MinClosedTrades {
		return clampInt(base-3, 0, 100)
	}

	winRate := float64(in.Wins) / float64(closed)
	switch {
	case winRate >= 0.65:
		base += 5
	case winRate >= 0.55:
		base += 3
	case winRate < 0.40:
		base -= 5
	}

	if in.TotalVolume.IsPositive() {
		roi := in.RealizedPnl.Div(in.TotalVolume).InexactFloat64()
		switch {
		case roi >= 0.25:
			base += 7
		case roi >= 0.10:
			base += 3
		case roi < -0.10:
			base -= 5
		}
	}
	return clampInt(base, 0, 100)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
