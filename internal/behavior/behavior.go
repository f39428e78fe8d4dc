package behavior

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/common"
)

const (
	ConfidenceSpike = 80
	ConfidenceBuild = 75
	ConfidenceExit  = 85

	minBuildBuys = 3
)

// Trade one trade of the (wallet, market) being inspected
type Trade struct {
	Side      common.Side
	Amount    decimal.Decimal
	Price     decimal.Decimal
	Timestamp time.Time
}

func (t Trade) USD() decimal.Decimal {
	return t.Amount.Mul(t.Price)
}

// Thresholds window lengths and USD bars of the three rules
type Thresholds struct {
	Micro    time.Duration
	Macro    time.Duration
	SpikeUSD decimal.Decimal
	BuildUSD decimal.Decimal
	ExitUSD  decimal.Decimal
}

// Match aggregate trade the alert reports instead of the single trigger trade
type Match struct {
	Behavior   common.Behavior
	Confidence int
	Side       common.Side
	Amount     decimal.Decimal
	Price      decimal.Decimal
}

func (m Match) USD() decimal.Decimal {
	return m.Amount.Mul(m.Price)
}

// Detect classifies recent activity as spike, build or exit; first match wins.
// trades may contain anything, only those inside the windows ending at now count.
func Detect(trades []Trade, now time.Time, th Thresholds) (Match, bool) {
	var micro, macro []Trade
	for _, t := range trades {
		age := now.Sub(t.Timestamp)
		if age < 0 {
			age = 0
		}
		if age <= th.Macro {
			macro = append(macro, t)
		}
		if age <= th.Micro {
			micro = append(micro, t)
		}
	}

	if m, ok := detectSpike(micro, th.SpikeUSD); ok {
		return m, true
	}

	var buys, sells []Trade
	for _, t := range macro {
		if t.Side == common.SideSell {
			sells = append(sells, t)
		} else {
			buys = append(buys, t)
		}
	}
	buyAmount, buyUSD := sum(buys)
	sellAmount, sellUSD := sum(sells)

	if len(buys) >= minBuildBuys && buyUSD.GreaterThanOrEqual(th.BuildUSD) {
		return Match{
			Behavior:   common.BehaviorBuild,
			Confidence: ConfidenceBuild,
			Side:       common.SideBuy,
			Amount:     buyAmount,
			Price:      vwap(buyUSD, buyAmount),
		}, true
	}

	if buyAmount.IsPositive() &&
		sellAmount.GreaterThanOrEqual(buyAmount.Div(decimal.NewFromInt(2))) &&
		sellUSD.GreaterThanOrEqual(th.ExitUSD) {
		return Match{
			Behavior:   common.BehaviorExit,
			Confidence: ConfidenceExit,
			Side:       common.SideSell,
			Amount:     sellAmount,
			Price:      vwap(sellUSD, sellAmount),
		}, true
	}
	return Match{}, false
}

// detectSpike largest single trade at or above the bar
func detectSpike(trades []Trade, bar decimal.Decimal) (Match, bool) {
	var best *Trade
	for i := range trades {
		t := &trades[i]
		if t.USD().LessThan(bar) {
			continue
		}
		if best == nil || t.USD().GreaterThan(best.USD()) {
			best = t
		}
	}
	if best == nil {
		return Match{}, false
	}
	return Match{
		Behavior:   common.BehaviorSpike,
		Confidence: ConfidenceSpike,
		Side:       best.Side,
		Amount:     best.Amount,
		Price:      best.Price,
	}, true
}

func sum(trades []Trade) (decimal.Decimal, decimal.Decimal) {
	amount, usd := decimal.Zero, decimal.Zero
	for _, t := range trades {
		amount = amount.Add(t.Amount)
		usd = usd.Add(t.USD())
	}
	return amount, usd
}

func vwap(usd, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	return usd.Div(amount)
}
