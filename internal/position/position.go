package position

import (
	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/common"
)

// Position signed size and cost basis of one (wallet, market)
type Position struct {
	Size     decimal.Decimal
	AvgPrice decimal.Decimal
}

// Result outcome of applying one trade
type Result struct {
	Position Position
	Action   common.ActionType
	Realized decimal.Decimal
	// Changed false when the trade carried no size or no price
	Changed bool
}

// Apply folds one trade into the position.
// Zero amount or zero price trades leave the position untouched; the action then defaults by side.
func Apply(prev Position, side common.Side, amount, price decimal.Decimal) Result {
	if amount.Sign() <= 0 || price.Sign() <= 0 {
		action := common.ActionEntry
		if side == common.SideSell {
			action = common.ActionExit
		}
		return Result{Position: prev, Action: action, Realized: decimal.Zero}
	}

	delta := amount
	if side == common.SideSell {
		delta = amount.Neg()
	}
	s := prev.Size
	next := s.Add(delta)
	absS := s.Abs()
	absNext := next.Abs()

	res := Result{Realized: decimal.Zero, Changed: true}
	switch {
	case s.IsZero():
		res.Action = common.ActionEntry
		res.Position = Position{Size: next, AvgPrice: price}

	case next.IsZero():
		res.Action = common.ActionExit
		res.Realized = closePnl(s, prev.AvgPrice, price, absS)
		res.Position = Position{Size: decimal.Zero, AvgPrice: decimal.Zero}

	case s.Sign() != next.Sign():
		// flip: close the old side in full, open the remainder at price
		res.Action = common.ActionEntry
		res.Realized = closePnl(s, prev.AvgPrice, price, absS)
		res.Position = Position{Size: next, AvgPrice: price}

	case absNext.GreaterThan(absS):
		res.Action = common.ActionAdd
		cost := prev.AvgPrice.Mul(absS).Add(price.Mul(absNext.Sub(absS)))
		res.Position = Position{Size: next, AvgPrice: cost.Div(absNext)}

	default:
		res.Action = common.ActionReduce
		res.Realized = closePnl(s, prev.AvgPrice, price, delta.Abs())
		res.Position = Position{Size: next, AvgPrice: prev.AvgPrice}
	}
	return res
}

// closePnl realized pnl of closing qty out of a position of sign s opened at avg
func closePnl(s, avg, price, qty decimal.Decimal) decimal.Decimal {
	if s.IsPositive() {
		return price.Sub(avg).Mul(qty)
	}
	return avg.Sub(price).Mul(qty)
}
