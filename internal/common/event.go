package common

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// UnmarshalJSON normalizes case and whitespace so "BUY" and " sell" are accepted
func (s *Side) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = Side(strings.ToLower(strings.TrimSpace(raw)))
	return nil
}

// Sign is +1 for buys and -1 for sells
func (s Side) Sign() int {
	if s == SideSell {
		return -1
	}
	return 1
}

type ActionType string

const (
	ActionEntry  ActionType = "entry"
	ActionAdd    ActionType = "add"
	ActionReduce ActionType = "reduce"
	ActionExit   ActionType = "exit"
)

// Behavior is empty when no pattern matched
type Behavior string

const (
	BehaviorNone  Behavior = ""
	BehaviorSpike Behavior = "spike"
	BehaviorBuild Behavior = "build"
	BehaviorExit  Behavior = "exit"
)

type SignalLevel string

const (
	SignalHigh SignalLevel = "high"
	SignalLow  SignalLevel = "low"
)

type AlertType string

const (
	AlertWhaleEntry AlertType = "whale_entry"
	AlertWhaleExit  AlertType = "whale_exit"
)

// AlertTypeForSide sells are exits, everything else is an entry
func AlertTypeForSide(side Side) AlertType {
	if side == SideSell {
		return AlertWhaleExit
	}
	return AlertWhaleEntry
}

// TradeIngested a normalized trade published by the ingest boundary
type TradeIngested struct {
	TradeID   string          `json:"trade_id" validate:"required"`
	Wallet    string          `json:"wallet" validate:"required"`
	MarketID  string          `json:"market_id" validate:"required"`
	Side      Side            `json:"side" validate:"required,oneof=buy sell"`
	Amount    decimal.Decimal `json:"amount"`
	Price     decimal.Decimal `json:"price"`
	Timestamp time.Time       `json:"timestamp" validate:"required"`
}

func (t *TradeIngested) Validate() error {
	if t.Amount.IsNegative() {
		return errors.New("amount must not be negative")
	}
	if t.Price.IsNegative() {
		return errors.New("price must not be negative")
	}
	return nil
}

// USD notional amount*price
func (t *TradeIngested) USD() decimal.Decimal {
	return t.Amount.Mul(t.Price)
}

// WhaleSignal one per qualifying trade
type WhaleSignal struct {
	WhaleTradeID string          `json:"whale_trade_id" validate:"required"`
	TradeID      string          `json:"trade_id" validate:"required"`
	Wallet       string          `json:"wallet" validate:"required"`
	MarketID     string          `json:"market_id" validate:"required"`
	WhaleScore   int             `json:"whale_score" validate:"gte=0,lte=100"`
	ActionType   ActionType      `json:"action_type" validate:"required,oneof=entry add reduce exit"`
	Behavior     Behavior        `json:"behavior,omitempty" validate:"omitempty,oneof=spike build exit"`
	Side         Side            `json:"side" validate:"required,oneof=buy sell"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	TradeUSD     decimal.Decimal `json:"trade_usd"`
	SignalLevel  SignalLevel     `json:"signal_level" validate:"required,oneof=high low"`
	CreatedAt    time.Time       `json:"created_at" validate:"required"`
}

// AlertCreated carries everything delivery needs to render a message
type AlertCreated struct {
	AlertID      string          `json:"alert_id" validate:"required"`
	WhaleTradeID string          `json:"whale_trade_id" validate:"required"`
	MarketID     string          `json:"market_id" validate:"required"`
	MarketTitle  string          `json:"market_title"`
	Wallet       string          `json:"wallet" validate:"required"`
	WalletName   string          `json:"wallet_name,omitempty"`
	WhaleScore   int             `json:"whale_score" validate:"gte=0,lte=100"`
	AlertType    AlertType       `json:"alert_type" validate:"required,oneof=whale_entry whale_exit"`
	ActionType   ActionType      `json:"action_type" validate:"omitempty,oneof=entry add reduce exit"`
	Behavior     Behavior        `json:"behavior,omitempty" validate:"omitempty,oneof=spike build exit"`
	Side         Side            `json:"side" validate:"required,oneof=buy sell"`
	Size         decimal.Decimal `json:"size"`
	Price        decimal.Decimal `json:"price"`
	SignalLevel  SignalLevel     `json:"signal_level" validate:"required,oneof=high low"`
	CreatedAt    time.Time       `json:"created_at" validate:"required"`
	// RetryAfter set on the one requeued pass of a rate limited alert; not handled before it
	RetryAfter *time.Time `json:"retry_after,omitempty"`
}

// EventKind maps the alert onto the follow filter flags (entry / add / exit)
func (a *AlertCreated) EventKind() ActionType {
	switch a.ActionType {
	case ActionExit, ActionAdd:
		return a.ActionType
	case ActionEntry:
		return ActionEntry
	}
	if a.AlertType == AlertWhaleExit {
		return ActionExit
	}
	return ActionEntry
}
