package config

import (
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/ninja0404/whale-signal/internal/behavior"
	"github.com/ninja0404/whale-signal/internal/model"
)

// Thresholds reloadable qualification, behavior and cooldown settings
type Thresholds struct {
	HighScore int             `yaml:"high_score" json:"high_score"`
	HighUSD   decimal.Decimal `yaml:"high_usd" json:"high_usd"`
	LowScore  int             `yaml:"low_score" json:"low_score"`
	LowUSD    decimal.Decimal `yaml:"low_usd" json:"low_usd"`

	MicroWindow Duration        `yaml:"micro_window" json:"micro_window"`
	MacroWindow Duration        `yaml:"macro_window" json:"macro_window"`
	SpikeUSD    decimal.Decimal `yaml:"spike_usd" json:"spike_usd"`
	BuildUSD    decimal.Decimal `yaml:"build_usd" json:"build_usd"`
	ExitUSD     decimal.Decimal `yaml:"exit_usd" json:"exit_usd"`

	SameWalletCooldown     Duration `yaml:"same_wallet_cooldown" json:"same_wallet_cooldown"`
	CrossWalletCooldown    Duration `yaml:"cross_wallet_cooldown" json:"cross_wallet_cooldown"`
	IncreasedPositionGrace Duration `yaml:"increased_position_grace" json:"increased_position_grace"`

	// StatsFreshFor batch scores older than this fall back to the real-time score
	StatsFreshFor Duration `yaml:"stats_fresh_for" json:"stats_fresh_for"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		HighScore:              85,
		HighUSD:                decimal.Zero,
		LowScore:               75,
		LowUSD:                 decimal.NewFromInt(1000),
		MicroWindow:            Duration(10 * time.Minute),
		MacroWindow:            Duration(20 * time.Minute),
		SpikeUSD:               decimal.NewFromInt(10_000),
		BuildUSD:               decimal.NewFromInt(10_000),
		ExitUSD:                decimal.NewFromInt(5_000),
		SameWalletCooldown:     Duration(10 * time.Minute),
		CrossWalletCooldown:    0,
		IncreasedPositionGrace: Duration(10 * time.Minute),
		StatsFreshFor:          Duration(26 * time.Hour),
	}
}

func (t *Thresholds) Validate() error {
	if t.HighScore < 0 || t.HighScore > 100 || t.LowScore < 0 || t.LowScore > 100 {
		return errors.New("scores must be within [0,100]")
	}
	if t.LowScore > t.HighScore {
		return errors.Errorf("low_score %d above high_score %d", t.LowScore, t.HighScore)
	}
	for name, v := range map[string]decimal.Decimal{
		"high_usd": t.HighUSD, "low_usd": t.LowUSD,
		"spike_usd": t.SpikeUSD, "build_usd": t.BuildUSD, "exit_usd": t.ExitUSD,
	} {
		if v.IsNegative() {
			return errors.Errorf("%s must not be negative", name)
		}
	}
	for name, v := range map[string]Duration{
		"micro_window": t.MicroWindow, "macro_window": t.MacroWindow,
		"same_wallet_cooldown": t.SameWalletCooldown, "cross_wallet_cooldown": t.CrossWalletCooldown,
		"increased_position_grace": t.IncreasedPositionGrace, "stats_fresh_for": t.StatsFreshFor,
	} {
		if v < 0 {
			return errors.Errorf("%s must not be negative", name)
		}
	}
	if t.MicroWindow > t.MacroWindow {
		return errors.New("micro_window must not exceed macro_window")
	}
	return nil
}

// Behavior window and USD bars for the behavior detector
func (t *Thresholds) Behavior() behavior.Thresholds {
	return behavior.Thresholds{
		Micro:    t.MicroWindow.D(),
		Macro:    t.MacroWindow.D(),
		SpikeUSD: t.SpikeUSD,
		BuildUSD: t.BuildUSD,
		ExitUSD:  t.ExitUSD,
	}
}

// PlanPolicy delivery policy of one plan
type PlanPolicy struct {
	Delay Duration `yaml:"delay" json:"delay"`
	// MaxAlertsPerDay -1 means unlimited
	MaxAlertsPerDay    int  `yaml:"max_alerts_per_day" json:"max_alerts_per_day"`
	HighConfidenceOnly bool `yaml:"high_confidence_only" json:"high_confidence_only"`
}

// Plans per plan policy plus elite focus handling and the per recipient limiter
type Plans struct {
	Free  PlanPolicy `yaml:"free" json:"free"`
	Pro   PlanPolicy `yaml:"pro" json:"pro"`
	Elite PlanPolicy `yaml:"elite" json:"elite"`

	EliteLowConfidenceDelay Duration `yaml:"elite_low_confidence_delay" json:"elite_low_confidence_delay"`
	FocusTTL                Duration `yaml:"focus_ttl" json:"focus_ttl"`
	RatePerMinute           int      `yaml:"rate_per_minute" json:"rate_per_minute"`
}

func DefaultPlans() Plans {
	return Plans{
		Free:                    PlanPolicy{Delay: Duration(10 * time.Minute), MaxAlertsPerDay: 3},
		Pro:                     PlanPolicy{MaxAlertsPerDay: -1, HighConfidenceOnly: true},
		Elite:                   PlanPolicy{MaxAlertsPerDay: -1},
		EliteLowConfidenceDelay: Duration(60 * time.Second),
		FocusTTL:                Duration(12 * time.Hour),
		RatePerMinute:           20,
	}
}

// Policy policy of plan, free for unknown plans
func (p *Plans) Policy(plan model.Plan) PlanPolicy {
	switch plan {
	case model.PlanPro:
		return p.Pro
	case model.PlanElite:
		return p.Elite
	default:
		return p.Free
	}
}

func (p *Plans) Validate() error {
	for name, pol := range map[string]PlanPolicy{"free": p.Free, "pro": p.Pro, "elite": p.Elite} {
		if pol.Delay < 0 {
			return errors.Errorf("plans.%s.delay must not be negative", name)
		}
		if pol.MaxAlertsPerDay < -1 {
			return errors.Errorf("plans.%s.max_alerts_per_day must be -1 or more", name)
		}
	}
	if p.EliteLowConfidenceDelay < 0 || p.FocusTTL < 0 || p.RatePerMinute < 0 {
		return errors.New("plans: negative elite delay, focus ttl or rate")
	}
	return nil
}

// Live current thresholds and plans; readers take a snapshot per event
type Live struct {
	mu         sync.RWMutex
	thresholds Thresholds
	plans      Plans
	observers  []func(Thresholds, Plans)
}

func NewLive(t Thresholds, p Plans) *Live {
	return &Live{thresholds: t, plans: p}
}

func (l *Live) Thresholds() Thresholds {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.thresholds
}

func (l *Live) Plans() Plans {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.plans
}

// Update validates and swaps both documents; an invalid update leaves the previous snapshot active
func (l *Live) Update(t Thresholds, p Plans) error {
	if err := t.Validate(); err != nil {
		return errors.Wrap(err, "thresholds")
	}
	if err := p.Validate(); err != nil {
		return errors.Wrap(err, "plans")
	}

	l.mu.Lock()
	l.thresholds = t
	l.plans = p
	observers := append([]func(Thresholds, Plans){}, l.observers...)
	l.mu.Unlock()

	for _, fn := range observers {
		fn(t, p)
	}
	return nil
}

// OnUpdate registers fn to run after each accepted update
func (l *Live) OnUpdate(fn func(Thresholds, Plans)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observers = append(l.observers, fn)
}
