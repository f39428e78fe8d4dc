package config

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/model"
)

func TestDurationUnmarshal(t *testing.T) {
	var v struct {
		A Duration `json:"a"`
		B Duration `json:"b"`
		C Duration `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"10m","b":90,"c":null}`), &v))
	assert.Equal(t, 10*time.Minute, v.A.D())
	assert.Equal(t, 90*time.Second, v.B.D())
	assert.Equal(t, time.Duration(0), v.C.D())

	assert.Error(t, json.Unmarshal([]byte(`{"a":"ten minutes"}`), &v))
	assert.Error(t, json.Unmarshal([]byte(`{"a":true}`), &v))

	out, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(out))
}

func TestThresholdsJSON(t *testing.T) {
	th := DefaultThresholds()
	doc := `{"high_score":90,"low_usd":"2500","micro_window":"5m","same_wallet_cooldown":300}`
	require.NoError(t, json.Unmarshal([]byte(doc), &th))

	assert.Equal(t, 90, th.HighScore)
	assert.Equal(t, 75, th.LowScore)
	assert.True(t, th.LowUSD.Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, 5*time.Minute, th.MicroWindow.D())
	assert.Equal(t, 5*time.Minute, th.SameWalletCooldown.D())
	assert.Equal(t, 20*time.Minute, th.MacroWindow.D())
	require.NoError(t, th.Validate())

	b := th.Behavior()
	assert.Equal(t, 5*time.Minute, b.Micro)
	assert.True(t, b.ExitUSD.Equal(decimal.NewFromInt(5000)))
}

func TestThresholdsValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Thresholds)
	}{
		{"score above 100", func(th *Thresholds) { th.HighScore = 101 }},
		{"low above high", func(th *Thresholds) { th.LowScore = 90 }},
		{"negative usd", func(th *Thresholds) { th.SpikeUSD = decimal.NewFromInt(-1) }},
		{"negative cooldown", func(th *Thresholds) { th.SameWalletCooldown = Duration(-time.Second) }},
		{"micro above macro", func(th *Thresholds) { th.MicroWindow = Duration(time.Hour) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			th := DefaultThresholds()
			tc.mutate(&th)
			assert.Error(t, th.Validate())
		})
	}

	th := DefaultThresholds()
	assert.NoError(t, th.Validate())
}

func TestPlansPolicy(t *testing.T) {
	p := DefaultPlans()
	require.NoError(t, p.Validate())

	assert.Equal(t, 3, p.Policy(model.PlanFree).MaxAlertsPerDay)
	assert.Equal(t, 10*time.Minute, p.Policy(model.PlanFree).Delay.D())
	assert.True(t, p.Policy(model.PlanPro).HighConfidenceOnly)
	assert.Equal(t, -1, p.Policy(model.PlanElite).MaxAlertsPerDay)
	assert.Equal(t, p.Free, p.Policy(model.Plan("enterprise")))

	p.Pro.MaxAlertsPerDay = -2
	assert.Error(t, p.Validate())
}

func TestLiveUpdate(t *testing.T) {
	live := NewLive(DefaultThresholds(), DefaultPlans())

	var seen []int
	live.OnUpdate(func(th Thresholds, _ Plans) { seen = append(seen, th.HighScore) })

	next := DefaultThresholds()
	next.HighScore = 95
	require.NoError(t, live.Update(next, DefaultPlans()))
	assert.Equal(t, 95, live.Thresholds().HighScore)

	bad := DefaultThresholds()
	bad.LowScore = 99
	assert.Error(t, live.Update(bad, DefaultPlans()))
	assert.Equal(t, 95, live.Thresholds().HighScore)
	assert.Equal(t, []int{95}, seen)
}
