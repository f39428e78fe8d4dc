package logger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestSplitSentryFields(t *testing.T) {
	extras, tags := splitSentryFields([]zapcore.Field{
		FieldWallet("0xabc"),
		FieldMarket("m1"),
		FieldQueue(""),
		FieldErr(errors.New("boom")),
		Int("recipients", 3),
		Duration("delay", time.Minute),
	})

	assert.Equal(t, map[string]string{"wallet": "0xabc", "market_id": "m1"}, tags)
	assert.Equal(t, "boom", extras["error"])
	assert.Equal(t, int64(3), extras["recipients"])
	assert.Equal(t, time.Minute, extras["delay"])
	assert.Equal(t, "", extras["queue"])
}

func TestSentryLevel(t *testing.T) {
	assert.Equal(t, "error", string(sentryLevel(zapcore.ErrorLevel)))
	assert.Equal(t, "warning", string(sentryLevel(zapcore.WarnLevel)))
	assert.Equal(t, "fatal", string(sentryLevel(zapcore.PanicLevel)))
}

func TestSentryEnvironmentFollowsEnv(t *testing.T) {
	t.Setenv("WHALE_ENV", "PROD")
	assert.Equal(t, "PROD", defaultConfig().Environment)
}
