package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestContextLoggerCarriesFields(t *testing.T) {
	assert.Same(t, Default(), LogFromContext(context.Background()))

	core, logs := observer.New(zap.InfoLevel)
	ctx := ContextWithLog(context.Background(), zap.New(core))
	ctx = ContextWith(ctx, FieldQueue("trade_created"))
	ctx = ContextWith(ctx, FieldTradeID("t1"))

	LogFromContext(ctx).Info("handled")

	entries := logs.FilterMessage("handled").All()
	require.Len(t, entries, 1)
	assert.Equal(t, map[string]interface{}{"queue": "trade_created", "trade_id": "t1"}, entries[0].ContextMap())
}

func TestContextWithLogIgnoresNil(t *testing.T) {
	ctx := ContextWithLog(context.Background(), nil)
	assert.Same(t, Default(), LogFromContext(ctx))
}
