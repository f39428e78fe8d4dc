package queue

import (
	"context"
	"time"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

// Handler processes one payload. A DecodeError drops the message, any other error redelivers it.
type Handler func(ctx context.Context, payload []byte) error

// Queue durable FIFO with pop-and-remove hand off
type Queue interface {
	// Publish appends payload; key groups related messages where the backend supports it
	Publish(ctx context.Context, name, key string, payload []byte) error

	// Consume runs workers until ctx is done
	Consume(ctx context.Context, name string, workers int, h Handler) error

	Close() error
}

// Publisher publish side only, what producers depend on
type Publisher interface {
	Publish(ctx context.Context, name, key string, payload []byte) error
}

// PublishEvent encodes v as JSON and publishes it
func PublishEvent(ctx context.Context, p Publisher, name, key string, v any) error {
	data, err := common.EncodeEvent(v)
	if err != nil {
		return err
	}
	return p.Publish(ctx, name, key, data)
}

type outcome int

const (
	outcomeOK outcome = iota
	outcomeDropped
	outcomeRetry
)

// dispatch runs h with a queue scoped logger in ctx and classifies the result for the backend
func dispatch(ctx context.Context, name string, h Handler, payload []byte) outcome {
	ctx = logger.ContextWith(ctx, logger.FieldQueue(name))
	log := logger.LogFromContext(ctx)

	start := time.Now()
	err := h(ctx, payload)
	metrics.HandleLatency.WithLabelValues(name).Observe(float64(time.Since(start).Milliseconds()))

	switch {
	case err == nil:
		metrics.QueueMessages.WithLabelValues(name, "ok").Inc()
		return outcomeOK
	case common.IsDecodeError(err):
		metrics.QueueMessages.WithLabelValues(name, "dropped").Inc()
		log.Warn("⚠️ dropping malformed message",
			logger.FieldErr(err),
			logger.Int("size", len(payload)))
		return outcomeDropped
	default:
		metrics.QueueMessages.WithLabelValues(name, "retry").Inc()
		log.Error("❌ message handler failed, redelivering", logger.FieldErr(err))
		return outcomeRetry
	}
}
