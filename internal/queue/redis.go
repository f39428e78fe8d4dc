package queue

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

// RedisOptions tuning of the list backend
type RedisOptions struct {
	// PopTimeout bounds each BLPOP so workers notice shutdown
	PopTimeout time.Duration
	// RetryBackoff initial wait after a failed message, doubled up to MaxBackoff
	RetryBackoff time.Duration
	MaxBackoff   time.Duration
}

func (o RedisOptions) withDefaults() RedisOptions {
	if o.PopTimeout <= 0 {
		o.PopTimeout = 2 * time.Second
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 200 * time.Millisecond
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 10 * time.Second
	}
	return o
}

// RedisQueue lists as queues: RPUSH to publish, BLPOP to consume
type RedisQueue struct {
	client redis.UniversalClient
	opts   RedisOptions
	wg     sync.WaitGroup
}

func NewRedisQueue(client redis.UniversalClient, opts RedisOptions) *RedisQueue {
	return &RedisQueue{client: client, opts: opts.withDefaults()}
}

func (q *RedisQueue) Publish(ctx context.Context, name, _ string, payload []byte) error {
	if err := q.client.RPush(ctx, name, payload).Err(); err != nil {
		return errors.Wrapf(err, "rpush %s", name)
	}
	metrics.QueuePublished.WithLabelValues(name).Inc()
	return nil
}

func (q *RedisQueue) Consume(ctx context.Context, name string, workers int, h Handler) error {
	if workers <= 0 {
		workers = 1
	}
	logger.Info("🚀 redis queue consumer started",
		logger.FieldQueue(name),
		logger.Int("workers", workers))

	for i := 0; i < workers; i++ {
		q.wg.Add(1)
		go func(id int) {
			defer q.wg.Done()
			q.work(ctx, id, name, h)
		}(i)
	}
	<-ctx.Done()
	return nil
}

func (q *RedisQueue) work(ctx context.Context, id int, name string, h Handler) {
	backoff := q.opts.RetryBackoff
	for {
		if ctx.Err() != nil {
			return
		}

		res, err := q.client.BLPop(ctx, q.opts.PopTimeout, name).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Error("❌ blpop failed",
				logger.FieldQueue(name),
				logger.Int("worker_id", id),
				logger.FieldErr(err))
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff, q.opts.MaxBackoff)
			continue
		}

		// res is [key, value]
		payload := []byte(res[1])
		if dispatch(ctx, name, h, payload) != outcomeRetry {
			backoff = q.opts.RetryBackoff
			continue
		}

		// back to the head so ordering within the queue is kept
		pushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := q.client.LPush(pushCtx, name, payload).Err(); err != nil {
			logger.Error("❌ failed to push message back",
				logger.FieldQueue(name),
				logger.FieldErr(err),
				logger.ByteString("payload", payload))
		}
		cancel()
		if !sleep(ctx, backoff) {
			return
		}
		backoff = nextBackoff(backoff, q.opts.MaxBackoff)
	}
}

// Close waits for workers; callers cancel the Consume context first
func (q *RedisQueue) Close() error {
	q.wg.Wait()
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func nextBackoff(cur, max time.Duration) time.Duration {
	cur *= 2
	if cur > max {
		return max
	}
	return cur
}
