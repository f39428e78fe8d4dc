package utils

import (
	"context"
	"time"
)

type RetryOptions struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

var DefaultRetry = RetryOptions{Attempts: 3, Initial: 200 * time.Millisecond, Max: 2 * time.Second}

// Retry runs fn until it succeeds, attempts run out or ctx is done; the last error is returned
func Retry(ctx context.Context, opts RetryOptions, fn func(ctx context.Context) error) error {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	backoff := opts.Initial
	var err error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == opts.Attempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
		if opts.Max > 0 && backoff > opts.Max {
			backoff = opts.Max
		}
	}
	return err
}
