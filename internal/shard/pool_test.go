package shard

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSameKeyIsSerialized(t *testing.T) {
	p := NewPool("test", 4)
	defer p.Stop()

	var (
		mu      sync.Mutex
		running int
		maxSeen int
		counter int
		wg      sync.WaitGroup
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := p.Do(context.Background(), "wallet|market", func(ctx context.Context) error {
				mu.Lock()
				running++
				if running > maxSeen {
					maxSeen = running
				}
				mu.Unlock()

				// unsynchronized read-modify-write is safe under single-writer
				v := counter
				time.Sleep(100 * time.Microsecond)
				counter = v + 1

				mu.Lock()
				running--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
	assert.Equal(t, 1, maxSeen)
}

func TestDoReturnsTaskErrorAndRecoversPanic(t *testing.T) {
	p := NewPool("test", 2)
	defer p.Stop()

	err := p.Do(context.Background(), "k", func(ctx context.Context) error {
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	err = p.Do(context.Background(), "k", func(ctx context.Context) error {
		panic("boom")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	// the worker survives the panic
	assert.NoError(t, p.Do(context.Background(), "k", func(ctx context.Context) error { return nil }))
}

func TestDoAfterStop(t *testing.T) {
	p := NewPool("test", 1, WithQueueSize(0))
	p.Stop()
	err := p.Do(context.Background(), "k", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestTickerRunsOnWorker(t *testing.T) {
	ticks := make(chan int, 10)
	p := NewPool("test", 1, WithTicker(5*time.Millisecond, func(id int) {
		select {
		case ticks <- id:
		default:
		}
	}))
	defer p.Stop()

	select {
	case id := <-ticks:
		assert.Equal(t, 0, id)
	case <-time.After(time.Second):
		t.Fatal("ticker never fired")
	}
}

func TestWorkerForIsStable(t *testing.T) {
	p := NewPool("test", 8)
	defer p.Stop()
	assert.Equal(t, p.WorkerFor("0xabc|m1"), p.WorkerFor("0xabc|m1"))
	assert.Equal(t, 8, p.Size())
}
