package fanout

import (
	"context"
	"sync"
	"time"

	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

// Scheduler deferred tasks cancelled together on Stop. A task that has not fired by then
// never runs; a task already running sees its context cancelled.
type Scheduler struct {
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	pending int
	stopped bool
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Schedule runs fn after delay; false once the scheduler is stopped
func (s *Scheduler) Schedule(delay time.Duration, fn func(ctx context.Context)) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	s.pending++
	s.wg.Add(1)
	s.mu.Unlock()
	metrics.ScheduledPending.Inc()

	go func() {
		defer s.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-s.ctx.Done():
			s.done()
			return
		case <-timer.C:
		}
		s.done()
		fn(s.ctx)
	}()
	return true
}

func (s *Scheduler) done() {
	s.mu.Lock()
	s.pending--
	s.mu.Unlock()
	metrics.ScheduledPending.Dec()
}

// Pending tasks waiting for their delay
func (s *Scheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending
}

// Stop cancels every pending task and waits for running ones
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.stopped = true
	pending := s.pending
	s.mu.Unlock()

	if pending > 0 {
		logger.Info("🛑 cancelling scheduled sends", logger.Int("pending", pending))
	}
	s.cancel()
	s.wg.Wait()
}
