package stats

import (
	"context"
	"sync"
	"time"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

// Runnable one batch job
type Runnable interface {
	Name() string
	Run(ctx context.Context) (int, error)
}

type entry struct {
	job      Runnable
	interval time.Duration
}

// Scheduler runs each job once at start and then on its own ticker. Jobs share nothing with
// the real-time writers.
type Scheduler struct {
	entries []entry
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{ctx: ctx, cancel: cancel}
}

// Add registers job; a non-positive interval disables it
func (s *Scheduler) Add(job Runnable, interval time.Duration) {
	if interval <= 0 {
		logger.Info("⏸️ batch job disabled", logger.String("job", job.Name()))
		return
	}
	s.entries = append(s.entries, entry{job: job, interval: interval})
}

func (s *Scheduler) Start() {
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.loop(e)
		logger.Info("⏰ batch job scheduled",
			logger.String("job", e.job.Name()),
			logger.String("interval", e.interval.String()))
	}
}

// Stop cancels running jobs and waits for them
func (s *Scheduler) Stop() {
	s.cancel()
	s.wg.Wait()
}

func (s *Scheduler) loop(e entry) {
	defer s.wg.Done()

	runJob(s.ctx, e.job.Name(), e.job.Run)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			runJob(s.ctx, e.job.Name(), e.job.Run)
		}
	}
}
