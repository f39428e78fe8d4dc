package pipeline

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/internal/queue"
	"github.com/ninja0404/whale-signal/internal/source"
	"github.com/ninja0404/whale-signal/internal/stats"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

// Stage one consumer group of a durable queue
type Stage struct {
	Name    string
	Queue   string
	Workers int
	Handler queue.Handler
	// Stop runs after the queue stopped handing out messages, nil when the stage holds nothing
	Stop func()
}

// Pipeline wires the trade sources, the queue consuming stages and the batch jobs
type Pipeline struct {
	q       queue.Queue
	stages  []Stage
	sources *source.Manager
	jobs    *stats.Scheduler

	ctx       context.Context
	cancel    context.CancelFunc
	consumers sync.WaitGroup
	started   atomic.Bool
}

func NewPipeline(q queue.Queue) *Pipeline {
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		q:      q,
		ctx:    ctx,
		cancel: cancel,
	}
}

func (p *Pipeline) AddStage(stage Stage) {
	p.stages = append(p.stages, stage)
}

// SetSourceManager feeds upstream trades onto the trade queue
func (p *Pipeline) SetSourceManager(m *source.Manager) {
	p.sources = m
}

func (p *Pipeline) SetScheduler(s *stats.Scheduler) {
	p.jobs = s
}

// IsInitialDataLoaded true once every source finished its startup backfill
func (p *Pipeline) IsInitialDataLoaded() bool {
	if !p.started.Load() {
		return false
	}
	if p.sources == nil || p.sources.Len() == 0 {
		return true
	}
	return p.sources.IsInitialDataLoaded()
}

// Start consumers first so the backfill of the sources is drained as it arrives
func (p *Pipeline) Start() error {
	logger.Info("🚀 starting pipeline", logger.Int("stages", len(p.stages)))

	for _, stage := range p.stages {
		stage := stage
		p.consumers.Add(1)
		go func() {
			defer p.consumers.Done()
			if err := p.q.Consume(p.ctx, stage.Queue, stage.Workers, stage.Handler); err != nil {
				logger.Error("❌ stage consumer stopped",
					logger.String("stage", stage.Name),
					logger.FieldQueue(stage.Queue),
					logger.FieldErr(err))
			}
		}()
		logger.Info("✅ stage started",
			logger.String("stage", stage.Name),
			logger.FieldQueue(stage.Queue),
			logger.Int("workers", stage.Workers))
	}

	if p.jobs != nil {
		p.jobs.Start()
	}

	if p.sources != nil && p.sources.Len() > 0 {
		if err := p.sources.Start(); err != nil {
			return errors.Wrap(err, "start trade sources")
		}
	}

	p.started.Store(true)
	logger.Info("✅ pipeline started")
	return nil
}

// Stop drains the sources, then the stages, then the batch jobs
func (p *Pipeline) Stop() error {
	logger.Info("🛑 stopping pipeline")
	var merr *multierror.Error

	if p.sources != nil && p.sources.Len() > 0 {
		if err := p.sources.Stop(); err != nil {
			merr = multierror.Append(merr, errors.Wrap(err, "stop trade sources"))
		}
	}

	p.cancel()
	p.consumers.Wait()
	if err := p.q.Close(); err != nil {
		merr = multierror.Append(merr, errors.Wrap(err, "close queue"))
	}

	for _, stage := range p.stages {
		if stage.Stop != nil {
			stage.Stop()
		}
	}

	if p.jobs != nil {
		p.jobs.Stop()
	}

	logger.Info("✅ pipeline stopped")
	return merr.ErrorOrNil()
}
