package shard

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// ErrStopped returned by Do once the pool has been stopped
var ErrStopped = errors.New("shard pool stopped")

type task struct {
	ctx  context.Context
	fn   func(ctx context.Context) error
	done chan error
}

// worker owns every key hashed onto it; tasks run strictly one after another
type worker struct {
	id    int
	tasks chan *task
}

func (w *worker) run(stop <-chan struct{}, onTick func(id int), tick time.Duration, wg *sync.WaitGroup) {
	defer wg.Done()

	var tickC <-chan time.Time
	if onTick != nil && tick > 0 {
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		select {
		case <-stop:
			return
		case t := <-w.tasks:
			t.done <- w.exec(t)
		case <-tickC:
			onTick(w.id)
		}
	}
}

func (w *worker) exec(t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("❌ shard task panic",
				logger.Int("worker_id", w.id),
				logger.Any("panic", r),
				logger.FieldStack(utils.GetStack()))
			err = fmt.Errorf("shard task panic: %v", r)
		}
	}()
	if t.ctx.Err() != nil {
		return t.ctx.Err()
	}
	return t.fn(t.ctx)
}

// Pool single-writer executor: tasks of one key always run on the same worker
type Pool struct {
	name    string
	workers []*worker
	stop    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

// Option tunes a Pool
type Option func(*options)

type options struct {
	queueSize int
	tick      time.Duration
	onTick    func(id int)
}

// WithQueueSize buffered tasks per worker
func WithQueueSize(n int) Option {
	return func(o *options) { o.queueSize = n }
}

// WithTicker runs fn on each worker goroutine every interval, serialized with its tasks
func WithTicker(interval time.Duration, fn func(id int)) Option {
	return func(o *options) {
		o.tick = interval
		o.onTick = fn
	}
}

// NewPool starts n workers
func NewPool(name string, n int, opts ...Option) *Pool {
	if n <= 0 {
		n = 1
	}
	o := &options{queueSize: 100}
	for _, opt := range opts {
		opt(o)
	}

	p := &Pool{
		name:    name,
		workers: make([]*worker, n),
		stop:    make(chan struct{}),
	}
	for i := 0; i < n; i++ {
		p.workers[i] = &worker{id: i, tasks: make(chan *task, o.queueSize)}
		p.wg.Add(1)
		go p.workers[i].run(p.stop, o.onTick, o.tick, &p.wg)
	}

	logger.Info("🎯 shard pool started",
		logger.String("pool", name),
		logger.Int("worker_count", n))
	return p
}

// Size number of workers
func (p *Pool) Size() int {
	return len(p.workers)
}

// WorkerFor index of the worker owning key
func (p *Pool) WorkerFor(key string) int {
	return utils.ShardIndex(key, len(p.workers))
}

// Do runs fn on the worker owning key and waits for its result
func (p *Pool) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	w := p.workers[p.WorkerFor(key)]
	t := &task{ctx: ctx, fn: fn, done: make(chan error, 1)}

	select {
	case w.tasks <- t:
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stop:
		return ErrStopped
	}

	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stop:
		return ErrStopped
	}
}

// Stop ends all workers after their current task
func (p *Pool) Stop() {
	p.once.Do(func() {
		logger.Info("🛑 stopping shard pool", logger.String("pool", p.name))
		close(p.stop)
		p.wg.Wait()
	})
}
