package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/queue"
	"github.com/ninja0404/whale-signal/internal/source"
	"github.com/ninja0404/whale-signal/internal/stats"
	"github.com/ninja0404/whale-signal/internal/testutil"
)

type feed struct {
	trades chan *common.TradeIngested
	errs   chan error
}

func (f *feed) Start(context.Context) error { return nil }

func (f *feed) Stop() error {
	close(f.trades)
	close(f.errs)
	return nil
}

func (f *feed) Subscribe() <-chan *common.TradeIngested { return f.trades }
func (f *feed) Errors() <-chan error                    { return f.errs }
func (f *feed) String() string                          { return "feed" }
func (f *feed) IsInitialDataLoaded() bool               { return true }

type countingJob struct {
	runs atomic.Int64
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(context.Context) (int, error) {
	j.runs.Add(1)
	return 0, nil
}

func TestPipelineMovesTradesThroughStages(t *testing.T) {
	client, _ := testutil.NewRedis(t)
	q := queue.NewRedisQueue(client, queue.RedisOptions{PopTimeout: 50 * time.Millisecond, RetryBackoff: 5 * time.Millisecond})

	var (
		mu       sync.Mutex
		received []string
		stopped  atomic.Bool
	)
	forward := func(ctx context.Context, payload []byte) error {
		trade, err := common.DecodeEvent[common.TradeIngested](payload)
		if err != nil {
			return err
		}
		return queue.PublishEvent(ctx, q, "signals", trade.Wallet, trade)
	}
	record := func(_ context.Context, payload []byte) error {
		trade, err := common.DecodeEvent[common.TradeIngested](payload)
		if err != nil {
			return err
		}
		mu.Lock()
		received = append(received, trade.TradeID)
		mu.Unlock()
		return nil
	}

	p := NewPipeline(q)
	p.AddStage(Stage{Name: "forward", Queue: "trades", Workers: 1, Handler: forward})
	p.AddStage(Stage{Name: "record", Queue: "signals", Workers: 1, Handler: record, Stop: func() { stopped.Store(true) }})

	manager := source.NewManager(q, "trades")
	src := &feed{trades: make(chan *common.TradeIngested, 4), errs: make(chan error)}
	manager.AddSource(src)
	p.SetSourceManager(manager)

	job := &countingJob{}
	scheduler := stats.NewScheduler()
	scheduler.Add(job, time.Hour)
	p.SetScheduler(scheduler)

	assert.False(t, p.IsInitialDataLoaded())
	require.NoError(t, p.Start())
	assert.True(t, p.IsInitialDataLoaded())

	ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"t1", "t2"} {
		src.trades <- &common.TradeIngested{TradeID: id, Wallet: "0xw1", MarketID: "m1", Side: common.SideBuy, Timestamp: ts}
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(received) == 2
	}, 3*time.Second, 10*time.Millisecond)
	assert.Eventually(t, func() bool { return job.runs.Load() >= 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, p.Stop())
	assert.True(t, stopped.Load())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"t1", "t2"}, received)
}
