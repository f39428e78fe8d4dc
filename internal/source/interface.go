package source

import (
	"context"
	"sync"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/queue"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

// TradeSource upstream trade feed
type TradeSource interface {
	Start(ctx context.Context) error

	// Stop ends the feed; its channels are closed once Stop returns
	Stop() error

	Subscribe() <-chan *common.TradeIngested

	Errors() <-chan error

	String() string

	// IsInitialDataLoaded true once the startup backfill is done
	IsInitialDataLoaded() bool
}

// Manager fans every source into the trade queue
type Manager struct {
	sources   []TradeSource
	tradeChan chan *common.TradeIngested
	pub       queue.Publisher
	queueName string
	ctx       context.Context
	cancel    context.CancelFunc
	listeners sync.WaitGroup
	publisher sync.WaitGroup
}

func NewManager(pub queue.Publisher, queueName string) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sources:   make([]TradeSource, 0),
		tradeChan: make(chan *common.TradeIngested, 10_000),
		pub:       pub,
		queueName: queueName,
		ctx:       ctx,
		cancel:    cancel,
	}
}

func (m *Manager) AddSource(source TradeSource) {
	m.sources = append(m.sources, source)
}

func (m *Manager) Len() int {
	return len(m.sources)
}

func (m *Manager) Start() error {
	m.publisher.Add(1)
	go m.publishLoop()

	for _, source := range m.sources {
		if err := source.Start(m.ctx); err != nil {
			return err
		}
		m.listeners.Add(1)
		go m.listenSource(source)
	}
	return nil
}

// Stop stops every source, then drains what was already read onto the queue
func (m *Manager) Stop() error {
	for _, source := range m.sources {
		if err := source.Stop(); err != nil {
			logger.Error("❌ stop trade source failed", logger.String("source", source.String()), logger.FieldErr(err))
		}
	}
	m.listeners.Wait()
	close(m.tradeChan)
	m.publisher.Wait()
	m.cancel()
	return nil
}

// IsInitialDataLoaded true when every source finished its backfill
func (m *Manager) IsInitialDataLoaded() bool {
	for _, source := range m.sources {
		if !source.IsInitialDataLoaded() {
			return false
		}
	}
	return len(m.sources) > 0
}

func (m *Manager) listenSource(source TradeSource) {
	defer m.listeners.Done()
	tradeChan := source.Subscribe()
	errChan := source.Errors()

	for tradeChan != nil || errChan != nil {
		select {
		case trade, ok := <-tradeChan:
			if !ok {
				tradeChan = nil
				continue
			}
			m.tradeChan <- trade
		case err, ok := <-errChan:
			if !ok {
				errChan = nil
				continue
			}
			logger.Error("❌ trade source error", logger.String("source", source.String()), logger.FieldErr(err))
		}
	}
}

func (m *Manager) publishLoop() {
	defer m.publisher.Done()
	for trade := range m.tradeChan {
		err := utils.Retry(m.ctx, utils.DefaultRetry, func(ctx context.Context) error {
			return queue.PublishEvent(ctx, m.pub, m.queueName, trade.Wallet, trade)
		})
		if err != nil {
			logger.Error("❌ publish trade failed",
				logger.FieldTradeID(trade.TradeID),
				logger.FieldQueue(m.queueName),
				logger.FieldErr(err))
		}
	}
}
