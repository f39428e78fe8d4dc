package database

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/internal/model"
	"github.com/ninja0404/whale-signal/internal/repo"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

// Source polls trades_raw by increasing id
type Source struct {
	tradeChan chan *common.TradeIngested
	errChan   chan error
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	config    SourceConfig
	repo      repo.TradeRawRepo
	lastId    uint64
	loaded    atomic.Bool
}

type SourceConfig struct {
	QueryInterval time.Duration
	// InitWindow how far back the first run replays
	InitWindow time.Duration
	BatchSize  int
}

func NewSource(config SourceConfig, tradeRepo repo.TradeRawRepo) *Source {
	if config.BatchSize <= 0 {
		config.BatchSize = 500
	}
	if config.QueryInterval <= 0 {
		config.QueryInterval = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &Source{
		tradeChan: make(chan *common.TradeIngested, 10000),
		errChan:   make(chan error, 100),
		ctx:       ctx,
		cancel:    cancel,
		config:    config,
		repo:      tradeRepo,
	}
}

func (s *Source) Start(ctx context.Context) error {
	logger.Info("🗄️ starting database trade source",
		logger.String("query_interval", s.config.QueryInterval.String()),
		logger.String("init_window", s.config.InitWindow.String()),
		logger.Int("batch_size", s.config.BatchSize))

	s.wg.Add(1)
	go s.startPolling()
	return nil
}

func (s *Source) Stop() error {
	logger.Info("🛑 stopping database trade source")
	s.cancel()
	s.wg.Wait()

	close(s.tradeChan)
	close(s.errChan)
	return nil
}

func (s *Source) Subscribe() <-chan *common.TradeIngested {
	return s.tradeChan
}

func (s *Source) Errors() <-chan error {
	return s.errChan
}

func (s *Source) String() string {
	return "database"
}

func (s *Source) IsInitialDataLoaded() bool {
	return s.loaded.Load()
}

func (s *Source) startPolling() {
	defer s.wg.Done()

	s.performInitialQuery()

	ticker := time.NewTicker(s.config.QueryInterval)
	defer ticker.Stop()

	totalProcessed := int64(0)
	lastStatsTime := time.Now()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			n, err := s.poll()
			if err != nil {
				s.sendError(fmt.Errorf("poll trades after %d: %w", s.lastId, err))
				continue
			}
			totalProcessed += int64(n)

			if time.Since(lastStatsTime) >= 30*time.Second {
				logger.Info("📊 database source stats",
					logger.Int64("total_processed", totalProcessed),
					logger.Uint64("last_id", s.lastId))
				lastStatsTime = time.Now()
			}
		}
	}
}

// poll drains everything after lastId in batches
func (s *Source) poll() (int, error) {
	processed := 0
	for {
		trades, err := s.repo.GetTradesAfterId(s.ctx, s.lastId, s.config.BatchSize)
		if err != nil {
			return processed, err
		}
		for _, raw := range trades {
			if trade := convertTrade(raw); trade != nil {
				if !s.sendTrade(trade) {
					return processed, nil
				}
				processed++
			}
			s.lastId = raw.ID
		}
		if len(trades) < s.config.BatchSize {
			return processed, nil
		}
	}
}

// performInitialQuery replays the init window, or starts from the tail when the window is zero
func (s *Source) performInitialQuery() {
	defer s.loaded.Store(true)

	if s.config.InitWindow <= 0 {
		maxId, err := s.repo.GetMaxId(s.ctx)
		if err != nil {
			s.sendError(fmt.Errorf("get max id: %w", err))
			return
		}
		s.lastId = maxId
		return
	}

	since := time.Now().UTC().Add(-s.config.InitWindow)
	startId, err := s.repo.GetMinIdSince(s.ctx, since)
	if err != nil {
		s.sendError(fmt.Errorf("get start id: %w", err))
		return
	}
	if startId == 0 {
		maxId, err := s.repo.GetMaxId(s.ctx)
		if err != nil {
			s.sendError(fmt.Errorf("get max id: %w", err))
			return
		}
		s.lastId = maxId
		logger.Info("📭 no trades inside the init window")
		return
	}

	s.lastId = startId - 1
	n, err := s.poll()
	if err != nil {
		s.sendError(fmt.Errorf("initial query: %w", err))
	}
	logger.Info("✅ initial trade replay done",
		logger.Int("total_processed", n),
		logger.Uint64("start_id", startId),
		logger.Uint64("last_id", s.lastId))
}

// convertTrade nil for sides the pipeline does not understand
func convertTrade(raw *model.TradeRaw) *common.TradeIngested {
	side := common.Side(strings.ToLower(strings.TrimSpace(string(raw.Side))))
	if side != common.SideBuy && side != common.SideSell {
		return nil
	}
	if raw.Amount.IsNegative() || raw.Price.IsNegative() {
		return nil
	}

	return &common.TradeIngested{
		TradeID:   raw.TradeID,
		Wallet:    raw.Wallet,
		MarketID:  raw.MarketID,
		Side:      side,
		Amount:    raw.Amount,
		Price:     raw.Price,
		Timestamp: raw.Timestamp,
	}
}

func (s *Source) sendTrade(trade *common.TradeIngested) bool {
	select {
	case s.tradeChan <- trade:
		return true
	case <-s.ctx.Done():
		return false
	}
}

func (s *Source) sendError(err error) {
	select {
	case s.errChan <- err:
	case <-s.ctx.Done():
	}
}
