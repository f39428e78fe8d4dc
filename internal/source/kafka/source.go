package kafka

import (
	"context"
	"fmt"

	"github.com/ninja0404/whale-signal/internal/common"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/mq/kafka"
)

// Source consumes normalized TradeIngested records from an upstream topic
type Source struct {
	tradeChan    chan *common.TradeIngested
	errChan      chan error
	ctx          context.Context
	cancel       context.CancelFunc
	config       SourceConfig
	consumerName string
}

type SourceConfig struct {
	Topic       string
	Brokers     []string
	KafkaConfig kafka.KafkaConsumerConfig
}

func NewSource(config SourceConfig) *Source {
	ctx, cancel := context.WithCancel(context.Background())

	return &Source{
		tradeChan:    make(chan *common.TradeIngested, 1000),
		errChan:      make(chan error, 100),
		ctx:          ctx,
		cancel:       cancel,
		config:       config,
		consumerName: fmt.Sprintf("whale-signal-source-%s", config.KafkaConfig.GroupId),
	}
}

func (s *Source) Start(ctx context.Context) error {
	kafkaConfig := s.config.KafkaConfig
	kafkaConfig.Topics = []string{s.config.Topic}

	consumer, err := kafka.SetupNamedKafkaConsumer(s.consumerName, s.config.Brokers, kafkaConfig)
	if err != nil {
		return fmt.Errorf("setup kafka consumer: %w", err)
	}
	if err := consumer.RegisterTopicHandler(s.config.Topic, s.handleMessage); err != nil {
		return fmt.Errorf("register topic handler: %w", err)
	}
	if err := consumer.Start(); err != nil {
		return fmt.Errorf("start kafka consumer: %w", err)
	}

	logger.Info("✅ kafka trade source started",
		logger.String("topic", s.config.Topic),
		logger.String("group_id", s.config.KafkaConfig.GroupId))
	return nil
}

// Stop closes the consumer first so no handler is left writing to the channels
func (s *Source) Stop() error {
	logger.Info("🛑 stopping kafka trade source")
	s.cancel()

	if err := kafka.CloseNamedConsumer(s.consumerName); err != nil {
		logger.Error("❌ close kafka consumer failed", logger.FieldErr(err))
	}

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

// IsInitialDataLoaded the topic has no backfill phase
func (s *Source) IsInitialDataLoaded() bool {
	return true
}

// handleMessage malformed records are reported and skipped, never retried
func (s *Source) handleMessage(ctx context.Context, _ []byte, data []byte) error {
	select {
	case <-s.ctx.Done():
		return fmt.Errorf("source stopped")
	default:
	}

	trade, err := common.DecodeEvent[common.TradeIngested](data)
	if err != nil {
		select {
		case s.errChan <- err:
		default:
		}
		return nil
	}

	select {
	case s.tradeChan <- trade:
		logger.Debug("📨 trade received",
			logger.FieldTradeID(trade.TradeID),
			logger.FieldWallet(trade.Wallet))
		return nil
	case <-s.ctx.Done():
		return fmt.Errorf("source stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Source) String() string {
	return fmt.Sprintf("kafka(%s)", s.config.Topic)
}
