package kafka

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

// MessageHandler processes one record; a non-nil error redelivers the same record
type MessageHandler func(ctx context.Context, key, value []byte) error

type KafkaConsumer struct {
	consumer     *kafka.Consumer
	topics       []string
	groupId      string
	readTimeout  time.Duration
	retryBackoff time.Duration

	handlers map[string]MessageHandler

	started atomic.Bool
	closed  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
}

func NewKafkaConsumer(brokers []string, cfg KafkaConsumerConfig) (*KafkaConsumer, error) {
	config, err := newConsumerConfig(brokers, cfg)
	if err != nil {
		return nil, err
	}
	consumer, err := kafka.NewConsumer(config)
	if err != nil {
		return nil, errors.Wrap(err, "new kafka consumer")
	}

	readTimeout := time.Duration(cfg.ReadTimeout) * time.Millisecond
	if readTimeout <= 0 {
		readTimeout = time.Second
	}
	retryBackoff := time.Duration(cfg.RetryBackoff) * time.Millisecond
	if retryBackoff <= 0 {
		retryBackoff = time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &KafkaConsumer{
		consumer:     consumer,
		topics:       cfg.Topics,
		groupId:      cfg.GroupId,
		readTimeout:  readTimeout,
		retryBackoff: retryBackoff,
		closed:       make(chan struct{}),
		handlers:     make(map[string]MessageHandler),
		ctx:          ctx,
		cancel:       cancel,
	}, nil
}

func (kc *KafkaConsumer) RegisterTopicHandler(t string, h MessageHandler) error {
	for _, topic := range kc.topics {
		if topic == t {
			kc.handlers[t] = h
			return nil
		}
	}
	return fmt.Errorf("topic %s not in consumer list", t)
}

// Close stops the read loop, waits for the in-flight message and leaves the group
func (kc *KafkaConsumer) Close() error {
	kc.cancel()
	if kc.started.Load() {
		<-kc.closed
	}
	if err := kc.consumer.Close(); err != nil {
		return errors.Wrap(err, "close consumer")
	}

	logger.Info("🛑 kafka consumer closed", logger.String("group", kc.groupId))
	return nil
}

func (kc *KafkaConsumer) Start() error {
	if err := kc.consumer.SubscribeTopics(kc.topics, nil); err != nil {
		return errors.Wrap(err, "subscribe topics")
	}

	if kc.started.CompareAndSwap(false, true) {
		go kc.run()
	}
	return nil
}

func (kc *KafkaConsumer) run() {
	defer close(kc.closed)

	for {
		select {
		case <-kc.ctx.Done():
			return
		default:
		}

		msg, err := kc.consumer.ReadMessage(kc.readTimeout)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			logger.Error("❌ kafka consumer read message error", logger.FieldErr(err))
			continue
		}

		topic := *msg.TopicPartition.Topic
		h, ok := kc.handlers[topic]
		if !ok {
			logger.Warn("⚠️ kafka consumer no handler for topic", logger.String("topic", topic))
			continue
		}

		if !kc.handleWithRetry(h, msg) {
			return
		}
		if _, cErr := kc.consumer.CommitMessage(msg); cErr != nil {
			logger.Error("❌ commit offset error", logger.FieldErr(cErr), logger.String("topic", topic))
		}
	}
}

// handleWithRetry keeps redelivering msg until the handler succeeds; false means shutdown
func (kc *KafkaConsumer) handleWithRetry(h MessageHandler, msg *kafka.Message) bool {
	for {
		err := kc.safeHandle(h, msg)
		if err == nil {
			return true
		}
		logger.Error("❌ kafka message handler error",
			logger.FieldErr(err),
			logger.String("topic", *msg.TopicPartition.Topic),
			logger.String("offset", msg.TopicPartition.Offset.String()),
		)

		select {
		case <-kc.ctx.Done():
			return false
		case <-time.After(kc.retryBackoff):
		}
	}
}

func (kc *KafkaConsumer) safeHandle(h MessageHandler, msg *kafka.Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovery from kafka message handler",
				logger.String("topic", *msg.TopicPartition.Topic),
				logger.Int32("partition", msg.TopicPartition.Partition),
				logger.String("offset", msg.TopicPartition.Offset.String()),
				logger.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("panic in message handler: %v", r)
		}
	}()
	return h(kc.ctx, msg.Key, msg.Value)
}
