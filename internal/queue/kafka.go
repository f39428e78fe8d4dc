package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/internal/metrics"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/mq/kafka"
)

// KafkaQueue topics as queues; consumer groups hand each record to one member
type KafkaQueue struct {
	brokers  []string
	producer *kafka.KafkaProducer
	consumer kafka.KafkaConsumerConfig

	mu        sync.Mutex
	consumers []string
}

func NewKafkaQueue(brokers []string, producerCfg kafka.KafkaProducerConfig, consumerCfg kafka.KafkaConsumerConfig) (*KafkaQueue, error) {
	producer, err := kafka.SetupNamedKafkaProducer("queue", brokers, producerCfg)
	if err != nil {
		return nil, errors.Wrap(err, "setup queue producer")
	}
	return &KafkaQueue{
		brokers:  brokers,
		producer: producer,
		consumer: consumerCfg,
	}, nil
}

func (q *KafkaQueue) Publish(ctx context.Context, name, key string, payload []byte) error {
	if err := q.producer.SendMessageSync(ctx, name, key, payload); err != nil {
		return errors.Wrapf(err, "produce %s", name)
	}
	metrics.QueuePublished.WithLabelValues(name).Inc()
	return nil
}

// Consume joins workers members of the "<group>-<queue>" group; partitions bound the parallelism
func (q *KafkaQueue) Consume(ctx context.Context, name string, workers int, h Handler) error {
	if workers <= 0 {
		workers = 1
	}
	cfg := q.consumer
	cfg.Topics = []string{name}
	cfg.GroupId = fmt.Sprintf("%s-%s", q.consumer.GroupId, name)

	handler := func(ctx context.Context, _ []byte, value []byte) error {
		if dispatch(ctx, name, h, value) == outcomeRetry {
			return errors.New("handler failed")
		}
		return nil
	}

	for i := 0; i < workers; i++ {
		member := fmt.Sprintf("%s-%d", name, i)
		c, err := kafka.SetupNamedKafkaConsumer(member, q.brokers, cfg)
		if err != nil {
			return errors.Wrapf(err, "setup consumer %s", member)
		}
		if err := c.RegisterTopicHandler(name, handler); err != nil {
			return err
		}
		if err := c.Start(); err != nil {
			return errors.Wrapf(err, "start consumer %s", member)
		}
		q.mu.Lock()
		q.consumers = append(q.consumers, member)
		q.mu.Unlock()
	}
	logger.Info("🚀 kafka queue consumer started",
		logger.FieldQueue(name),
		logger.String("group", cfg.GroupId),
		logger.Int("workers", workers))

	<-ctx.Done()
	return nil
}

func (q *KafkaQueue) Close() error {
	var merr error

	q.mu.Lock()
	members := q.consumers
	q.consumers = nil
	q.mu.Unlock()

	for _, member := range members {
		if err := kafka.CloseNamedConsumer(member); err != nil {
			merr = multierror.Append(merr, err)
		}
	}
	if err := kafka.CloseNamedProducer("queue"); err != nil {
		merr = multierror.Append(merr, err)
	}
	return merr
}
