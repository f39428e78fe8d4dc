package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/kafka"
	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

type KafkaProducer struct {
	producer   *kafka.Producer
	eventsDone chan struct{}
}

func NewKafkaProducer(brokers []string, cfg KafkaProducerConfig) (*KafkaProducer, error) {
	config, err := newProducerConfig(brokers, cfg)
	if err != nil {
		return nil, err
	}
	producer, err := kafka.NewProducer(config)
	if err != nil {
		return nil, errors.Wrap(err, "new kafka producer")
	}

	p := &KafkaProducer{
		producer:   producer,
		eventsDone: make(chan struct{}),
	}

	// async delivery reports for messages produced without a delivery channel
	go func() {
		for event := range producer.Events() {
			switch ev := event.(type) {
			case *kafka.Message:
				if ev.TopicPartition.Error != nil {
					logger.Error("❌ kafka delivery failed",
						logger.FieldErr(ev.TopicPartition.Error),
						logger.String("topic", *ev.TopicPartition.Topic),
					)
				}
			case kafka.Error:
				logger.Error("❌ kafka producer error",
					logger.String("code", ev.Code().String()),
					logger.String("message", ev.Error()),
				)
			default:
				logger.Debug("kafka_event", logger.String("event", fmt.Sprintf("%T", ev)))
			}
		}
		close(p.eventsDone)
	}()

	return p, nil
}

func (p *KafkaProducer) SendMessage(topic string, value []byte) error {
	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
	}, nil)
}

// SendMessageWithKey keys the record so one key always lands on one partition
func (p *KafkaProducer) SendMessageWithKey(topic string, key string, value []byte) error {
	return p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
	}, nil)
}

// SendMessageSync waits for the broker acknowledgement or ctx
func (p *KafkaProducer) SendMessageSync(ctx context.Context, topic string, key string, value []byte) error {
	delivery := make(chan kafka.Event, 1)
	err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Key:            []byte(key),
		Value:          value,
	}, delivery)
	if err != nil {
		return errors.Wrap(err, "produce")
	}

	select {
	case ev := <-delivery:
		m, ok := ev.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %T", ev)
		}
		return m.TopicPartition.Error
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *KafkaProducer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		remaining := p.producer.Flush(5 * 1000)
		p.producer.Close()
		<-p.eventsDone
		if remaining > 0 {
			done <- fmt.Errorf("flush incomplete: %d messages remaining", remaining)
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrap(err, "close producer")
		}
		logger.Info("🛑 kafka producer closed")
		return nil
	case <-ctx.Done():
		return errors.New("close producer timeout after 10s")
	}
}
