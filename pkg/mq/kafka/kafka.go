package kafka

import (
	"fmt"
	"sync"

	"github.com/IBM/sarama"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

var (
	producers     = make(map[string]*KafkaProducer)
	consumers     = make(map[string]*KafkaConsumer)
	registryMutex sync.RWMutex

	startOnce sync.Once
)

// initKafka routes client library logging through the shared zap logger
func initKafka() {
	startOnce.Do(func() {
		sarama.Logger = NewLoggerKafka(logger.DefaultL1().Named("kafka-core"), LOGGER_INFO)
		sarama.DebugLogger = NewLoggerKafka(logger.DefaultL1().Named("kafka-core-debug"), LOGGER_DEBUG)
	})
}

func SetupNamedKafkaProducer(name string, brokers []string, cfg KafkaProducerConfig) (*KafkaProducer, error) {
	initKafka()
	producer, err := NewKafkaProducer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	registryMutex.Lock()
	producers[name] = producer
	registryMutex.Unlock()
	return producer, nil
}

func SetupNamedKafkaConsumer(name string, brokers []string, cfg KafkaConsumerConfig) (*KafkaConsumer, error) {
	initKafka()
	instance, err := NewKafkaConsumer(brokers, cfg)
	if err != nil {
		return nil, err
	}

	registryMutex.Lock()
	consumers[name] = instance
	registryMutex.Unlock()
	return instance, nil
}

func GetNamedConsumer(name string) *KafkaConsumer {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	return consumers[name]
}

func GetNamedProducer(name string) *KafkaProducer {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	return producers[name]
}

func CloseNamedConsumer(name string) error {
	registryMutex.Lock()
	consumer := consumers[name]
	delete(consumers, name)
	registryMutex.Unlock()

	if consumer == nil {
		return fmt.Errorf("named consumer %s does not exist", name)
	}
	return consumer.Close()
}

func CloseNamedProducer(name string) error {
	registryMutex.Lock()
	producer := producers[name]
	delete(producers, name)
	registryMutex.Unlock()

	if producer == nil {
		return fmt.Errorf("named producer %s does not exist", name)
	}
	return producer.Close()
}
