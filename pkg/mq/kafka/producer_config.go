package kafka

import (
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

const (
	_  = iota
	KB = 1 << (10 * iota)
	MB = 1 << (10 * iota)
)

type KafkaProducerConfig struct {
	MessageMaxBytes   int    `json:"message_max_bytes" yaml:"message_max_bytes"`
	LingerMs          int    `json:"linger_ms" yaml:"linger_ms"`
	PartitionLingerMs int    `json:"partition_linger_ms" yaml:"partition_linger_ms"`
	RetryBackoffMs    int    `json:"retry_backoff_ms" yaml:"retry_backoff_ms"`
	RequiredAcks      string `json:"required_acks" yaml:"required_acks"`
	ClientID          string `json:"client_id" yaml:"client_id"`

	SecurityConfig
}

func newProducerConfig(brokers []string, cfg KafkaProducerConfig) (*kafka.ConfigMap, error) {
	var kafkaconf = &kafka.ConfigMap{
		"api.version.request":           "true",
		"message.max.bytes":             10 * MB,
		"linger.ms":                     5,
		"sticky.partitioning.linger.ms": 0,
		"retries":                       3,
		"retry.backoff.ms":              1000,
		"acks":                          "all",
		"enable.idempotence":            true,
		"compression.type":              "snappy",
	}
	if cfg.MessageMaxBytes != 0 {
		kafkaconf.SetKey("message.max.bytes", cfg.MessageMaxBytes)
	}
	if cfg.LingerMs != 0 {
		kafkaconf.SetKey("linger.ms", cfg.LingerMs)
	}
	if cfg.PartitionLingerMs != 0 {
		kafkaconf.SetKey("sticky.partitioning.linger.ms", cfg.PartitionLingerMs)
	}
	if cfg.RetryBackoffMs != 0 {
		kafkaconf.SetKey("retry.backoff.ms", cfg.RetryBackoffMs)
	}
	if cfg.RequiredAcks != "" {
		kafkaconf.SetKey("acks", cfg.RequiredAcks)
	}
	if cfg.ClientID != "" {
		kafkaconf.SetKey("client.id", cfg.ClientID+"_"+getClientID())
	}
	kafkaconf.SetKey("bootstrap.servers", strings.Join(brokers, ","))

	if err := applySecurity(kafkaconf, cfg.SecurityConfig); err != nil {
		return nil, err
	}
	return kafkaconf, nil
}
