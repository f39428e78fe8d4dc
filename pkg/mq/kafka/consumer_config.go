package kafka

import (
	"strings"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

type KafkaConsumerConfig struct {
	Topics        []string `json:"topics" yaml:"topics"`
	OffsetInitial string   `json:"offset_initial" yaml:"offset_initial"`
	GroupId       string   `json:"group_id" yaml:"group_id"`
	ClientID      string   `json:"client_id" yaml:"client_id"`

	AutoCommitInterval int `json:"auto_commit_interval" yaml:"auto_commit_interval"`
	MaxPollInterval    int `json:"max_poll_interval" yaml:"max_poll_interval"`
	SessionTimeout     int `json:"session_timeout" yaml:"session_timeout"`
	HeartbeatInterval  int `json:"heartbeat_interval" yaml:"heartbeat_interval"`
	// ReadTimeout in milliseconds, bounds how long shutdown waits on a poll
	ReadTimeout int `json:"read_timeout" yaml:"read_timeout"`
	// RetryBackoff in milliseconds between redeliveries of a failed message
	RetryBackoff int `json:"retry_backoff" yaml:"retry_backoff"`

	SecurityConfig
}

func newConsumerConfig(brokers []string, cfg KafkaConsumerConfig) (*kafka.ConfigMap, error) {
	// offsets are committed per message after the handler succeeds
	var kafkaconf = &kafka.ConfigMap{
		"api.version.request":      "true",
		"auto.offset.reset":        "earliest",
		"enable.auto.commit":       false,
		"enable.auto.offset.store": false,
		"max.poll.interval.ms":     300000,
		"session.timeout.ms":       10000,
		"heartbeat.interval.ms":    3000,
	}

	kafkaconf.SetKey("group.id", cfg.GroupId)
	if cfg.ClientID != "" {
		kafkaconf.SetKey("client.id", cfg.ClientID+"_"+getClientID())
	}
	if cfg.OffsetInitial != "" {
		kafkaconf.SetKey("auto.offset.reset", cfg.OffsetInitial)
	}
	if cfg.MaxPollInterval > 0 {
		kafkaconf.SetKey("max.poll.interval.ms", cfg.MaxPollInterval)
	}
	if cfg.SessionTimeout > 0 {
		kafkaconf.SetKey("session.timeout.ms", cfg.SessionTimeout)
	}
	if cfg.HeartbeatInterval > 0 {
		kafkaconf.SetKey("heartbeat.interval.ms", cfg.HeartbeatInterval)
	}

	kafkaconf.SetKey("bootstrap.servers", strings.Join(brokers, ","))

	if err := applySecurity(kafkaconf, cfg.SecurityConfig); err != nil {
		return nil, err
	}
	return kafkaconf, nil
}
