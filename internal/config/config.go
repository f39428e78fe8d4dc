package config

import (
	"time"

	"github.com/pkg/errors"

	"github.com/ninja0404/whale-signal/pkg/cache/redis"
	"github.com/ninja0404/whale-signal/pkg/config"
	"github.com/ninja0404/whale-signal/pkg/config/source"
	"github.com/ninja0404/whale-signal/pkg/config/source/file"
	"github.com/ninja0404/whale-signal/pkg/config/source/mse"
	"github.com/ninja0404/whale-signal/pkg/database/polardbx"
	"github.com/ninja0404/whale-signal/pkg/logger"
	"github.com/ninja0404/whale-signal/pkg/mq/kafka"
)

// AppConfig whole service configuration
type AppConfig struct {
	Mysql      polardbx.MysqlConfig `yaml:"mysql" json:"mysql"`
	Redis      redis.RedisConfig    `yaml:"redis" json:"redis"`
	Kafka      KafkaConfig          `yaml:"kafka" json:"kafka"`
	Queue      QueueConfig          `yaml:"queue" json:"queue"`
	Source     SourceConfig         `yaml:"source" json:"source"`
	Server     ServerConfig         `yaml:"server" json:"server"`
	Pipeline   PipelineConfig       `yaml:"pipeline" json:"pipeline"`
	Market     MarketConfig         `yaml:"market" json:"market"`
	Stats      StatsConfig          `yaml:"stats" json:"stats"`
	Notifier   NotifierConfig       `yaml:"notifier" json:"notifier"`
	Thresholds Thresholds           `yaml:"thresholds" json:"thresholds"`
	Plans      Plans                `yaml:"plans" json:"plans"`
}

type KafkaConfig struct {
	Brokers  []string                  `yaml:"brokers" json:"brokers"`
	Producer kafka.KafkaProducerConfig `yaml:"producer" json:"producer"`
	Consumer kafka.KafkaConsumerConfig `yaml:"consumer" json:"consumer"`
}

// QueueConfig backend "redis" (lists) or "kafka" (topics) plus queue names
type QueueConfig struct {
	Backend      string   `yaml:"backend" json:"backend"`
	TradeCreated string   `yaml:"trade_created" json:"trade_created"`
	WhaleTrade   string   `yaml:"whale_trade_created" json:"whale_trade_created"`
	AlertCreated string   `yaml:"alert_created" json:"alert_created"`
	PopTimeout   Duration `yaml:"pop_timeout" json:"pop_timeout"`
	RetryBackoff Duration `yaml:"retry_backoff" json:"retry_backoff"`
}

// SourceConfig upstream trade feeds bridged onto the trade queue
type SourceConfig struct {
	Database DatabaseSourceConfig `yaml:"database" json:"database"`
	Kafka    KafkaSourceConfig    `yaml:"kafka" json:"kafka"`
}

// DatabaseSourceConfig polls trades_raw by id
type DatabaseSourceConfig struct {
	Enabled       bool     `yaml:"enabled" json:"enabled"`
	QueryInterval Duration `yaml:"query_interval" json:"query_interval"`
	InitWindow    Duration `yaml:"init_window" json:"init_window"`
	BatchSize     int      `yaml:"batch_size" json:"batch_size"`
}

// KafkaSourceConfig consumes normalized trades from an upstream topic
type KafkaSourceConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Topic   string `yaml:"topic" json:"topic"`
	GroupId string `yaml:"group_id" json:"group_id"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// PipelineConfig worker counts per stage
type PipelineConfig struct {
	WhaleWorkers    int  `yaml:"whale_workers" json:"whale_workers"`
	WhaleShards     int  `yaml:"whale_shards" json:"whale_shards"`
	AlertWorkers    int  `yaml:"alert_workers" json:"alert_workers"`
	FanoutWorkers   int  `yaml:"fanout_workers" json:"fanout_workers"`
	FanoutParallel  int  `yaml:"fanout_parallel" json:"fanout_parallel"`
	EnableWhale     bool `yaml:"enable_whale" json:"enable_whale"`
	EnableAlert     bool `yaml:"enable_alert" json:"enable_alert"`
	EnableFanout    bool `yaml:"enable_fanout" json:"enable_fanout"`
	EnableStatsJobs bool `yaml:"enable_stats_jobs" json:"enable_stats_jobs"`
}

// MarketConfig external market metadata lookup
type MarketConfig struct {
	BaseURL  string   `yaml:"base_url" json:"base_url"`
	Timeout  Duration `yaml:"timeout" json:"timeout"`
	Attempts int      `yaml:"attempts" json:"attempts"`
	CacheTTL Duration `yaml:"cache_ttl" json:"cache_ttl"`
}

// StatsConfig batch job schedule
type StatsConfig struct {
	Interval      Duration `yaml:"interval" json:"interval"`
	SmartInterval Duration `yaml:"smart_interval" json:"smart_interval"`
	ActiveWindow  Duration `yaml:"active_window" json:"active_window"`
}

// NotifierConfig messaging channel settings
type NotifierConfig struct {
	TelegramToken   string   `yaml:"telegram_token" json:"telegram_token"`
	TelegramBaseURL string   `yaml:"telegram_base_url" json:"telegram_base_url"`
	LarkWebhookURL  string   `yaml:"lark_webhook_url" json:"lark_webhook_url"`
	Timeout         Duration `yaml:"timeout" json:"timeout"`

	// OperatorRecipient always unioned into every fanout, "lark:" prefixed ids go to the webhook
	OperatorRecipient string `yaml:"operator_recipient" json:"operator_recipient"`
	TagSecret         string `yaml:"tag_secret" json:"tag_secret"`
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Queue: QueueConfig{
			Backend:      "redis",
			TradeCreated: "trade_created",
			WhaleTrade:   "whale_trade_created",
			AlertCreated: "alert_created",
		},
		Source: SourceConfig{
			Database: DatabaseSourceConfig{QueryInterval: Duration(2 * time.Second), InitWindow: Duration(5 * time.Minute), BatchSize: 500},
		},
		Server: ServerConfig{Addr: ":8080"},
		Pipeline: PipelineConfig{
			WhaleWorkers: 4, WhaleShards: 8,
			AlertWorkers: 2,
			FanoutWorkers: 2, FanoutParallel: 8,
			EnableWhale: true, EnableAlert: true, EnableFanout: true, EnableStatsJobs: true,
		},
		Market: MarketConfig{Timeout: Duration(5 * time.Second), Attempts: 3, CacheTTL: Duration(24 * time.Hour)},
		Stats: StatsConfig{
			Interval:      Duration(time.Hour),
			SmartInterval: Duration(6 * time.Hour),
			ActiveWindow:  Duration(30 * 24 * time.Hour),
		},
		Notifier: NotifierConfig{
			TelegramBaseURL: "https://api.telegram.org",
			Timeout:         Duration(10 * time.Second),
		},
		Thresholds: DefaultThresholds(),
		Plans:      DefaultPlans(),
	}
}

// Manager loads the configuration document and keeps the live thresholds current
type Manager struct {
	config *AppConfig
	live   *Live
}

func NewManager() *Manager {
	return &Manager{}
}

// Load reads the yaml file; with remote set the Nacos/MSE document is merged on top
func (m *Manager) Load(configPath string, remote bool) error {
	sources := []source.Source{
		file.NewSource(
			file.WithPath(configPath),
			source.WithFormat("yaml"),
		),
	}
	if remote {
		src, err := mse.NewSource(source.WithFormat("yaml"))
		if err != nil {
			return errors.Wrap(err, "remote config source")
		}
		sources = append(sources, src)
	}
	if err := config.Load(sources...); err != nil {
		return errors.Wrapf(err, "load %s", configPath)
	}

	appConfig, err := scanAppConfig()
	if err != nil {
		return err
	}
	m.config = appConfig
	m.live = NewLive(appConfig.Thresholds, appConfig.Plans)
	return nil
}

func scanAppConfig() (*AppConfig, error) {
	appConfig := defaultAppConfig()
	if err := config.Scan(&appConfig); err != nil {
		return nil, errors.Wrap(err, "scan config")
	}
	if err := appConfig.Thresholds.Validate(); err != nil {
		return nil, errors.Wrap(err, "thresholds")
	}
	if err := appConfig.Plans.Validate(); err != nil {
		return nil, errors.Wrap(err, "plans")
	}
	return &appConfig, nil
}

// Watch pushes threshold and plan changes to the live holder until stop is closed
func (m *Manager) Watch(stop <-chan struct{}) error {
	w, err := config.Watch()
	if err != nil {
		return errors.Wrap(err, "watch config")
	}
	go func() {
		<-stop
		_ = w.Stop()
	}()

	go func() {
		for {
			if _, err := w.Next(); err != nil {
				select {
				case <-stop:
					return
				default:
				}
				logger.Warn("⚠️ config watch error", logger.FieldErr(err))
				continue
			}

			next := defaultAppConfig()
			if err := config.Scan(&next); err != nil {
				logger.Warn("⚠️ ignoring unreadable config update", logger.FieldErr(err))
				continue
			}
			if err := m.live.Update(next.Thresholds, next.Plans); err != nil {
				logger.Warn("⚠️ ignoring invalid config update", logger.FieldErr(err))
				continue
			}
			logger.Info("🔄 thresholds reloaded",
				logger.Int("high_score", next.Thresholds.HighScore),
				logger.Int("low_score", next.Thresholds.LowScore))
		}
	}()
	return nil
}

func (m *Manager) GetAppConfig() *AppConfig {
	return m.config
}

func (m *Manager) Live() *Live {
	return m.live
}

// InitLogger builds the process logger from the "logger" key
func (m *Manager) InitLogger() error {
	loggerConfig := logger.FromConfig("logger")
	loggerInstance := loggerConfig.Build()
	logger.SetDefault(loggerInstance)
	logger.SetDefaultL1(loggerInstance)
	return nil
}
