package logger

import (
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"

	pconfig "github.com/ninja0404/whale-signal/pkg/config"
	"github.com/ninja0404/whale-signal/pkg/utils"
)

type Config struct {
	// OUTPUT stdout, file or discard
	OUTPUT    string `yaml:"output" json:"output" toml:"output"`
	Dir       string `yaml:"dir" json:"dir" toml:"dir"`
	Name      string `yaml:"name" json:"name" toml:"name"`
	Level     string `yaml:"level" json:"level" toml:"level"`
	AddCaller bool   `yaml:"add_caller" json:"add_caller" toml:"add_caller"`
	// megabytes per file
	MaxSize int `yaml:"max_size" json:"max_size" toml:"max_size"`
	// days
	MaxAge    int `yaml:"max_age" json:"max_age" toml:"max_age"`
	MaxBackup int `yaml:"max_backup" json:"max_backup" toml:"max_backup"`
	// forced rotation interval, zero disables it
	Interval   time.Duration `yaml:"interval" json:"interval" toml:"interval"`
	CallerSkip int           `yaml:"caller_skip" json:"caller_skip" toml:"caller_skip"`
	// buffered writes
	Async           bool          `yaml:"async" json:"async" toml:"async"`
	FlushBufferSize int           `yaml:"flush_buffer_size" json:"flush_buffer_size" toml:"flush_buffer_size"`
	FlushInterval   time.Duration `yaml:"flush_interval" json:"flush_interval" toml:"flush_interval"`
	// colored console output
	Debug         bool   `yaml:"debug" json:"debug" toml:"debug"`
	Discard       bool   `yaml:"discard" json:"discard" toml:"discard"`
	DisableSentry bool   `yaml:"disable_sentry" json:"disable_sentry" toml:"disable_sentry"`
	SentryLevel   string `yaml:"sentry_level" json:"sentry_level" toml:"sentry_level"`
	SentryDSN     string `yaml:"sentry_dsn" json:"sentry_dsn" toml:"sentry_dsn"`
	Environment   string `yaml:"environment" json:"environment" toml:"environment"`
}

func (c *Config) Filename() string {
	return fmt.Sprintf("%s/%s", c.Dir, c.Name)
}

func (c *Config) Build() *Logger {
	if !c.DisableSentry && c.SentryDSN != "" {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         c.SentryDSN,
			Environment: c.Environment,
		}); err != nil {
			fmt.Printf("sentry init failed: %v\n", err)
			c.DisableSentry = true
		}
	} else {
		c.DisableSentry = true
	}

	logger := newLogger(c)

	return logger
}

func FromConfig(key string) *Config {
	var conf *Config = defaultConfig()
	if err := pconfig.Get(key).Scan(conf); err != nil {
		panic(err)
	}
	return conf
}

func defaultConfig() *Config {
	return &Config{
		Name:            "log",
		OUTPUT:          "stdout",
		Dir:             "./logs/",
		Level:           "info",
		MaxSize:         500,
		MaxAge:          7,
		MaxBackup:       10,
		Interval:        0,
		CallerSkip:      0,
		AddCaller:       true,
		Async:           false,
		FlushBufferSize: 256 * 1024,
		FlushInterval:   5 * time.Second,
		SentryLevel:     "error",
		// sentry environment follows WHALE_ENV unless the document sets one
		Environment: utils.GetEnv(),
	}
}
