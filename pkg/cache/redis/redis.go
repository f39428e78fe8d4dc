package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	URL      string `yaml:"url" json:"url" toml:"url"`
	Password string `yaml:"password" json:"password" toml:"password"`
	DB       int    `yaml:"db" json:"db" toml:"db"`

	PoolSize     int `yaml:"pool_size" json:"pool_size" toml:"pool_size"`
	MinIdleConns int `yaml:"min_idle_conns" json:"min_idle_conns" toml:"min_idle_conns"`
	// timeouts in milliseconds
	DialTimeout  int `yaml:"dial_timeout" json:"dial_timeout" toml:"dial_timeout"`
	ReadTimeout  int `yaml:"read_timeout" json:"read_timeout" toml:"read_timeout"`
	WriteTimeout int `yaml:"write_timeout" json:"write_timeout" toml:"write_timeout"`
}

func createClient(srcConf *RedisConfig) (*redis.Client, error) {
	cnf := validateConfig(srcConf)

	opt, err := redis.ParseURL(cnf.URL)
	if err != nil {
		return nil, err
	}
	if cnf.Password != "" {
		opt.Password = cnf.Password
	}
	if cnf.DB != 0 {
		opt.DB = cnf.DB
	}
	opt.PoolSize = cnf.PoolSize
	opt.MinIdleConns = cnf.MinIdleConns
	opt.DialTimeout = time.Duration(cnf.DialTimeout) * time.Millisecond
	opt.ReadTimeout = time.Duration(cnf.ReadTimeout) * time.Millisecond
	opt.WriteTimeout = time.Duration(cnf.WriteTimeout) * time.Millisecond

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func validateConfig(src *RedisConfig) *RedisConfig {
	dst := *src

	if src.URL == "" {
		dst.URL = "redis://127.0.0.1:6379/0"
	}

	if src.PoolSize == 0 {
		dst.PoolSize = 32
	}

	if src.DialTimeout == 0 {
		dst.DialTimeout = 5000
	}

	// blocking pops hold the connection for their own timeout, keep reads above it
	if src.ReadTimeout == 0 {
		dst.ReadTimeout = 3000
	}

	if src.WriteTimeout == 0 {
		dst.WriteTimeout = 3000
	}
	return &dst
}
