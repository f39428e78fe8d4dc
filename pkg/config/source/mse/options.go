package mse

import (
	"context"

	"github.com/caarlos0/env/v11"

	"github.com/ninja0404/whale-signal/pkg/config/source"
)

type mseConfigKey struct{}

// MseConfig addresses one Nacos/MSE config entry
type MseConfig struct {
	ServerAddr  string `env:"MSE_SERVER_ADDR,required"`
	ServerPort  uint64 `env:"MSE_SERVER_PORT" envDefault:"8848"`
	NamespaceID string `env:"MSE_NAMESPACE,required"`
	AccessKey   string `env:"MSE_ACCESSKEY,required"`
	SecretKey   string `env:"MSE_SECRETKEY,required"`
	Group       string `env:"MSE_GROUP" envDefault:"DEFAULT_GROUP"`
	DataID      string `env:"MSE_DATAID,required"`
	LogDir      string `env:"MSE_LOG_DIR"`
	CacheDir    string `env:"MSE_CACHE_DIR"`
}

// ConfigFromEnv reads the MSE coordinates from the process environment
func ConfigFromEnv() (*MseConfig, error) {
	conf, err := env.ParseAs[MseConfig]()
	if err != nil {
		return nil, err
	}
	return &conf, nil
}

func WithMseConfig(conf *MseConfig) source.Option {
	return func(o *source.Options) {
		if o.Context == nil {
			o.Context = context.Background()
		}
		o.Context = context.WithValue(o.Context, mseConfigKey{}, conf)
	}
}
