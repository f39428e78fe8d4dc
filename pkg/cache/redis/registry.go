package redis

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	cnf "github.com/ninja0404/whale-signal/pkg/config"
	"github.com/ninja0404/whale-signal/pkg/logger"
)

const (
	DEFAULT_CLIENT = "default"
	DEFAULT_CONFIG = "redis"
)

var clients map[string]*redis.Client

func init() {
	clients = make(map[string]*redis.Client)
}

func SetupRedisFromDefaultConfig() error {
	return SetupRedisFromConfig(DEFAULT_CLIENT, DEFAULT_CONFIG)
}

// SetupRedisFromConfig registers a named client built from the config key
func SetupRedisFromConfig(name string, configKey string) error {
	var config RedisConfig
	if err := cnf.Get(configKey).Scan(&config); err != nil {
		return errors.Wrapf(err, "scan %s config", configKey)
	}
	client, err := createClient(&config)
	if err != nil {
		return errors.Wrap(err, "connect redis")
	}
	clients[name] = client

	opt := client.Options()
	logger.Info(
		"redis connected",
		logger.String("name", name),
		logger.String("addr", opt.Addr),
		logger.Int("db", opt.DB),
	)
	return nil
}

// Register adds an existing client under name
func Register(name string, client *redis.Client) {
	clients[name] = client
}

func Stop() error {
	var merr error
	for name, client := range clients {
		if err := client.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
		logger.Info("redis closed", logger.String("name", name))
	}
	return merr
}

func GetClient() (*redis.Client, error) {
	return GetClientWithName(DEFAULT_CLIENT)
}

func GetClientWithName(name string) (*redis.Client, error) {
	client, ok := clients[name]
	if !ok {
		return nil, errors.Errorf("redis client %s is not initialized", name)
	}
	return client, nil
}
