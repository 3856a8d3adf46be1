package main

import (
	"errors"
	"fmt"
	"log/slog"

	"go-elife-client/redis"
	"go-elife-client/securestore"
)

func createSecureStore(config *Config) (securestore.Store, error) {
	switch config.StorageType {
	case "redis":
		slog.Info("Using redis secure storage")
		client, err := redis.NewRedisClient(&config.RedisConfig)
		if err != nil {
			return nil, err
		}
		return securestore.NewRedisStore(client, config.RedisConfig.Namespace), nil
	case "redis_sentinel":
		slog.Info("Using redis sentinel secure storage")
		client, err := redis.NewRedisSentinelClient(&config.RedisSentinelConfig)
		if err != nil {
			return nil, err
		}
		return securestore.NewRedisStore(client, config.RedisSentinelConfig.Namespace), nil
	case "file":
		slog.Info("Using encrypted file storage", "path", config.FileStorage.Path)
		if config.FileStorage.Passphrase == "" {
			return nil, errors.New("file storage requires a passphrase (file_storage.passphrase or ELIFE_STORE_PASSPHRASE)")
		}
		return securestore.NewFileStore(config.FileStorage.Path, config.FileStorage.Passphrase)
	case "memory":
		slog.Info("Using in memory storage")
		return securestore.NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("%v is not a valid storage type", config.StorageType)
}
