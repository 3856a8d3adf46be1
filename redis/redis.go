package redis

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const pingTimeout = 3 * time.Second

type RedisConfig struct {
	Host      string `json:"host" env:"ELIFE_REDIS_HOST" env-default:"localhost"`
	Port      int    `json:"port" env:"ELIFE_REDIS_PORT" env-default:"6379"`
	Password  string `json:"password" env:"ELIFE_REDIS_PASSWORD"`
	Namespace string `json:"namespace" env:"ELIFE_REDIS_NAMESPACE" env-default:"elife"`
}

type RedisSentinelConfig struct {
	SentinelHost     string `json:"sentinel_host" env:"ELIFE_SENTINEL_HOST"`
	SentinelPort     int    `json:"sentinel_port" env:"ELIFE_SENTINEL_PORT" env-default:"26379"`
	Password         string `json:"password" env:"ELIFE_SENTINEL_REDIS_PASSWORD"`
	MasterName       string `json:"master_name" env:"ELIFE_SENTINEL_MASTER"`
	SentinelUsername string `json:"sentinel_username" env:"ELIFE_SENTINEL_USERNAME"`
	SentinelPassword string `json:"sentinel_password" env:"ELIFE_SENTINEL_PASSWORD"`
	Namespace        string `json:"namespace" env:"ELIFE_SENTINEL_NAMESPACE" env-default:"elife"`
}

// NewRedisClient connects to a single redis node and verifies the connection with a ping.
func NewRedisClient(config *RedisConfig) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	slog.Debug("Connecting to redis", "address", addr)

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: config.Password,
	})

	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// NewRedisSentinelClient connects to the master announced by a sentinel.
func NewRedisSentinelClient(config *RedisSentinelConfig) (*redis.Client, error) {
	if config.MasterName == "" {
		return nil, fmt.Errorf("redis sentinel requires a master name")
	}

	addr := fmt.Sprintf("%s:%d", config.SentinelHost, config.SentinelPort)
	slog.Debug("Connecting to redis through sentinel", "sentinel", addr, "master", config.MasterName)

	client := redis.NewFailoverClient(&redis.FailoverOptions{
		MasterName:       config.MasterName,
		SentinelAddrs:    []string{addr},
		SentinelUsername: config.SentinelUsername,
		SentinelPassword: config.SentinelPassword,
		Password:         config.Password,
	})

	if err := ping(client); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis through Sentinel: %w", err)
	}
	return client, nil
}

func ping(client *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	return client.Ping(ctx).Err()
}
