package main

import (
	"fmt"
	"time"

	"go-elife-client/mockbackend"
	"go-elife-client/redis"
	"go-elife-client/verification"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	LogLevel  string `json:"log_level" env:"ELIFE_LOG_LEVEL" env-default:"info"`
	LogFormat string `json:"log_format" env:"ELIFE_LOG_FORMAT" env-default:"text"`

	Backend BackendConfig `json:"backend"`

	StorageType         string                    `json:"storage_type" env:"ELIFE_STORAGE_TYPE" env-default:"file"`
	FileStorage         FileStorageConfig         `json:"file_storage"`
	RedisConfig         redis.RedisConfig         `json:"redis_config,omitempty"`
	RedisSentinelConfig redis.RedisSentinelConfig `json:"redis_sentinel_config,omitempty"`

	Verification VerificationConfig `json:"verification"`
	Camera       CameraConfig       `json:"camera"`

	MockServer    mockbackend.ServerConfig `json:"mock_server"`
	MockJwtSecret string                   `json:"mock_jwt_secret" env:"ELIFE_MOCK_JWT_SECRET" env-default:"elife-development-secret"`
}

type BackendConfig struct {
	BaseURL   string `json:"base_url" env:"ELIFE_BACKEND_URL" env-default:"http://localhost:8081"`
	TimeoutMs int    `json:"timeout_ms" env:"ELIFE_BACKEND_TIMEOUT_MS" env-default:"30000"`
	RetryMax  int    `json:"retry_max" env:"ELIFE_BACKEND_RETRY_MAX" env-default:"2"`
}

type FileStorageConfig struct {
	Path       string `json:"path" env:"ELIFE_STORE_PATH" env-default:".elife/secure-store.bin"`
	Passphrase string `json:"passphrase" env:"ELIFE_STORE_PASSPHRASE"`
}

type VerificationConfig struct {
	MaxAttempts      int     `json:"max_attempts" env:"ELIFE_MAX_ATTEMPTS" env-default:"3"`
	CaptureCount     int     `json:"capture_count" env:"ELIFE_CAPTURE_COUNT" env-default:"5"`
	PollIntervalMs   int     `json:"poll_interval_ms" env:"ELIFE_POLL_INTERVAL_MS" env-default:"2000"`
	ConfirmDelayMs   int     `json:"confirm_delay_ms" env:"ELIFE_CONFIRM_DELAY_MS" env-default:"1000"`
	CaptureDelayMs   int     `json:"capture_delay_ms" env:"ELIFE_CAPTURE_DELAY_MS" env-default:"1000"`
	DetectQuality    float64 `json:"detect_quality" env:"ELIFE_DETECT_QUALITY" env-default:"0.5"`
	CaptureQuality   float64 `json:"capture_quality" env:"ELIFE_CAPTURE_QUALITY" env-default:"0.8"`
	CountdownSeconds int     `json:"countdown_seconds" env:"ELIFE_COUNTDOWN_SECONDS" env-default:"5"`

	// Off by default: every failure counts against max_attempts.
	SeparateInfraFailures bool `json:"separate_infra_failures" env:"ELIFE_SEPARATE_INFRA_FAILURES"`
	MaxInfraFailures      int  `json:"max_infra_failures" env:"ELIFE_MAX_INFRA_FAILURES" env-default:"3"`
}

type CameraConfig struct {
	Dir       string `json:"dir" env:"ELIFE_CAMERA_DIR"`
	MaxWidth  int    `json:"max_width" env:"ELIFE_CAMERA_MAX_WIDTH" env-default:"1280"`
	MaxHeight int    `json:"max_height" env:"ELIFE_CAMERA_MAX_HEIGHT" env-default:"1280"`
}

// readConfig loads path (JSON) when given, applying environment overrides
// and defaults; without a path only the environment is read.
func readConfig(path string) (Config, error) {
	var config Config
	if path == "" {
		if err := cleanenv.ReadEnv(&config); err != nil {
			return Config{}, fmt.Errorf("failed to read config from environment: %w", err)
		}
		return config, nil
	}

	if err := cleanenv.ReadConfig(path, &config); err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	return config, nil
}

func (c VerificationConfig) orchestratorConfig() verification.Config {
	return verification.Config{
		MaxAttempts:           c.MaxAttempts,
		CaptureCount:          c.CaptureCount,
		PollInterval:          millis(c.PollIntervalMs),
		ConfirmDelay:          millis(c.ConfirmDelayMs),
		CaptureDelay:          millis(c.CaptureDelayMs),
		DetectQuality:         c.DetectQuality,
		CaptureQuality:        c.CaptureQuality,
		SeparateInfraFailures: c.SeparateInfraFailures,
		MaxInfraFailures:      c.MaxInfraFailures,
	}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
