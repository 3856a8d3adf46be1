package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestReadConfig_FileWithDefaults(t *testing.T) {
	path := writeConfigFile(t, `{
		"log_level": "debug",
		"backend": {"base_url": "https://elife.example.org"},
		"storage_type": "memory",
		"verification": {"max_attempts": 4, "poll_interval_ms": 500},
		"mock_server": {"host": "0.0.0.0", "port": 9000}
	}`)

	config, err := readConfig(path)
	require.NoError(t, err)

	require.Equal(t, "debug", config.LogLevel)
	require.Equal(t, "https://elife.example.org", config.Backend.BaseURL)
	require.Equal(t, 30000, config.Backend.TimeoutMs)
	require.Equal(t, "memory", config.StorageType)
	require.Equal(t, 4, config.Verification.MaxAttempts)
	require.Equal(t, 5, config.Verification.CaptureCount)
	require.Equal(t, 5, config.Verification.CountdownSeconds)
	require.False(t, config.Verification.SeparateInfraFailures)
	require.Equal(t, "0.0.0.0", config.MockServer.Host)
	require.Equal(t, 9000, config.MockServer.Port)

	orchestrator := config.Verification.orchestratorConfig()
	require.Equal(t, 4, orchestrator.MaxAttempts)
	require.Equal(t, 500*time.Millisecond, orchestrator.PollInterval)
	require.Equal(t, time.Second, orchestrator.ConfirmDelay)
	require.Equal(t, 0.5, orchestrator.DetectQuality)
	require.Equal(t, 0.8, orchestrator.CaptureQuality)
}

func TestReadConfig_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfigFile(t, `{"storage_type": "memory", "verification": {"max_attempts": 4}}`)
	t.Setenv("ELIFE_MAX_ATTEMPTS", "2")
	t.Setenv("ELIFE_SEPARATE_INFRA_FAILURES", "true")
	t.Setenv("ELIFE_BACKEND_URL", "http://backend.internal:8080")

	config, err := readConfig(path)
	require.NoError(t, err)
	require.Equal(t, 2, config.Verification.MaxAttempts)
	require.True(t, config.Verification.SeparateInfraFailures)
	require.Equal(t, "http://backend.internal:8080", config.Backend.BaseURL)
}

func TestReadConfig_EnvironmentOnly(t *testing.T) {
	t.Setenv("ELIFE_STORAGE_TYPE", "memory")

	config, err := readConfig("")
	require.NoError(t, err)
	require.Equal(t, "memory", config.StorageType)
	require.Equal(t, "info", config.LogLevel)
	require.Equal(t, "http://localhost:8081", config.Backend.BaseURL)
	require.Equal(t, 2000, config.Verification.PollIntervalMs)
	require.Equal(t, 8081, config.MockServer.Port)
}

func TestReadConfig_MissingFile(t *testing.T) {
	_, err := readConfig(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
