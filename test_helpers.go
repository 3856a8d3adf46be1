package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go-elife-client/mockbackend"
	"go-elife-client/securestore"

	"github.com/stretchr/testify/require"
)

var testServerConfig = mockbackend.ServerConfig{
	Host: "localhost",
	Port: 18481,
}

func startTestServer(t *testing.T) *mockbackend.ServerState {
	t.Helper()

	jwtCreator, err := mockbackend.NewHmacJwtCreator("test-secret", "elife-mock", time.Hour)
	require.NoError(t, err)
	state := mockbackend.NewServerState(jwtCreator)
	_, err = mockbackend.SeedDemo(state)
	require.NoError(t, err)

	srv, err := mockbackend.NewServer(state, testServerConfig)
	require.NoError(t, err)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("server error: %v", err)
		}
	}()

	waitUntilHealthy(t, testBackendURL()+"/api/health")
	t.Cleanup(func() {
		if err := srv.Stop(); err != nil {
			t.Logf("error shutting down server: %v", err)
		}
	})
	return state
}

func testBackendURL() string {
	return fmt.Sprintf("http://%s:%d", testServerConfig.Host, testServerConfig.Port)
}

func waitUntilHealthy(t *testing.T, url string) {
	t.Helper()
	const maxAttempts = 50
	for i := 0; i < maxAttempts; i++ {
		if resp, err := http.Get(url); err == nil {
			_ = resp.Body.Close()
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("server did not start in time")
}

// testConfig is a configuration with fast timers against the test server.
func testConfig() Config {
	return Config{
		LogLevel:    "debug",
		StorageType: "memory",
		Backend: BackendConfig{
			BaseURL:   testBackendURL(),
			TimeoutMs: 5000,
			RetryMax:  0,
		},
		Verification: VerificationConfig{
			MaxAttempts:      3,
			CaptureCount:     5,
			PollIntervalMs:   10,
			ConfirmDelayMs:   1,
			CaptureDelayMs:   1,
			DetectQuality:    0.5,
			CaptureQuality:   0.8,
			CountdownSeconds: 0,
			MaxInfraFailures: 3,
		},
		Camera: CameraConfig{MaxWidth: 320, MaxHeight: 320},
	}
}

func newTestApp(t *testing.T, config Config) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	return newApp(config, securestore.NewMemoryStore(), out), out
}

func loginDemo(t *testing.T, app *App) {
	t.Helper()
	require.NoError(t, app.dispatch(context.Background(), []string{
		"login", "--number", mockbackend.DemoPensionerNumber, "--password", mockbackend.DemoPassword,
	}))
}

func writeTestImage(t *testing.T, path string, shade uint8) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 64, 48))
	for x := 0; x < 64; x++ {
		for y := 0; y < 48; y++ {
			img.Set(x, y, color.RGBA{R: shade, G: uint8(x * 3), B: uint8(y * 5), A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))
}

// writeFixtures creates an ID image and a camera directory with a few frames.
func writeFixtures(t *testing.T) (idImage string, cameraDir string) {
	t.Helper()
	dir := t.TempDir()
	idImage = filepath.Join(dir, "id-card.png")
	writeTestImage(t, idImage, 10)

	cameraDir = filepath.Join(dir, "camera")
	require.NoError(t, os.Mkdir(cameraDir, 0o700))
	for i := 0; i < 3; i++ {
		writeTestImage(t, filepath.Join(cameraDir, fmt.Sprintf("frame-%d.png", i)), uint8(100+i*40))
	}
	return idImage, cameraDir
}
