package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "go-elife-client/logging"
	"go-elife-client/mockbackend"
)

const usage = `usage: go-elife-client [--config config.json] <command> [flags]

commands:
  login          log in with --number 000-000-0000 and --password
  logout         remove the stored session
  status         show session and terms state
  accept-terms   accept the terms and conditions
  profile        show the pensioner profile
  notifications  list notifications
  history        list issued life certificates
  dashboard      show the quarterly dashboard summary
  upload-id      upload an identity document (--image)
  verify         run the full proof of life flow (--id-image, --camera-dir)
  certificate    generate the life certificate for the current quarter
  serve-mock     run the development backend`

func main() {
	configPath := flag.String("config", "", "Path for the config.json to use")
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()

	config, err := readConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to read config: %v\n", err)
		os.Exit(1)
	}
	log.InitLoggerTo(os.Stderr, config.LogLevel, config.LogFormat)

	if *configPath != "" {
		slog.Info("Using config", "path", *configPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, flag.Args(), os.Stdout); err != nil {
		slog.Error("Command failed", "error", err)
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, config Config, args []string, out io.Writer) error {
	if len(args) == 0 {
		return errors.New(usage)
	}
	if args[0] == "serve-mock" {
		return serveMock(ctx, config)
	}

	store, err := createSecureStore(&config)
	if err != nil {
		return fmt.Errorf("failed to instantiate secure storage: %w", err)
	}
	return newApp(config, store, out).dispatch(ctx, args)
}

func serveMock(ctx context.Context, config Config) error {
	jwtCreator, err := mockbackend.NewHmacJwtCreator(config.MockJwtSecret, "elife-mock", mockbackend.DefaultTokenTTL)
	if err != nil {
		return fmt.Errorf("failed to instantiate jwt creator: %w", err)
	}

	state := mockbackend.NewServerState(jwtCreator)
	if _, err := mockbackend.SeedDemo(state); err != nil {
		return fmt.Errorf("failed to seed demo pensioner: %w", err)
	}
	slog.Info("Demo pensioner available", "pensioner_number", mockbackend.DemoPensionerNumber)

	server, err := mockbackend.NewServer(state, config.MockServer)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	errs := make(chan error, 1)
	go func() {
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("failed to listen and serve: %w", err)
	case <-ctx.Done():
		return server.Stop()
	}
}
