package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"learnbot/internal/app"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("terminal")
		os.Exit(1)
	}
}

func run() error {
	cfg := app.DefaultConfig()
	// keep the REPL readable: only warnings and up on the terminal
	if os.Getenv("LEARNBOT_LOG_LEVEL") == "" {
		cfg.LogLevel = "warn"
	}
	app.SetupLogging(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	a, err := app.Init(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.Close()

	return app.Run(ctx, cfg, a.Service)
}
