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
		log.Error().Err(err).Msg("web")
		os.Exit(1)
	}
}

// run owns every deferred cleanup so the DB and journal close before exit.
func run() error {
	cfg := app.DefaultConfig()
	app.SetupLogging(cfg, os.Stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.Init(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer a.Close()

	fmt.Printf("Web listening on http://%s/\n", cfg.HTTPAddr)
	return app.StartWeb(ctx, cfg, a.Service)
}
