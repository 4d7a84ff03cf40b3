package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/samvad-hq/samvad-newsdesk/internal/app"
	"github.com/samvad-hq/samvad-newsdesk/internal/config"
	"github.com/samvad-hq/samvad-newsdesk/internal/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "newsdesk start failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	log.InfoObj("newsdesk starting", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	newsdesk, err := app.New(ctx, cfg, log)
	if err != nil {
		log.ErrorObj("failed to initialize newsdesk", "error", err)
		return err
	}
	defer newsdesk.Close()

	if err := newsdesk.Serve(ctx); err != nil {
		return fmt.Errorf("newsdesk serve: %w", err)
	}

	return nil
}
