package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"nftcate/internal/config"
	httpinfra "nftcate/internal/infra/http"
	"nftcate/internal/observability/logger"

	"go.uber.org/zap"
)

var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "nftcate: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	logger.Init(logger.Config{
		Env:         cfg.AppEnv,
		Level:       cfg.LogLevel,
		ServiceName: cfg.ServiceName,
		Version:     version,
	})
	defer func() { _ = logger.Sync() }()
	log := logger.Named("main")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps, cleanup, err := wire(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	log.Info("starting http server",
		zap.String("addr", cfg.HTTPAddr),
		zap.String("auth_mode", cfg.AuthMode),
		zap.String("content_store", cfg.ContentStore),
		zap.String("ledger_mode", cfg.LedgerMode),
		zap.String("key_custody", cfg.KeyCustody),
	)
	srv := httpinfra.NewServer(cfg, deps)
	if err := srv.Run(ctx, shutdownTimeout); err != nil {
		return fmt.Errorf("server exited: %w", err)
	}
	log.Info("server stopped")
	return nil
}
