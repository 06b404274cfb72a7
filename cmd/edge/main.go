package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/fireline/fireline/internal/edge/app"
	"github.com/fireline/fireline/internal/edge/config"
	"github.com/fireline/fireline/internal/logger"
)

func main() {
	cfg := config.Load()

	logger.InitLogger(os.Stdout)
	logger.SetLevel(cfg.LogLevel)

	edge := app.New(cfg)
	defer edge.Close()

	slog.Info("starting Fireline edge node",
		"addr", cfg.Addr(),
		"dedup_ttl", cfg.DedupTTL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	if err := edge.Start(ctx); err != nil {
		slog.Error("edge node failed", "error", err)
		os.Exit(1)
	}
}
