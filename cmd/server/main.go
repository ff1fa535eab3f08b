package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kapu/campaign-ops-go/internal/app"
	"github.com/kapu/campaign-ops-go/internal/config"
	"github.com/kapu/campaign-ops-go/internal/util"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := util.NewLogger(cfg.Logging.Level, cfg.Logging.File)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Campaign ops server starting...",
		zap.String("addr", cfg.Server.Addr),
		zap.String("log_level", cfg.Logging.Level),
	)

	// Runtime context; sessions derive their run contexts from it
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	buildCtx, buildCancel := context.WithTimeout(ctx, 30*time.Second)
	container, err := app.Build(buildCtx, cfg, logger)
	buildCancel()
	if err != nil {
		logger.Error("Failed to assemble application services", zap.Error(err))
		os.Exit(1)
	}
	defer container.Close()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go container.Sessions.Run(ctx)

	serverCtx, stopServer := context.WithCancel(ctx)
	defer stopServer()
	errCh := make(chan error, 1)
	go func() {
		errCh <- container.Server.Start(serverCtx)
	}()

	serverDone := false
	select {
	case sig := <-sigCh:
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		serverDone = true
		if err != nil {
			logger.Error("Server error", zap.Error(err))
		}
	}

	logger.Info("Shutting down gracefully...")
	stopServer()
	if !serverDone {
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("Error during shutdown", zap.Error(err))
			}
		case <-time.After(cfg.Server.ShutdownTimeout + time.Second):
			logger.Warn("Server shutdown timed out")
		}
	}
	cancel()

	logger.Info("Shutdown complete")
}
