package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"relay-service/internal/config"
	"relay-service/internal/server"
)

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	cfg := config.Load()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srv, err := server.NewServer(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("relay service failed to start", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("📢 Relay service HTTP server starting", zap.String("addr", cfg.HTTPAddr))
		errCh <- srv.ListenAndServe()
	}()

	// Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-quit:
		logger.Info("🛑 Relay service shutting down gracefully...")
		cancel()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("relay shutdown error", zap.Error(err))
		}
	case err := <-errCh:
		logger.Fatal("relay service failed", zap.Error(err))
	}
}
