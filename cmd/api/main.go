// Package main runs the API as a long-lived HTTP server for local development and
// container deployments. It also owns the background jobs a Lambda deployment gets
// from scheduled rules.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"collective-rides/infrastructure/config"
	"collective-rides/infrastructure/di"

	"go.uber.org/zap"
)

const limiterCleanupInterval = 5 * time.Minute

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize dependency container
	container, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize container: %v", err)
	}
	if err := container.Validate(); err != nil {
		log.Fatalf("Container validation failed: %v", err)
	}
	logger := container.Logger

	container.StartBackground(ctx)
	defer container.StopBackground()

	if err := container.Sweeper.Start(ctx, cfg.InvitationSweepSchedule); err != nil {
		logger.Fatal("Failed to start invitation sweeper", zap.Error(err))
	}

	if cfg.ConfigFile != "" {
		watcher, err := config.NewWatcher(cfg.ConfigFile, cfg, logger)
		if err != nil {
			logger.Warn("Configuration hot reloading unavailable", zap.Error(err))
		} else {
			watcher.OnChange(container.ApplyConfig)
			defer watcher.Stop()
		}
	}

	go cleanupLimiter(ctx, container, logger)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      container.Router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	container.Sweeper.Stop(shutdownCtx)
	cancel()

	_ = logger.Sync()
	log.Println("Server stopped")
}

// cleanupLimiter drops idle rate limiter buckets until ctx ends
func cleanupLimiter(ctx context.Context, container *di.Container, logger *zap.Logger) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := container.RateLimiter.Cleanup(); removed > 0 {
				logger.Debug("Dropped idle rate limiter buckets", zap.Int("removed", removed))
			}
		}
	}
}
