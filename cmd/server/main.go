// Package main is the entry point for the Spyglass market comparison and
// portfolio analytics service.
//
// Startup sequence:
// 1. Load configuration from environment variables
// 2. Initialize structured logging
// 3. Open the client data cache database and ensure its schema
// 4. Wire the market data client, normalizer, and analytics services
// 5. Register background jobs (cache cleanup, FX warmup)
// 6. Start the HTTP server and wait for a shutdown signal
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aristath/spyglass/internal/clientdata"
	"github.com/aristath/spyglass/internal/clients/fmp"
	"github.com/aristath/spyglass/internal/config"
	"github.com/aristath/spyglass/internal/database"
	"github.com/aristath/spyglass/internal/domain"
	"github.com/aristath/spyglass/internal/modules/comparison"
	comparisonhandlers "github.com/aristath/spyglass/internal/modules/comparison/handlers"
	"github.com/aristath/spyglass/internal/modules/currency"
	"github.com/aristath/spyglass/internal/modules/optimization"
	optimizationhandlers "github.com/aristath/spyglass/internal/modules/optimization/handlers"
	"github.com/aristath/spyglass/internal/modules/riskfree"
	"github.com/aristath/spyglass/internal/scheduler"
	"github.com/aristath/spyglass/internal/server"
	"github.com/aristath/spyglass/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Spyglass")

	// Client data cache database
	cacheDB, err := database.New(database.Config{
		Path:    cfg.CacheDBPath(),
		Profile: database.ProfileCache,
		Name:    "client_data",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open client data database")
	}
	defer cacheDB.Close()

	cacheRepo := clientdata.NewRepository(cacheDB.Conn())
	if err := cacheRepo.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure client data schema")
	}

	// Market data client
	fmpClient := fmp.NewClient(fmp.Config{
		APIKey:  cfg.FMPAPIKey,
		BaseURL: cfg.FMPBaseURL,
		Timeout: cfg.FetchTimeout,
	}, cacheRepo, log)

	baseCurrency := domain.Currency(cfg.BaseCurrency)

	// Services
	normalizer := currency.NewNormalizer(fmpClient, log)
	riskFreeService := riskfree.NewService(fmpClient, cacheRepo, log)
	optimizer := optimization.NewOptimizer(log)
	optimizationService := optimization.NewService(optimizer, riskFreeService, log)

	comparisonService := comparison.NewService(
		fmpClient.Dispatch(),
		normalizer,
		riskFreeService,
		optimizer,
		clientdata.NewTableCache(cacheRepo, "comparisons", log),
		cfg.ComparisonTTL,
		cfg.FetchConcurrency,
		log,
	)

	// Background jobs
	sched := scheduler.New(log)
	cleanupJob := clientdata.NewCleanupJob(cacheRepo, log)
	if err := sched.AddJob("30 3 * * *", cleanupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register cleanup job")
	}
	fxWarmupJob := scheduler.NewFxWarmupJob(fmpClient, baseCurrency, log)
	if err := sched.AddJob("@hourly", fxWarmupJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register FX warmup job")
	}
	sched.Start()
	defer sched.Stop()

	// HTTP server
	srv := server.New(server.Config{
		Log:                  log,
		Config:               cfg,
		CacheDB:              cacheDB,
		ComparisonHandlers:   comparisonhandlers.NewHandler(comparisonService, log),
		OptimizationHandlers: optimizationhandlers.NewHandler(optimizationService, comparisonService, log),
	})

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
