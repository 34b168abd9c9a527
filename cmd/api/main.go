package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/progbudget/import-recon-backend/internal/api"
	"github.com/progbudget/import-recon-backend/internal/application/importer"
	"github.com/progbudget/import-recon-backend/internal/application/matches"
	"github.com/progbudget/import-recon-backend/internal/application/service"
	"github.com/progbudget/import-recon-backend/internal/domain/matchengine"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/config"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/logging"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		port       = flag.Int("port", 0, "Override the configured HTTP port")
		verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}

	logger := logging.NewLoggerWithComponent(cfg.Observability.Logging, "api")

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("Failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer store.Close()

	engine := matchengine.NewEngine(matchengine.Config{
		AmountTolerance: cfg.Matching.AmountTolerance,
		MatchThreshold:  cfg.Matching.MatchThreshold,
	})
	matchSvc := matches.NewService(store, engine, logger)
	pipeline := importer.NewPipeline(store, matchSvc, logger)
	imports := service.NewImportService(pipeline, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Finished import jobs stay queryable for an hour
	imports.StartSweeper(ctx, 10*time.Minute, time.Hour)

	server := api.NewServer(api.Config{
		Port:           cfg.Server.Port,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	}, store, pipeline, matchSvc, imports, logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("Server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Shutdown failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
}
