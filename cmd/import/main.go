package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"gopkg.in/yaml.v3"

	"github.com/progbudget/import-recon-backend/internal/adapters/rowsource"
	"github.com/progbudget/import-recon-backend/internal/application/importer"
	"github.com/progbudget/import-recon-backend/internal/application/matches"
	"github.com/progbudget/import-recon-backend/internal/domain/matchengine"
	"github.com/progbudget/import-recon-backend/internal/domain/rowparse"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/config"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/logging"
	"github.com/progbudget/import-recon-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile  = flag.String("config", "config.yaml", "Configuration file path")
		programID   = flag.String("program", "", "Program ID to import into (required)")
		filePath    = flag.String("file", "", "Spreadsheet to import, .xlsx or .csv (required)")
		mappingFile = flag.String("mapping", "", "Column mapping file, YAML or JSON (required)")
		replaceID   = flag.String("replace", "", "Session ID to replace instead of creating a fresh session")
		force       = flag.Bool("force", false, "With -replace, discard every old transaction including confirmed ones")
		keepAll     = flag.Bool("keep-matches", false, "With -replace, preserve matched and confirmed transactions")
		verbose     = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if *programID == "" && *replaceID == "" || *filePath == "" || *mappingFile == "" {
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.LoadOrEnvWithPath(*configFile)
	if *verbose {
		cfg.Observability.Logging.Level = "debug"
	}
	logger := logging.NewLoggerWithComponent(cfg.Observability.Logging, "import")

	mapping, err := loadMapping(*mappingFile)
	if err != nil {
		logger.Error("Failed to load mapping", slog.String("error", err.Error()))
		os.Exit(1)
	}

	rows, err := rowsource.Open(*filePath)
	if err != nil {
		logger.Error("Failed to read spreadsheet", slog.String("error", err.Error()))
		os.Exit(1)
	}

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
	pipeline := importer.NewPipeline(store, matches.NewService(store, engine, logger), logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	filename := filepath.Base(*filePath)

	var sess *storage.ImportSession
	if *replaceID != "" {
		sess, err = pipeline.ReplaceSession(ctx, *replaceID, filename, mapping, rows, importer.ReplaceOptions{
			ForceReplace:             *force,
			PreserveAllMatches:       *keepAll,
			PreserveConfirmedMatches: !*force && !*keepAll,
		})
	} else {
		sess, err = pipeline.CreateSession(*programID, filename, mapping)
		if err == nil {
			sess, err = pipeline.ProcessFile(ctx, sess.ID, rows)
		}
	}
	if err != nil {
		logger.Error("Import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("Session %s: %s\n", sess.ID, sess.Status)
	fmt.Printf("  total      %d\n", sess.TotalRecords)
	fmt.Printf("  matched    %d\n", sess.MatchedRecords)
	fmt.Printf("  unmatched  %d\n", sess.UnmatchedRecords)
	fmt.Printf("  skipped    %d\n", sess.SkippedDuplicates)
	fmt.Printf("  errors     %d\n", sess.ErrorRecords)
}

// loadMapping parses a column mapping from a YAML or JSON file.
func loadMapping(path string) (rowparse.ColumnMapping, error) {
	var mapping rowparse.ColumnMapping

	data, err := os.ReadFile(path)
	if err != nil {
		return mapping, err
	}

	switch filepath.Ext(path) {
	case ".json":
		err = json.Unmarshal(data, &mapping)
	default:
		err = yaml.Unmarshal(data, &mapping)
	}
	if err != nil {
		return mapping, fmt.Errorf("parse mapping %s: %w", path, err)
	}

	return mapping, mapping.Validate()
}
