package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/trackarr/trackarr/internal/config"
	"github.com/trackarr/trackarr/internal/download"
	"github.com/trackarr/trackarr/internal/server"
)

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// unconfiguredImporter stands in until an import engine backend is
// registered. It leaves completed items in place with a status message
// so nothing is moved or deleted by accident.
type unconfiguredImporter struct{}

func (unconfiguredImporter) ProcessPath(ctx context.Context, path string, item download.Item) ([]download.ImportResult, error) {
	return []download.ImportResult{{
		Path:   path,
		Errors: []string{"No import engine is configured"},
	}}, nil
}

func runServe(configPath string) error {
	// Find and load config
	if configPath == "" {
		discovered, err := config.Discover()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		configPath = discovered
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// Create logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	// Ensure database directory exists
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return fmt.Errorf("create db dir: %w", err)
	}

	// Open database
	db, err := sql.Open("sqlite", cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer func() { _ = db.Close() }()

	// === Backends ===
	// Download client and import engine backends are registered here as
	// they become available. Until then the daemon runs with an empty
	// provider: the poll loop is a no-op and completed items stay put.
	provider := download.NewStaticProvider()
	imports := unconfiguredImporter{}

	logger.Info("starting trackarrd",
		"version", version,
		"config", configPath,
		"database", cfg.Database.Path,
		"poll_interval", cfg.Downloads.PollInterval.Std().String(),
		"clients", len(provider.GetClients()),
	)
	if len(provider.GetClients()) == 0 {
		logger.Warn("no download clients configured, nothing to track")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	runner := server.NewRunner(db, cfg, provider, imports, logger)
	if err := runner.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	logger.Info("stopped")
	return nil
}
