package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"b3ingest/internal/config"
	"b3ingest/internal/infrastructure"
	"b3ingest/internal/store"
)

func main() {
	dbFile := flag.String("db", "", "database file path (default from config)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("failed to load config, using defaults", "error", err)
		cfg = config.Default()
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	path := cfg.Paths.DBFile
	if *dbFile != "" {
		path = *dbFile
	}

	s, err := store.Open(path)
	if err != nil {
		logger.Error("failed to open database", slog.String("db", path), slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer s.Close()

	if err := s.InitSchema(context.Background()); err != nil {
		logger.Error("failed to create schema", slog.String("db", path), slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("database initialized", slog.String("db", path))
	fmt.Printf("initialized %s (tables: prices, ingest_logs)\n", path)
}
