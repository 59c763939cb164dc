package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-id/internal/config"
	"github.com/kozaktomas/face-id/internal/database"
	"github.com/kozaktomas/face-id/internal/extractor"
	"github.com/kozaktomas/face-id/internal/logging"
	"github.com/kozaktomas/face-id/internal/metrics"
	"github.com/kozaktomas/face-id/internal/recognition"

	// Store backends register themselves with the database package.
	_ "github.com/kozaktomas/face-id/internal/database/mysql"
	_ "github.com/kozaktomas/face-id/internal/database/postgres"
	_ "github.com/kozaktomas/face-id/internal/database/sqlite"
)

// app holds everything a command needs to enroll and recognize.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	store     *database.Store
	extractor *extractor.Extractor
	metrics   *metrics.Metrics
	service   *recognition.Service
}

// loadConfig reads and validates the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, *zap.Logger, error) {
	cfg := config.Load()
	if debug, err := cmd.Flags().GetBool("debug"); err == nil && debug {
		cfg.Log.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger, err := logging.New(cfg.Log.Debug)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

// openStore opens only the identity store.
func openStore(ctx context.Context, cmd *cobra.Command) (*database.Store, *config.Config, *zap.Logger, error) {
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}
	store, err := database.Open(ctx, cfg, logger)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open identity store: %w", err)
	}
	return store, cfg, logger, nil
}

// openApp opens the store and the extractor and wires the recognition service.
func openApp(ctx context.Context, cmd *cobra.Command) (*app, error) {
	store, cfg, logger, err := openStore(ctx, cmd)
	if err != nil {
		return nil, err
	}

	ex, err := extractor.NewFromConfig(cfg, logger)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to create face extractor: %w", err)
	}
	m := metrics.New()
	svc := recognition.NewService(ex, store, recognition.Options{
		Metric:     store.Metric(),
		Threshold:  cfg.MatchThreshold(),
		Candidates: cfg.Matcher.Candidates,
		Logger:     logger,
		Metrics:    m,
	})

	return &app{cfg: cfg, logger: logger, store: store, extractor: ex, metrics: m, service: svc}, nil
}

// Close releases the extractor and flushes the store.
func (a *app) Close() error {
	return errors.Join(a.extractor.Close(), a.store.Close())
}

// outputJSON prints data as indented JSON.
func outputJSON(data any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(data); err != nil {
		return fmt.Errorf("encoding JSON output: %w", err)
	}
	return nil
}
