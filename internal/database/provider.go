package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-id/internal/config"
	"github.com/kozaktomas/face-id/internal/facematch"
)

// Opener creates a backend from the store configuration.
type Opener func(ctx context.Context, cfg config.StoreConfig) (Backend, error)

var (
	openers   = make(map[string]Opener)
	openersMu sync.RWMutex
)

// RegisterBackend registers a backend constructor under a driver name.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(driver string, open Opener) {
	openersMu.Lock()
	defer openersMu.Unlock()
	if _, dup := openers[driver]; dup {
		panic("database: RegisterBackend called twice for driver " + driver)
	}
	openers[driver] = open
}

// Drivers returns the registered driver names, sorted.
func Drivers() []string {
	openersMu.RLock()
	defer openersMu.RUnlock()
	names := make([]string, 0, len(openers))
	for name := range openers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// OpenBackend opens the backend selected by cfg.Driver.
func OpenBackend(ctx context.Context, cfg config.StoreConfig) (Backend, error) {
	openersMu.RLock()
	open, ok := openers[cfg.Driver]
	openersMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store driver %q not registered (available: %v)", cfg.Driver, Drivers())
	}
	return open(ctx, cfg)
}

// Open opens the configured backend and loads it into a Store.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Store, error) {
	metric, err := facematch.ParseMetric(cfg.Matcher.Metric)
	if err != nil {
		return nil, err
	}

	backend, err := OpenBackend(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(ctx, backend, Options{
		Dim:       cfg.Extractor.Dim,
		Metric:    metric,
		UseIndex:  cfg.Matcher.Index == "hnsw",
		IndexPath: cfg.Matcher.IndexPath,
		Logger:    logger,
	})
	if err != nil {
		backend.Close()
		return nil, err
	}
	return store, nil
}

func init() {
	RegisterBackend("memory", func(context.Context, config.StoreConfig) (Backend, error) {
		return NewMemoryBackend(), nil
	})
}
