package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/lox/bill-relevance-ranker/internal/cache"
	"github.com/lox/bill-relevance-ranker/internal/db"
)

// SetupCacheStore opens the configured cache backend. The sqlite backend shares
// the corpus database.
func SetupCacheStore(
	ctx context.Context,
	backend string,
	dataDir string,
	database *db.DB,
	logger *log.Logger,
) (cache.Store, error) {
	switch backend {
	case "badger":
		store, err := cache.NewBadgerStore(filepath.Join(dataDir, "cache"), logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create cache store: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := cache.NewSQLiteStore(ctx, database.DB())
		if err != nil {
			return nil, fmt.Errorf("failed to create cache store: %w", err)
		}
		return store, nil
	case "memory":
		logger.Warn("Using in-memory cache, embeddings will be recomputed on every run")
		return cache.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown cache backend: %s", backend)
	}
}
