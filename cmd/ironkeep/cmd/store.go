package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.etcd.io/bbolt"

	"github.com/jmcleod/ironkeep/internal/config"
	"github.com/jmcleod/ironkeep/storage"
	bboltstorage "github.com/jmcleod/ironkeep/storage/bbolt"
	"github.com/jmcleod/ironkeep/storage/memory"
	"github.com/jmcleod/ironkeep/storage/postgres"
)

// openRepository returns the configured backend and a function that releases it.
func openRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Repository, func() error, error) {
	switch cfg.Store {
	case config.StoreBBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
		}
		repo, err := bboltstorage.NewRepositoryFromFile(cfg.BoltPath(), &bbolt.Options{Timeout: 2 * time.Second})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open vault storage: %w", err)
		}
		logger.Debug("opened store", slog.String("store", cfg.Store), slog.String("path", cfg.BoltPath()))
		return repo, repo.Close, nil
	case config.StorePostgres:
		repo, err := postgres.NewRepositoryFromDSN(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open vault storage: %w", err)
		}
		logger.Debug("opened store", slog.String("store", cfg.Store))
		return repo, func() error { repo.Close(); return nil }, nil
	case config.StoreMemory:
		logger.Warn("using in-memory store; nothing will be saved", slog.String("store", cfg.Store))
		return memory.NewRepository(), func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("%w: unknown store %q", config.ErrInvalidConfig, cfg.Store)
	}
}
