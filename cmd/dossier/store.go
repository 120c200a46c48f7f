package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/dossier/internal/config"
	"github.com/Veraticus/dossier/internal/service"
	"github.com/Veraticus/dossier/internal/storage"
)

// openStore opens the summary store selected by store.backend. SQLite
// databases are migrated before use.
func openStore(ctx context.Context, cfg config.Config) (service.SummaryStore, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		slog.Debug("Opened summary store", "backend", cfg.StoreBackend, "path", store.Path())
		return store, nil

	case config.BackendRedis:
		rdb, err := storage.DialRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return nil, err
		}
		slog.Debug("Opened summary store", "backend", cfg.StoreBackend, "addr", cfg.RedisAddr)
		return storage.NewRedisStorage(rdb, cfg.RedisPrefix), nil

	case config.BackendMemory:
		slog.Warn("Using in-memory summary store; sessions will not survive this process")
		return storage.NewMemoryStorage(), nil

	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func closeStore(store service.SummaryStore) {
	if err := store.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}
