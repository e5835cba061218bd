package storage

import (
	"context"
	"fmt"

	"github.com/canvaslab/mention-core/pkg/config"
)

// NewBackend creates a new storage backend based on the configuration
func NewBackend(ctx context.Context, cfg *config.Settings) (Backend, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration cannot be nil")
	}
	switch cfg.StorageType {
	case "sqlite":
		if cfg.StoragePath == "" {
			return nil, fmt.Errorf("storage path is required for SQLite backend")
		}
		return NewSqliteBackend(cfg.StoragePath, cfg.Sqlite.WALMode)
	case "postgres":
		if cfg.Postgres.DSN == "" {
			return nil, fmt.Errorf("postgres DSN is required for Postgres backend")
		}
		return NewPostgresBackend(ctx, cfg.Postgres.DSN)
	case "memory", "":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.StorageType)
	}
}
