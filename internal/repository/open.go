package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"india-blood-connect/common/database"
	"india-blood-connect/internal/config"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/store"
)

// Open builds the repositories for cfg.StoreBackend. The postgres backend
// falls back to the Redis directory when the database is unreachable. The
// returned *sql.DB is nil unless postgres is in use.
func Open(ctx context.Context, cfg *config.Config, rdb *redis.Client, bus notify.Publisher, logger *zap.Logger) (*Repos, *sql.DB, error) {
	switch cfg.StoreBackend {
	case config.BackendHosted:
		if cfg.Hosted.URL == "" {
			return nil, nil, fmt.Errorf("HOSTED_URL is required for the hosted backend")
		}
		client := store.NewTableClient(store.TableClientConfig{
			BaseURL: cfg.Hosted.URL,
			APIKey:  cfg.Hosted.APIKey,
			Timeout: cfg.Hosted.Timeout,
			Retries: cfg.Hosted.Retries,
		}, logger)
		logger.Info("using hosted store", zap.String("url", cfg.Hosted.URL))
		return NewHostedRepos(client, logger), nil, nil

	case config.BackendDirectory:
		logger.Info("using redis directory store")
		return NewDirectoryRepos(store.NewDirectory(rdb, bus, logger), logger), nil, nil

	case config.BackendPostgres, "":
		db, err := database.NewPostgresDB(ctx, &cfg.Database)
		if err != nil {
			logger.Warn("postgres unavailable, falling back to redis directory", zap.Error(err))
			return NewDirectoryRepos(store.NewDirectory(rdb, bus, logger), logger), nil, nil
		}
		logger.Info("using postgres store", zap.String("host", cfg.Database.Host), zap.String("database", cfg.Database.Database))
		return NewPostgresRepos(db, logger), db, nil

	default:
		return nil, nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
}

// Migrate applies Schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
