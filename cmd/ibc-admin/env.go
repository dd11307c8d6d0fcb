package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	logpkg "india-blood-connect/common/logger"
	commonredis "india-blood-connect/common/redis"
	"india-blood-connect/internal/config"
	"india-blood-connect/internal/notify"
	"india-blood-connect/internal/repository"
)

// env what every subcommand works against.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	repos  *repository.Repos
	db     *sql.DB // nil unless the postgres backend is in use
	close  func()
}

type opener func(ctx context.Context) (*env, error)

// openEnv connects to the store selected by STORE_BACKEND. The console
// logger writes to stderr so command output stays machine-readable.
func openEnv(ctx context.Context) (*env, error) {
	cfg := config.Load()
	logger, err := logpkg.NewLogger(cfg.Log.Level, "console", "ibc-admin")
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	var client *redis.Client
	if cfg.StoreBackend != config.BackendHosted {
		if client, err = commonredis.Connect(ctx, &cfg.Redis); err != nil {
			return nil, err
		}
	}
	bus := notify.Publisher(notify.Nop{})
	if client != nil {
		bus = notify.NewRedisBus(client, logger)
	}

	repos, db, err := repository.Open(ctx, cfg, client, bus, logger)
	if err != nil {
		return nil, err
	}
	return &env{
		cfg:    cfg,
		logger: logger,
		repos:  repos,
		db:     db,
		close: func() {
			if db != nil {
				_ = db.Close()
			}
			if client != nil {
				_ = client.Close()
			}
			_ = logger.Sync()
		},
	}, nil
}
