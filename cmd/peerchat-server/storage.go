package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/adapters/memory"
	"github.com/coregx/peerchat/adapters/redis"
	"github.com/coregx/peerchat/adapters/relica"
	"github.com/coregx/peerchat/cmd/peerchat-server/internal/config"
)

// messageBackend is a repository the server can health-check and close.
type messageBackend interface {
	peerchat.MessageRepository
	peerchat.Pinger
	io.Closer
}

type sqlBackend struct {
	*relica.MessageRepository
	db *sql.DB
}

func (b *sqlBackend) Close() error {
	return b.db.Close()
}

type memoryBackend struct {
	*memory.MessageRepository
}

func (memoryBackend) Close() error { return nil }

// openBackend connects the configured message repository, applying the SQL
// schema when needed.
func openBackend(ctx context.Context, cfg config.DatabaseConfig) (messageBackend, error) {
	switch {
	case cfg.IsSQL():
		db, err := sql.Open(cfg.Driver, cfg.GetDSN())
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		if cfg.Driver == "sqlite3" {
			db.SetMaxOpenConns(1)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		if err := peerchat.ApplyMigrations(ctx, db, cfg.Driver, cfg.Prefix); err != nil {
			_ = db.Close()
			return nil, err
		}
		repos := relica.NewRepositoriesWithPrefix(db, cfg.Driver, cfg.Prefix)
		return &sqlBackend{MessageRepository: repos.Message, db: db}, nil

	case cfg.Driver == "redis":
		repo, err := redis.New(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		return repo, nil

	default:
		return memoryBackend{memory.NewMessageRepository()}, nil
	}
}
