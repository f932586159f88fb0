package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoDatabase is returned when run history is requested without a database URL.
var ErrNoDatabase = errors.New("no database configured (set database.url or DATABASE_URL)")

func Connect(ctx context.Context, dbURL string) (*pgxpool.Pool, error) {
	if dbURL == "" {
		return nil, ErrNoDatabase
	}

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("error parsing db config: %w", err)
	}
	config.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error connecting to db: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("error pinging db: %w", err)
	}

	return pool, nil
}

// Open connects, applies pending migrations and returns a ready Store.
func Open(ctx context.Context, dbURL string, log Logger) (*Store, error) {
	pool, err := Connect(ctx, dbURL)
	if err != nil {
		return nil, err
	}
	if err := ApplyMigrations(ctx, pool, log); err != nil {
		pool.Close()
		return nil, err
	}
	return NewStore(pool), nil
}
