// Package postgres owns the pgx connection pool and schema migrations.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"truconn/internal/platform/config"
)

// Postgres error codes the stores translate into sentinel errors.
const (
	CodeUniqueViolation      = "23505"
	CodeForeignKeyViolation  = "23503"
	CodeLockNotAvailable     = "55P03"
	CodeSerializationFailure = "40001"
	CodeDeadlockDetected     = "40P01"
)

// NewPool connects and pings. The caller owns Close.
func NewPool(ctx context.Context, cfg config.Storage) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return pool, nil
}

// HasCode reports whether err is a postgres error with one of the codes.
func HasCode(err error, codes ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	for _, c := range codes {
		if pgErr.Code == c {
			return true
		}
	}
	return false
}

// IsContention reports lock and serialization failures that a caller should retry.
func IsContention(err error) bool {
	return HasCode(err, CodeLockNotAvailable, CodeSerializationFailure, CodeDeadlockDetected)
}
