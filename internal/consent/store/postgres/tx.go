package postgres

import (
	"context"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"truconn/internal/consent/service"
	"truconn/internal/platform/postgres"
	"truconn/pkg/domain"
	dErrors "truconn/pkg/domain-errors"
	"truconn/pkg/platform/sentinel"
	txcontext "truconn/pkg/platform/tx"
)

// Tx scopes each consent mutation to one citizen with a transaction-level
// advisory lock keyed on the citizen id.
type Tx struct {
	pool        *pgxpool.Pool
	store       *Store
	lockTimeout time.Duration
}

func NewTx(pool *pgxpool.Pool, store *Store, lockTimeout time.Duration) *Tx {
	if lockTimeout <= 0 {
		lockTimeout = 5 * time.Second
	}
	return &Tx{pool: pool, store: store, lockTimeout: lockTimeout}
}

func (t *Tx) RunInTx(ctx context.Context, citizenID domain.CitizenID, fn func(ctx context.Context, store service.Store) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	err := pgx.BeginFunc(ctx, t.pool, func(tx pgx.Tx) error {
		// SET LOCAL does not take bind parameters.
		if _, err := tx.Exec(ctx, fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", t.lockTimeout.Milliseconds())); err != nil {
			return fmt.Errorf("set lock timeout: %w", err)
		}
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, advisoryKey(citizenID)); err != nil {
			return err
		}
		return fn(txcontext.WithTx(ctx, tx), t.store)
	})
	if postgres.IsContention(err) {
		return fmt.Errorf("citizen %s: %w: %w", citizenID, sentinel.ErrConflict, err)
	}
	return err
}

func advisoryKey(citizenID domain.CitizenID) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(citizenID.String()))
	return int64(h.Sum64())
}
