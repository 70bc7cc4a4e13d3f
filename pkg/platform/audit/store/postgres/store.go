// Package postgres persists lifecycle events to an outbox table. When the
// context carries a transaction the event commits or rolls back with it.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	audit "truconn/pkg/platform/audit"
	txcontext "truconn/pkg/platform/tx"
)

type Store struct {
	pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(audit.NewPayload(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	var citizenID any
	if !event.CitizenID.IsNil() {
		citizenID = event.CitizenID.String()
	}
	q := txcontext.QuerierFrom(ctx, s.pool)
	_, err = q.Exec(ctx, `
		INSERT INTO event_outbox (category, action, citizen_id, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		string(event.Category), event.Action, citizenID, payload, event.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}
