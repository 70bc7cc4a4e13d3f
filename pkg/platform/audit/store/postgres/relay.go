package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/twmb/franz-go/pkg/kgo"
)

// RecordPublisher delivers records with broker acknowledgement.
type RecordPublisher interface {
	PublishSync(ctx context.Context, records ...*kgo.Record) error
}

// Relay drains unpublished outbox rows to a Kafka topic in id order.
// Delivery is at-least-once: a crash between publish and mark replays the batch.
type Relay struct {
	pool      *pgxpool.Pool
	publisher RecordPublisher
	topic     string
	interval  time.Duration
	batchSize int
	logger    *slog.Logger
}

type RelayOption func(*Relay)

func WithInterval(d time.Duration) RelayOption {
	return func(r *Relay) {
		if d > 0 {
			r.interval = d
		}
	}
}

func WithBatchSize(n int) RelayOption {
	return func(r *Relay) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

func WithLogger(logger *slog.Logger) RelayOption {
	return func(r *Relay) {
		r.logger = logger
	}
}

func NewRelay(pool *pgxpool.Pool, publisher RecordPublisher, topic string, opts ...RelayOption) *Relay {
	r := &Relay{
		pool:      pool,
		publisher: publisher,
		topic:     topic,
		interval:  2 * time.Second,
		batchSize: 100,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run polls until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			for {
				n, err := r.RelayOnce(ctx)
				if err != nil {
					r.logger.WarnContext(ctx, "outbox relay failed", "error", err)
					break
				}
				if n < r.batchSize {
					break
				}
			}
		}
	}
}

// RelayOnce publishes one batch and returns how many rows it marked.
func (r *Relay) RelayOnce(ctx context.Context) (int, error) {
	var relayed int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, `
			SELECT id, COALESCE(citizen_id::text, ''), payload
			FROM event_outbox
			WHERE published_at IS NULL
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED`, r.batchSize)
		if err != nil {
			return fmt.Errorf("select outbox: %w", err)
		}
		var (
			ids     []int64
			records []*kgo.Record
		)
		for rows.Next() {
			var (
				id      int64
				key     string
				payload []byte
			)
			if err := rows.Scan(&id, &key, &payload); err != nil {
				rows.Close()
				return fmt.Errorf("scan outbox: %w", err)
			}
			ids = append(ids, id)
			records = append(records, &kgo.Record{Topic: r.topic, Key: []byte(key), Value: payload})
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate outbox: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}

		if err := r.publisher.PublishSync(ctx, records...); err != nil {
			return fmt.Errorf("publish outbox batch: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE event_outbox SET published_at = now() WHERE id = ANY($1)`, ids); err != nil {
			return fmt.Errorf("mark outbox published: %w", err)
		}
		relayed = len(ids)
		return nil
	})
	return relayed, err
}
