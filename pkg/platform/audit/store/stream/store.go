// Package stream mirrors lifecycle events onto a Kafka topic for
// deployments without the Postgres outbox.
package stream

import (
	"context"
	"encoding/json"
	"fmt"

	audit "truconn/pkg/platform/audit"
)

// AsyncPublisher delivers records without blocking the caller.
type AsyncPublisher interface {
	PublishAsync(ctx context.Context, topic string, key, value []byte)
}

// Store appends to next and then publishes the event keyed by citizen.
// Publishing is best effort; the event of record lives in next.
type Store struct {
	next      audit.Store
	publisher AsyncPublisher
	topic     string
}

func New(next audit.Store, publisher AsyncPublisher, topic string) *Store {
	return &Store{next: next, publisher: publisher, topic: topic}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if err := s.next.Append(ctx, event); err != nil {
		return err
	}
	value, err := json.Marshal(audit.NewPayload(event))
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	var key []byte
	if !event.CitizenID.IsNil() {
		key = []byte(event.CitizenID.String())
	}
	s.publisher.PublishAsync(ctx, s.topic, key, value)
	return nil
}
