package stream

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truconn/pkg/domain"
	audit "truconn/pkg/platform/audit"
	"truconn/pkg/platform/audit/store/memory"
)

type record struct {
	topic      string
	key, value []byte
}

type capturingPublisher struct {
	mu      sync.Mutex
	records []record
}

func (p *capturingPublisher) PublishAsync(_ context.Context, topic string, key, value []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, record{topic: topic, key: key, value: value})
}

type failingStore struct{}

func (failingStore) Append(context.Context, audit.Event) error { return errors.New("disk full") }

func TestAppendPersistsThenPublishes(t *testing.T) {
	next := memory.NewInMemoryStore()
	pub := &capturingPublisher{}
	store := New(next, pub, "truconn.lifecycle-events")
	citizen := domain.CitizenID(uuid.New())

	err := store.Append(context.Background(), audit.Event{
		CitizenID: citizen,
		Action:    string(audit.EventConsentGranted),
	})
	require.NoError(t, err)

	stored, err := next.ListByCitizen(context.Background(), citizen)
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	require.Len(t, pub.records, 1)
	assert.Equal(t, "truconn.lifecycle-events", pub.records[0].topic)
	assert.Equal(t, citizen.String(), string(pub.records[0].key))

	var payload audit.Payload
	require.NoError(t, json.Unmarshal(pub.records[0].value, &payload))
	assert.Equal(t, string(audit.EventConsentGranted), payload.Action)
}

func TestAppendFailureSkipsPublish(t *testing.T) {
	pub := &capturingPublisher{}
	err := New(failingStore{}, pub, "events").Append(context.Background(), audit.Event{Action: "x"})
	require.Error(t, err)
	assert.Empty(t, pub.records)
}

func TestEventsWithoutCitizenHaveNoKey(t *testing.T) {
	pub := &capturingPublisher{}
	require.NoError(t, New(memory.NewInMemoryStore(), pub, "events").Append(context.Background(), audit.Event{
		OrganizationID: domain.OrganizationID(uuid.New()),
		Action:         string(audit.EventOrganizationRegistered),
	}))
	require.Len(t, pub.records, 1)
	assert.Nil(t, pub.records[0].key)
}
