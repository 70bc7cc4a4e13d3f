package publisher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truconn/pkg/domain"
	audit "truconn/pkg/platform/audit"
	"truconn/pkg/platform/audit/store/memory"
	"truconn/pkg/requestcontext"
)

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	citizenID := domain.CitizenID(uuid.New())
	ctx := requestcontext.WithRequestID(context.Background(), "req-1")
	err := pub.Emit(ctx, audit.Event{
		CitizenID: citizenID,
		Action:    string(audit.EventConsentDenied),
	})
	require.NoError(t, err)

	events, err := store.ListByCitizen(context.Background(), citizenID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.CategoryCompliance, events[0].Category)
	assert.Equal(t, "req-1", events[0].RequestID)
	assert.False(t, events[0].Timestamp.IsZero())
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))

	citizenID := domain.CitizenID(uuid.New())
	err := pub.Emit(context.Background(), audit.Event{
		CitizenID: citizenID,
		Action:    string(audit.EventGrantCreated),
	})
	require.NoError(t, err)

	// Close drains the buffer before returning.
	require.NoError(t, pub.Close())

	events, err := store.ListByCitizen(context.Background(), citizenID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventGrantCreated), events[0].Action)
}

func TestPublisher_ConcurrentEmit(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(4))

	citizenID := domain.CitizenID(uuid.New())
	const goroutines = 50
	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = pub.Emit(context.Background(), audit.Event{
				CitizenID: citizenID,
				Action:    string(audit.EventGrantModified),
				Timestamp: time.Now(),
			})
		}()
	}
	wg.Wait()
	require.NoError(t, pub.Close())

	events, err := store.ListByCitizen(context.Background(), citizenID)
	require.NoError(t, err)
	assert.Len(t, events, goroutines)
}

func TestPublisher_EmitAfterCloseWritesSynchronously(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	require.NoError(t, pub.Close())

	citizenID := domain.CitizenID(uuid.New())
	require.NoError(t, pub.Emit(context.Background(), audit.Event{CitizenID: citizenID, Action: string(audit.EventGrantRevoked)}))

	events, err := store.ListByCitizen(context.Background(), citizenID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}
