package circuit

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// outcome is one call against the protected backend.
type outcome bool

const (
	ok   outcome = true
	fail outcome = false
)

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name      string
		failures  int
		successes int
		calls     []outcome
		wantOpen  bool
	}{
		{"fresh breaker is closed", 3, 2, nil, false},
		{"opens on the threshold failure", 3, 2, []outcome{fail, fail, fail}, true},
		{"stays closed below threshold", 3, 2, []outcome{fail, fail}, false},
		{"success clears the failure streak", 3, 2, []outcome{fail, fail, ok, fail, fail}, false},
		{"closes after enough probes", 1, 2, []outcome{fail, ok, ok}, false},
		{"one probe is not enough", 1, 2, []outcome{fail, ok}, true},
		{"failed probe restarts the count", 1, 3, []outcome{fail, ok, ok, fail, ok, ok}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("redis-limiter", WithFailureThreshold(tt.failures), WithSuccessThreshold(tt.successes))
			for _, c := range tt.calls {
				if c == ok {
					b.RecordSuccess()
				} else {
					b.RecordFailure()
				}
			}
			assert.Equal(t, tt.wantOpen, b.IsOpen())
		})
	}
}

func TestBreakerReportsEdges(t *testing.T) {
	b := New("redis-limiter", WithFailureThreshold(2), WithSuccessThreshold(1))
	assert.Equal(t, "redis-limiter", b.Name())
	assert.Equal(t, StateClosed, b.State())

	useFallback, change := b.RecordFailure()
	assert.False(t, useFallback)
	assert.False(t, change.Opened)

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.True(t, change.Opened, "the tripping failure reports the edge")

	useFallback, change = b.RecordFailure()
	assert.True(t, useFallback)
	assert.False(t, change.Opened, "later failures while open do not")

	usePrimary, change := b.RecordSuccess()
	assert.True(t, usePrimary)
	assert.True(t, change.Closed)
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerReset(t *testing.T) {
	b := New("redis-limiter", WithFailureThreshold(1))
	b.RecordFailure()
	require.True(t, b.IsOpen())

	b.Reset()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerConcurrentFailures(t *testing.T) {
	b := New("redis-limiter", WithFailureThreshold(50))
	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()
	assert.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State().String())
}
