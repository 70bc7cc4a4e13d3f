// Package publisher fronts a lifecycle event store. Sync mode writes on the
// caller's goroutine (and inside the caller's transaction when the store is
// transaction-aware); async mode hands events to a background worker.
package publisher

import (
	"context"
	"log/slog"
	"sync"

	audit "truconn/pkg/platform/audit"
	"truconn/pkg/platform/audit/worker"
	"truconn/pkg/requestcontext"
)

type Publisher struct {
	store  audit.Store
	logger *slog.Logger

	bufferSize int
	inbox      chan audit.Event
	done       chan struct{}

	mu     sync.RWMutex
	closed bool
}

type Option func(*Publisher)

// WithAsyncBuffer enables async mode with the given channel capacity.
// When the buffer is full, Emit falls back to a synchronous write so no
// compliance event is dropped.
func WithAsyncBuffer(size int) Option {
	return func(p *Publisher) {
		p.bufferSize = size
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) {
		p.logger = logger
	}
}

func NewPublisher(store audit.Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.bufferSize > 0 {
		p.inbox = make(chan audit.Event, p.bufferSize)
		p.done = make(chan struct{})
		w := worker.NewWorker(store, p.inbox, p.logFailure)
		go func() {
			defer close(p.done)
			_ = w.Run(context.Background())
		}()
	}
	return p
}

// Emit fills derived fields and persists or enqueues the event.
func (p *Publisher) Emit(ctx context.Context, event audit.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if event.Category == "" {
		event.Category = audit.AuditEvent(event.Action).Category()
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.inbox != nil && !p.closed {
		select {
		case p.inbox <- event:
			return nil
		default:
		}
	}
	return p.store.Append(ctx, event)
}

// Close drains pending async events. Emit after Close writes synchronously.
func (p *Publisher) Close() error {
	p.mu.Lock()
	if p.closed || p.inbox == nil {
		p.closed = true
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	close(p.inbox)
	p.mu.Unlock()
	<-p.done
	return nil
}

func (p *Publisher) logFailure(event audit.Event, err error) {
	if p.logger == nil {
		return
	}
	p.logger.Error("lifecycle event persistence failed",
		"action", event.Action,
		"citizen_id", event.CitizenID,
		"error", err,
	)
}
