package worker

import (
	"context"

	audit "truconn/pkg/platform/audit"
)

// Worker consumes lifecycle events from a channel and persists them.
// It returns when the context is cancelled or the inbox is closed.
type Worker struct {
	store   audit.Store
	inbox   <-chan audit.Event
	onError func(audit.Event, error)
}

func NewWorker(store audit.Store, inbox <-chan audit.Event, onError func(audit.Event, error)) *Worker {
	return &Worker{store: store, inbox: inbox, onError: onError}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.store.Append(ctx, event); err != nil && w.onError != nil {
				w.onError(event, err)
			}
		}
	}
}
