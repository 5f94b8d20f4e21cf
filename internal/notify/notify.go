// Package notify delivers status-change events to customers and to
// out-of-process consumers. Delivery is best-effort: a failed sink never
// undoes the status change that produced the event.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Async.Notify once Close has been called.
var ErrClosed = errors.New("notifier closed")

// Event describes one committed status change.
type Event struct {
	ID            uuid.UUID `json:"event_id"`
	Kind          string    `json:"kind"`
	EntityID      uuid.UUID `json:"entity_id"`
	OldStatus     string    `json:"old_status"`
	NewStatus     string    `json:"new_status"`
	ActorID       uuid.UUID `json:"actor_id"`
	ActorRole     string    `json:"actor_role"`
	CustomerID    uuid.UUID `json:"customer_id"`
	CustomerName  string    `json:"customer_name"`
	CustomerPhone string    `json:"customer_phone,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Notifier interface {
	Notify(ctx context.Context, ev Event) error
}

// NotifierFunc adapts a plain function to Notifier.
type NotifierFunc func(ctx context.Context, ev Event) error

func (f NotifierFunc) Notify(ctx context.Context, ev Event) error { return f(ctx, ev) }

// Fanout runs every sink in order. One failing sink does not stop the rest.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, ev Event) error {
	var errs []error
	for _, n := range f {
		if n == nil {
			continue
		}
		if err := safeNotify(ctx, n, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func safeNotify(ctx context.Context, n Notifier, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("notifier panic: %v", r)
		}
	}()
	return n.Notify(ctx, ev)
}

// Async hands events to a single background worker. Notify never blocks;
// when the buffer is full the event is dropped and logged.
type Async struct {
	next    Notifier
	timeout time.Duration
	inbox   chan Event
	done    chan struct{}

	mu     sync.RWMutex
	closed bool
}

func NewAsync(next Notifier, buf int, timeout time.Duration) *Async {
	return &Async{
		next:    next,
		timeout: timeout,
		inbox:   make(chan Event, buf),
		done:    make(chan struct{}),
	}
}

// Start runs the worker until Close is called and the buffer is drained.
func (a *Async) Start() {
	go func() {
		defer close(a.done)
		for ev := range a.inbox {
			ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
			if err := a.next.Notify(ctx, ev); err != nil {
				log.Printf("WARN: notification delivery failed: %s %s %s->%s: %v",
					ev.Kind, ev.EntityID, ev.OldStatus, ev.NewStatus, err)
			}
			cancel()
		}
	}()
}

func (a *Async) Notify(_ context.Context, ev Event) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return fmt.Errorf("%w, dropped %s %s", ErrClosed, ev.Kind, ev.EntityID)
	}
	select {
	case a.inbox <- ev:
		return nil
	default:
		return fmt.Errorf("notification queue full, dropped %s %s", ev.Kind, ev.EntityID)
	}
}

// Close stops accepting events and waits for the worker to drain.
// Later calls are no-ops.
func (a *Async) Close() {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	close(a.inbox)
	a.mu.Unlock()
	<-a.done
}
