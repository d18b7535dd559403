package notify

import (
	"context"
	"errors"
	"sync"

	"github.com/watsh-io/backend/internal/model"
)

// Async errors.
var (
	ErrQueueFull = errors.New("notify: queue full, event dropped")
	ErrClosed    = errors.New("notify: closed")
)

// Async forwards events to a slower notifier from one background goroutine,
// in commit order. Publish never waits on the wrapped notifier.
type Async struct {
	next    Notifier
	onError func(error)

	mu     sync.RWMutex
	closed bool
	events chan model.CommitEvent
	done   chan struct{}
}

// NewAsync starts forwarding to next with room for buffer pending events.
// Errors from next are passed to onError, which may be nil.
func NewAsync(next Notifier, buffer int, onError func(error)) *Async {
	a := &Async{
		next:    next,
		onError: onError,
		events:  make(chan model.CommitEvent, buffer),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.events {
		if err := a.next.Publish(context.Background(), ev); err != nil && a.onError != nil {
			a.onError(err)
		}
	}
}

// Publish implements Notifier. A full queue drops the event.
func (a *Async) Publish(_ context.Context, ev model.CommitEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.events <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting events and waits until the queue is drained.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.events)
	}
	a.mu.Unlock()
	<-a.done
}
