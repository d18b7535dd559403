package notify

import (
	"context"
	"sync"

	"github.com/watsh-io/backend/internal/model"
)

// Hub is an in-process per-branch fan-out used by streaming readers.
// Slow subscribers lose events instead of stalling writers.
type Hub struct {
	mu     sync.RWMutex
	subs   map[model.Scope]map[chan model.CommitEvent]struct{}
	buffer int
}

// NewHub returns a hub whose subscriber channels hold buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: map[model.Scope]map[chan model.CommitEvent]struct{}{}, buffer: buffer}
}

// Subscribe registers interest in one branch. The returned cancel func
// unregisters and closes the channel; it is safe to call more than once.
func (h *Hub) Subscribe(scope model.Scope) (<-chan model.CommitEvent, func()) {
	ch := make(chan model.CommitEvent, h.buffer)

	h.mu.Lock()
	set, ok := h.subs[scope]
	if !ok {
		set = map[chan model.CommitEvent]struct{}{}
		h.subs[scope] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[scope], ch)
			if len(h.subs[scope]) == 0 {
				delete(h.subs, scope)
			}
			h.mu.Unlock()
			close(ch)
		})
	}
}

// Publish implements Notifier.
func (h *Hub) Publish(_ context.Context, ev model.CommitEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[ev.Scope] {
		select {
		case ch <- ev:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of live subscriptions for scope.
func (h *Hub) Subscribers(scope model.Scope) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[scope])
}
