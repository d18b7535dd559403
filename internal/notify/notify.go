// Package notify delivers commit events to interested parties once the
// writing transaction has been committed.
package notify

import (
	"context"
	"errors"

	"github.com/watsh-io/backend/internal/model"
)

// Notifier receives commit events. Publish runs on the request path right
// after the commit; wrap broker-backed notifiers in Async.
type Notifier interface {
	Publish(ctx context.Context, ev model.CommitEvent) error
}

// Nop discards events.
type Nop struct{}

// Publish implements Notifier.
func (Nop) Publish(context.Context, model.CommitEvent) error { return nil }

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

// Publish implements Notifier.
func (m Multi) Publish(ctx context.Context, ev model.CommitEvent) error {
	var errList []error
	for _, n := range m {
		if err := n.Publish(ctx, ev); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}
