// Package service implements the engine operations on top of a transactional
// repository.Store. Every public method runs in exactly one transaction.
package service

import (
	"context"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/watsh-io/backend/internal/crypto"
	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/notify"
	"github.com/watsh-io/backend/internal/repository"
)

type core struct {
	store    repository.Store
	codec    *crypto.Codec
	notifier notify.Notifier
	log      *zap.Logger
	now      func() time.Time
}

// Option customizes the services.
type Option func(*core)

// WithNotifier sets the post-commit notifier.
func WithNotifier(n notify.Notifier) Option { return func(c *core) { c.notifier = n } }

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(c *core) { c.log = l } }

// WithClock overrides the commit clock.
func WithClock(now func() time.Time) Option { return func(c *core) { c.now = now } }

// Services bundles every engine service around one store.
type Services struct {
	Users        *UserService
	Projects     *ProjectService
	Members      *MemberService
	Environments *EnvironmentService
	Branches     *BranchService
	Commits      *CommitService
	Items        *ItemService
}

// New wires the services. codec seals and opens leaf values.
func New(store repository.Store, codec *crypto.Codec, opts ...Option) *Services {
	c := &core{
		store:    store,
		codec:    codec,
		notifier: notify.Nop{},
		log:      zap.NewNop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return &Services{
		Users:        &UserService{c},
		Projects:     &ProjectService{c},
		Members:      &MemberService{c},
		Environments: &EnvironmentService{c},
		Branches:     &BranchService{c},
		Commits:      &CommitService{c},
		Items:        &ItemService{c},
	}
}

// writer appends item rows tagged with one commit.
type writer struct {
	tx     repository.Tx
	commit model.Commit
	rows   int
}

// openCommit creates the commit row. Timestamps are strictly increasing per
// branch even when the clock stalls or goes backwards.
func openCommit(ctx context.Context, tx repository.Tx, scope model.Scope, author uuid.UUID, message string, now time.Time) (*writer, error) {
	last, err := tx.Commits().LastTimestamp(ctx, scope)
	if err != nil {
		return nil, err
	}
	c := model.Commit{
		ID:        model.NewID(),
		Scope:     scope,
		Author:    author,
		Message:   message,
		Timestamp: max(now.UnixMilli(), last+1),
	}
	if err := tx.Commits().Create(ctx, &c); err != nil {
		return nil, err
	}
	return &writer{tx: tx, commit: c}, nil
}

func (w *writer) scope() model.Scope { return w.commit.Scope }

func (w *writer) put(ctx context.Context, v model.ItemVersion) error {
	v.Scope = w.commit.Scope
	v.Commit = w.commit.ID
	v.Timestamp = w.commit.Timestamp
	if err := w.tx.Items().Append(ctx, &v); err != nil {
		return err
	}
	w.rows++
	return nil
}

func (w *writer) event() model.CommitEvent {
	return model.CommitEvent{
		Commit:    w.commit.ID,
		Scope:     w.commit.Scope,
		Author:    w.commit.Author,
		Message:   w.commit.Message,
		Timestamp: w.commit.Timestamp,
		Rows:      w.rows,
	}
}

// write runs fn on a fresh commit of scope after the access checks, then
// notifies once the transaction is durable.
func (c *core) write(ctx context.Context, userID uuid.UUID, scope model.Scope, message string,
	fn func(ctx context.Context, w *writer) error,
) (*model.Commit, error) {
	var w *writer
	err := c.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireScope(ctx, tx, userID, scope, true); err != nil {
			return err
		}
		var err error
		w, err = openCommit(ctx, tx, scope, userID, message, c.now())
		if err != nil {
			return err
		}
		return fn(ctx, w)
	})
	if err != nil {
		return nil, err
	}

	c.log.Debug("commit written",
		zap.Stringer("commit", w.commit.ID),
		zap.Stringer("project", scope.Project),
		zap.Stringer("environment", scope.Environment),
		zap.Stringer("branch", scope.Branch),
		zap.Int("rows", w.rows),
	)
	c.publish(ctx, w.event())
	commit := w.commit
	return &commit, nil
}

func (c *core) publish(ctx context.Context, ev model.CommitEvent) {
	if err := c.notifier.Publish(context.WithoutCancel(ctx), ev); err != nil {
		c.log.Warn("commit notification failed", zap.Stringer("commit", ev.Commit), zap.Error(err))
	}
}
