package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/repository"
)

// CommitService reads the commit log of a branch.
type CommitService struct{ *core }

// List returns the commits of a branch in timestamp order.
func (s *CommitService) List(ctx context.Context, userID uuid.UUID, sc model.Scope) ([]model.Commit, error) {
	var out []model.Commit
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireScope(ctx, tx, userID, sc, false); err != nil {
			return err
		}
		var err error
		out, err = tx.Commits().List(ctx, sc)
		return err
	})
	return out, err
}

// Get returns one commit of the branch.
func (s *CommitService) Get(ctx context.Context, userID uuid.UUID, sc model.Scope, commitID uuid.UUID) (*model.Commit, error) {
	var c *model.Commit
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireScope(ctx, tx, userID, sc, false); err != nil {
			return err
		}
		var err error
		c, err = tx.Commits().Get(ctx, sc, commitID)
		return err
	})
	return c, err
}

// asOf resolves an optional commit to the timestamp bound used by reads.
func asOf(ctx context.Context, tx repository.Tx, sc model.Scope, commitID *uuid.UUID) (int64, error) {
	if commitID == nil {
		return model.Latest, nil
	}
	c, err := tx.Commits().Get(ctx, sc, *commitID)
	if err != nil {
		return 0, err
	}
	return c.Timestamp, nil
}
