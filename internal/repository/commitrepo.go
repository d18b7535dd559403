package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/model"
)

// CommitRepository stores the commit log of each branch.
type CommitRepository interface {
	// Create inserts a commit; its timestamp must be unique within the branch.
	Create(ctx context.Context, c *model.Commit) error
	Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Commit, error)
	// List returns the commits of a branch ordered by timestamp.
	List(ctx context.Context, scope model.Scope) ([]model.Commit, error)
	// LastTimestamp returns the greatest commit timestamp of a branch, or 0.
	LastTimestamp(ctx context.Context, scope model.Scope) (int64, error)
	// DeleteByBranch removes every commit of a branch.
	DeleteByBranch(ctx context.Context, scope model.Scope) error
}
