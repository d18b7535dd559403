package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/repository"
)

// requireMember fails closed: membership is checked before the project is
// even looked up.
func requireMember(ctx context.Context, tx repository.Tx, projectID, userID uuid.UUID) (*model.Project, error) {
	ok, err := tx.Members().Exists(ctx, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errs.ErrNotMember
	}
	return tx.Projects().Get(ctx, projectID)
}

func requireOwner(ctx context.Context, tx repository.Tx, projectID, userID uuid.UUID) (*model.Project, error) {
	p, err := tx.Projects().Get(ctx, projectID)
	if errors.Is(err, errs.ErrProjectNotFound) {
		return nil, errs.ErrNotOwner
	}
	if err != nil {
		return nil, err
	}
	if p.Owner != userID {
		return nil, errs.ErrNotOwner
	}
	return p, nil
}

func writable(p *model.Project) error {
	if p.Archived {
		return fmt.Errorf("%s: %w", p.Slug, errs.ErrArchivedProject)
	}
	return nil
}

// requireWritable is requireMember plus the archive check.
func requireWritable(ctx context.Context, tx repository.Tx, projectID, userID uuid.UUID) (*model.Project, error) {
	p, err := requireMember(ctx, tx, projectID, userID)
	if err != nil {
		return nil, err
	}
	return p, writable(p)
}

// requireScope checks access and that the branch exists under its
// environment. mutate additionally rejects archived projects.
func requireScope(ctx context.Context, tx repository.Tx, userID uuid.UUID, scope model.Scope, mutate bool) (*model.Project, error) {
	p, err := requireMember(ctx, tx, scope.Project, userID)
	if err != nil {
		return nil, err
	}
	if mutate {
		if err := writable(p); err != nil {
			return nil, err
		}
	}
	if _, err := tx.Environments().Get(ctx, scope.Project, scope.Environment); err != nil {
		return nil, err
	}
	if _, err := tx.Branches().Get(ctx, scope.Project, scope.Environment, scope.Branch); err != nil {
		return nil, err
	}
	return p, nil
}
