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

// EnvironmentService manages environments.
type EnvironmentService struct{ *core }

// Create adds a non-default environment with its default branch.
func (s *EnvironmentService) Create(ctx context.Context, userID, projectID uuid.UUID, slug string) (*model.Environment, error) {
	if err := validSlug(slug); err != nil {
		return nil, err
	}
	var e *model.Environment
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireWritable(ctx, tx, projectID, userID); err != nil {
			return err
		}
		var err error
		e, err = createEnvironment(ctx, tx, projectID, slug, false)
		return err
	})
	return e, err
}

// Get returns one environment.
func (s *EnvironmentService) Get(ctx context.Context, userID, projectID, environmentID uuid.UUID) (*model.Environment, error) {
	var e *model.Environment
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireMember(ctx, tx, projectID, userID); err != nil {
			return err
		}
		var err error
		e, err = tx.Environments().Get(ctx, projectID, environmentID)
		return err
	})
	return e, err
}

// List returns the environments of a project.
func (s *EnvironmentService) List(ctx context.Context, userID, projectID uuid.UUID) ([]model.Environment, error) {
	var out []model.Environment
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireMember(ctx, tx, projectID, userID); err != nil {
			return err
		}
		var err error
		out, err = tx.Environments().List(ctx, projectID)
		return err
	})
	return out, err
}

// UpdateSlug renames an environment.
func (s *EnvironmentService) UpdateSlug(ctx context.Context, userID, projectID, environmentID uuid.UUID, slug string) error {
	if err := validSlug(slug); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireWritable(ctx, tx, projectID, userID); err != nil {
			return err
		}
		return tx.Environments().UpdateSlug(ctx, projectID, environmentID, slug)
	})
}

// SetDefault moves the default flag to environmentID.
func (s *EnvironmentService) SetDefault(ctx context.Context, userID, projectID, environmentID uuid.UUID) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireWritable(ctx, tx, projectID, userID); err != nil {
			return err
		}
		if _, err := tx.Environments().Get(ctx, projectID, environmentID); err != nil {
			return err
		}
		cur, err := tx.Environments().GetDefault(ctx, projectID)
		switch {
		case errors.Is(err, errs.ErrEnvironmentNotFound):
		case err != nil:
			return err
		case cur.ID == environmentID:
			return fmt.Errorf("environment %s: %w", cur.Slug, errs.ErrAlreadyDefault)
		default:
			if err := tx.Environments().SetDefault(ctx, projectID, cur.ID, false); err != nil {
				return err
			}
		}
		return tx.Environments().SetDefault(ctx, projectID, environmentID, true)
	})
}

// Delete removes a non-default environment with all its branches.
func (s *EnvironmentService) Delete(ctx context.Context, userID, projectID, environmentID uuid.UUID) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireWritable(ctx, tx, projectID, userID); err != nil {
			return err
		}
		e, err := tx.Environments().Get(ctx, projectID, environmentID)
		if err != nil {
			return err
		}
		if e.Default {
			return fmt.Errorf("environment %s: %w", e.Slug, errs.ErrDefaultEnvironmentDeletion)
		}
		return deleteEnvironment(ctx, tx, projectID, environmentID)
	})
}

// BranchService manages branches.
type BranchService struct{ *core }

func requireEnvironment(ctx context.Context, tx repository.Tx, userID, projectID, environmentID uuid.UUID, mutate bool) error {
	p, err := requireMember(ctx, tx, projectID, userID)
	if err != nil {
		return err
	}
	if mutate {
		if err := writable(p); err != nil {
			return err
		}
	}
	_, err = tx.Environments().Get(ctx, projectID, environmentID)
	return err
}

// Create adds a non-default branch.
func (s *BranchService) Create(ctx context.Context, userID, projectID, environmentID uuid.UUID, slug string) (*model.Branch, error) {
	if err := validSlug(slug); err != nil {
		return nil, err
	}
	b := &model.Branch{ID: model.NewID(), Project: projectID, Environment: environmentID, Slug: slug}
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := requireEnvironment(ctx, tx, userID, projectID, environmentID, true); err != nil {
			return err
		}
		return tx.Branches().Create(ctx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Get returns one branch.
func (s *BranchService) Get(ctx context.Context, userID, projectID, environmentID, branchID uuid.UUID) (*model.Branch, error) {
	var b *model.Branch
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := requireEnvironment(ctx, tx, userID, projectID, environmentID, false); err != nil {
			return err
		}
		var err error
		b, err = tx.Branches().Get(ctx, projectID, environmentID, branchID)
		return err
	})
	return b, err
}

// List returns the branches of an environment.
func (s *BranchService) List(ctx context.Context, userID, projectID, environmentID uuid.UUID) ([]model.Branch, error) {
	var out []model.Branch
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := requireEnvironment(ctx, tx, userID, projectID, environmentID, false); err != nil {
			return err
		}
		var err error
		out, err = tx.Branches().List(ctx, projectID, environmentID)
		return err
	})
	return out, err
}

// UpdateSlug renames a branch.
func (s *BranchService) UpdateSlug(ctx context.Context, userID uuid.UUID, sc model.Scope, slug string) error {
	if err := validSlug(slug); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := requireEnvironment(ctx, tx, userID, sc.Project, sc.Environment, true); err != nil {
			return err
		}
		return tx.Branches().UpdateSlug(ctx, sc.Project, sc.Environment, sc.Branch, slug)
	})
}

// SetDefault clears the current default and promotes sc.Branch in one
// transaction. A concurrent promotion loses on the partial unique index.
func (s *BranchService) SetDefault(ctx context.Context, userID uuid.UUID, sc model.Scope) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := requireEnvironment(ctx, tx, userID, sc.Project, sc.Environment, true); err != nil {
			return err
		}
		if _, err := tx.Branches().Get(ctx, sc.Project, sc.Environment, sc.Branch); err != nil {
			return err
		}
		cur, err := tx.Branches().GetDefault(ctx, sc.Project, sc.Environment)
		switch {
		case errors.Is(err, errs.ErrBranchNotFound):
		case err != nil:
			return err
		case cur.ID == sc.Branch:
			return fmt.Errorf("branch %s: %w", cur.Slug, errs.ErrAlreadyDefault)
		default:
			if err := tx.Branches().SetDefault(ctx, sc.Project, sc.Environment, cur.ID, false); err != nil {
				return err
			}
		}
		return tx.Branches().SetDefault(ctx, sc.Project, sc.Environment, sc.Branch, true)
	})
}

// Delete removes a non-default branch, its commits and its items.
func (s *BranchService) Delete(ctx context.Context, userID uuid.UUID, sc model.Scope) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if err := requireEnvironment(ctx, tx, userID, sc.Project, sc.Environment, true); err != nil {
			return err
		}
		b, err := tx.Branches().Get(ctx, sc.Project, sc.Environment, sc.Branch)
		if err != nil {
			return err
		}
		if b.Default {
			return fmt.Errorf("branch %s: %w", b.Slug, errs.ErrDefaultBranchDeletion)
		}
		return deleteBranch(ctx, tx, sc)
	})
}
