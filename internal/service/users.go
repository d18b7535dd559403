package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/repository"
)

// UserService manages accounts. Authentication happens upstream.
type UserService struct{ *core }

// Create registers a user together with the sample project.
func (s *UserService) Create(ctx context.Context, email string) (*model.User, error) {
	if err := validEmail(email); err != nil {
		return nil, err
	}
	var u *model.User
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		u, err = createUser(ctx, tx, email, true)
		return err
	})
	return u, err
}

func createUser(ctx context.Context, tx repository.Tx, email string, sample bool) (*model.User, error) {
	u := &model.User{ID: model.NewID(), Email: email}
	if err := tx.Users().Create(ctx, u); err != nil {
		return nil, err
	}
	if sample {
		if _, err := createProject(ctx, tx, sampleProjectSlug, sampleProjectDesc, u.ID); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Get loads a user by id.
func (s *UserService) Get(ctx context.Context, userID uuid.UUID) (*model.User, error) {
	var u *model.User
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		u, err = tx.Users().GetByID(ctx, userID)
		return err
	})
	return u, err
}

// GetByEmail loads a user by email.
func (s *UserService) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u *model.User
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		u, err = tx.Users().GetByEmail(ctx, email)
		return err
	})
	return u, err
}

// UpdateEmail changes the email of a user.
func (s *UserService) UpdateEmail(ctx context.Context, userID uuid.UUID, email string) error {
	if err := validEmail(email); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Users().UpdateEmail(ctx, userID, email)
	})
}

// Delete removes a user and every project they own.
func (s *UserService) Delete(ctx context.Context, userID uuid.UUID) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		owned, err := tx.Projects().ListOwned(ctx, userID)
		if err != nil {
			return err
		}
		for _, p := range owned {
			if err := deleteProject(ctx, tx, p.ID); err != nil {
				return err
			}
		}
		return tx.Users().Delete(ctx, userID)
	})
}

// Snapshot returns the user with every project they are a member of, each
// with its members and its environments and branches.
func (s *UserService) Snapshot(ctx context.Context, userID uuid.UUID) (*model.UserSnapshot, error) {
	var out model.UserSnapshot
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		u, err := tx.Users().GetByID(ctx, userID)
		if err != nil {
			return err
		}
		out.User = *u
		ms, err := tx.Members().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, m := range ms {
			ps, err := projectSnapshot(ctx, tx, m.Project)
			if err != nil {
				return err
			}
			out.Projects = append(out.Projects, *ps)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func projectSnapshot(ctx context.Context, tx repository.Tx, projectID uuid.UUID) (*model.ProjectSnapshot, error) {
	p, err := tx.Projects().Get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	ps := &model.ProjectSnapshot{Project: *p}
	if ps.Members, err = tx.Members().ListByProject(ctx, projectID); err != nil {
		return nil, err
	}
	envs, err := tx.Environments().List(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, e := range envs {
		bs, err := tx.Branches().List(ctx, projectID, e.ID)
		if err != nil {
			return nil, err
		}
		ps.Environments = append(ps.Environments, model.EnvironmentSnapshot{Environment: e, Branches: bs})
	}
	return ps, nil
}
