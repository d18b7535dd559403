package service

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/repository"
)

// Slugs created for every new project.
const (
	defaultBranchSlug = "main"
	sampleProjectSlug = "example-project"
	sampleProjectDesc = "This is your first project"
)

var sampleEnvironments = []struct {
	slug      string
	isDefault bool
}{
	{"production", true},
	{"development", false},
	{"staging", false},
}

// ProjectService manages projects.
type ProjectService struct{ *core }

// Create makes a project owned by userID with the three sample environments.
func (s *ProjectService) Create(ctx context.Context, userID uuid.UUID, slug, description string) (*model.Project, error) {
	if err := validSlug(slug); err != nil {
		return nil, err
	}
	if err := validDescription(description); err != nil {
		return nil, err
	}
	var p *model.Project
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := tx.Users().GetByID(ctx, userID); err != nil {
			return err
		}
		var err error
		p, err = createProject(ctx, tx, slug, description, userID)
		return err
	})
	return p, err
}

// Get returns a project the user is a member of.
func (s *ProjectService) Get(ctx context.Context, userID, projectID uuid.UUID) (*model.Project, error) {
	var p *model.Project
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		var err error
		p, err = requireMember(ctx, tx, projectID, userID)
		return err
	})
	return p, err
}

// List returns every project the user is a member of.
func (s *ProjectService) List(ctx context.Context, userID uuid.UUID) ([]model.Project, error) {
	var out []model.Project
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ms, err := tx.Members().ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		for _, m := range ms {
			p, err := tx.Projects().Get(ctx, m.Project)
			if err != nil {
				return err
			}
			out = append(out, *p)
		}
		return nil
	})
	return out, err
}

// UpdateSlug renames a project.
func (s *ProjectService) UpdateSlug(ctx context.Context, userID, projectID uuid.UUID, slug string) error {
	if err := validSlug(slug); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireWritable(ctx, tx, projectID, userID); err != nil {
			return err
		}
		return tx.Projects().UpdateSlug(ctx, projectID, slug)
	})
}

// UpdateDescription changes a project's description.
func (s *ProjectService) UpdateDescription(ctx context.Context, userID, projectID uuid.UUID, description string) error {
	if err := validDescription(description); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireWritable(ctx, tx, projectID, userID); err != nil {
			return err
		}
		return tx.Projects().UpdateDescription(ctx, projectID, description)
	})
}

// Archive freezes a project. Owner only.
func (s *ProjectService) Archive(ctx context.Context, userID, projectID uuid.UUID) error {
	return s.setArchived(ctx, userID, projectID, true)
}

// Unarchive reverses Archive. Owner only.
func (s *ProjectService) Unarchive(ctx context.Context, userID, projectID uuid.UUID) error {
	return s.setArchived(ctx, userID, projectID, false)
}

func (s *ProjectService) setArchived(ctx context.Context, userID, projectID uuid.UUID, archived bool) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireOwner(ctx, tx, projectID, userID); err != nil {
			return err
		}
		return tx.Projects().SetArchived(ctx, projectID, archived)
	})
}

// Delete removes a project and everything below it. Owner only.
func (s *ProjectService) Delete(ctx context.Context, userID, projectID uuid.UUID) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireOwner(ctx, tx, projectID, userID); err != nil {
			return err
		}
		return deleteProject(ctx, tx, projectID)
	})
}

// IsOwner reports whether userID owns the project.
func (s *ProjectService) IsOwner(ctx context.Context, userID, projectID uuid.UUID) (bool, error) {
	var owner bool
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.Projects().Get(ctx, projectID)
		if err != nil {
			return err
		}
		owner = p.Owner == userID
		return nil
	})
	return owner, err
}

func createProject(ctx context.Context, tx repository.Tx, slug, description string, owner uuid.UUID) (*model.Project, error) {
	p := &model.Project{ID: model.NewID(), Slug: slug, Description: description, Owner: owner}
	if err := tx.Projects().Create(ctx, p); err != nil {
		return nil, err
	}
	if err := tx.Members().Create(ctx, &model.Member{ID: model.NewID(), User: owner, Project: p.ID}); err != nil {
		return nil, err
	}
	for _, e := range sampleEnvironments {
		if _, err := createEnvironment(ctx, tx, p.ID, e.slug, e.isDefault); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// createEnvironment always gives the environment its default branch.
func createEnvironment(ctx context.Context, tx repository.Tx, projectID uuid.UUID, slug string, isDefault bool) (*model.Environment, error) {
	e := &model.Environment{ID: model.NewID(), Project: projectID, Slug: slug, Default: isDefault}
	if err := tx.Environments().Create(ctx, e); err != nil {
		return nil, err
	}
	b := &model.Branch{ID: model.NewID(), Project: projectID, Environment: e.ID, Slug: defaultBranchSlug, Default: true}
	if err := tx.Branches().Create(ctx, b); err != nil {
		return nil, err
	}
	return e, nil
}

func deleteProject(ctx context.Context, tx repository.Tx, projectID uuid.UUID) error {
	envs, err := tx.Environments().List(ctx, projectID)
	if err != nil {
		return err
	}
	for _, e := range envs {
		if err := deleteEnvironment(ctx, tx, projectID, e.ID); err != nil {
			return err
		}
	}
	members, err := tx.Members().ListByProject(ctx, projectID)
	if err != nil {
		return err
	}
	for _, m := range members {
		if err := tx.Members().Delete(ctx, projectID, m.User); err != nil {
			return err
		}
	}
	return tx.Projects().Delete(ctx, projectID)
}

func deleteEnvironment(ctx context.Context, tx repository.Tx, projectID, environmentID uuid.UUID) error {
	branches, err := tx.Branches().List(ctx, projectID, environmentID)
	if err != nil {
		return err
	}
	for _, b := range branches {
		sc := model.Scope{Project: projectID, Environment: environmentID, Branch: b.ID}
		if err := deleteBranch(ctx, tx, sc); err != nil {
			return err
		}
	}
	return tx.Environments().Delete(ctx, projectID, environmentID)
}

// deleteBranch removes commits, then item rows, then the branch.
func deleteBranch(ctx context.Context, tx repository.Tx, sc model.Scope) error {
	if err := tx.Commits().DeleteByBranch(ctx, sc); err != nil {
		return err
	}
	if err := tx.Items().DeleteByBranch(ctx, sc); err != nil {
		return err
	}
	return tx.Branches().Delete(ctx, sc.Project, sc.Environment, sc.Branch)
}
