package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

type environmentRepo struct{ st *state }

func (r environmentRepo) index(projectID, id uuid.UUID) int {
	return slices.IndexFunc(r.st.environments, func(e model.Environment) bool {
		return e.Project == projectID && e.ID == id
	})
}

// check mirrors the slug key and the partial default index.
func (r environmentRepo) check(e model.Environment) error {
	for _, x := range r.st.environments {
		if x.ID == e.ID || x.Project != e.Project {
			continue
		}
		if x.Slug == e.Slug {
			return fmt.Errorf("%q: %w", e.Slug, errs.ErrEnvironmentSlugTaken)
		}
		if x.Default && e.Default {
			return fmt.Errorf("environment: %w", errs.ErrDefaultExists)
		}
	}
	return nil
}

func (r environmentRepo) Create(_ context.Context, e *model.Environment) error {
	if err := r.check(*e); err != nil {
		return err
	}
	r.st.environments = append(r.st.environments, *e)
	return nil
}

func (r environmentRepo) Get(_ context.Context, projectID, id uuid.UUID) (*model.Environment, error) {
	i := r.index(projectID, id)
	if i < 0 {
		return nil, errs.ErrEnvironmentNotFound
	}
	e := r.st.environments[i]
	return &e, nil
}

func (r environmentRepo) GetDefault(_ context.Context, projectID uuid.UUID) (*model.Environment, error) {
	i := slices.IndexFunc(r.st.environments, func(e model.Environment) bool {
		return e.Project == projectID && e.Default
	})
	if i < 0 {
		return nil, errs.ErrEnvironmentNotFound
	}
	e := r.st.environments[i]
	return &e, nil
}

func (r environmentRepo) List(_ context.Context, projectID uuid.UUID) ([]model.Environment, error) {
	var out []model.Environment
	for _, e := range r.st.environments {
		if e.Project == projectID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r environmentRepo) UpdateSlug(_ context.Context, projectID, id uuid.UUID, slug string) error {
	i := r.index(projectID, id)
	if i < 0 {
		return errs.ErrEnvironmentNotFound
	}
	next := r.st.environments[i]
	next.Slug = slug
	if err := r.check(next); err != nil {
		return err
	}
	r.st.environments[i] = next
	return nil
}

func (r environmentRepo) SetDefault(_ context.Context, projectID, id uuid.UUID, isDefault bool) error {
	i := r.index(projectID, id)
	if i < 0 {
		return errs.ErrEnvironmentNotFound
	}
	next := r.st.environments[i]
	next.Default = isDefault
	if err := r.check(next); err != nil {
		return err
	}
	r.st.environments[i] = next
	return nil
}

// Delete removes the environment with its branches, commits and items.
func (r environmentRepo) Delete(_ context.Context, projectID, id uuid.UUID) error {
	i := r.index(projectID, id)
	if i < 0 {
		return errs.ErrEnvironmentNotFound
	}
	r.st.environments = slices.Delete(r.st.environments, i, i+1)
	r.st.branches = slices.DeleteFunc(r.st.branches, func(b model.Branch) bool {
		return b.Project == projectID && b.Environment == id
	})
	r.st.commits = slices.DeleteFunc(r.st.commits, func(c model.Commit) bool {
		return c.Scope.Project == projectID && c.Scope.Environment == id
	})
	r.st.items = slices.DeleteFunc(r.st.items, func(v model.ItemVersion) bool {
		return v.Scope.Project == projectID && v.Scope.Environment == id
	})
	return nil
}

type branchRepo struct{ st *state }

func (r branchRepo) index(projectID, environmentID, id uuid.UUID) int {
	return slices.IndexFunc(r.st.branches, func(b model.Branch) bool {
		return b.Project == projectID && b.Environment == environmentID && b.ID == id
	})
}

func (r branchRepo) check(b model.Branch) error {
	for _, x := range r.st.branches {
		if x.ID == b.ID || x.Project != b.Project || x.Environment != b.Environment {
			continue
		}
		if x.Slug == b.Slug {
			return fmt.Errorf("%q: %w", b.Slug, errs.ErrBranchSlugTaken)
		}
		if x.Default && b.Default {
			return fmt.Errorf("branch: %w", errs.ErrDefaultExists)
		}
	}
	return nil
}

func (r branchRepo) Create(_ context.Context, b *model.Branch) error {
	if err := r.check(*b); err != nil {
		return err
	}
	r.st.branches = append(r.st.branches, *b)
	return nil
}

func (r branchRepo) Get(_ context.Context, projectID, environmentID, id uuid.UUID) (*model.Branch, error) {
	i := r.index(projectID, environmentID, id)
	if i < 0 {
		return nil, errs.ErrBranchNotFound
	}
	b := r.st.branches[i]
	return &b, nil
}

func (r branchRepo) GetDefault(_ context.Context, projectID, environmentID uuid.UUID) (*model.Branch, error) {
	i := slices.IndexFunc(r.st.branches, func(b model.Branch) bool {
		return b.Project == projectID && b.Environment == environmentID && b.Default
	})
	if i < 0 {
		return nil, errs.ErrBranchNotFound
	}
	b := r.st.branches[i]
	return &b, nil
}

func (r branchRepo) List(_ context.Context, projectID, environmentID uuid.UUID) ([]model.Branch, error) {
	var out []model.Branch
	for _, b := range r.st.branches {
		if b.Project == projectID && b.Environment == environmentID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r branchRepo) UpdateSlug(_ context.Context, projectID, environmentID, id uuid.UUID, slug string) error {
	i := r.index(projectID, environmentID, id)
	if i < 0 {
		return errs.ErrBranchNotFound
	}
	next := r.st.branches[i]
	next.Slug = slug
	if err := r.check(next); err != nil {
		return err
	}
	r.st.branches[i] = next
	return nil
}

func (r branchRepo) SetDefault(_ context.Context, projectID, environmentID, id uuid.UUID, isDefault bool) error {
	i := r.index(projectID, environmentID, id)
	if i < 0 {
		return errs.ErrBranchNotFound
	}
	next := r.st.branches[i]
	next.Default = isDefault
	if err := r.check(next); err != nil {
		return err
	}
	r.st.branches[i] = next
	return nil
}

// Delete removes the branch with its commits and items.
func (r branchRepo) Delete(_ context.Context, projectID, environmentID, id uuid.UUID) error {
	i := r.index(projectID, environmentID, id)
	if i < 0 {
		return errs.ErrBranchNotFound
	}
	r.st.branches = slices.Delete(r.st.branches, i, i+1)
	sc := model.Scope{Project: projectID, Environment: environmentID, Branch: id}
	r.st.commits = slices.DeleteFunc(r.st.commits, func(c model.Commit) bool { return c.Scope == sc })
	r.st.items = slices.DeleteFunc(r.st.items, func(v model.ItemVersion) bool { return v.Scope == sc })
	return nil
}
