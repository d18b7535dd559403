package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

type projectRepo struct{ st *state }

func (r projectRepo) slugTaken(slug string, owner, self uuid.UUID) bool {
	return slices.ContainsFunc(r.st.projects, func(p model.Project) bool {
		return p.Slug == slug && p.Owner == owner && p.ID != self
	})
}

func (r projectRepo) index(id uuid.UUID) int {
	return slices.IndexFunc(r.st.projects, func(p model.Project) bool { return p.ID == id })
}

func (r projectRepo) Create(_ context.Context, p *model.Project) error {
	if r.slugTaken(p.Slug, p.Owner, p.ID) {
		return fmt.Errorf("%q: %w", p.Slug, errs.ErrProjectSlugTaken)
	}
	r.st.projects = append(r.st.projects, *p)
	return nil
}

func (r projectRepo) Get(_ context.Context, id uuid.UUID) (*model.Project, error) {
	i := r.index(id)
	if i < 0 {
		return nil, errs.ErrProjectNotFound
	}
	p := r.st.projects[i]
	return &p, nil
}

func (r projectRepo) ListOwned(_ context.Context, owner uuid.UUID) ([]model.Project, error) {
	var out []model.Project
	for _, p := range r.st.projects {
		if p.Owner == owner {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r projectRepo) UpdateSlug(_ context.Context, id uuid.UUID, slug string) error {
	i := r.index(id)
	if i < 0 {
		return errs.ErrProjectNotFound
	}
	if r.slugTaken(slug, r.st.projects[i].Owner, id) {
		return fmt.Errorf("%q: %w", slug, errs.ErrProjectSlugTaken)
	}
	r.st.projects[i].Slug = slug
	return nil
}

func (r projectRepo) UpdateDescription(_ context.Context, id uuid.UUID, description string) error {
	i := r.index(id)
	if i < 0 {
		return errs.ErrProjectNotFound
	}
	r.st.projects[i].Description = description
	return nil
}

func (r projectRepo) UpdateOwner(_ context.Context, id, owner uuid.UUID) error {
	i := r.index(id)
	if i < 0 {
		return errs.ErrProjectNotFound
	}
	if r.slugTaken(r.st.projects[i].Slug, owner, id) {
		return fmt.Errorf("new owner already has this slug: %w", errs.ErrProjectSlugTaken)
	}
	r.st.projects[i].Owner = owner
	return nil
}

func (r projectRepo) SetArchived(_ context.Context, id uuid.UUID, archived bool) error {
	i := r.index(id)
	if i < 0 {
		return errs.ErrProjectNotFound
	}
	r.st.projects[i].Archived = archived
	return nil
}

// Delete removes the project and every row hanging off it.
func (r projectRepo) Delete(_ context.Context, id uuid.UUID) error {
	i := r.index(id)
	if i < 0 {
		return errs.ErrProjectNotFound
	}
	r.st.projects = slices.Delete(r.st.projects, i, i+1)
	r.st.members = slices.DeleteFunc(r.st.members, func(m model.Member) bool { return m.Project == id })
	r.st.environments = slices.DeleteFunc(r.st.environments, func(e model.Environment) bool { return e.Project == id })
	r.st.branches = slices.DeleteFunc(r.st.branches, func(b model.Branch) bool { return b.Project == id })
	r.st.commits = slices.DeleteFunc(r.st.commits, func(c model.Commit) bool { return c.Scope.Project == id })
	r.st.items = slices.DeleteFunc(r.st.items, func(v model.ItemVersion) bool { return v.Scope.Project == id })
	return nil
}

type memberRepo struct{ st *state }

func (r memberRepo) Create(_ context.Context, m *model.Member) error {
	if slices.ContainsFunc(r.st.members, func(x model.Member) bool { return x.User == m.User && x.Project == m.Project }) {
		return errs.ErrMemberExists
	}
	r.st.members = append(r.st.members, *m)
	return nil
}

func (r memberRepo) Exists(_ context.Context, projectID, userID uuid.UUID) (bool, error) {
	return slices.ContainsFunc(r.st.members, func(x model.Member) bool {
		return x.Project == projectID && x.User == userID
	}), nil
}

func (r memberRepo) ListByProject(_ context.Context, projectID uuid.UUID) ([]model.Member, error) {
	var out []model.Member
	for _, m := range r.st.members {
		if m.Project == projectID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memberRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]model.Member, error) {
	var out []model.Member
	for _, m := range r.st.members {
		if m.User == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r memberRepo) Delete(_ context.Context, projectID, userID uuid.UUID) error {
	n := len(r.st.members)
	r.st.members = slices.DeleteFunc(r.st.members, func(x model.Member) bool {
		return x.Project == projectID && x.User == userID
	})
	if len(r.st.members) == n {
		return errs.ErrMemberNotFound
	}
	return nil
}
