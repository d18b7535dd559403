package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

// ProjectRepo implements ProjectRepository using PostgreSQL.
type ProjectRepo struct{ q querier }

// Create inserts a project.
func (r *ProjectRepo) Create(ctx context.Context, p *model.Project) error {
	const q = `
INSERT INTO projects (id, slug, description, owner_id, archived)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.Exec(ctx, q, p.ID, p.Slug, p.Description, p.Owner, p.Archived)
	if _, ok := uniqueViolation(err); ok {
		return fmt.Errorf("%q: %w", p.Slug, errs.ErrProjectSlugTaken)
	}
	return err
}

// Get selects a project by ID.
func (r *ProjectRepo) Get(ctx context.Context, id uuid.UUID) (*model.Project, error) {
	const q = `SELECT id, slug, description, owner_id, archived FROM projects WHERE id=$1`
	var p model.Project
	err := r.q.QueryRow(ctx, q, id).Scan(&p.ID, &p.Slug, &p.Description, &p.Owner, &p.Archived)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

// ListOwned returns projects owned by a user.
func (r *ProjectRepo) ListOwned(ctx context.Context, owner uuid.UUID) ([]model.Project, error) {
	const q = `
SELECT id, slug, description, owner_id, archived
FROM projects WHERE owner_id=$1 ORDER BY id`
	rows, err := r.q.Query(ctx, q, owner)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Project
	for rows.Next() {
		var p model.Project
		if err = rows.Scan(&p.ID, &p.Slug, &p.Description, &p.Owner, &p.Archived); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// UpdateSlug renames a project.
func (r *ProjectRepo) UpdateSlug(ctx context.Context, id uuid.UUID, slug string) error {
	err := r.update(ctx, `UPDATE projects SET slug=$2 WHERE id=$1`, id, slug)
	if _, ok := uniqueViolation(err); ok {
		return fmt.Errorf("%q: %w", slug, errs.ErrProjectSlugTaken)
	}
	return err
}

// UpdateDescription changes a project's description.
func (r *ProjectRepo) UpdateDescription(ctx context.Context, id uuid.UUID, description string) error {
	return r.update(ctx, `UPDATE projects SET description=$2 WHERE id=$1`, id, description)
}

// UpdateOwner transfers ownership.
func (r *ProjectRepo) UpdateOwner(ctx context.Context, id, owner uuid.UUID) error {
	err := r.update(ctx, `UPDATE projects SET owner_id=$2 WHERE id=$1`, id, owner)
	if _, ok := uniqueViolation(err); ok {
		return fmt.Errorf("new owner already has this slug: %w", errs.ErrProjectSlugTaken)
	}
	return err
}

// SetArchived toggles the archived flag.
func (r *ProjectRepo) SetArchived(ctx context.Context, id uuid.UUID, archived bool) error {
	return r.update(ctx, `UPDATE projects SET archived=$2 WHERE id=$1`, id, archived)
}

// Delete removes a project row.
func (r *ProjectRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrProjectNotFound
	}
	return nil
}

func (r *ProjectRepo) update(ctx context.Context, q string, args ...any) error {
	tag, err := r.q.Exec(ctx, q, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrProjectNotFound
	}
	return nil
}

// MemberRepo implements MemberRepository using PostgreSQL.
type MemberRepo struct{ q querier }

// Create inserts a membership.
func (r *MemberRepo) Create(ctx context.Context, m *model.Member) error {
	const q = `INSERT INTO members (id, user_id, project_id) VALUES ($1, $2, $3)`
	_, err := r.q.Exec(ctx, q, m.ID, m.User, m.Project)
	if _, ok := uniqueViolation(err); ok {
		return errs.ErrMemberExists
	}
	return err
}

// Exists reports whether the user is a member of the project.
func (r *MemberRepo) Exists(ctx context.Context, projectID, userID uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM members WHERE project_id=$1 AND user_id=$2)`
	var ok bool
	if err := r.q.QueryRow(ctx, q, projectID, userID).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

// ListByProject returns the members of a project.
func (r *MemberRepo) ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Member, error) {
	return r.list(ctx, `SELECT id, user_id, project_id FROM members WHERE project_id=$1 ORDER BY id`, projectID)
}

// ListByUser returns the memberships of a user.
func (r *MemberRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Member, error) {
	return r.list(ctx, `SELECT id, user_id, project_id FROM members WHERE user_id=$1 ORDER BY id`, userID)
}

func (r *MemberRepo) list(ctx context.Context, q string, arg uuid.UUID) ([]model.Member, error) {
	rows, err := r.q.Query(ctx, q, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Member
	for rows.Next() {
		var m model.Member
		if err = rows.Scan(&m.ID, &m.User, &m.Project); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// Delete removes a membership.
func (r *MemberRepo) Delete(ctx context.Context, projectID, userID uuid.UUID) error {
	const q = `DELETE FROM members WHERE project_id=$1 AND user_id=$2`
	tag, err := r.q.Exec(ctx, q, projectID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrMemberNotFound
	}
	return nil
}
