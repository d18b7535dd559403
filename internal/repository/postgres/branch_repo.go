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

const (
	envDefaultIndex    = "environments_one_default"
	branchDefaultIndex = "branches_one_default"
)

// EnvironmentRepo implements EnvironmentRepository using PostgreSQL.
type EnvironmentRepo struct{ q querier }

func envConflict(err error, slug string) error {
	name, ok := uniqueViolation(err)
	switch {
	case !ok:
		return err
	case name == envDefaultIndex:
		return fmt.Errorf("environment: %w", errs.ErrDefaultExists)
	default:
		return fmt.Errorf("%q: %w", slug, errs.ErrEnvironmentSlugTaken)
	}
}

// Create inserts an environment.
func (r *EnvironmentRepo) Create(ctx context.Context, e *model.Environment) error {
	const q = `INSERT INTO environments (id, project_id, slug, is_default) VALUES ($1, $2, $3, $4)`
	_, err := r.q.Exec(ctx, q, e.ID, e.Project, e.Slug, e.Default)
	return envConflict(err, e.Slug)
}

// Get selects an environment of a project.
func (r *EnvironmentRepo) Get(ctx context.Context, projectID, id uuid.UUID) (*model.Environment, error) {
	const q = `SELECT id, project_id, slug, is_default FROM environments WHERE project_id=$1 AND id=$2`
	return scanEnvironment(r.q.QueryRow(ctx, q, projectID, id))
}

// GetDefault selects the default environment of a project.
func (r *EnvironmentRepo) GetDefault(ctx context.Context, projectID uuid.UUID) (*model.Environment, error) {
	const q = `SELECT id, project_id, slug, is_default FROM environments WHERE project_id=$1 AND is_default`
	return scanEnvironment(r.q.QueryRow(ctx, q, projectID))
}

func scanEnvironment(row pgx.Row) (*model.Environment, error) {
	var e model.Environment
	if err := row.Scan(&e.ID, &e.Project, &e.Slug, &e.Default); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrEnvironmentNotFound
		}
		return nil, err
	}
	return &e, nil
}

// List returns the environments of a project in creation order.
func (r *EnvironmentRepo) List(ctx context.Context, projectID uuid.UUID) ([]model.Environment, error) {
	const q = `SELECT id, project_id, slug, is_default FROM environments WHERE project_id=$1 ORDER BY id`
	rows, err := r.q.Query(ctx, q, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Environment
	for rows.Next() {
		var e model.Environment
		if err = rows.Scan(&e.ID, &e.Project, &e.Slug, &e.Default); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateSlug renames an environment.
func (r *EnvironmentRepo) UpdateSlug(ctx context.Context, projectID, id uuid.UUID, slug string) error {
	const q = `UPDATE environments SET slug=$3 WHERE project_id=$1 AND id=$2`
	tag, err := r.q.Exec(ctx, q, projectID, id, slug)
	if err != nil {
		return envConflict(err, slug)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrEnvironmentNotFound
	}
	return nil
}

// SetDefault sets or clears the default flag.
func (r *EnvironmentRepo) SetDefault(ctx context.Context, projectID, id uuid.UUID, isDefault bool) error {
	const q = `UPDATE environments SET is_default=$3 WHERE project_id=$1 AND id=$2`
	tag, err := r.q.Exec(ctx, q, projectID, id, isDefault)
	if err != nil {
		return envConflict(err, "")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrEnvironmentNotFound
	}
	return nil
}

// Delete removes an environment row.
func (r *EnvironmentRepo) Delete(ctx context.Context, projectID, id uuid.UUID) error {
	const q = `DELETE FROM environments WHERE project_id=$1 AND id=$2`
	tag, err := r.q.Exec(ctx, q, projectID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrEnvironmentNotFound
	}
	return nil
}

// BranchRepo implements BranchRepository using PostgreSQL.
type BranchRepo struct{ q querier }

func branchConflict(err error, slug string) error {
	name, ok := uniqueViolation(err)
	switch {
	case !ok:
		return err
	case name == branchDefaultIndex:
		return fmt.Errorf("branch: %w", errs.ErrDefaultExists)
	default:
		return fmt.Errorf("%q: %w", slug, errs.ErrBranchSlugTaken)
	}
}

// Create inserts a branch.
func (r *BranchRepo) Create(ctx context.Context, b *model.Branch) error {
	const q = `
INSERT INTO branches (id, project_id, environment_id, slug, is_default)
VALUES ($1, $2, $3, $4, $5)`
	_, err := r.q.Exec(ctx, q, b.ID, b.Project, b.Environment, b.Slug, b.Default)
	return branchConflict(err, b.Slug)
}

// Get selects a branch of an environment.
func (r *BranchRepo) Get(ctx context.Context, projectID, environmentID, id uuid.UUID) (*model.Branch, error) {
	const q = `
SELECT id, project_id, environment_id, slug, is_default
FROM branches WHERE project_id=$1 AND environment_id=$2 AND id=$3`
	return scanBranch(r.q.QueryRow(ctx, q, projectID, environmentID, id))
}

// GetDefault selects the default branch of an environment.
func (r *BranchRepo) GetDefault(ctx context.Context, projectID, environmentID uuid.UUID) (*model.Branch, error) {
	const q = `
SELECT id, project_id, environment_id, slug, is_default
FROM branches WHERE project_id=$1 AND environment_id=$2 AND is_default`
	return scanBranch(r.q.QueryRow(ctx, q, projectID, environmentID))
}

func scanBranch(row pgx.Row) (*model.Branch, error) {
	var b model.Branch
	if err := row.Scan(&b.ID, &b.Project, &b.Environment, &b.Slug, &b.Default); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrBranchNotFound
		}
		return nil, err
	}
	return &b, nil
}

// List returns the branches of an environment in creation order.
func (r *BranchRepo) List(ctx context.Context, projectID, environmentID uuid.UUID) ([]model.Branch, error) {
	const q = `
SELECT id, project_id, environment_id, slug, is_default
FROM branches WHERE project_id=$1 AND environment_id=$2 ORDER BY id`
	rows, err := r.q.Query(ctx, q, projectID, environmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Branch
	for rows.Next() {
		var b model.Branch
		if err = rows.Scan(&b.ID, &b.Project, &b.Environment, &b.Slug, &b.Default); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// UpdateSlug renames a branch.
func (r *BranchRepo) UpdateSlug(ctx context.Context, projectID, environmentID, id uuid.UUID, slug string) error {
	const q = `UPDATE branches SET slug=$4 WHERE project_id=$1 AND environment_id=$2 AND id=$3`
	tag, err := r.q.Exec(ctx, q, projectID, environmentID, id, slug)
	if err != nil {
		return branchConflict(err, slug)
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrBranchNotFound
	}
	return nil
}

// SetDefault sets or clears the default flag.
func (r *BranchRepo) SetDefault(ctx context.Context, projectID, environmentID, id uuid.UUID, isDefault bool) error {
	const q = `UPDATE branches SET is_default=$4 WHERE project_id=$1 AND environment_id=$2 AND id=$3`
	tag, err := r.q.Exec(ctx, q, projectID, environmentID, id, isDefault)
	if err != nil {
		return branchConflict(err, "")
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrBranchNotFound
	}
	return nil
}

// Delete removes a branch row.
func (r *BranchRepo) Delete(ctx context.Context, projectID, environmentID, id uuid.UUID) error {
	const q = `DELETE FROM branches WHERE project_id=$1 AND environment_id=$2 AND id=$3`
	tag, err := r.q.Exec(ctx, q, projectID, environmentID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrBranchNotFound
	}
	return nil
}
