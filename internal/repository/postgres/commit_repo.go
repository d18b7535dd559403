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

// CommitRepo implements CommitRepository using PostgreSQL.
type CommitRepo struct{ q querier }

// Create inserts a commit.
func (r *CommitRepo) Create(ctx context.Context, c *model.Commit) error {
	const q = `
INSERT INTO commits (id, project_id, environment_id, branch_id, author_id, message, ts)
VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := r.q.Exec(ctx, q, c.ID, c.Scope.Project, c.Scope.Environment, c.Scope.Branch, c.Author, c.Message, c.Timestamp)
	if _, ok := uniqueViolation(err); ok {
		return fmt.Errorf("ts=%d: %w", c.Timestamp, errs.ErrCommitExists)
	}
	return err
}

// Get selects one commit of a branch.
func (r *CommitRepo) Get(ctx context.Context, scope model.Scope, id uuid.UUID) (*model.Commit, error) {
	const q = `
SELECT id, project_id, environment_id, branch_id, author_id, message, ts
FROM commits WHERE project_id=$1 AND environment_id=$2 AND branch_id=$3 AND id=$4`
	var c model.Commit
	err := r.q.QueryRow(ctx, q, scope.Project, scope.Environment, scope.Branch, id).
		Scan(&c.ID, &c.Scope.Project, &c.Scope.Environment, &c.Scope.Branch, &c.Author, &c.Message, &c.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrCommitNotFound
		}
		return nil, err
	}
	return &c, nil
}

// List returns the commits of a branch ordered by timestamp.
func (r *CommitRepo) List(ctx context.Context, scope model.Scope) ([]model.Commit, error) {
	const q = `
SELECT id, project_id, environment_id, branch_id, author_id, message, ts
FROM commits WHERE project_id=$1 AND environment_id=$2 AND branch_id=$3
ORDER BY ts`
	rows, err := r.q.Query(ctx, q, scope.Project, scope.Environment, scope.Branch)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Commit
	for rows.Next() {
		var c model.Commit
		if err = rows.Scan(&c.ID, &c.Scope.Project, &c.Scope.Environment, &c.Scope.Branch, &c.Author, &c.Message, &c.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// LastTimestamp returns the greatest commit timestamp of a branch, 0 when empty.
func (r *CommitRepo) LastTimestamp(ctx context.Context, scope model.Scope) (int64, error) {
	const q = `
SELECT COALESCE(MAX(ts), 0)
FROM commits WHERE project_id=$1 AND environment_id=$2 AND branch_id=$3`
	var ts int64
	if err := r.q.QueryRow(ctx, q, scope.Project, scope.Environment, scope.Branch).Scan(&ts); err != nil {
		return 0, err
	}
	return ts, nil
}

// DeleteByBranch removes every commit of a branch.
func (r *CommitRepo) DeleteByBranch(ctx context.Context, scope model.Scope) error {
	const q = `DELETE FROM commits WHERE project_id=$1 AND environment_id=$2 AND branch_id=$3`
	_, err := r.q.Exec(ctx, q, scope.Project, scope.Environment, scope.Branch)
	return err
}
