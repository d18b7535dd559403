package postgres

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

// ItemRepo implements ItemRepository using PostgreSQL.
type ItemRepo struct{ q querier }

const itemColumns = `project_id, environment_id, branch_id, item_id, parent_id, slug, item_type,
       active, secret_value, secret_active, commit_id, ts`

// latestSQL builds the shared reduction: filter by scope, timestamp and an
// optional extra predicate ($5...), keep the newest row per item (seq breaks
// ties inside one commit), drop inactive winners, order by slug.
func latestSQL(pre, post string) string {
	return `
SELECT ` + itemColumns + `
FROM (
  SELECT DISTINCT ON (item_id) *
  FROM items
  WHERE project_id=$1 AND environment_id=$2 AND branch_id=$3 AND ts <= $4` + pre + `
  ORDER BY item_id, ts DESC, seq DESC
) latest
WHERE active` + post + `
ORDER BY slug, item_id`
}

var (
	sqlLatestAll    = latestSQL("", "")
	sqlLatestParent = latestSQL(" AND parent_id=$5", "")
	sqlLatestItem   = latestSQL(" AND item_id=$5", "")
	sqlLatestSlug   = latestSQL(" AND parent_id=$5", " AND slug=$6")
)

// Append inserts one version row.
func (r *ItemRepo) Append(ctx context.Context, v *model.ItemVersion) error {
	const q = `
INSERT INTO items (` + itemColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, q,
		v.Scope.Project, v.Scope.Environment, v.Scope.Branch,
		v.Item, v.Parent, v.Slug, string(v.Type),
		v.Active, v.SecretValue, v.SecretActive, v.Commit, v.Timestamp,
	)
	return err
}

// ListLatest returns active items as of asOf, optionally restricted to one parent.
func (r *ItemRepo) ListLatest(ctx context.Context, scope model.Scope, parent *uuid.UUID, asOf int64) ([]model.ItemVersion, error) {
	if parent == nil {
		return r.query(ctx, sqlLatestAll, scope.Project, scope.Environment, scope.Branch, asOf)
	}
	return r.query(ctx, sqlLatestParent, scope.Project, scope.Environment, scope.Branch, asOf, *parent)
}

// Get returns the active state of one item.
func (r *ItemRepo) Get(ctx context.Context, scope model.Scope, item uuid.UUID, asOf int64) (*model.ItemVersion, error) {
	out, err := r.query(ctx, sqlLatestItem, scope.Project, scope.Environment, scope.Branch, asOf, item)
	if err != nil {
		return nil, err
	}
	return single(out, item.String())
}

// GetBySlug returns the active child of parent named slug.
func (r *ItemRepo) GetBySlug(ctx context.Context, scope model.Scope, parent uuid.UUID, slug string, asOf int64) (*model.ItemVersion, error) {
	out, err := r.query(ctx, sqlLatestSlug, scope.Project, scope.Environment, scope.Branch, asOf, parent, slug)
	if err != nil {
		return nil, err
	}
	return single(out, slug)
}

func single(out []model.ItemVersion, key string) (*model.ItemVersion, error) {
	switch len(out) {
	case 0:
		return nil, fmt.Errorf("%s: %w", key, errs.ErrItemNotFound)
	case 1:
		return &out[0], nil
	default:
		return nil, fmt.Errorf("%s: %w", key, errs.ErrMultipleVersions)
	}
}

// History returns every row of one item in write order.
func (r *ItemRepo) History(ctx context.Context, scope model.Scope, item uuid.UUID) ([]model.ItemVersion, error) {
	const q = `
SELECT ` + itemColumns + `
FROM items
WHERE project_id=$1 AND environment_id=$2 AND branch_id=$3 AND item_id=$4
ORDER BY ts, seq`
	return r.query(ctx, q, scope.Project, scope.Environment, scope.Branch, item)
}

// DeleteByBranch removes every row of a branch.
func (r *ItemRepo) DeleteByBranch(ctx context.Context, scope model.Scope) error {
	const q = `DELETE FROM items WHERE project_id=$1 AND environment_id=$2 AND branch_id=$3`
	_, err := r.q.Exec(ctx, q, scope.Project, scope.Environment, scope.Branch)
	return err
}

func (r *ItemRepo) query(ctx context.Context, q string, args ...any) ([]model.ItemVersion, error) {
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.ItemVersion
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func scanVersion(row pgx.Row) (model.ItemVersion, error) {
	var (
		v   model.ItemVersion
		typ string
	)
	err := row.Scan(
		&v.Scope.Project, &v.Scope.Environment, &v.Scope.Branch,
		&v.Item, &v.Parent, &v.Slug, &typ,
		&v.Active, &v.SecretValue, &v.SecretActive, &v.Commit, &v.Timestamp,
	)
	v.Type = model.ItemType(typ)
	return v, err
}
