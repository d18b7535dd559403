package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/model"
)

// ItemRepository is the append-only item version log.
//
// Every read goes through the same reduction: rows with timestamp <= asOf,
// the latest row per item (ties broken by insertion order), inactive winners
// dropped, result ordered by slug.
type ItemRepository interface {
	// Append inserts one version row. It never validates cross-item invariants.
	Append(ctx context.Context, v *model.ItemVersion) error

	// ListLatest returns the active items of a branch as of asOf. A nil parent
	// lists the whole branch.
	ListLatest(ctx context.Context, scope model.Scope, parent *uuid.UUID, asOf int64) ([]model.ItemVersion, error)

	// Get returns the active state of one item as of asOf, or errs.ErrItemNotFound.
	Get(ctx context.Context, scope model.Scope, item uuid.UUID, asOf int64) (*model.ItemVersion, error)

	// GetBySlug returns the active child of parent with the given slug as of asOf.
	GetBySlug(ctx context.Context, scope model.Scope, parent uuid.UUID, slug string, asOf int64) (*model.ItemVersion, error)

	// History returns every row of one item in write order.
	History(ctx context.Context, scope model.Scope, item uuid.UUID) ([]model.ItemVersion, error)

	// DeleteByBranch removes every row of a branch. Used only by branch deletion.
	DeleteByBranch(ctx context.Context, scope model.Scope) error
}
