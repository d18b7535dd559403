package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/model"
)

// EnvironmentRepository stores environments. At most one default per project.
type EnvironmentRepository interface {
	Create(ctx context.Context, e *model.Environment) error
	Get(ctx context.Context, projectID, id uuid.UUID) (*model.Environment, error)
	GetDefault(ctx context.Context, projectID uuid.UUID) (*model.Environment, error)
	List(ctx context.Context, projectID uuid.UUID) ([]model.Environment, error)
	UpdateSlug(ctx context.Context, projectID, id uuid.UUID, slug string) error
	SetDefault(ctx context.Context, projectID, id uuid.UUID, isDefault bool) error
	Delete(ctx context.Context, projectID, id uuid.UUID) error
}

// BranchRepository stores branches. At most one default per environment.
type BranchRepository interface {
	Create(ctx context.Context, b *model.Branch) error
	Get(ctx context.Context, projectID, environmentID, id uuid.UUID) (*model.Branch, error)
	GetDefault(ctx context.Context, projectID, environmentID uuid.UUID) (*model.Branch, error)
	List(ctx context.Context, projectID, environmentID uuid.UUID) ([]model.Branch, error)
	UpdateSlug(ctx context.Context, projectID, environmentID, id uuid.UUID, slug string) error
	SetDefault(ctx context.Context, projectID, environmentID, id uuid.UUID, isDefault bool) error
	Delete(ctx context.Context, projectID, environmentID, id uuid.UUID) error
}
