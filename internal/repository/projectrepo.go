package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/model"
)

// ProjectRepository stores projects.
type ProjectRepository interface {
	// Create inserts a project; (slug, owner) is unique.
	Create(ctx context.Context, p *model.Project) error
	Get(ctx context.Context, id uuid.UUID) (*model.Project, error)
	// ListOwned returns the projects owned by a user.
	ListOwned(ctx context.Context, owner uuid.UUID) ([]model.Project, error)
	UpdateSlug(ctx context.Context, id uuid.UUID, slug string) error
	UpdateDescription(ctx context.Context, id uuid.UUID, description string) error
	UpdateOwner(ctx context.Context, id, owner uuid.UUID) error
	SetArchived(ctx context.Context, id uuid.UUID, archived bool) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// MemberRepository stores project memberships.
type MemberRepository interface {
	// Create inserts a membership; (user, project) is unique.
	Create(ctx context.Context, m *model.Member) error
	Exists(ctx context.Context, projectID, userID uuid.UUID) (bool, error)
	ListByProject(ctx context.Context, projectID uuid.UUID) ([]model.Member, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Member, error)
	Delete(ctx context.Context, projectID, userID uuid.UUID) error
}
