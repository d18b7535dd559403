package repository

import (
	"context"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/model"
)

// UserRepository provides CRUD access for users.
type UserRepository interface {
	// Create inserts a new user; a duplicate email yields errs.ErrEmailTaken.
	Create(ctx context.Context, u *model.User) error
	// GetByID loads a user by ID.
	GetByID(ctx context.Context, id uuid.UUID) (*model.User, error)
	// GetByEmail loads a user by email.
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	// UpdateEmail changes the email of a user.
	UpdateEmail(ctx context.Context, id uuid.UUID, email string) error
	// Delete removes a user.
	Delete(ctx context.Context, id uuid.UUID) error
}
