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

// UserRepo implements UserRepository using PostgreSQL.
type UserRepo struct{ q querier }

// Create inserts a new user row.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	const q = `INSERT INTO users (id, email) VALUES ($1, $2)`
	_, err := r.q.Exec(ctx, q, u.ID, u.Email)
	if _, ok := uniqueViolation(err); ok {
		return fmt.Errorf("%q: %w", u.Email, errs.ErrEmailTaken)
	}
	return err
}

// GetByID selects a user by ID.
func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	const q = `SELECT id, email FROM users WHERE id=$1`
	return r.scanOne(r.q.QueryRow(ctx, q, id))
}

// GetByEmail selects a user by email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	const q = `SELECT id, email FROM users WHERE email=$1`
	return r.scanOne(r.q.QueryRow(ctx, q, email))
}

func (r *UserRepo) scanOne(row pgx.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Email); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errs.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

// UpdateEmail changes a user's email.
func (r *UserRepo) UpdateEmail(ctx context.Context, id uuid.UUID, email string) error {
	const q = `UPDATE users SET email=$2 WHERE id=$1`
	tag, err := r.q.Exec(ctx, q, id, email)
	if _, ok := uniqueViolation(err); ok {
		return fmt.Errorf("%q: %w", email, errs.ErrEmailTaken)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}

// Delete removes a user row.
func (r *UserRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM users WHERE id=$1`
	tag, err := r.q.Exec(ctx, q, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return errs.ErrUserNotFound
	}
	return nil
}
