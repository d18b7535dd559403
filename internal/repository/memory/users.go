package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

type userRepo struct{ st *state }

func (r userRepo) Create(_ context.Context, u *model.User) error {
	if slices.ContainsFunc(r.st.users, func(x model.User) bool { return x.Email == u.Email }) {
		return fmt.Errorf("%q: %w", u.Email, errs.ErrEmailTaken)
	}
	r.st.users = append(r.st.users, *u)
	return nil
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	i := slices.IndexFunc(r.st.users, func(x model.User) bool { return x.ID == id })
	if i < 0 {
		return nil, errs.ErrUserNotFound
	}
	u := r.st.users[i]
	return &u, nil
}

func (r userRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	i := slices.IndexFunc(r.st.users, func(x model.User) bool { return x.Email == email })
	if i < 0 {
		return nil, errs.ErrUserNotFound
	}
	u := r.st.users[i]
	return &u, nil
}

func (r userRepo) UpdateEmail(_ context.Context, id uuid.UUID, email string) error {
	if slices.ContainsFunc(r.st.users, func(x model.User) bool { return x.Email == email && x.ID != id }) {
		return fmt.Errorf("%q: %w", email, errs.ErrEmailTaken)
	}
	i := slices.IndexFunc(r.st.users, func(x model.User) bool { return x.ID == id })
	if i < 0 {
		return errs.ErrUserNotFound
	}
	r.st.users[i].Email = email
	return nil
}

// Delete removes the user and, like the members FK, its memberships.
func (r userRepo) Delete(_ context.Context, id uuid.UUID) error {
	n := len(r.st.users)
	r.st.users = slices.DeleteFunc(r.st.users, func(x model.User) bool { return x.ID == id })
	if len(r.st.users) == n {
		return errs.ErrUserNotFound
	}
	r.st.members = slices.DeleteFunc(r.st.members, func(m model.Member) bool { return m.User == id })
	return nil
}
