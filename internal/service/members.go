package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/repository"
)

// MemberService manages project membership and ownership.
type MemberService struct{ *core }

// List returns the members of a project with their user records.
func (s *MemberService) List(ctx context.Context, userID, projectID uuid.UUID) ([]model.MemberUser, error) {
	var out []model.MemberUser
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireMember(ctx, tx, projectID, userID); err != nil {
			return err
		}
		ms, err := tx.Members().ListByProject(ctx, projectID)
		if err != nil {
			return err
		}
		for _, m := range ms {
			u, err := tx.Users().GetByID(ctx, m.User)
			if err != nil {
				return err
			}
			out = append(out, model.MemberUser{Member: m, User: *u})
		}
		return nil
	})
	return out, err
}

// userByEmail returns the user with email, creating it without a sample
// project when unknown.
func userByEmail(ctx context.Context, tx repository.Tx, email string) (*model.User, error) {
	u, err := tx.Users().GetByEmail(ctx, email)
	if errors.Is(err, errs.ErrUserNotFound) {
		return createUser(ctx, tx, email, false)
	}
	return u, err
}

func ensureMember(ctx context.Context, tx repository.Tx, projectID, userID uuid.UUID) error {
	ok, err := tx.Members().Exists(ctx, projectID, userID)
	if err != nil || ok {
		return err
	}
	return tx.Members().Create(ctx, &model.Member{ID: model.NewID(), User: userID, Project: projectID})
}

// TransferOwnership hands the project to the user with email. Owner only.
func (s *MemberService) TransferOwnership(ctx context.Context, userID, projectID uuid.UUID, email string) (*model.User, error) {
	if err := validEmail(email); err != nil {
		return nil, err
	}
	var u *model.User
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := requireOwner(ctx, tx, projectID, userID)
		if err != nil {
			return err
		}
		if err := writable(p); err != nil {
			return err
		}
		if u, err = userByEmail(ctx, tx, email); err != nil {
			return err
		}
		if u.ID == p.Owner {
			return errs.ErrAlreadyOwner
		}
		if err := ensureMember(ctx, tx, projectID, u.ID); err != nil {
			return err
		}
		return tx.Projects().UpdateOwner(ctx, projectID, u.ID)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

// Remove drops a member. The owner can never be removed.
func (s *MemberService) Remove(ctx context.Context, userID, projectID, memberUserID uuid.UUID) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := requireWritable(ctx, tx, projectID, userID)
		if err != nil {
			return err
		}
		if p.Owner == memberUserID {
			return errs.ErrOwnerRemoval
		}
		return tx.Members().Delete(ctx, projectID, memberUserID)
	})
}

// Invite checks that userID may invite email into the project. Delivering
// the invitation is up to the caller.
func (s *MemberService) Invite(ctx context.Context, userID, projectID uuid.UUID, email string) error {
	if err := validEmail(email); err != nil {
		return err
	}
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := requireWritable(ctx, tx, projectID, userID)
		return err
	})
}

// AcceptInvitation makes the user with email a member, creating the account
// if needed. The invitation itself is verified by the caller.
func (s *MemberService) AcceptInvitation(ctx context.Context, projectID uuid.UUID, email string) (*model.User, error) {
	if err := validEmail(email); err != nil {
		return nil, err
	}
	var u *model.User
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		p, err := tx.Projects().Get(ctx, projectID)
		if err != nil {
			return err
		}
		if err := writable(p); err != nil {
			return fmt.Errorf("invitation: %w", err)
		}
		if u, err = userByEmail(ctx, tx, email); err != nil {
			return err
		}
		return ensureMember(ctx, tx, projectID, u.ID)
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}
