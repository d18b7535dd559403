package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/repository"
)

func TestWithTx_CommitAndRollback(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := model.User{ID: model.NewID(), Email: "a@b.c"}

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Users().Create(ctx, &u))
		return boom
	})
	require.ErrorIs(t, err, boom)

	err = s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.Users().GetByID(ctx, u.ID)
		return err
	})
	require.ErrorIs(t, err, errs.ErrUserNotFound)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Users().Create(ctx, &u)
	}))
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		got, err := tx.Users().GetByEmail(ctx, "a@b.c")
		require.NoError(t, err)
		require.Equal(t, u, *got)
		return nil
	}))
}

func TestWithTx_PanicDiscardsWork(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.Panics(t, func() {
		_ = s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
			_ = tx.Users().Create(ctx, &model.User{ID: model.NewID(), Email: "p@x.io"})
			panic("kaboom")
		})
	})
	err := s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.Users().GetByEmail(ctx, "p@x.io")
		return err
	})
	require.ErrorIs(t, err, errs.ErrUserNotFound)
}

func TestWithTx_CanceledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := s.WithTx(ctx, func(context.Context, repository.Tx) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, context.Canceled)
	require.False(t, called)
}

func TestUniqueKeys(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := model.NewID()
	p := model.Project{ID: model.NewID(), Slug: "proj", Owner: owner}
	e1 := model.Environment{ID: model.NewID(), Project: p.ID, Slug: "production", Default: true}
	b1 := model.Branch{ID: model.NewID(), Project: p.ID, Environment: e1.ID, Slug: "main", Default: true}

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Users().Create(ctx, &model.User{ID: owner, Email: "o@x.io"}))
		require.NoError(t, tx.Projects().Create(ctx, &p))
		require.NoError(t, tx.Environments().Create(ctx, &e1))
		return tx.Branches().Create(ctx, &b1)
	}))

	_ = s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		err := tx.Users().Create(ctx, &model.User{ID: model.NewID(), Email: "o@x.io"})
		require.ErrorIs(t, err, errs.ErrEmailTaken)

		err = tx.Projects().Create(ctx, &model.Project{ID: model.NewID(), Slug: "proj", Owner: owner})
		require.ErrorIs(t, err, errs.ErrProjectSlugTaken)

		err = tx.Environments().Create(ctx, &model.Environment{ID: model.NewID(), Project: p.ID, Slug: "staging", Default: true})
		require.ErrorIs(t, err, errs.ErrDefaultExists)

		err = tx.Branches().Create(ctx, &model.Branch{ID: model.NewID(), Project: p.ID, Environment: e1.ID, Slug: "main"})
		require.ErrorIs(t, err, errs.ErrBranchSlugTaken)

		b2 := model.Branch{ID: model.NewID(), Project: p.ID, Environment: e1.ID, Slug: "dev"}
		require.NoError(t, tx.Branches().Create(ctx, &b2))
		err = tx.Branches().SetDefault(ctx, p.ID, e1.ID, b2.ID, true)
		require.ErrorIs(t, err, errs.ErrDefaultExists)
		return nil
	})
}

func TestProjectDelete_Cascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	owner := model.NewID()
	p := model.Project{ID: model.NewID(), Slug: "proj", Owner: owner}
	e := model.Environment{ID: model.NewID(), Project: p.ID, Slug: "production", Default: true}
	b := model.Branch{ID: model.NewID(), Project: p.ID, Environment: e.ID, Slug: "main", Default: true}
	sc := model.Scope{Project: p.ID, Environment: e.ID, Branch: b.ID}

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		require.NoError(t, tx.Projects().Create(ctx, &p))
		require.NoError(t, tx.Members().Create(ctx, &model.Member{ID: model.NewID(), User: owner, Project: p.ID}))
		require.NoError(t, tx.Environments().Create(ctx, &e))
		require.NoError(t, tx.Branches().Create(ctx, &b))
		c := model.Commit{ID: model.NewID(), Scope: sc, Author: owner, Timestamp: 1}
		require.NoError(t, tx.Commits().Create(ctx, &c))
		return tx.Items().Append(ctx, &model.ItemVersion{
			Scope: sc, Item: model.NewID(), Parent: model.Root, Slug: "k",
			Type: model.TypeString, Active: true, Commit: c.ID, Timestamp: 1,
		})
	}))
	require.Equal(t, 1, s.ItemRows())

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		return tx.Projects().Delete(ctx, p.ID)
	}))
	require.Equal(t, 0, s.ItemRows())
	_ = s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		ok, err := tx.Members().Exists(ctx, p.ID, owner)
		require.NoError(t, err)
		require.False(t, ok)
		_, err = tx.Branches().Get(ctx, p.ID, e.ID, b.ID)
		require.ErrorIs(t, err, errs.ErrBranchNotFound)
		cs, err := tx.Commits().List(ctx, sc)
		require.NoError(t, err)
		require.Empty(t, cs)
		return nil
	})
}
