package memory

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/repository"
)

func scope() model.Scope {
	return model.Scope{Project: model.NewID(), Environment: model.NewID(), Branch: model.NewID()}
}

func appendRows(t *testing.T, s *Store, rows ...model.ItemVersion) {
	t.Helper()
	require.NoError(t, s.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		for i := range rows {
			if err := tx.Items().Append(ctx, &rows[i]); err != nil {
				return err
			}
		}
		return nil
	}))
}

func secret(s string) *string { return &s }

func TestItems_TimeTravel(t *testing.T) {
	s := New()
	sc := scope()
	id := model.NewID()
	row := func(ts int64, val string, active bool) model.ItemVersion {
		return model.ItemVersion{
			Scope: sc, Item: id, Parent: model.Root, Slug: "k", Type: model.TypeString,
			Active: active, SecretValue: secret(val), SecretActive: true, Timestamp: ts,
		}
	}
	appendRows(t, s, row(10, "a", true), row(20, "b", true), row(30, "b", false))

	_ = s.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		v, err := tx.Items().Get(ctx, sc, id, 15)
		require.NoError(t, err)
		require.Equal(t, "a", *v.SecretValue)

		v, err = tx.Items().Get(ctx, sc, id, 25)
		require.NoError(t, err)
		require.Equal(t, "b", *v.SecretValue)

		_, err = tx.Items().Get(ctx, sc, id, 35)
		require.ErrorIs(t, err, errs.ErrItemNotFound)

		_, err = tx.Items().Get(ctx, sc, id, 5)
		require.ErrorIs(t, err, errs.ErrItemNotFound)

		h, err := tx.Items().History(ctx, sc, id)
		require.NoError(t, err)
		require.Len(t, h, 3)
		return nil
	})
}

func TestItems_SameCommitLastRowWins(t *testing.T) {
	s := New()
	sc := scope()
	id := model.NewID()
	base := model.ItemVersion{Scope: sc, Item: id, Parent: model.Root, Slug: "k", Type: model.TypeString, Timestamp: 7}

	first, second := base, base
	first.Active = true
	second.Active = false
	appendRows(t, s, first, second)

	_ = s.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		_, err := tx.Items().Get(ctx, sc, id, model.Latest)
		require.ErrorIs(t, err, errs.ErrItemNotFound)
		return nil
	})
}

func TestItems_ListLatestOrdersBySlugAndFiltersParent(t *testing.T) {
	s := New()
	sc := scope()
	parent := model.NewID()
	mk := func(slug string, p uuid.UUID) model.ItemVersion {
		return model.ItemVersion{Scope: sc, Item: model.NewID(), Parent: p, Slug: slug, Type: model.TypeObject, Active: true, Timestamp: 1}
	}
	appendRows(t, s, mk("zeta", model.Root), mk("alpha", model.Root), mk("child", parent), mk("other", model.Root))
	appendRows(t, s, mk("x", model.NewID()))

	_ = s.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		root := model.Root
		out, err := tx.Items().ListLatest(ctx, sc, &root, model.Latest)
		require.NoError(t, err)
		var slugs []string
		for _, v := range out {
			slugs = append(slugs, v.Slug)
		}
		require.Equal(t, []string{"alpha", "other", "zeta"}, slugs)

		all, err := tx.Items().ListLatest(ctx, sc, nil, model.Latest)
		require.NoError(t, err)
		require.Len(t, all, 5)

		v, err := tx.Items().GetBySlug(ctx, sc, parent, "child", model.Latest)
		require.NoError(t, err)
		require.Equal(t, parent, v.Parent)

		other, err := tx.Items().ListLatest(ctx, scope(), nil, model.Latest)
		require.NoError(t, err)
		require.Empty(t, other)
		return nil
	})
}

func TestItems_AppendOnly(t *testing.T) {
	s := New()
	sc := scope()
	id := model.NewID()
	before := s.ItemRows()
	appendRows(t, s, model.ItemVersion{Scope: sc, Item: id, Slug: "a", Type: model.TypeNull, Active: true, Timestamp: 1})
	appendRows(t, s, model.ItemVersion{Scope: sc, Item: id, Slug: "a", Type: model.TypeNull, Active: false, Timestamp: 2})
	require.Equal(t, before+2, s.ItemRows())

	_ = s.WithTx(context.Background(), func(ctx context.Context, tx repository.Tx) error {
		h, err := tx.Items().History(ctx, sc, id)
		require.NoError(t, err)
		require.True(t, h[0].Active)
		require.False(t, h[1].Active)
		return nil
	})
}

func TestCommits_OrderAndLastTimestamp(t *testing.T) {
	s := New()
	sc := scope()
	ctx := context.Background()
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		for _, ts := range []int64{30, 10, 20} {
			if err := tx.Commits().Create(ctx, &model.Commit{ID: model.NewID(), Scope: sc, Timestamp: ts}); err != nil {
				return err
			}
		}
		return nil
	}))
	_ = s.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		cs, err := tx.Commits().List(ctx, sc)
		require.NoError(t, err)
		require.Equal(t, []int64{10, 20, 30}, []int64{cs[0].Timestamp, cs[1].Timestamp, cs[2].Timestamp})

		last, err := tx.Commits().LastTimestamp(ctx, sc)
		require.NoError(t, err)
		require.Equal(t, int64(30), last)

		err = tx.Commits().Create(ctx, &model.Commit{ID: model.NewID(), Scope: sc, Timestamp: 20})
		require.ErrorIs(t, err, errs.ErrCommitExists)
		return nil
	})
}
