package service

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/stretchr/testify/require"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

func (f *fixture) newUser(t *testing.T, email string) uuid.UUID {
	t.Helper()
	u, err := f.svc.Users.Create(context.Background(), email)
	require.NoError(t, err)
	return u.ID
}

func TestProjects_CreateSeedsEnvironments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.Projects.Create(ctx, f.user, "second", "Another one")
	require.NoError(t, err)
	require.Equal(t, f.user, p.Owner)

	envs, err := f.svc.Environments.List(ctx, f.user, p.ID)
	require.NoError(t, err)
	require.Len(t, envs, 3)
	defaults := 0
	for _, e := range envs {
		if e.Default {
			defaults++
			require.Equal(t, "production", e.Slug)
		}
		bs, err := f.svc.Branches.List(ctx, f.user, p.ID, e.ID)
		require.NoError(t, err)
		require.Len(t, bs, 1)
		require.Equal(t, "main", bs[0].Slug)
		require.True(t, bs[0].Default)
	}
	require.Equal(t, 1, defaults)

	ps, err := f.svc.Projects.List(ctx, f.user)
	require.NoError(t, err)
	require.Len(t, ps, 2)

	_, err = f.svc.Projects.Create(ctx, f.user, "second", "")
	require.ErrorIs(t, err, errs.ErrProjectSlugTaken)
	_, err = f.svc.Projects.Create(ctx, f.user, "No", "")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = f.svc.Projects.Create(ctx, f.user, "valid-slug", "semi;colon")
	require.ErrorIs(t, err, errs.ErrInvalidInput)
	_, err = f.svc.Projects.Create(ctx, model.NewID(), "orphan", "")
	require.ErrorIs(t, err, errs.ErrUserNotFound)

	// Slugs are unique per owner only.
	bob := f.newUser(t, "bob@example.com")
	_, err = f.svc.Projects.Create(ctx, bob, "second", "")
	require.NoError(t, err)
}

func TestProjects_AccessChecks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	bob := f.newUser(t, "bob@example.com")

	_, err := f.svc.Projects.Get(ctx, bob, f.sc.Project)
	require.ErrorIs(t, err, errs.ErrNotMember)
	_, err = f.svc.Projects.Get(ctx, bob, model.NewID())
	require.ErrorIs(t, err, errs.ErrNotMember)
	_, err = f.svc.Items.List(ctx, bob, f.sc, nil)
	require.ErrorIs(t, err, errs.ErrNotMember)
	_, _, err = f.svc.Items.Create(ctx, bob, f.sc, NewItem{Type: model.TypeString, Slug: "x"}, "x")
	require.ErrorIs(t, err, errs.ErrNotMember)
	_, err = f.svc.Commits.List(ctx, bob, f.sc)
	require.ErrorIs(t, err, errs.ErrNotMember)
	_, err = f.svc.Branches.List(ctx, bob, f.sc.Project, f.sc.Environment)
	require.ErrorIs(t, err, errs.ErrNotMember)

	err = f.svc.Projects.Archive(ctx, bob, f.sc.Project)
	require.ErrorIs(t, err, errs.ErrNotOwner)
	err = f.svc.Projects.Delete(ctx, bob, model.NewID())
	require.ErrorIs(t, err, errs.ErrNotOwner)

	ok, err := f.svc.Projects.IsOwner(ctx, f.user, f.sc.Project)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = f.svc.Projects.IsOwner(ctx, bob, f.sc.Project)
	require.NoError(t, err)
	require.False(t, ok)

	// A scope whose branch lives in another environment is not found.
	other, err := f.svc.Environments.Create(ctx, f.user, f.sc.Project, "qa")
	require.NoError(t, err)
	bad := f.sc
	bad.Environment = other.ID
	_, err = f.svc.Items.List(ctx, f.user, bad, nil)
	require.ErrorIs(t, err, errs.ErrBranchNotFound)
}

func TestProjects_ArchivedIsReadOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, model.Root, model.TypeString, "k", str("v"))

	require.NoError(t, f.svc.Projects.Archive(ctx, f.user, f.sc.Project))

	_, _, err := f.svc.Items.Create(ctx, f.user, f.sc, NewItem{Type: model.TypeString, Slug: "x"}, "x")
	require.ErrorIs(t, err, errs.ErrArchivedProject)
	err = f.svc.Projects.UpdateSlug(ctx, f.user, f.sc.Project, "renamed")
	require.ErrorIs(t, err, errs.ErrArchivedProject)
	err = f.svc.Projects.UpdateDescription(ctx, f.user, f.sc.Project, "new text")
	require.ErrorIs(t, err, errs.ErrArchivedProject)
	_, err = f.svc.Branches.Create(ctx, f.user, f.sc.Project, f.sc.Environment, "feature")
	require.ErrorIs(t, err, errs.ErrArchivedProject)

	snap, err := f.svc.Items.Snapshot(ctx, f.user, f.sc, nil)
	require.NoError(t, err)
	require.Equal(t, obj{"k": "v"}, snap)

	require.NoError(t, f.svc.Projects.Unarchive(ctx, f.user, f.sc.Project))
	require.NoError(t, f.svc.Projects.UpdateSlug(ctx, f.user, f.sc.Project, "renamed"))
	require.NoError(t, f.svc.Projects.UpdateDescription(ctx, f.user, f.sc.Project, "new text"))

	p, err := f.svc.Projects.Get(ctx, f.user, f.sc.Project)
	require.NoError(t, err)
	require.Equal(t, "renamed", p.Slug)
	require.Equal(t, "new text", p.Description)
	require.False(t, p.Archived)
}

func TestProjects_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, model.Root, model.TypeString, "k", str("v"))

	require.NoError(t, f.svc.Projects.Delete(ctx, f.user, f.sc.Project))

	_, err := f.svc.Projects.Get(ctx, f.user, f.sc.Project)
	require.ErrorIs(t, err, errs.ErrNotMember)
	ps, err := f.svc.Projects.List(ctx, f.user)
	require.NoError(t, err)
	require.Empty(t, ps)
	require.Zero(t, f.store.ItemRows())
}

func TestEnvironments_DefaultLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	qa, err := f.svc.Environments.Create(ctx, f.user, f.sc.Project, "qa")
	require.NoError(t, err)
	require.False(t, qa.Default)

	_, err = f.svc.Environments.Create(ctx, f.user, f.sc.Project, "qa")
	require.ErrorIs(t, err, errs.ErrEnvironmentSlugTaken)
	err = f.svc.Environments.UpdateSlug(ctx, f.user, f.sc.Project, qa.ID, "staging")
	require.ErrorIs(t, err, errs.ErrEnvironmentSlugTaken)

	require.NoError(t, f.svc.Environments.SetDefault(ctx, f.user, f.sc.Project, qa.ID))
	err = f.svc.Environments.SetDefault(ctx, f.user, f.sc.Project, qa.ID)
	require.ErrorIs(t, err, errs.ErrAlreadyDefault)

	envs, err := f.svc.Environments.List(ctx, f.user, f.sc.Project)
	require.NoError(t, err)
	var defaults []string
	for _, e := range envs {
		if e.Default {
			defaults = append(defaults, e.Slug)
		}
	}
	require.Equal(t, []string{"qa"}, defaults)

	err = f.svc.Environments.Delete(ctx, f.user, f.sc.Project, qa.ID)
	require.ErrorIs(t, err, errs.ErrDefaultEnvironmentDeletion)

	// The old default, with its branch and items, can go now.
	f.create(t, model.Root, model.TypeString, "k", str("v"))
	require.NoError(t, f.svc.Environments.Delete(ctx, f.user, f.sc.Project, f.sc.Environment))
	_, err = f.svc.Environments.Get(ctx, f.user, f.sc.Project, f.sc.Environment)
	require.ErrorIs(t, err, errs.ErrEnvironmentNotFound)
	require.Zero(t, f.store.ItemRows())
}

func TestBranches_Lifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, model.Root, model.TypeString, "k", str("on main"))

	feat, err := f.svc.Branches.Create(ctx, f.user, f.sc.Project, f.sc.Environment, "feature")
	require.NoError(t, err)
	fsc := model.Scope{Project: f.sc.Project, Environment: f.sc.Environment, Branch: feat.ID}

	// Branches start empty and are isolated.
	snap, err := f.svc.Items.Snapshot(ctx, f.user, fsc, nil)
	require.NoError(t, err)
	require.Empty(t, snap)
	_, _, err = f.svc.Items.Create(ctx, f.user, fsc, NewItem{Type: model.TypeString, Slug: "k", Secret: str("on feature")}, "k")
	require.NoError(t, err)
	snap, err = f.svc.Items.Snapshot(ctx, f.user, f.sc, nil)
	require.NoError(t, err)
	require.Equal(t, obj{"k": "on main"}, snap)

	_, err = f.svc.Branches.Create(ctx, f.user, f.sc.Project, f.sc.Environment, "main")
	require.ErrorIs(t, err, errs.ErrBranchSlugTaken)
	err = f.svc.Branches.UpdateSlug(ctx, f.user, fsc, "main")
	require.ErrorIs(t, err, errs.ErrBranchSlugTaken)

	err = f.svc.Branches.Delete(ctx, f.user, f.sc)
	require.ErrorIs(t, err, errs.ErrDefaultBranchDeletion)

	require.NoError(t, f.svc.Branches.SetDefault(ctx, f.user, fsc))
	err = f.svc.Branches.SetDefault(ctx, f.user, fsc)
	require.ErrorIs(t, err, errs.ErrAlreadyDefault)

	require.NoError(t, f.svc.Branches.Delete(ctx, f.user, f.sc))
	_, err = f.svc.Branches.Get(ctx, f.user, f.sc.Project, f.sc.Environment, f.sc.Branch)
	require.ErrorIs(t, err, errs.ErrBranchNotFound)

	b, err := f.svc.Branches.Get(ctx, f.user, f.sc.Project, f.sc.Environment, feat.ID)
	require.NoError(t, err)
	require.True(t, b.Default)

	require.NoError(t, f.svc.Branches.UpdateSlug(ctx, f.user, fsc, "main"))
	snap, err = f.svc.Items.Snapshot(ctx, f.user, fsc, nil)
	require.NoError(t, err)
	require.Equal(t, obj{"k": "on feature"}, snap)
}
