package postgres

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

func TestBranchRepo_Create_ConflictMapping(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &BranchRepo{q: mock}

	b := model.Branch{
		ID: uuid.Must(uuid.NewV7()), Project: uuid.Must(uuid.NewV7()),
		Environment: uuid.Must(uuid.NewV7()), Slug: "main", Default: true,
	}

	mock.ExpectExec(`INSERT INTO branches`).
		WithArgs(b.ID, b.Project, b.Environment, b.Slug, b.Default).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: branchDefaultIndex})
	err := r.Create(context.Background(), &b)
	require.ErrorIs(t, err, errs.ErrDefaultExists)

	mock.ExpectExec(`INSERT INTO branches`).
		WithArgs(b.ID, b.Project, b.Environment, b.Slug, b.Default).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "branches_env_project_slug_key"})
	err = r.Create(context.Background(), &b)
	require.ErrorIs(t, err, errs.ErrBranchSlugTaken)
}

func TestBranchRepo_GetDefault(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &BranchRepo{q: mock}

	p, e, id := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())
	mock.ExpectQuery(`FROM branches WHERE project_id=\$1 AND environment_id=\$2 AND is_default`).
		WithArgs(p, e).
		WillReturnRows(pgxmock.NewRows([]string{"id", "project_id", "environment_id", "slug", "is_default"}).
			AddRow(id, p, e, "main", true))

	b, err := r.GetDefault(context.Background(), p, e)
	require.NoError(t, err)
	require.Equal(t, id, b.ID)
	require.True(t, b.Default)

	mock.ExpectQuery(`FROM branches WHERE project_id=\$1 AND environment_id=\$2 AND is_default`).
		WithArgs(p, e).
		WillReturnError(pgx.ErrNoRows)
	_, err = r.GetDefault(context.Background(), p, e)
	require.ErrorIs(t, err, errs.ErrBranchNotFound)
}

func TestBranchRepo_Delete_NotFound(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &BranchRepo{q: mock}

	p, e, id := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())
	mock.ExpectExec(`DELETE FROM branches WHERE project_id=\$1 AND environment_id=\$2 AND id=\$3`).
		WithArgs(p, e, id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.ErrorIs(t, r.Delete(context.Background(), p, e, id), errs.ErrBranchNotFound)
}

func TestEnvironmentRepo_SetDefault_Race(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &EnvironmentRepo{q: mock}

	p, id := uuid.Must(uuid.NewV7()), uuid.Must(uuid.NewV7())
	mock.ExpectExec(`UPDATE environments SET is_default=\$3`).
		WithArgs(p, id, true).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: envDefaultIndex})

	err := r.SetDefault(context.Background(), p, id, true)
	require.ErrorIs(t, err, errs.ErrDefaultExists)
}

func TestEnvironmentRepo_List(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &EnvironmentRepo{q: mock}

	p := uuid.Must(uuid.NewV7())
	rows := pgxmock.NewRows([]string{"id", "project_id", "slug", "is_default"}).
		AddRow(uuid.Must(uuid.NewV7()), p, "production", true).
		AddRow(uuid.Must(uuid.NewV7()), p, "development", false)
	mock.ExpectQuery(`FROM environments WHERE project_id=\$1 ORDER BY id`).WithArgs(p).WillReturnRows(rows)

	envs, err := r.List(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, envs, 2)
	require.Equal(t, "production", envs[0].Slug)
}
