package postgres

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

func testScope() model.Scope {
	return model.Scope{
		Project:     uuid.Must(uuid.NewV7()),
		Environment: uuid.Must(uuid.NewV7()),
		Branch:      uuid.Must(uuid.NewV7()),
	}
}

func TestCommitRepo_LastTimestamp(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &CommitRepo{q: mock}
	sc := testScope()

	mock.ExpectQuery(`SELECT COALESCE\(MAX\(ts\), 0\)`).
		WithArgs(sc.Project, sc.Environment, sc.Branch).
		WillReturnRows(pgxmock.NewRows([]string{"coalesce"}).AddRow(int64(1700)))

	ts, err := r.LastTimestamp(context.Background(), sc)
	require.NoError(t, err)
	require.Equal(t, int64(1700), ts)
}

func TestCommitRepo_Create_DuplicateTimestamp(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &CommitRepo{q: mock}

	c := model.Commit{ID: uuid.Must(uuid.NewV7()), Scope: testScope(), Author: uuid.Must(uuid.NewV7()), Message: "m", Timestamp: 5}
	mock.ExpectExec(`INSERT INTO commits`).
		WithArgs(c.ID, c.Scope.Project, c.Scope.Environment, c.Scope.Branch, c.Author, c.Message, c.Timestamp).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "commits_branch_ts_key"})

	require.ErrorIs(t, r.Create(context.Background(), &c), errs.ErrCommitExists)
}

func TestCommitRepo_List(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &CommitRepo{q: mock}
	sc := testScope()
	author := uuid.Must(uuid.NewV7())

	rows := pgxmock.NewRows([]string{"id", "project_id", "environment_id", "branch_id", "author_id", "message", "ts"}).
		AddRow(uuid.Must(uuid.NewV7()), sc.Project, sc.Environment, sc.Branch, author, "first", int64(10)).
		AddRow(uuid.Must(uuid.NewV7()), sc.Project, sc.Environment, sc.Branch, author, "second", int64(20))
	mock.ExpectQuery(`FROM commits WHERE project_id=\$1 AND environment_id=\$2 AND branch_id=\$3\s+ORDER BY ts`).
		WithArgs(sc.Project, sc.Environment, sc.Branch).
		WillReturnRows(rows)

	cs, err := r.List(context.Background(), sc)
	require.NoError(t, err)
	require.Len(t, cs, 2)
	require.Equal(t, "second", cs[1].Message)
	require.Equal(t, sc, cs[0].Scope)
}
