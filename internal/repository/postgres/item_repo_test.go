package postgres

import (
	"context"
	"testing"

	"github.com/gofrs/uuid/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

var itemCols = []string{
	"project_id", "environment_id", "branch_id", "item_id", "parent_id", "slug", "item_type",
	"active", "secret_value", "secret_active", "commit_id", "ts",
}

func strPtr(s string) *string { return &s }

func TestItemRepo_Append(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &ItemRepo{q: mock}

	v := model.ItemVersion{
		Scope: testScope(), Item: uuid.Must(uuid.NewV7()), Parent: model.Root,
		Slug: "key1", Type: model.TypeString, Active: true,
		SecretValue: strPtr("blob"), SecretActive: true,
		Commit: uuid.Must(uuid.NewV7()), Timestamp: 42,
	}
	mock.ExpectExec(`INSERT INTO items`).
		WithArgs(v.Scope.Project, v.Scope.Environment, v.Scope.Branch, v.Item, v.Parent, v.Slug, "string",
			true, v.SecretValue, true, v.Commit, int64(42)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, r.Append(context.Background(), &v))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestItemRepo_ListLatest_ByParent(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &ItemRepo{q: mock}
	sc := testScope()
	parent := uuid.Must(uuid.NewV7())
	commit := uuid.Must(uuid.NewV7())

	rows := pgxmock.NewRows(itemCols).
		AddRow(sc.Project, sc.Environment, sc.Branch, uuid.Must(uuid.NewV7()), parent, "a", "object",
			true, nil, false, commit, int64(7)).
		AddRow(sc.Project, sc.Environment, sc.Branch, uuid.Must(uuid.NewV7()), parent, "b", "integer",
			true, strPtr("enc"), true, commit, int64(7))
	mock.ExpectQuery(`SELECT DISTINCT ON \(item_id\) \*\s+FROM items\s+WHERE project_id=\$1 AND environment_id=\$2 AND branch_id=\$3 AND ts <= \$4 AND parent_id=\$5\s+ORDER BY item_id, ts DESC, seq DESC`).
		WithArgs(sc.Project, sc.Environment, sc.Branch, model.Latest, parent).
		WillReturnRows(rows)

	out, err := r.ListLatest(context.Background(), sc, &parent, model.Latest)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, model.TypeObject, out[0].Type)
	require.Nil(t, out[0].SecretValue)
	require.Equal(t, "enc", *out[1].SecretValue)
}

func TestItemRepo_Get_NotFoundAndDuplicate(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &ItemRepo{q: mock}
	sc := testScope()
	item := uuid.Must(uuid.NewV7())

	mock.ExpectQuery(`AND item_id=\$5`).
		WithArgs(sc.Project, sc.Environment, sc.Branch, int64(10), item).
		WillReturnRows(pgxmock.NewRows(itemCols))
	_, err := r.Get(context.Background(), sc, item, 10)
	require.ErrorIs(t, err, errs.ErrItemNotFound)

	c := uuid.Must(uuid.NewV7())
	mock.ExpectQuery(`AND item_id=\$5`).
		WithArgs(sc.Project, sc.Environment, sc.Branch, int64(10), item).
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow(sc.Project, sc.Environment, sc.Branch, item, model.Root, "x", "string", true, nil, false, c, int64(1)).
			AddRow(sc.Project, sc.Environment, sc.Branch, item, model.Root, "x", "string", true, nil, false, c, int64(1)))
	_, err = r.Get(context.Background(), sc, item, 10)
	require.ErrorIs(t, err, errs.ErrMultipleVersions)
	require.ErrorIs(t, err, errs.ErrIntegrity)
}

func TestItemRepo_GetBySlug_FiltersAfterReduction(t *testing.T) {
	_, mock := newDB(t)
	defer mock.Close()
	r := &ItemRepo{q: mock}
	sc := testScope()
	item := uuid.Must(uuid.NewV7())

	mock.ExpectQuery(`\) latest\s+WHERE active AND slug=\$6`).
		WithArgs(sc.Project, sc.Environment, sc.Branch, model.Latest, model.Root, "db").
		WillReturnRows(pgxmock.NewRows(itemCols).
			AddRow(sc.Project, sc.Environment, sc.Branch, item, model.Root, "db", "object", true, nil, false, uuid.Must(uuid.NewV7()), int64(3)))

	v, err := r.GetBySlug(context.Background(), sc, model.Root, "db", model.Latest)
	require.NoError(t, err)
	require.Equal(t, item, v.Item)
}
