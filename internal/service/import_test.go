package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

type obj = map[string]any

func TestImport_ReplacesTree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	stale := f.create(t, model.Root, model.TypeString, "stale", str("x"))

	schema := obj{
		"type": "object",
		"properties": obj{
			"name": obj{"type": "string"},
			"db":   obj{"type": "object", "properties": obj{"port": obj{"type": "integer"}}},
		},
	}
	values := obj{"name": "app", "db": obj{"port": float64(5432)}}
	_, err := f.svc.Items.Import(ctx, f.user, f.sc, schema, values, "import")
	require.NoError(t, err)

	snap, err := f.svc.Items.Snapshot(ctx, f.user, f.sc, nil)
	require.NoError(t, err)
	if diff := cmp.Diff(obj{"name": "app", "db": obj{"port": int64(5432)}}, snap); diff != "" {
		t.Fatalf("snapshot (-want +got):\n%s", diff)
	}
	_, err = f.svc.Items.Get(ctx, f.user, f.sc, stale, nil)
	require.ErrorIs(t, err, errs.ErrItemNotFound)

	root, err := f.svc.Items.ListByParent(ctx, f.user, f.sc, model.Root, nil)
	require.NoError(t, err)
	require.Len(t, root, 2)
	db := root[0]
	require.Equal(t, "db", db.Slug)
	port, err := f.svc.Items.ListByParent(ctx, f.user, f.sc, db.ID, nil)
	require.NoError(t, err)
	require.Len(t, port, 1)

	// Second import: db keeps its identity, port changes type and so identity.
	schema = obj{
		"type":       "object",
		"properties": obj{"db": obj{"type": "object", "properties": obj{"port": obj{"type": "string"}}}},
	}
	_, err = f.svc.Items.Import(ctx, f.user, f.sc, schema, obj{"db": obj{"port": "5433"}}, "reimport")
	require.NoError(t, err)

	root2, err := f.svc.Items.ListByParent(ctx, f.user, f.sc, model.Root, nil)
	require.NoError(t, err)
	require.Len(t, root2, 1)
	require.Equal(t, db.ID, root2[0].ID)

	port2, err := f.svc.Items.ListByParent(ctx, f.user, f.sc, db.ID, nil)
	require.NoError(t, err)
	require.Len(t, port2, 1)
	require.NotEqual(t, port[0].ID, port2[0].ID)
	require.Equal(t, model.TypeString, port2[0].Type)
	require.Equal(t, "5433", port2[0].Value.String())

	hist, err := f.svc.Items.History(ctx, f.user, f.sc, port[0].ID)
	require.NoError(t, err)
	require.False(t, hist[len(hist)-1].Active)
}

func TestImport_Rejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	strType := obj{"type": "string"}

	tests := []struct {
		name   string
		schema obj
		values obj
		want   error
	}{
		{"value violates schema", obj{"type": "object", "properties": obj{"name": strType}}, obj{"name": float64(1)}, errs.ErrSchema},
		{"missing value", obj{"type": "object", "properties": obj{"name": strType}}, obj{}, errs.ErrSchema},
		{"root not object", obj{"type": "string", "properties": obj{}}, nil, errs.ErrSchema},
		{"no properties", obj{"type": "object"}, obj{}, errs.ErrSchema},
		{"array", obj{"type": "object", "properties": obj{"list": obj{"type": "array"}}}, obj{"list": []any{}}, errs.ErrUnsupportedType},
		{"bad boolean", obj{"type": "object", "properties": obj{"on": obj{"type": "boolean"}}}, obj{"on": false}, errs.ErrInvalidSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Items.Import(ctx, f.user, f.sc, tt.schema, tt.values, tt.name)
			require.ErrorIs(t, err, tt.want)
		})
	}

	cs, err := f.svc.Commits.List(ctx, f.user, f.sc)
	require.NoError(t, err)
	require.Empty(t, cs)
}

func TestSchema_Document(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	db := f.create(t, model.Root, model.TypeObject, "db", nil)
	f.create(t, db, model.TypeInteger, "port", nil)
	c, err := f.svc.Items.UpdateSlug(ctx, f.user, f.sc, db, "database", "rename")
	require.NoError(t, err)

	doc, err := f.svc.Items.Schema(ctx, f.user, f.sc, nil)
	require.NoError(t, err)
	want := obj{
		"$schema":     schemaDialect,
		"$id":         fmt.Sprintf("%s/%s/%s/%s", schemaIDBase, f.sc.Project, f.sc.Environment, f.sc.Branch),
		"title":       sampleProjectSlug,
		"description": sampleProjectDesc,
		"type":        "object",
		"properties": obj{
			"database": obj{"type": "object", "properties": obj{"port": obj{"type": "integer"}}},
		},
	}
	if diff := cmp.Diff(want, doc); diff != "" {
		t.Fatalf("schema (-want +got):\n%s", diff)
	}

	doc, err = f.svc.Items.Schema(ctx, f.user, f.sc, &c.ID)
	require.NoError(t, err)
	require.Equal(t, want["$id"].(string)+"/"+c.ID.String(), doc["$id"])
}

// nestedSchema returns n objects chained under slug "o".
func nestedSchema(n int) obj {
	props := obj{}
	for i := 0; i < n; i++ {
		props = obj{"o": obj{"type": "object", "properties": props}}
	}
	return obj{"type": "object", "properties": props}
}

func TestImport_NestingLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Items.Import(ctx, f.user, f.sc, nestedSchema(model.MaxDepth), obj{}, "deepest allowed")
	require.NoError(t, err)
	_, err = f.svc.Items.Snapshot(ctx, f.user, f.sc, nil)
	require.NoError(t, err)

	_, err = f.svc.Items.Import(ctx, f.user, f.sc, nestedSchema(model.MaxDepth+1), obj{}, "too deep")
	require.ErrorIs(t, err, errs.ErrNestingTooDeep)
}
