package memory

import (
	"bytes"
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

type commitRepo struct{ st *state }

func (r commitRepo) Create(_ context.Context, c *model.Commit) error {
	if slices.ContainsFunc(r.st.commits, func(x model.Commit) bool {
		return x.Scope == c.Scope && x.Timestamp == c.Timestamp
	}) {
		return fmt.Errorf("ts=%d: %w", c.Timestamp, errs.ErrCommitExists)
	}
	r.st.commits = append(r.st.commits, *c)
	return nil
}

func (r commitRepo) Get(_ context.Context, scope model.Scope, id uuid.UUID) (*model.Commit, error) {
	i := slices.IndexFunc(r.st.commits, func(x model.Commit) bool { return x.Scope == scope && x.ID == id })
	if i < 0 {
		return nil, errs.ErrCommitNotFound
	}
	c := r.st.commits[i]
	return &c, nil
}

func (r commitRepo) List(_ context.Context, scope model.Scope) ([]model.Commit, error) {
	var out []model.Commit
	for _, c := range r.st.commits {
		if c.Scope == scope {
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b model.Commit) int { return cmp.Compare(a.Timestamp, b.Timestamp) })
	return out, nil
}

func (r commitRepo) LastTimestamp(_ context.Context, scope model.Scope) (int64, error) {
	var ts int64
	for _, c := range r.st.commits {
		if c.Scope == scope && c.Timestamp > ts {
			ts = c.Timestamp
		}
	}
	return ts, nil
}

func (r commitRepo) DeleteByBranch(_ context.Context, scope model.Scope) error {
	r.st.commits = slices.DeleteFunc(r.st.commits, func(c model.Commit) bool { return c.Scope == scope })
	return nil
}

type itemRepo struct{ st *state }

func (r itemRepo) Append(_ context.Context, v *model.ItemVersion) error {
	r.st.items = append(r.st.items, *v)
	return nil
}

// latest reduces the log to the winning row per item among rows accepted by
// keep, drops inactive winners and orders the rest by slug.
func (r itemRepo) latest(scope model.Scope, asOf int64, keep func(model.ItemVersion) bool) []model.ItemVersion {
	win := map[uuid.UUID]int{}
	for i, v := range r.st.items {
		if v.Scope != scope || v.Timestamp > asOf || !keep(v) {
			continue
		}
		// >= lets a later row of the same commit win.
		if j, ok := win[v.Item]; !ok || v.Timestamp >= r.st.items[j].Timestamp {
			win[v.Item] = i
		}
	}
	out := make([]model.ItemVersion, 0, len(win))
	for _, i := range win {
		if v := r.st.items[i]; v.Active {
			out = append(out, v)
		}
	}
	slices.SortFunc(out, func(a, b model.ItemVersion) int {
		return cmp.Or(cmp.Compare(a.Slug, b.Slug), bytes.Compare(a.Item[:], b.Item[:]))
	})
	return out
}

func (r itemRepo) ListLatest(_ context.Context, scope model.Scope, parent *uuid.UUID, asOf int64) ([]model.ItemVersion, error) {
	if parent == nil {
		return r.latest(scope, asOf, func(model.ItemVersion) bool { return true }), nil
	}
	p := *parent
	return r.latest(scope, asOf, func(v model.ItemVersion) bool { return v.Parent == p }), nil
}

func (r itemRepo) Get(_ context.Context, scope model.Scope, item uuid.UUID, asOf int64) (*model.ItemVersion, error) {
	out := r.latest(scope, asOf, func(v model.ItemVersion) bool { return v.Item == item })
	if len(out) == 0 {
		return nil, fmt.Errorf("%s: %w", item, errs.ErrItemNotFound)
	}
	return &out[0], nil
}

func (r itemRepo) GetBySlug(_ context.Context, scope model.Scope, parent uuid.UUID, slug string, asOf int64) (*model.ItemVersion, error) {
	out := r.latest(scope, asOf, func(v model.ItemVersion) bool { return v.Parent == parent })
	var hit []model.ItemVersion
	for _, v := range out {
		if v.Slug == slug {
			hit = append(hit, v)
		}
	}
	switch len(hit) {
	case 0:
		return nil, fmt.Errorf("%s: %w", slug, errs.ErrItemNotFound)
	case 1:
		return &hit[0], nil
	default:
		return nil, fmt.Errorf("%s: %w", slug, errs.ErrMultipleVersions)
	}
}

func (r itemRepo) History(_ context.Context, scope model.Scope, item uuid.UUID) ([]model.ItemVersion, error) {
	var out []model.ItemVersion
	for _, v := range r.st.items {
		if v.Scope == scope && v.Item == item {
			out = append(out, v)
		}
	}
	slices.SortStableFunc(out, func(a, b model.ItemVersion) int { return cmp.Compare(a.Timestamp, b.Timestamp) })
	return out, nil
}

func (r itemRepo) DeleteByBranch(_ context.Context, scope model.Scope) error {
	r.st.items = slices.DeleteFunc(r.st.items, func(v model.ItemVersion) bool { return v.Scope == scope })
	return nil
}
