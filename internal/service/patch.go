package service

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

// ApplyUpdates applies an unordered batch of item updates in one commit.
// Updates are consumed parent-first from the root so that a new object can
// receive children within the same batch.
func (s *ItemService) ApplyUpdates(ctx context.Context, userID uuid.UUID, sc model.Scope, updates []model.ItemUpdate, message string) (*model.Commit, error) {
	for i, u := range updates {
		if u.Item == uuid.Nil {
			return nil, fmt.Errorf("update %d: empty item id: %w", i, errs.ErrInvalidInput)
		}
		if err := checkType(u.Type); err != nil {
			return nil, fmt.Errorf("update %d: %w", i, err)
		}
		if u.Active && u.Slug == "" {
			return nil, fmt.Errorf("update %d: empty item slug: %w", i, errs.ErrInvalidInput)
		}
	}

	return s.write(ctx, userID, sc, message, func(ctx context.Context, w *writer) error {
		p := &patcher{core: s.core, w: w, pending: slices.Clone(updates)}
		if err := p.walk(ctx, model.Root, 0); err != nil {
			return err
		}
		// Whatever is left never met its parent in the live tree.
		for _, u := range p.pending {
			if u.Active {
				return fmt.Errorf("item %s under %s: %w", u.Item, u.Parent, errs.ErrDanglingParent)
			}
			if err := p.apply(ctx, u); err != nil {
				return err
			}
		}
		return nil
	})
}

type patcher struct {
	*core
	w       *writer
	pending []model.ItemUpdate
}

func (p *patcher) walk(ctx context.Context, parent uuid.UUID, level int) error {
	if len(p.pending) == 0 {
		return nil
	}
	var mine, rest []model.ItemUpdate
	for _, u := range p.pending {
		if u.Parent == parent {
			mine = append(mine, u)
		} else {
			rest = append(rest, u)
		}
	}
	// mine lands at depth level+1.
	if len(mine) > 0 && level >= model.MaxDepth {
		return fmt.Errorf("deeper than %d: %w", model.MaxDepth, errs.ErrNestingTooDeep)
	}
	p.pending = rest
	for _, u := range mine {
		if err := p.apply(ctx, u); err != nil {
			return err
		}
	}

	children, err := p.w.tx.Items().ListLatest(ctx, p.w.scope(), &parent, model.Latest)
	if err != nil {
		return err
	}
	for _, ch := range children {
		if ch.Type != model.TypeObject {
			continue
		}
		if err := p.walk(ctx, ch.Item, level+1); err != nil {
			return err
		}
	}
	return nil
}

func (p *patcher) apply(ctx context.Context, u model.ItemUpdate) error {
	var blob *string
	if u.SecretValue != nil {
		var err error
		if blob, err = p.seal(u.Type, *u.SecretValue); err != nil {
			return fmt.Errorf("item %s: %w", u.Item, err)
		}
	}

	items := p.w.tx.Items()
	sc := p.w.scope()
	cur, err := items.Get(ctx, sc, u.Item, model.Latest)
	switch {
	case err == nil:
		if cur.Type != u.Type {
			return fmt.Errorf("item %s type: %w", u.Item, errs.ErrImmutableField)
		}
		if cur.Parent != u.Parent {
			return fmt.Errorf("item %s parent: %w", u.Item, errs.ErrImmutableField)
		}
		if u.Active && u.Slug != cur.Slug {
			if err := slugFree(ctx, p.w.tx, sc, u.Parent, u.Slug, u.Item); err != nil {
				return err
			}
		}
		if blob == nil && u.Active && u.SecretActive && !u.Type.Container() {
			if !cur.SecretActive || cur.SecretValue == nil {
				return fmt.Errorf("item %s has no secret to keep: %w", u.Item, errs.ErrInvalidSecret)
			}
			blob = cur.SecretValue
		}

	case errors.Is(err, errs.ErrItemNotFound):
		if !u.Active {
			return nil
		}
		// A deactivated item may come back, but with its original shape.
		hist, err := items.History(ctx, sc, u.Item)
		if err != nil {
			return err
		}
		if n := len(hist); n > 0 {
			if last := hist[n-1]; last.Type != u.Type || last.Parent != u.Parent {
				return fmt.Errorf("item %s: %w", u.Item, errs.ErrImmutableField)
			}
		}
		if err := slugFree(ctx, p.w.tx, sc, u.Parent, u.Slug, u.Item); err != nil {
			return err
		}
		if blob == nil && u.SecretActive && !u.Type.Container() {
			return fmt.Errorf("item %s: secret_active without a value: %w", u.Item, errs.ErrInvalidSecret)
		}

	default:
		return err
	}

	row := model.ItemVersion{Item: u.Item, Parent: u.Parent, Slug: u.Slug, Type: u.Type, Active: u.Active}
	if cur != nil && !u.Active {
		row.Slug = cur.Slug
	}
	if u.Active && u.SecretActive && !u.Type.Container() {
		row.SecretValue, row.SecretActive = blob, true
	}
	if err := p.w.put(ctx, row); err != nil {
		return err
	}
	if cur != nil && !u.Active && u.Type.Container() {
		return deactivateChildren(ctx, p.w, u.Item, 1)
	}
	return nil
}
