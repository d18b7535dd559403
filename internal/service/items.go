package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/repository"
	"github.com/watsh-io/backend/internal/value"
)

// Item is an item version with its secret opened.
type Item struct {
	ID           uuid.UUID
	Parent       uuid.UUID
	Slug         string
	Type         model.ItemType
	Active       bool
	Value        *value.Scalar // nil without an active secret
	SecretActive bool
	Commit       uuid.UUID
	Timestamp    int64
}

// NewItem describes an item to create.
type NewItem struct {
	Parent uuid.UUID
	Type   model.ItemType
	Slug   string
	Secret *string
}

// ItemService reads and writes the item tree of a branch.
type ItemService struct{ *core }

// reveal opens and casts the secret of v. Failures are integrity errors.
func (c *core) reveal(v model.ItemVersion) (Item, error) {
	it := Item{
		ID: v.Item, Parent: v.Parent, Slug: v.Slug, Type: v.Type, Active: v.Active,
		SecretActive: v.SecretActive, Commit: v.Commit, Timestamp: v.Timestamp,
	}
	if !v.SecretActive || v.Type.Container() {
		return it, nil
	}
	if v.SecretValue == nil {
		return Item{}, c.integrity(v, errs.ErrCorruptValue)
	}
	plain, err := c.codec.Open(*v.SecretValue)
	if err != nil {
		return Item{}, c.integrity(v, fmt.Errorf("%w: %w", errs.ErrDecrypt, err))
	}
	sc, err := value.Parse(v.Type, plain)
	if err != nil {
		return Item{}, c.integrity(v, fmt.Errorf("%w: %w", errs.ErrCorruptValue, err))
	}
	it.Value = &sc
	return it, nil
}

func (c *core) integrity(v model.ItemVersion, err error) error {
	c.log.Error("stored item failed integrity check",
		zap.Stringer("item", v.Item),
		zap.Stringer("commit", v.Commit),
		zap.Stringer("branch", v.Scope.Branch),
		zap.Error(err),
	)
	return fmt.Errorf("item %s: %w", v.Item, err)
}

func (c *core) revealAll(vs []model.ItemVersion) ([]Item, error) {
	out := make([]Item, 0, len(vs))
	for _, v := range vs {
		it, err := c.reveal(v)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, nil
}

// read runs fn after the read access checks with the resolved timestamp bound.
func (s *ItemService) read(ctx context.Context, userID uuid.UUID, sc model.Scope, commitID *uuid.UUID,
	fn func(ctx context.Context, tx repository.Tx, ts int64) error,
) error {
	return s.store.WithTx(ctx, func(ctx context.Context, tx repository.Tx) error {
		if _, err := requireScope(ctx, tx, userID, sc, false); err != nil {
			return err
		}
		ts, err := asOf(ctx, tx, sc, commitID)
		if err != nil {
			return err
		}
		return fn(ctx, tx, ts)
	})
}

// List returns every active item of the branch, optionally as of a commit.
func (s *ItemService) List(ctx context.Context, userID uuid.UUID, sc model.Scope, commitID *uuid.UUID) ([]Item, error) {
	var out []Item
	err := s.read(ctx, userID, sc, commitID, func(ctx context.Context, tx repository.Tx, ts int64) error {
		vs, err := tx.Items().ListLatest(ctx, sc, nil, ts)
		if err != nil {
			return err
		}
		out, err = s.revealAll(vs)
		return err
	})
	return out, err
}

// ListByParent returns the active children of parent.
func (s *ItemService) ListByParent(ctx context.Context, userID uuid.UUID, sc model.Scope, parent uuid.UUID, commitID *uuid.UUID) ([]Item, error) {
	var out []Item
	err := s.read(ctx, userID, sc, commitID, func(ctx context.Context, tx repository.Tx, ts int64) error {
		vs, err := tx.Items().ListLatest(ctx, sc, &parent, ts)
		if err != nil {
			return err
		}
		out, err = s.revealAll(vs)
		return err
	})
	return out, err
}

// Get returns one active item.
func (s *ItemService) Get(ctx context.Context, userID uuid.UUID, sc model.Scope, itemID uuid.UUID, commitID *uuid.UUID) (*Item, error) {
	var out Item
	err := s.read(ctx, userID, sc, commitID, func(ctx context.Context, tx repository.Tx, ts int64) error {
		v, err := tx.Items().Get(ctx, sc, itemID, ts)
		if err != nil {
			return err
		}
		out, err = s.reveal(*v)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// History returns every version of one item, inactive ones included.
func (s *ItemService) History(ctx context.Context, userID uuid.UUID, sc model.Scope, itemID uuid.UUID) ([]Item, error) {
	var out []Item
	err := s.read(ctx, userID, sc, nil, func(ctx context.Context, tx repository.Tx, _ int64) error {
		vs, err := tx.Items().History(ctx, sc, itemID)
		if err != nil {
			return err
		}
		if len(vs) == 0 {
			return fmt.Errorf("%s: %w", itemID, errs.ErrItemNotFound)
		}
		out, err = s.revealAll(vs)
		return err
	})
	return out, err
}

// seal casts raw to t and encrypts its canonical text.
func (c *core) seal(t model.ItemType, raw string) (*string, error) {
	if t.Container() {
		return nil, fmt.Errorf("%s cannot hold secrets: %w", t, errs.ErrContainerMisuse)
	}
	sc, err := value.Parse(t, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrInvalidSecret, err)
	}
	blob, err := c.codec.Seal(sc.String())
	if err != nil {
		return nil, err
	}
	return &blob, nil
}

func checkType(t model.ItemType) error {
	if !t.Valid() {
		return fmt.Errorf("item type %q: %w", t, errs.ErrInvalidInput)
	}
	if t == model.TypeArray {
		return fmt.Errorf("%s: %w", t, errs.ErrUnsupportedType)
	}
	return nil
}

// slugFree reports ErrSlugConflict when another active sibling uses slug.
func slugFree(ctx context.Context, tx repository.Tx, sc model.Scope, parent uuid.UUID, slug string, self uuid.UUID) error {
	v, err := tx.Items().GetBySlug(ctx, sc, parent, slug, model.Latest)
	switch {
	case errors.Is(err, errs.ErrItemNotFound):
		return nil
	case err != nil:
		return err
	case v.Item == self:
		return nil
	default:
		return fmt.Errorf("%q: %w", slug, errs.ErrSlugConflict)
	}
}

// depth counts the ancestors of an active item, capped at model.MaxDepth.
func depth(ctx context.Context, tx repository.Tx, sc model.Scope, id uuid.UUID) (int, error) {
	n := 0
	for id != model.Root {
		if n >= model.MaxDepth {
			return 0, fmt.Errorf("deeper than %d: %w", model.MaxDepth, errs.ErrNestingTooDeep)
		}
		v, err := tx.Items().Get(ctx, sc, id, model.Latest)
		if err != nil {
			return 0, err
		}
		id = v.Parent
		n++
	}
	return n, nil
}

// Create adds one item under root or an active object.
func (s *ItemService) Create(ctx context.Context, userID uuid.UUID, sc model.Scope, in NewItem, message string) (uuid.UUID, *model.Commit, error) {
	if err := checkType(in.Type); err != nil {
		return uuid.Nil, nil, err
	}
	if in.Slug == "" {
		return uuid.Nil, nil, fmt.Errorf("empty item slug: %w", errs.ErrInvalidInput)
	}
	var secret *string
	if in.Secret != nil {
		var err error
		if secret, err = s.seal(in.Type, *in.Secret); err != nil {
			return uuid.Nil, nil, err
		}
	}

	id := model.NewID()
	c, err := s.write(ctx, userID, sc, message, func(ctx context.Context, w *writer) error {
		if in.Parent != model.Root {
			p, err := w.tx.Items().Get(ctx, sc, in.Parent, model.Latest)
			if err != nil {
				return err
			}
			if p.Type != model.TypeObject {
				return fmt.Errorf("parent %s is %s: %w", p.Slug, p.Type, errs.ErrContainerMisuse)
			}
			d, err := depth(ctx, w.tx, sc, in.Parent)
			if err != nil {
				return err
			}
			if d+1 > model.MaxDepth {
				return fmt.Errorf("deeper than %d: %w", model.MaxDepth, errs.ErrNestingTooDeep)
			}
		}
		if err := slugFree(ctx, w.tx, sc, in.Parent, in.Slug, id); err != nil {
			return err
		}
		return w.put(ctx, model.ItemVersion{
			Item: id, Parent: in.Parent, Slug: in.Slug, Type: in.Type, Active: true,
			SecretValue: secret, SecretActive: secret != nil,
		})
	})
	if err != nil {
		return uuid.Nil, nil, err
	}
	return id, c, nil
}

// UpdateSlug renames an item, carrying its secret forward.
func (s *ItemService) UpdateSlug(ctx context.Context, userID uuid.UUID, sc model.Scope, itemID uuid.UUID, slug, message string) (*model.Commit, error) {
	if slug == "" {
		return nil, fmt.Errorf("empty item slug: %w", errs.ErrInvalidInput)
	}
	return s.write(ctx, userID, sc, message, func(ctx context.Context, w *writer) error {
		cur, err := w.tx.Items().Get(ctx, sc, itemID, model.Latest)
		if err != nil {
			return err
		}
		if err := slugFree(ctx, w.tx, sc, cur.Parent, slug, itemID); err != nil {
			return err
		}
		next := *cur
		next.Slug = slug
		return w.put(ctx, next)
	})
}

// Delete deactivates an item and, for objects, its whole subtree.
func (s *ItemService) Delete(ctx context.Context, userID uuid.UUID, sc model.Scope, itemID uuid.UUID, message string) (*model.Commit, error) {
	return s.write(ctx, userID, sc, message, func(ctx context.Context, w *writer) error {
		cur, err := w.tx.Items().Get(ctx, sc, itemID, model.Latest)
		if err != nil {
			return err
		}
		if err := w.put(ctx, tombstone(*cur)); err != nil {
			return err
		}
		if cur.Type.Container() {
			return deactivateChildren(ctx, w, itemID, 1)
		}
		return nil
	})
}

// SetSecret stores a new value for a scalar item.
func (s *ItemService) SetSecret(ctx context.Context, userID uuid.UUID, sc model.Scope, itemID uuid.UUID, secret, message string) (*model.Commit, error) {
	return s.write(ctx, userID, sc, message, func(ctx context.Context, w *writer) error {
		cur, err := w.tx.Items().Get(ctx, sc, itemID, model.Latest)
		if err != nil {
			return err
		}
		blob, err := s.seal(cur.Type, secret)
		if err != nil {
			return err
		}
		next := *cur
		next.SecretValue, next.SecretActive = blob, true
		return w.put(ctx, next)
	})
}

// DeleteSecret clears the value of a scalar item.
func (s *ItemService) DeleteSecret(ctx context.Context, userID uuid.UUID, sc model.Scope, itemID uuid.UUID, message string) (*model.Commit, error) {
	return s.write(ctx, userID, sc, message, func(ctx context.Context, w *writer) error {
		cur, err := w.tx.Items().Get(ctx, sc, itemID, model.Latest)
		if err != nil {
			return err
		}
		if cur.Type.Container() {
			return fmt.Errorf("%s cannot hold secrets: %w", cur.Type, errs.ErrContainerMisuse)
		}
		next := *cur
		next.SecretValue, next.SecretActive = nil, false
		return w.put(ctx, next)
	})
}

func tombstone(v model.ItemVersion) model.ItemVersion {
	v.Active = false
	v.SecretValue = nil
	v.SecretActive = false
	return v
}

// deactivateChildren writes an inactive row for every transitive descendant.
func deactivateChildren(ctx context.Context, w *writer, parent uuid.UUID, level int) error {
	if level > model.MaxDepth {
		return fmt.Errorf("tree deeper than %d: %w", model.MaxDepth, errs.ErrIntegrity)
	}
	children, err := w.tx.Items().ListLatest(ctx, w.scope(), &parent, model.Latest)
	if err != nil {
		return err
	}
	for _, ch := range children {
		if err := w.put(ctx, tombstone(ch)); err != nil {
			return err
		}
		if ch.Type.Container() {
			if err := deactivateChildren(ctx, w, ch.Item, level+1); err != nil {
				return err
			}
		}
	}
	return nil
}
