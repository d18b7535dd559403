package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid/v5"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/repository"
)

const (
	schemaDialect = "https://json-schema.org/draft/2020-12/schema"
	schemaIDBase  = "https://api.watsh.io/v1/schema"
)

// Snapshot materializes the branch as a JSON-ready tree of values.
// Scalars without an active secret are omitted.
func (s *ItemService) Snapshot(ctx context.Context, userID uuid.UUID, sc model.Scope, commitID *uuid.UUID) (map[string]any, error) {
	var out map[string]any
	err := s.read(ctx, userID, sc, commitID, func(ctx context.Context, tx repository.Tx, ts int64) error {
		var err error
		out, err = s.materialize(ctx, tx, sc, model.Root, ts, 0)
		return err
	})
	return out, err
}

// Schema describes the branch as a JSON Schema document.
func (s *ItemService) Schema(ctx context.Context, userID uuid.UUID, sc model.Scope, commitID *uuid.UUID) (map[string]any, error) {
	var out map[string]any
	err := s.read(ctx, userID, sc, commitID, func(ctx context.Context, tx repository.Tx, ts int64) error {
		p, err := tx.Projects().Get(ctx, sc.Project)
		if err != nil {
			return err
		}
		props, err := properties(ctx, tx, sc, model.Root, ts, 0)
		if err != nil {
			return err
		}
		id := fmt.Sprintf("%s/%s/%s/%s", schemaIDBase, sc.Project, sc.Environment, sc.Branch)
		if commitID != nil {
			id += "/" + commitID.String()
		}
		out = map[string]any{
			"$schema":     schemaDialect,
			"$id":         id,
			"title":       p.Slug,
			"description": p.Description,
			"type":        string(model.TypeObject),
			"properties":  props,
		}
		return nil
	})
	return out, err
}

func tooDeep() error {
	return fmt.Errorf("tree deeper than %d: %w", model.MaxDepth, errs.ErrIntegrity)
}

func (c *core) materialize(ctx context.Context, tx repository.Tx, sc model.Scope, parent uuid.UUID, ts int64, level int) (map[string]any, error) {
	if level > model.MaxDepth {
		return nil, tooDeep()
	}
	children, err := tx.Items().ListLatest(ctx, sc, &parent, ts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(children))
	for _, ch := range children {
		switch {
		case ch.Type == model.TypeObject:
			sub, err := c.materialize(ctx, tx, sc, ch.Item, ts, level+1)
			if err != nil {
				return nil, err
			}
			out[ch.Slug] = sub
		case ch.Type.Container(), !ch.SecretActive:
		default:
			it, err := c.reveal(ch)
			if err != nil {
				return nil, err
			}
			out[ch.Slug] = it.Value.Interface()
		}
	}
	return out, nil
}

func properties(ctx context.Context, tx repository.Tx, sc model.Scope, parent uuid.UUID, ts int64, level int) (map[string]any, error) {
	if level > model.MaxDepth {
		return nil, tooDeep()
	}
	children, err := tx.Items().ListLatest(ctx, sc, &parent, ts)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(children))
	for _, ch := range children {
		node := map[string]any{"type": string(ch.Type)}
		if ch.Type == model.TypeObject {
			sub, err := properties(ctx, tx, sc, ch.Item, ts, level+1)
			if err != nil {
				return nil, err
			}
			node["properties"] = sub
		}
		out[ch.Slug] = node
	}
	return out, nil
}
