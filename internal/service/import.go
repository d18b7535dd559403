package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/gofrs/uuid/v5"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
	"github.com/watsh-io/backend/internal/value"
)

const importResource = "import.json"

// checkAgainstSchema validates values with the caller's own schema document.
func checkAgainstSchema(schema, values map[string]any) error {
	raw, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSchema, err)
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(importResource, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSchema, err)
	}
	sch, err := c.Compile(importResource)
	if err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSchema, err)
	}
	if values == nil {
		values = map[string]any{}
	}
	if err := sch.Validate(values); err != nil {
		return fmt.Errorf("%w: %v", errs.ErrSchema, err)
	}
	return nil
}

// Import replaces the whole branch tree with schema and values in one commit.
// Items matched by (parent, slug) keep their identity; everything else that
// was active is deactivated.
func (s *ItemService) Import(ctx context.Context, userID uuid.UUID, sc model.Scope, schema, values map[string]any, message string) (*model.Commit, error) {
	if err := checkAgainstSchema(schema, values); err != nil {
		return nil, err
	}
	rootType, ok := schema["type"]
	if !ok {
		return nil, fmt.Errorf("missing key %q: %w", "type", errs.ErrSchema)
	}
	if !strings.EqualFold(fmt.Sprint(rootType), string(model.TypeObject)) {
		return nil, fmt.Errorf("root must be an object: %w", errs.ErrSchema)
	}
	rawProps, ok := schema["properties"]
	if !ok {
		return nil, fmt.Errorf("missing key %q: %w", "properties", errs.ErrSchema)
	}
	props, ok := rawProps.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("properties is not an object: %w", errs.ErrSchema)
	}

	return s.write(ctx, userID, sc, message, func(ctx context.Context, w *writer) error {
		touched := map[uuid.UUID]struct{}{}
		if err := s.importLevel(ctx, w, props, model.Root, values, 1, touched); err != nil {
			return err
		}
		all, err := w.tx.Items().ListLatest(ctx, sc, nil, model.Latest)
		if err != nil {
			return err
		}
		for _, v := range all {
			if _, ok := touched[v.Item]; ok {
				continue
			}
			if err := w.put(ctx, tombstone(v)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *ItemService) importLevel(ctx context.Context, w *writer, props map[string]any, parent uuid.UUID,
	values map[string]any, level int, touched map[uuid.UUID]struct{},
) error {
	if len(props) > 0 && level > model.MaxDepth {
		return fmt.Errorf("deeper than %d: %w", model.MaxDepth, errs.ErrNestingTooDeep)
	}
	slugs := make([]string, 0, len(props))
	for k := range props {
		slugs = append(slugs, k)
	}
	slices.Sort(slugs)

	for _, slug := range slugs {
		node, ok := props[slug].(map[string]any)
		if !ok {
			return fmt.Errorf("property %q is not an object: %w", slug, errs.ErrSchema)
		}
		rawType, ok := node["type"]
		if !ok {
			return fmt.Errorf("property %q: missing key %q: %w", slug, "type", errs.ErrSchema)
		}
		typ := model.ItemType(strings.ToLower(fmt.Sprint(rawType)))
		if !typ.Valid() {
			return fmt.Errorf("property %q: unknown type %q: %w", slug, typ, errs.ErrSchema)
		}
		if typ == model.TypeArray {
			return fmt.Errorf("property %q: %w", slug, errs.ErrUnsupportedType)
		}

		// A type change is a new item; the old one is swept as untouched.
		id := model.NewID()
		cur, err := w.tx.Items().GetBySlug(ctx, w.scope(), parent, slug, model.Latest)
		switch {
		case errors.Is(err, errs.ErrItemNotFound):
		case err != nil:
			return err
		case cur.Type == typ:
			id = cur.Item
		}
		touched[id] = struct{}{}

		row := model.ItemVersion{Item: id, Parent: parent, Slug: slug, Type: typ, Active: true}
		if typ != model.TypeObject {
			raw, ok := values[slug]
			if !ok {
				return fmt.Errorf("%q: all items require a value: %w", slug, errs.ErrSchema)
			}
			v, err := value.FromJSON(typ, raw)
			if err != nil {
				return fmt.Errorf("%q: %w: %w", slug, errs.ErrInvalidSecret, err)
			}
			blob, err := s.codec.Seal(v.String())
			if err != nil {
				return err
			}
			row.SecretValue, row.SecretActive = &blob, true
		}
		if err := w.put(ctx, row); err != nil {
			return err
		}
		if typ != model.TypeObject {
			continue
		}

		subProps := map[string]any{}
		if raw, ok := node["properties"]; ok {
			if subProps, ok = raw.(map[string]any); !ok {
				return fmt.Errorf("property %q: properties is not an object: %w", slug, errs.ErrSchema)
			}
		}
		var subValues map[string]any
		switch v := values[slug].(type) {
		case nil:
			subValues = map[string]any{}
		case map[string]any:
			subValues = v
		default:
			return fmt.Errorf("value of %q must be an object: %w", slug, errs.ErrSchema)
		}
		if err := s.importLevel(ctx, w, subProps, id, subValues, level+1, touched); err != nil {
			return err
		}
	}
	return nil
}
