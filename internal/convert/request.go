package convert

import (
	"fmt"
	"strconv"

	"github.com/gofrs/uuid/v5"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/watsh-io/backend/internal/errs"
	"github.com/watsh-io/backend/internal/model"
)

func missing(key string) error { return fmt.Errorf("missing %q: %w", key, errs.ErrInvalidInput) }

func wrongKind(key, want string) error {
	return fmt.Errorf("%q must be %s: %w", key, want, errs.ErrInvalidInput)
}

// field returns the value under key. Explicit nulls count as absent.
func field(req *structpb.Struct, key string) (*structpb.Value, bool) {
	v, ok := req.GetFields()[key]
	if !ok || v == nil {
		return nil, false
	}
	if _, null := v.GetKind().(*structpb.Value_NullValue); null {
		return nil, false
	}
	return v, true
}

// String returns a required string field.
func String(req *structpb.Struct, key string) (string, error) {
	v, ok := field(req, key)
	if !ok {
		return "", missing(key)
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", wrongKind(key, "a string")
	}
	return s.StringValue, nil
}

// OptString returns a string field or "" when absent.
func OptString(req *structpb.Struct, key string) (string, error) {
	if _, ok := field(req, key); !ok {
		return "", nil
	}
	return String(req, key)
}

// Bool returns a boolean field, false when absent.
func Bool(req *structpb.Struct, key string) (bool, error) {
	v, ok := field(req, key)
	if !ok {
		return false, nil
	}
	b, ok := v.GetKind().(*structpb.Value_BoolValue)
	if !ok {
		return false, wrongKind(key, "a boolean")
	}
	return b.BoolValue, nil
}

// ID returns a required UUID field.
func ID(req *structpb.Struct, key string) (uuid.UUID, error) {
	s, err := String(req, key)
	if err != nil {
		return uuid.Nil, err
	}
	u, err := uuid.FromString(s)
	if err != nil {
		return uuid.Nil, wrongKind(key, "a UUID")
	}
	return u, nil
}

// OptID returns a UUID field or nil when absent.
func OptID(req *structpb.Struct, key string) (*uuid.UUID, error) {
	if _, ok := field(req, key); !ok {
		return nil, nil
	}
	u, err := ID(req, key)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// Scope reads project_id, environment_id and branch_id.
func Scope(req *structpb.Struct) (model.Scope, error) {
	var (
		sc  model.Scope
		err error
	)
	if sc.Project, err = ID(req, "project_id"); err != nil {
		return sc, err
	}
	if sc.Environment, err = ID(req, "environment_id"); err != nil {
		return sc, err
	}
	if sc.Branch, err = ID(req, "branch_id"); err != nil {
		return sc, err
	}
	return sc, nil
}

// Object returns a required nested object as plain Go values.
func Object(req *structpb.Struct, key string) (map[string]any, error) {
	v, ok := field(req, key)
	if !ok {
		return nil, missing(key)
	}
	s := v.GetStructValue()
	if s == nil {
		return nil, wrongKind(key, "an object")
	}
	return s.AsMap(), nil
}

// Secret returns a scalar field as the text the engine parses, nil when
// absent. Numbers and booleans are accepted besides strings.
func Secret(req *structpb.Struct, key string) (*string, error) {
	v, ok := field(req, key)
	if !ok {
		return nil, nil
	}
	var s string
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		s = k.StringValue
	case *structpb.Value_NumberValue:
		s = strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	case *structpb.Value_BoolValue:
		s = strconv.FormatBool(k.BoolValue)
	default:
		return nil, wrongKind(key, "a scalar")
	}
	return &s, nil
}

// ItemType returns a required item type field.
func ItemType(req *structpb.Struct, key string) (model.ItemType, error) {
	s, err := String(req, key)
	if err != nil {
		return "", err
	}
	return model.ItemType(s), nil
}

// Updates reads the "updates" list of an ApplyUpdates request.
func Updates(req *structpb.Struct) ([]model.ItemUpdate, error) {
	v, ok := field(req, "updates")
	if !ok {
		return nil, missing("updates")
	}
	list := v.GetListValue()
	if list == nil {
		return nil, wrongKind("updates", "a list")
	}
	out := make([]model.ItemUpdate, 0, len(list.GetValues()))
	for i, el := range list.GetValues() {
		u, err := update(el.GetStructValue())
		if err != nil {
			return nil, fmt.Errorf("updates[%d]: %w", i, err)
		}
		out = append(out, u)
	}
	return out, nil
}

func update(s *structpb.Struct) (model.ItemUpdate, error) {
	var (
		u   model.ItemUpdate
		err error
	)
	if s == nil {
		return u, fmt.Errorf("not an object: %w", errs.ErrInvalidInput)
	}
	if u.Item, err = ID(s, "item_id"); err != nil {
		return u, err
	}
	parent, err := OptID(s, "parent_id")
	if err != nil {
		return u, err
	}
	u.Parent = model.Root
	if parent != nil {
		u.Parent = *parent
	}
	if u.Type, err = ItemType(s, "type"); err != nil {
		return u, err
	}
	if u.Active, err = Bool(s, "active"); err != nil {
		return u, err
	}
	if u.Slug, err = OptString(s, "slug"); err != nil {
		return u, err
	}
	if u.SecretValue, err = Secret(s, "secret_value"); err != nil {
		return u, err
	}
	if u.SecretActive, err = Bool(s, "secret_active"); err != nil {
		return u, err
	}
	return u, nil
}
