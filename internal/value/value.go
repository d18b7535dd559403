// Package value implements the closed set of scalar values an item can hold.
package value

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/watsh-io/backend/internal/model"
)

// ErrParse is wrapped by every ParseError.
var ErrParse = errors.New("value: parse")

// ParseError reports text that does not match the declared item type.
type ParseError struct {
	Type model.ItemType
	Raw  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("wrong secret format: %s vs %q", e.Type, e.Raw)
}

func (e *ParseError) Unwrap() error { return ErrParse }

// Scalar is a typed leaf value. The zero value is not valid; use Parse or FromJSON.
type Scalar struct {
	typ model.ItemType
	s   string
	i   int64
	f   float64
}

var (
	truthy = map[string]struct{}{"true": {}, "1": {}, "t": {}}
	nully  = map[string]struct{}{"none": {}, "null": {}, "0": {}}
)

// Parse casts raw text to the variant for t. Containers are never scalars.
func Parse(t model.ItemType, raw string) (Scalar, error) {
	bad := &ParseError{Type: t, Raw: raw}
	switch t {
	case model.TypeString:
		return Scalar{typ: t, s: raw}, nil
	case model.TypeInteger:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return Scalar{}, bad
		}
		return Scalar{typ: t, i: n}, nil
	case model.TypeNumber:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return Scalar{}, bad
		}
		return Scalar{typ: t, f: f}, nil
	case model.TypeBoolean:
		if _, ok := truthy[strings.ToLower(raw)]; !ok {
			return Scalar{}, bad
		}
		return Scalar{typ: t}, nil
	case model.TypeNull:
		if _, ok := nully[strings.ToLower(raw)]; !ok {
			return Scalar{}, bad
		}
		return Scalar{typ: t}, nil
	default:
		return Scalar{}, bad
	}
}

// FromJSON casts a decoded JSON value (as produced by encoding/json or structpb) to t.
func FromJSON(t model.ItemType, v any) (Scalar, error) {
	switch x := v.(type) {
	case string:
		return Parse(t, x)
	case bool:
		return Parse(t, strconv.FormatBool(x))
	case nil:
		return Parse(t, "null")
	case json.Number:
		return Parse(t, x.String())
	case int:
		return Parse(t, strconv.Itoa(x))
	case int64:
		return Parse(t, strconv.FormatInt(x, 10))
	case float64:
		if t == model.TypeInteger && x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return Parse(t, strconv.FormatInt(int64(x), 10))
		}
		return Parse(t, strconv.FormatFloat(x, 'g', -1, 64))
	default:
		return Scalar{}, &ParseError{Type: t, Raw: fmt.Sprint(v)}
	}
}

// Type returns the declared type.
func (s Scalar) Type() model.ItemType { return s.typ }

// String returns the canonical text form; Parse(s.Type(), s.String()) == s.
func (s Scalar) String() string {
	switch s.typ {
	case model.TypeString:
		return s.s
	case model.TypeInteger:
		return strconv.FormatInt(s.i, 10)
	case model.TypeNumber:
		return strconv.FormatFloat(s.f, 'g', -1, 64)
	case model.TypeBoolean:
		return "true"
	case model.TypeNull:
		return "null"
	}
	return ""
}

// Interface returns the Go value for JSON encoding: string, int64, float64, bool or nil.
func (s Scalar) Interface() any {
	switch s.typ {
	case model.TypeString:
		return s.s
	case model.TypeInteger:
		return s.i
	case model.TypeNumber:
		return s.f
	case model.TypeBoolean:
		return true
	}
	return nil
}
