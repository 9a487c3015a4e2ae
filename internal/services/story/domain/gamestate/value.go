// Package gamestate models the player variables that conditions are
// evaluated against.
package gamestate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	// KindInvalid is the zero Value; it never appears in a State.
	KindInvalid Kind = iota
	KindBool
	KindNumber
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	default:
		return "invalid"
	}
}

// Value is a single game-state variable: a boolean, a number or a string.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
}

// BoolValue returns a boolean Value.
func BoolValue(v bool) Value { return Value{kind: KindBool, b: v} }

// NumberValue returns a numeric Value.
func NumberValue(v float64) Value { return Value{kind: KindNumber, n: v} }

// TextValue returns a string Value.
func TextValue(v string) Value { return Value{kind: KindText, s: v} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds one of the three variants.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Truthy reports the conditional interpretation of v: booleans as-is,
// numbers when non-zero, text when non-empty.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindText:
		return v.s != ""
	default:
		return false
	}
}

// Float coerces v to a number. Text is parsed after trimming; booleans
// become 1 or 0.
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindText:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.s), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String returns the display form used for string comparisons.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.b)
	case KindNumber:
		return strconv.FormatFloat(v.n, 'f', -1, 64)
	case KindText:
		return v.s
	default:
		return ""
	}
}

// Equal reports whether v and other hold the same variant and value.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return v.n == other.n
	case KindText:
		return v.s == other.s
	default:
		return true
	}
}

// MarshalJSON encodes v as a JSON boolean, number or string.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindBool:
		return json.Marshal(v.b)
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return nil, fmt.Errorf("gamestate: cannot encode %v as JSON", v.n)
		}
		return json.Marshal(v.n)
	case KindText:
		return json.Marshal(v.s)
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON decodes a JSON scalar. Arrays and objects are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// FromAny converts a decoded JSON or YAML scalar into a Value. A nil input
// yields the invalid Value with no error; callers treat it as absent.
func FromAny(raw any) (Value, error) {
	switch typed := raw.(type) {
	case nil:
		return Value{}, nil
	case bool:
		return BoolValue(typed), nil
	case float64:
		return NumberValue(typed), nil
	case float32:
		return NumberValue(float64(typed)), nil
	case int:
		return NumberValue(float64(typed)), nil
	case int64:
		return NumberValue(float64(typed)), nil
	case uint64:
		return NumberValue(float64(typed)), nil
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("gamestate: number %q: %w", typed.String(), err)
		}
		return NumberValue(f), nil
	case string:
		return TextValue(typed), nil
	default:
		return Value{}, fmt.Errorf("gamestate: unsupported value of type %T", raw)
	}
}
