package gamestate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// State maps variable names to values. Absent variables are valid.
type State map[string]Value

// Delta is a set of variable assignments carried by an option.
type Delta map[string]Value

// Lookup returns the value for name and whether it is present.
func (s State) Lookup(name string) (Value, bool) {
	if s == nil {
		return Value{}, false
	}
	v, ok := s[name]
	if !ok || !v.IsValid() {
		return Value{}, false
	}
	return v, true
}

// Clone returns a shallow copy of s.
func (s State) Clone() State {
	out := make(State, len(s))
	for name, v := range s {
		out[name] = v
	}
	return out
}

// Apply returns a new State with delta assigned over s. The receiver is
// never modified.
func (s State) Apply(delta Delta) State {
	out := s.Clone()
	for name, v := range delta {
		if !v.IsValid() {
			continue
		}
		out[name] = v
	}
	return out
}

// Names returns the variable names in sorted order.
func (s State) Names() []string {
	names := make([]string, 0, len(s))
	for name := range s {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnmarshalJSON decodes a flat JSON object. Null entries are dropped.
func (s *State) UnmarshalJSON(data []byte) error {
	values, err := decodeObject(data)
	if err != nil {
		return err
	}
	*s = State(values)
	return nil
}

// Names returns the assigned variable names in sorted order.
func (d Delta) Names() []string {
	return State(d).Names()
}

// UnmarshalJSON decodes a flat JSON object. Null entries are dropped.
func (d *Delta) UnmarshalJSON(data []byte) error {
	values, err := decodeObject(data)
	if err != nil {
		return err
	}
	*d = Delta(values)
	return nil
}

// ParseState decodes a JSON object such as the -state flag of the tools.
// Blank input yields an empty State.
func ParseState(data []byte) (State, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return State{}, nil
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse state: %w", err)
	}
	if s == nil {
		s = State{}
	}
	return s, nil
}

// FromMap converts a decoded JSON/YAML object into values.
func FromMap(raw map[string]any) (map[string]Value, error) {
	out := make(map[string]Value, len(raw))
	for name, item := range raw {
		v, err := FromAny(item)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		if !v.IsValid() {
			continue
		}
		out[name] = v
	}
	return out, nil
}

func decodeObject(data []byte) (map[string]Value, error) {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var raw map[string]any
	if err := decoder.Decode(&raw); err != nil {
		return nil, err
	}
	return FromMap(raw)
}
