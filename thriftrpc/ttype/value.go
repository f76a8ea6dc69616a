// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package ttype

import (
	"fmt"
	"strings"
)

// Struct is a dynamically typed struct, union or exception value. Unset
// fields have no entry. A Struct is not safe for concurrent mutation.
type Struct struct {
	desc   *StructDescriptor
	values map[int16]any
}

// New returns a value of desc with every field default applied.
func New(desc *StructDescriptor) *Struct {
	s := &Struct{desc: desc, values: make(map[int16]any, len(desc.Fields))}
	for _, f := range desc.Fields {
		if f.Default != nil {
			s.values[f.ID] = CopyValue(f.Default)
		}
	}
	return s
}

// Descriptor returns the value's descriptor.
func (s *Struct) Descriptor() *StructDescriptor { return s.desc }

func (s *Struct) field(name string) *FieldSpec {
	f := s.desc.FieldByName(name)
	if f == nil {
		panic(fmt.Sprintf("ttype: %s has no field %q", s.desc.QualifiedName(), name))
	}
	return f
}

// Get returns the value of the named field, or nil when unset. It panics
// if the descriptor has no such field.
func (s *Struct) Get(name string) any {
	return s.values[s.field(name).ID]
}

// Lookup returns the named field's value and whether it is set.
func (s *Struct) Lookup(name string) (any, bool) {
	f := s.desc.FieldByName(name)
	if f == nil {
		return nil, false
	}
	v, ok := s.values[f.ID]
	return v, ok
}

// Set assigns the named field; a nil value unsets it. It panics if the
// descriptor has no such field.
func (s *Struct) Set(name string, v any) *Struct {
	f := s.field(name)
	if v == nil {
		delete(s.values, f.ID)
	} else {
		s.values[f.ID] = v
	}
	return s
}

// GetID returns the value stored under a field id.
func (s *Struct) GetID(id int16) (any, bool) {
	v, ok := s.values[id]
	return v, ok
}

// SetID assigns a field by id. It returns false if the id is unknown.
func (s *Struct) SetID(id int16, v any) bool {
	if s.desc.Field(id) == nil {
		return false
	}
	if v == nil {
		delete(s.values, id)
	} else {
		s.values[id] = v
	}
	return true
}

// Unset clears the named field.
func (s *Struct) Unset(name string) { delete(s.values, s.field(name).ID) }

// IsSet reports whether the named field holds a value.
func (s *Struct) IsSet(name string) bool {
	_, ok := s.values[s.field(name).ID]
	return ok
}

// Len returns the number of set fields.
func (s *Struct) Len() int { return len(s.values) }

// Range calls fn for each set field in ascending id order until fn returns false.
func (s *Struct) Range(fn func(f *FieldSpec, v any) bool) {
	for _, f := range s.desc.Fields {
		if v, ok := s.values[f.ID]; ok {
			if !fn(f, v) {
				return
			}
		}
	}
}

// Copy returns a deep copy.
func (s *Struct) Copy() *Struct {
	out := &Struct{desc: s.desc, values: make(map[int16]any, len(s.values))}
	for id, v := range s.values {
		out.values[id] = CopyValue(v)
	}
	return out
}

// Equal reports deep structural equality with o.
func (s *Struct) Equal(o *Struct) bool { return Equal(s, o) }

// Validate checks that every required field is set and that a union holds
// at most one field.
func (s *Struct) Validate() error {
	for _, f := range s.desc.Fields {
		if f.Required != Required {
			continue
		}
		if _, ok := s.values[f.ID]; !ok {
			return fmt.Errorf("required field %s.%s is unset", s.desc.QualifiedName(), f.Name)
		}
	}
	if s.desc.IsUnion() && len(s.values) > 1 {
		return fmt.Errorf("union %s has %d fields set", s.desc.QualifiedName(), len(s.values))
	}
	return nil
}

func (s *Struct) String() string {
	var sb strings.Builder
	sb.WriteString(s.desc.Name)
	sb.WriteByte('(')
	first := true
	s.Range(func(f *FieldSpec, v any) bool {
		if !first {
			sb.WriteString(", ")
		}
		first = false
		fmt.Fprintf(&sb, "%s=%s", f.Name, formatValue(v))
		return true
	})
	sb.WriteByte(')')
	return sb.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return fmt.Sprintf("%q", x)
	case []byte:
		return fmt.Sprintf("b%q", x)
	case *Struct:
		return x.String()
	case *Exception:
		return x.Struct.String()
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Set:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case Map:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e.Key) + ": " + formatValue(e.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return fmt.Sprint(v)
}

// Exception is an exception-kind struct value used as a Go error.
type Exception struct {
	*Struct
}

// NewException returns a new exception value of desc with defaults applied.
func NewException(desc *StructDescriptor) *Exception {
	return &Exception{Struct: New(desc)}
}

// AsException wraps s as an error value.
func AsException(s *Struct) *Exception { return &Exception{Struct: s} }

func (e *Exception) Error() string {
	if f := e.desc.FieldByName("message"); f != nil && f.Type.Type == STRING {
		if msg, ok := e.values[f.ID]; ok {
			return fmt.Sprintf("%s: %v", e.desc.Name, msg)
		}
	}
	return e.Struct.String()
}

// Is matches another *Exception of the same schema type.
func (e *Exception) Is(target error) bool {
	t, ok := target.(*Exception)
	return ok && t.Struct != nil && SameType(e.desc, t.desc)
}

// MapEntry is one key/value pair of a Map.
type MapEntry struct {
	Key   any
	Value any
}

// Map is the canonical MAP value. Entries keep wire order; keys may be any
// value, including structs, so lookups compare structurally.
type Map []MapEntry

// Get returns the value stored under a structurally equal key.
func (m Map) Get(key any) (any, bool) {
	for _, e := range m {
		if Equal(e.Key, key) {
			return e.Value, true
		}
	}
	return nil, false
}

// Set is the canonical SET value.
type Set []any

// Contains reports whether a structurally equal element is present.
func (s Set) Contains(v any) bool {
	for _, e := range s {
		if Equal(e, v) {
			return true
		}
	}
	return false
}

// CopyValue deep-copies a canonical value. Scalars are returned as is.
func CopyValue(v any) any {
	switch x := v.(type) {
	case *Struct:
		return x.Copy()
	case *Exception:
		return &Exception{Struct: x.Struct.Copy()}
	case []byte:
		return append([]byte(nil), x...)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = CopyValue(e)
		}
		return out
	case Set:
		out := make(Set, len(x))
		for i, e := range x {
			out[i] = CopyValue(e)
		}
		return out
	case Map:
		out := make(Map, len(x))
		for i, e := range x {
			out[i] = MapEntry{Key: CopyValue(e.Key), Value: CopyValue(e.Value)}
		}
		return out
	}
	return v
}
