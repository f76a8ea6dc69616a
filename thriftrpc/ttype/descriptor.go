// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package ttype

import (
	"fmt"
	"sort"
)

// TypeSpec describes the shape of a value: its wire type plus the nested
// descriptors needed to encode or decode it.
type TypeSpec struct {
	Type TType
	// Struct is set for STRUCT.
	Struct *StructDescriptor
	// Enum is set for I32 values declared with an enum type.
	Enum *EnumDescriptor
	// Elem is the element type of LIST and SET, and the value type of MAP.
	Elem *TypeSpec
	// Key is the key type of MAP.
	Key *TypeSpec
	// Binary marks STRING values declared as binary; they decode as []byte.
	Binary bool
}

var simpleSpecs = map[TType]*TypeSpec{
	BOOL:   {Type: BOOL},
	BYTE:   {Type: BYTE},
	DOUBLE: {Type: DOUBLE},
	I16:    {Type: I16},
	I32:    {Type: I32},
	I64:    {Type: I64},
	STRING: {Type: STRING},
}

// Simple returns the shared spec of a primitive wire type.
func Simple(t TType) *TypeSpec {
	spec, ok := simpleSpecs[t]
	if !ok {
		panic(fmt.Sprintf("ttype: %s is not a primitive type", t))
	}
	return spec
}

// BinaryType returns a STRING spec whose values are raw bytes.
func BinaryType() *TypeSpec { return &TypeSpec{Type: STRING, Binary: true} }

// StructOf returns a spec for values described by desc.
func StructOf(desc *StructDescriptor) *TypeSpec { return &TypeSpec{Type: STRUCT, Struct: desc} }

// EnumOf returns an I32 spec tagged with its enum.
func EnumOf(desc *EnumDescriptor) *TypeSpec { return &TypeSpec{Type: I32, Enum: desc} }

// ListOf returns a LIST spec.
func ListOf(elem *TypeSpec) *TypeSpec { return &TypeSpec{Type: LIST, Elem: elem} }

// SetOf returns a SET spec.
func SetOf(elem *TypeSpec) *TypeSpec { return &TypeSpec{Type: SET, Elem: elem} }

// MapOf returns a MAP spec.
func MapOf(key, value *TypeSpec) *TypeSpec { return &TypeSpec{Type: MAP, Key: key, Elem: value} }

func (s *TypeSpec) String() string {
	switch s.Type {
	case STRUCT:
		return s.Struct.QualifiedName()
	case LIST:
		return fmt.Sprintf("list<%s>", s.Elem)
	case SET:
		return fmt.Sprintf("set<%s>", s.Elem)
	case MAP:
		return fmt.Sprintf("map<%s,%s>", s.Key, s.Elem)
	case I32:
		if s.Enum != nil {
			return s.Enum.QualifiedName()
		}
	case STRING:
		if s.Binary {
			return "binary"
		}
	}
	if name, ok := idlNames[s.Type]; ok {
		return name
	}
	return s.Type.String()
}

// idlNames spells base types the way schema sources do.
var idlNames = map[TType]string{
	VOID:   "void",
	BOOL:   "bool",
	BYTE:   "byte",
	DOUBLE: "double",
	I16:    "i16",
	I32:    "i32",
	I64:    "i64",
	STRING: "string",
}

// Requiredness of a field.
type Requiredness int

const (
	// Default fields are written when set and omitted when unset.
	Default Requiredness = iota
	// Required fields must be set before encoding.
	Required
	Optional
)

func (r Requiredness) String() string {
	switch r {
	case Required:
		return "required"
	case Optional:
		return "optional"
	}
	return "default"
}

// FieldSpec describes one field of a struct, union, exception or envelope.
type FieldSpec struct {
	ID       int16
	Name     string
	Type     *TypeSpec
	Required Requiredness
	// Default is a canonical value copied into new instances; nil for none.
	Default any
}

// StructKind distinguishes structs, unions and exceptions.
type StructKind int

const (
	KindStruct StructKind = iota
	KindUnion
	KindException
)

func (k StructKind) String() string {
	switch k {
	case KindUnion:
		return "union"
	case KindException:
		return "exception"
	}
	return "struct"
}

// StructDescriptor describes a struct, union, exception or method envelope.
// Descriptors are created empty by NewStructDescriptor and populated once
// with SetFields, which allows self and forward references. They must not
// be modified after that.
type StructDescriptor struct {
	Name string
	// Module qualifies Name; two descriptors with equal Module and Name
	// describe the same type even if loaded separately.
	Module string
	Kind   StructKind
	// Fields are sorted by ascending id.
	Fields []*FieldSpec

	byID   map[int16]*FieldSpec
	byName map[string]*FieldSpec
}

// NewStructDescriptor declares a descriptor with no fields.
func NewStructDescriptor(module, name string, kind StructKind) *StructDescriptor {
	return &StructDescriptor{Name: name, Module: module, Kind: kind}
}

// SetFields populates the descriptor. Field ids and names must be unique.
func (d *StructDescriptor) SetFields(fields []*FieldSpec) error {
	byID := make(map[int16]*FieldSpec, len(fields))
	byName := make(map[string]*FieldSpec, len(fields))
	sorted := make([]*FieldSpec, len(fields))
	copy(sorted, fields)
	for _, f := range sorted {
		if prev, ok := byID[f.ID]; ok {
			return fmt.Errorf("%s: field id %d used by both %q and %q", d.QualifiedName(), f.ID, prev.Name, f.Name)
		}
		if _, ok := byName[f.Name]; ok {
			return fmt.Errorf("%s: duplicate field name %q", d.QualifiedName(), f.Name)
		}
		if f.Type == nil {
			return fmt.Errorf("%s: field %q has no type", d.QualifiedName(), f.Name)
		}
		byID[f.ID] = f
		byName[f.Name] = f
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	d.Fields, d.byID, d.byName = sorted, byID, byName
	return nil
}

// QualifiedName returns "module.Name".
func (d *StructDescriptor) QualifiedName() string {
	if d.Module == "" {
		return d.Name
	}
	return d.Module + "." + d.Name
}

// Field returns the field with the given id, or nil.
func (d *StructDescriptor) Field(id int16) *FieldSpec { return d.byID[id] }

// FieldByName returns the field with the given name, or nil.
func (d *StructDescriptor) FieldByName(name string) *FieldSpec { return d.byName[name] }

func (d *StructDescriptor) IsException() bool { return d.Kind == KindException }
func (d *StructDescriptor) IsUnion() bool     { return d.Kind == KindUnion }

func (d *StructDescriptor) String() string { return d.QualifiedName() }

// SameType reports whether a and b describe the same schema type. Identity
// is by qualified name, not by pointer.
func SameType(a, b *StructDescriptor) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return a.Module == b.Module && a.Name == b.Name
}

// EnumMember is one named enum value.
type EnumMember struct {
	Name  string
	Value int32
}

// EnumDescriptor describes an enum. Members keep declaration order.
type EnumDescriptor struct {
	Name    string
	Module  string
	Members []EnumMember
}

// QualifiedName returns "module.Name".
func (e *EnumDescriptor) QualifiedName() string {
	if e.Module == "" {
		return e.Name
	}
	return e.Module + "." + e.Name
}

// ValueOf returns the value of the named member.
func (e *EnumDescriptor) ValueOf(name string) (int32, bool) {
	for _, m := range e.Members {
		if m.Name == name {
			return m.Value, true
		}
	}
	return 0, false
}

// NameOf returns the name of the first member with value v.
func (e *EnumDescriptor) NameOf(v int32) (string, bool) {
	for _, m := range e.Members {
		if m.Value == v {
			return m.Name, true
		}
	}
	return "", false
}
