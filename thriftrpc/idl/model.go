// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package idl

import "fmt"

// Pos is a location inside a schema source file.
type Pos struct {
	File   string
	Line   int
	Column int
}

func (p Pos) String() string {
	if p.File == "" {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Document is one parsed schema file.
type Document struct {
	// Name is the file's base name without extension. Other documents refer
	// to its definitions as Name.Definition.
	Name string
	// Path is the path the document was loaded from, empty for in-memory sources.
	Path string

	Includes    []*Include
	CppIncludes []string
	Namespaces  []*Namespace

	// Definitions holds every top-level definition in declaration order.
	Definitions []Definition

	Typedefs []*Typedef
	Consts   []*Const
	Enums    []*Enum
	Structs  []*Struct
	Services []*Service

	defs     map[string]Definition
	includes map[string]*Document
	resolved bool
}

// Include is an include header.
type Include struct {
	Pos  Pos
	Path string
	// Name is the identifier used to qualify the included definitions.
	Name string
	// Doc is populated by the Loader.
	Doc *Document
}

// Namespace is a namespace header. Scope "*" applies to every language.
type Namespace struct {
	Pos   Pos
	Scope string
	Name  string
}

// Annotation is a `key = "value"` pair attached to a type or definition.
type Annotation struct {
	Pos   Pos
	Name  string
	Value string
}

// Definition is implemented by every top-level schema construct.
type Definition interface {
	DefName() string
	Position() Pos
	definition()
}

// Requiredness of a struct field.
type Requiredness int

const (
	// DefaultRequiredness is an unqualified field; it is encoded like an
	// optional field.
	DefaultRequiredness Requiredness = iota
	Required
	Optional
)

func (r Requiredness) String() string {
	switch r {
	case Required:
		return "required"
	case Optional:
		return "optional"
	default:
		return ""
	}
}

// StructKind distinguishes struct, union and exception definitions.
type StructKind int

const (
	StructKindStruct StructKind = iota
	StructKindUnion
	StructKindException
)

func (k StructKind) String() string {
	switch k {
	case StructKindUnion:
		return "union"
	case StructKindException:
		return "exception"
	default:
		return "struct"
	}
}

// Base type names.
const (
	TypeBool   = "bool"
	TypeByte   = "byte"
	TypeI8     = "i8"
	TypeI16    = "i16"
	TypeI32    = "i32"
	TypeI64    = "i64"
	TypeDouble = "double"
	TypeString = "string"
	TypeBinary = "binary"
	TypeList   = "list"
	TypeSet    = "set"
	TypeMap    = "map"
)

// IsBaseType reports whether name is a primitive type name.
func IsBaseType(name string) bool {
	switch name {
	case TypeBool, TypeByte, TypeI8, TypeI16, TypeI32, TypeI64, TypeDouble, TypeString, TypeBinary:
		return true
	}
	return false
}

// Type is a type reference as written in the schema.
type Type struct {
	Pos Pos
	// Name is a base type name, "list", "set", "map", or a reference to a
	// typedef, enum, struct, union or exception (possibly include-qualified).
	Name string
	// Key is the key type of a map.
	Key *Type
	// Elem is the element type of a list or set, or the value type of a map.
	Elem        *Type
	Annotations []*Annotation

	// Target is the resolved definition for references: *Enum or *Struct.
	// References through typedefs point at the final definition.
	Target Definition
	// Underlying is set when the reference names a typedef; it is the fully
	// resolved aliased type.
	Underlying *Type
}

// IsContainer reports whether t is a list, set or map.
func (t *Type) IsContainer() bool {
	return t.Name == TypeList || t.Name == TypeSet || t.Name == TypeMap
}

// Resolved follows typedef aliases and returns the concrete type.
func (t *Type) Resolved() *Type {
	for t.Underlying != nil {
		t = t.Underlying
	}
	return t
}

func (t *Type) String() string {
	switch t.Name {
	case TypeList, TypeSet:
		return fmt.Sprintf("%s<%s>", t.Name, t.Elem)
	case TypeMap:
		return fmt.Sprintf("map<%s, %s>", t.Key, t.Elem)
	}
	return t.Name
}

// Typedef aliases a name to a type.
type Typedef struct {
	Pos         Pos
	Name        string
	Type        *Type
	Annotations []*Annotation
}

// Const is a named constant.
type Const struct {
	Pos   Pos
	Name  string
	Type  *Type
	Value *ConstValue
}

// ConstKind identifies the literal form of a ConstValue.
type ConstKind int

const (
	ConstInt ConstKind = iota
	ConstDouble
	ConstString
	ConstBool
	ConstIdent
	ConstList
	ConstMap
)

// ConstValue is a literal or a reference appearing in a const definition or
// a field default.
type ConstValue struct {
	Pos    Pos
	Kind   ConstKind
	Int    int64
	Double float64
	Str    string
	Bool   bool
	Ident  string
	List   []*ConstValue
	Map    []*ConstMapEntry

	// For ConstIdent values, exactly one of Ref and EnumItem is set after
	// resolution.
	Ref      *Const
	EnumItem *EnumItem
}

// ConstMapEntry is one key/value pair of a map literal.
type ConstMapEntry struct {
	Key   *ConstValue
	Value *ConstValue
}

// Enum is an enum definition.
type Enum struct {
	Pos         Pos
	Name        string
	Items       []*EnumItem
	Annotations []*Annotation
}

// Item returns the member named name, or nil.
func (e *Enum) Item(name string) *EnumItem {
	for _, it := range e.Items {
		if it.Name == name {
			return it
		}
	}
	return nil
}

// EnumItem is one enum member. Value is always populated; Explicit records
// whether the schema spelled it out.
type EnumItem struct {
	Pos         Pos
	Name        string
	Value       int32
	Explicit    bool
	Annotations []*Annotation
	Enum        *Enum
}

// Struct is a struct, union or exception definition.
type Struct struct {
	Pos         Pos
	Name        string
	Kind        StructKind
	Fields      []*Field
	Annotations []*Annotation
	// Doc is the document that declares the struct.
	Doc *Document
}

// Field is a struct field, a function parameter or a throws clause entry.
type Field struct {
	Pos          Pos
	ID           int
	Name         string
	Type         *Type
	Requiredness Requiredness
	Default      *ConstValue
	Annotations  []*Annotation
}

// Service is a service definition.
type Service struct {
	Pos         Pos
	Name        string
	Extends     string
	Functions   []*Function
	Annotations []*Annotation

	// Parent is the resolved Extends service.
	Parent *Service
	Doc    *Document
}

// Function is one service method.
type Function struct {
	Pos    Pos
	Name   string
	Oneway bool
	// ReturnType is nil for void.
	ReturnType  *Type
	Params      []*Field
	Throws      []*Field
	Annotations []*Annotation
}

func (d *Typedef) DefName() string { return d.Name }
func (d *Const) DefName() string   { return d.Name }
func (d *Enum) DefName() string    { return d.Name }
func (d *Struct) DefName() string  { return d.Name }
func (d *Service) DefName() string { return d.Name }

func (d *Typedef) Position() Pos { return d.Pos }
func (d *Const) Position() Pos   { return d.Pos }
func (d *Enum) Position() Pos    { return d.Pos }
func (d *Struct) Position() Pos  { return d.Pos }
func (d *Service) Position() Pos { return d.Pos }

func (*Typedef) definition() {}
func (*Const) definition()   {}
func (*Enum) definition()    {}
func (*Struct) definition()  {}
func (*Service) definition() {}

// Lookup returns the top-level definition named name, following include
// qualification ("shared.Name"). It is only meaningful after resolution.
func (d *Document) Lookup(name string) Definition {
	if def, ok := d.defs[name]; ok {
		return def
	}
	for i := 0; i < len(name); i++ {
		if name[i] != '.' {
			continue
		}
		if inc, ok := d.includes[name[:i]]; ok {
			if def, ok := inc.defs[name[i+1:]]; ok {
				return def
			}
		}
	}
	return nil
}

// Included returns the included document registered under name.
func (d *Document) Included(name string) *Document {
	return d.includes[name]
}
