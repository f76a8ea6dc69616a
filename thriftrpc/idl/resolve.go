// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"math"
	"strings"
)

// Resolve runs the semantic pass over doc: it binds every type reference,
// infers enum values, evaluates constant references and validates constant
// values against their declared types. Included documents must already be
// attached (Include.Doc) and resolved; the [Loader] takes care of this.
func Resolve(doc *Document) error {
	if doc.resolved {
		return nil
	}
	r := &resolver{doc: doc, consts: make(map[*Const]int), typedefs: make(map[*Typedef]int)}
	if err := r.run(); err != nil {
		return err
	}
	doc.resolved = true
	return nil
}

type resolver struct {
	doc *Document
	// consts and typedefs track resolution state: 1 in progress, 2 done.
	consts   map[*Const]int
	typedefs map[*Typedef]int
}

func (r *resolver) run() error {
	doc := r.doc
	doc.includes = make(map[string]*Document, len(doc.Includes))
	for _, inc := range doc.Includes {
		if inc.Doc == nil {
			return Semanticf(inc.Pos, "include %q was not loaded", inc.Path)
		}
		if !inc.Doc.resolved {
			return Semanticf(inc.Pos, "include %q is not resolved", inc.Path)
		}
		if prev, ok := doc.includes[inc.Name]; ok && prev != inc.Doc {
			return Semanticf(inc.Pos, "include name %q is ambiguous", inc.Name)
		}
		doc.includes[inc.Name] = inc.Doc
	}

	// First pass: collect names so forward and self references resolve.
	doc.defs = make(map[string]Definition, len(doc.Definitions))
	for _, def := range doc.Definitions {
		name := def.DefName()
		if strings.Contains(name, ".") {
			return Semanticf(def.Position(), "definition name %q must not contain '.'", name)
		}
		if prev, ok := doc.defs[name]; ok {
			return Semanticf(def.Position(), "%q is already defined at %s", name, prev.Position())
		}
		doc.defs[name] = def
	}

	for _, e := range doc.Enums {
		if err := r.enum(e); err != nil {
			return err
		}
	}
	for _, td := range doc.Typedefs {
		if err := r.typedef(td); err != nil {
			return err
		}
	}
	for _, s := range doc.Structs {
		if err := r.structDef(s); err != nil {
			return err
		}
	}
	for _, c := range doc.Consts {
		if err := r.constDef(c); err != nil {
			return err
		}
	}
	for _, s := range doc.Services {
		if err := r.service(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) enum(e *Enum) error {
	seen := make(map[string]bool, len(e.Items))
	next := int64(0)
	for _, it := range e.Items {
		if seen[it.Name] {
			return Semanticf(it.Pos, "duplicate enum member %s.%s", e.Name, it.Name)
		}
		seen[it.Name] = true
		if !it.Explicit {
			if next > math.MaxInt32 {
				return Semanticf(it.Pos, "enum member %s.%s overflows i32", e.Name, it.Name)
			}
			it.Value = int32(next)
		}
		next = int64(it.Value) + 1
	}
	return nil
}

func (r *resolver) typedef(td *Typedef) error {
	switch r.typedefs[td] {
	case 2:
		return nil
	case 1:
		return Semanticf(td.Pos, "typedef %s refers to itself", td.Name)
	}
	r.typedefs[td] = 1
	if err := r.resolveType(td.Type); err != nil {
		return err
	}
	r.typedefs[td] = 2
	return nil
}

// resolveType binds a type reference. References to typedefs get their
// Underlying chain and Target filled eagerly.
func (r *resolver) resolveType(t *Type) error {
	if IsBaseType(t.Name) {
		return nil
	}
	switch t.Name {
	case TypeList, TypeSet:
		return r.resolveType(t.Elem)
	case TypeMap:
		if err := r.resolveType(t.Key); err != nil {
			return err
		}
		return r.resolveType(t.Elem)
	}

	def, owner := r.lookup(t.Name)
	switch d := def.(type) {
	case nil:
		return Semanticf(t.Pos, "type %q not found", t.Name)
	case *Enum, *Struct:
		t.Target = d
	case *Typedef:
		if owner == r.doc {
			if err := r.typedef(d); err != nil {
				return err
			}
		}
		t.Underlying = d.Type
		t.Target = d.Type.Resolved().Target
	default:
		return Semanticf(t.Pos, "%q is not a type", t.Name)
	}
	return nil
}

// lookup finds a definition by possibly include-qualified name.
func (r *resolver) lookup(name string) (Definition, *Document) {
	if def, ok := r.doc.defs[name]; ok {
		return def, r.doc
	}
	if i := strings.IndexByte(name, '.'); i > 0 {
		if inc, ok := r.doc.includes[name[:i]]; ok {
			if def, ok := inc.defs[name[i+1:]]; ok {
				return def, inc
			}
		}
	}
	return nil, nil
}

func (r *resolver) structDef(s *Struct) error {
	if err := r.fields(s.Name, s.Fields); err != nil {
		return err
	}
	for _, f := range s.Fields {
		if s.Kind == StructKindUnion && f.Requiredness == Required {
			return Semanticf(f.Pos, "union %s field %s cannot be required", s.Name, f.Name)
		}
		if f.Default != nil {
			if err := r.checkConst(f.Type, f.Default); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *resolver) fields(owner string, fields []*Field) error {
	ids := make(map[int]string, len(fields))
	names := make(map[string]bool, len(fields))
	for _, f := range fields {
		if prev, ok := ids[f.ID]; ok {
			return Semanticf(f.Pos, "%s: field id %d of %q already used by %q", owner, f.ID, f.Name, prev)
		}
		if names[f.Name] {
			return Semanticf(f.Pos, "%s: duplicate field name %q", owner, f.Name)
		}
		ids[f.ID] = f.Name
		names[f.Name] = true
		if err := r.resolveType(f.Type); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) constDef(c *Const) error {
	switch r.consts[c] {
	case 2:
		return nil
	case 1:
		return Semanticf(c.Pos, "constant %s refers to itself", c.Name)
	}
	r.consts[c] = 1
	if err := r.resolveType(c.Type); err != nil {
		return err
	}
	if err := r.checkConst(c.Type, c.Value); err != nil {
		return err
	}
	r.consts[c] = 2
	return nil
}

func (r *resolver) service(s *Service) error {
	if s.Extends != "" {
		def, _ := r.lookup(s.Extends)
		parent, ok := def.(*Service)
		if !ok {
			return Semanticf(s.Pos, "service %s extends unknown service %q", s.Name, s.Extends)
		}
		for p := parent; p != nil; p = p.Parent {
			if p == s {
				return Semanticf(s.Pos, "service %s extends itself", s.Name)
			}
		}
		s.Parent = parent
	}
	names := make(map[string]bool, len(s.Functions))
	for _, fn := range s.Functions {
		if names[fn.Name] {
			return Semanticf(fn.Pos, "service %s: duplicate function %q", s.Name, fn.Name)
		}
		names[fn.Name] = true
		if fn.Oneway && fn.ReturnType != nil {
			return Semanticf(fn.Pos, "oneway function %s.%s must return void", s.Name, fn.Name)
		}
		if fn.Oneway && len(fn.Throws) > 0 {
			return Semanticf(fn.Pos, "oneway function %s.%s cannot declare throws", s.Name, fn.Name)
		}
		if fn.ReturnType != nil {
			if err := r.resolveType(fn.ReturnType); err != nil {
				return err
			}
		}
		owner := s.Name + "." + fn.Name
		if err := r.fields(owner, fn.Params); err != nil {
			return err
		}
		if err := r.fields(owner+" throws", fn.Throws); err != nil {
			return err
		}
		for _, f := range fn.Throws {
			st, ok := f.Type.Resolved().Target.(*Struct)
			if !ok || st.Kind != StructKindException {
				return Semanticf(f.Pos, "%s: throws field %q is not an exception type", owner, f.Name)
			}
			if f.Name == "success" {
				return Semanticf(f.Pos, "%s: throws field cannot be named \"success\"", owner)
			}
		}
	}
	return nil
}

// resolveIdent binds a ConstIdent value to a constant or an enum member.
func (r *resolver) resolveIdent(v *ConstValue) error {
	if v.Ref != nil || v.EnumItem != nil {
		return nil
	}
	parts := strings.Split(v.Ident, ".")
	var doc *Document
	switch len(parts) {
	case 1:
		doc = r.doc
	case 2:
		if e, ok := r.doc.defs[parts[0]].(*Enum); ok {
			if it := e.Item(parts[1]); it != nil {
				v.EnumItem = it
				return nil
			}
			return Semanticf(v.Pos, "enum %s has no member %s", e.Name, parts[1])
		}
		doc = r.doc.includes[parts[0]]
		parts = parts[1:]
	case 3:
		inc := r.doc.includes[parts[0]]
		if inc == nil {
			break
		}
		if e, ok := inc.defs[parts[1]].(*Enum); ok {
			if it := e.Item(parts[2]); it != nil {
				v.EnumItem = it
				return nil
			}
		}
	}
	if doc != nil && len(parts) == 1 {
		if c, ok := doc.defs[parts[0]].(*Const); ok {
			if doc == r.doc {
				if err := r.constDef(c); err != nil {
					return err
				}
			}
			v.Ref = c
			return nil
		}
	}
	return Semanticf(v.Pos, "cannot resolve constant reference %q", v.Ident)
}

// checkConst validates v against t, binding identifier references on the way.
func (r *resolver) checkConst(t *Type, v *ConstValue) error {
	rt := t.Resolved()
	if v.Kind == ConstIdent {
		if err := r.resolveIdent(v); err != nil {
			return err
		}
		if v.EnumItem != nil {
			return r.checkEnumItem(rt, v)
		}
		return r.checkConst(t, v.Ref.Value)
	}

	mismatch := func() error {
		return Semanticf(v.Pos, "constant value does not match type %s", t)
	}
	switch rt.Name {
	case TypeBool:
		if v.Kind == ConstBool || (v.Kind == ConstInt && (v.Int == 0 || v.Int == 1)) {
			return nil
		}
		return mismatch()
	case TypeByte, TypeI8:
		return checkInt(v, math.MinInt8, math.MaxInt8, t)
	case TypeI16:
		return checkInt(v, math.MinInt16, math.MaxInt16, t)
	case TypeI32:
		return checkInt(v, math.MinInt32, math.MaxInt32, t)
	case TypeI64:
		return checkInt(v, math.MinInt64, math.MaxInt64, t)
	case TypeDouble:
		if v.Kind == ConstDouble || v.Kind == ConstInt {
			return nil
		}
		return mismatch()
	case TypeString, TypeBinary:
		if v.Kind == ConstString {
			return nil
		}
		return mismatch()
	case TypeList, TypeSet:
		if v.Kind != ConstList {
			return mismatch()
		}
		for _, e := range v.List {
			if err := r.checkConst(rt.Elem, e); err != nil {
				return err
			}
		}
		return nil
	case TypeMap:
		if v.Kind != ConstMap {
			return mismatch()
		}
		for _, e := range v.Map {
			if err := r.checkConst(rt.Key, e.Key); err != nil {
				return err
			}
			if err := r.checkConst(rt.Elem, e.Value); err != nil {
				return err
			}
		}
		return nil
	}

	switch target := rt.Target.(type) {
	case *Enum:
		if v.Kind != ConstInt {
			return mismatch()
		}
		for _, it := range target.Items {
			if int64(it.Value) == v.Int {
				return nil
			}
		}
		return Semanticf(v.Pos, "%d is not a value of enum %s", v.Int, target.Name)
	case *Struct:
		if v.Kind != ConstMap {
			return mismatch()
		}
		for _, e := range v.Map {
			if e.Key.Kind != ConstString {
				return Semanticf(e.Key.Pos, "%s constant keys must be field names", target.Name)
			}
			var field *Field
			for _, f := range target.Fields {
				if f.Name == e.Key.Str {
					field = f
					break
				}
			}
			if field == nil {
				return Semanticf(e.Key.Pos, "%s has no field %q", target.Name, e.Key.Str)
			}
			if err := r.checkConst(field.Type, e.Value); err != nil {
				return err
			}
		}
		return nil
	}
	return mismatch()
}

func (r *resolver) checkEnumItem(rt *Type, v *ConstValue) error {
	switch target := rt.Target.(type) {
	case *Enum:
		if v.EnumItem.Enum != target {
			return Semanticf(v.Pos, "%s is not a member of enum %s", v.Ident, target.Name)
		}
		return nil
	}
	switch rt.Name {
	case TypeByte, TypeI8, TypeI16, TypeI32, TypeI64, TypeDouble:
		iv := &ConstValue{Pos: v.Pos, Kind: ConstInt, Int: int64(v.EnumItem.Value)}
		return r.checkConst(rt, iv)
	}
	return Semanticf(v.Pos, "enum member %s used where %s is expected", v.Ident, rt)
}

func checkInt(v *ConstValue, lo, hi int64, t *Type) error {
	if v.Kind != ConstInt {
		return Semanticf(v.Pos, "constant value does not match type %s", t)
	}
	if v.Int < lo || v.Int > hi {
		return Semanticf(v.Pos, "constant %d out of range for %s", v.Int, t)
	}
	return nil
}
