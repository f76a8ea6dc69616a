// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package compile turns resolved schema documents into runtime descriptors.
package compile

import (
	"github.com/Query-farm/thriftrpc/thriftrpc/idl"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// Build compiles doc and its includes into a Module. doc must be resolved.
// Each call produces fresh descriptors; values built from two calls on the
// same schema still compare equal with ttype.Equal.
func Build(doc *idl.Document) (*ttype.Module, error) {
	b := &builder{
		modules:  make(map[*idl.Document]*ttype.Module),
		structs:  make(map[*idl.Struct]*ttype.StructDescriptor),
		enums:    make(map[*idl.Enum]*ttype.EnumDescriptor),
		services: make(map[*idl.Service]*ttype.ServiceDescriptor),
		done:     make(map[*idl.Service]bool),
	}
	return b.module(doc)
}

type builder struct {
	modules  map[*idl.Document]*ttype.Module
	structs  map[*idl.Struct]*ttype.StructDescriptor
	enums    map[*idl.Enum]*ttype.EnumDescriptor
	services map[*idl.Service]*ttype.ServiceDescriptor
	done     map[*idl.Service]bool
}

func (b *builder) module(doc *idl.Document) (*ttype.Module, error) {
	if m, ok := b.modules[doc]; ok {
		return m, nil
	}
	m := ttype.NewModule(doc.Name, doc.Path)
	b.modules[doc] = m

	for _, inc := range doc.Includes {
		if inc.Doc == nil {
			return nil, idl.Semanticf(inc.Pos, "include %q was not loaded", inc.Path)
		}
		sub, err := b.module(inc.Doc)
		if err != nil {
			return nil, err
		}
		m.Includes[inc.Name] = sub
	}
	for _, ns := range doc.Namespaces {
		m.Namespaces[ns.Scope] = ns.Name
	}

	// Declare every named type before populating anything so that fields
	// can refer to types declared later or to their own struct.
	for _, e := range doc.Enums {
		desc := &ttype.EnumDescriptor{Name: e.Name, Module: doc.Name}
		for _, it := range e.Items {
			desc.Members = append(desc.Members, ttype.EnumMember{Name: it.Name, Value: it.Value})
		}
		b.enums[e] = desc
		m.Enums[e.Name] = desc
	}
	for _, s := range doc.Structs {
		desc := ttype.NewStructDescriptor(doc.Name, s.Name, structKind(s.Kind))
		b.structs[s] = desc
		m.Structs[s.Name] = desc
	}

	for _, s := range doc.Structs {
		fields, err := b.fields(s.Fields)
		if err != nil {
			return nil, err
		}
		if err := b.structs[s].SetFields(fields); err != nil {
			return nil, &idl.SemanticError{Pos: s.Pos, Msg: err.Error()}
		}
	}
	// Defaults may be struct constants, so they are evaluated once every
	// struct has its fields.
	for _, s := range doc.Structs {
		desc := b.structs[s]
		for _, f := range s.Fields {
			if f.Default == nil {
				continue
			}
			v, err := b.constValue(f.Type, f.Default)
			if err != nil {
				return nil, err
			}
			desc.Field(int16(f.ID)).Default = v
		}
	}

	for _, td := range doc.Typedefs {
		spec, err := b.typeSpec(td.Type)
		if err != nil {
			return nil, err
		}
		m.Typedefs[td.Name] = spec
	}
	for _, c := range doc.Consts {
		v, err := b.constValue(c.Type, c.Value)
		if err != nil {
			return nil, err
		}
		m.Consts[c.Name] = v
	}
	for _, s := range doc.Services {
		if _, err := b.service(s); err != nil {
			return nil, err
		}
		m.Services[s.Name] = b.services[s]
	}
	return m, nil
}

func structKind(k idl.StructKind) ttype.StructKind {
	switch k {
	case idl.StructKindUnion:
		return ttype.KindUnion
	case idl.StructKindException:
		return ttype.KindException
	}
	return ttype.KindStruct
}

func requiredness(r idl.Requiredness) ttype.Requiredness {
	switch r {
	case idl.Required:
		return ttype.Required
	case idl.Optional:
		return ttype.Optional
	}
	return ttype.Default
}

func (b *builder) fields(fields []*idl.Field) ([]*ttype.FieldSpec, error) {
	out := make([]*ttype.FieldSpec, 0, len(fields))
	for _, f := range fields {
		spec, err := b.typeSpec(f.Type)
		if err != nil {
			return nil, err
		}
		out = append(out, &ttype.FieldSpec{
			ID:       int16(f.ID),
			Name:     f.Name,
			Type:     spec,
			Required: requiredness(f.Requiredness),
		})
	}
	return out, nil
}

func (b *builder) typeSpec(t *idl.Type) (*ttype.TypeSpec, error) {
	rt := t.Resolved()
	switch rt.Name {
	case idl.TypeBool:
		return ttype.Simple(ttype.BOOL), nil
	case idl.TypeByte, idl.TypeI8:
		return ttype.Simple(ttype.BYTE), nil
	case idl.TypeI16:
		return ttype.Simple(ttype.I16), nil
	case idl.TypeI32:
		return ttype.Simple(ttype.I32), nil
	case idl.TypeI64:
		return ttype.Simple(ttype.I64), nil
	case idl.TypeDouble:
		return ttype.Simple(ttype.DOUBLE), nil
	case idl.TypeString:
		return ttype.Simple(ttype.STRING), nil
	case idl.TypeBinary:
		return ttype.BinaryType(), nil
	case idl.TypeList, idl.TypeSet:
		elem, err := b.typeSpec(rt.Elem)
		if err != nil {
			return nil, err
		}
		if rt.Name == idl.TypeList {
			return ttype.ListOf(elem), nil
		}
		return ttype.SetOf(elem), nil
	case idl.TypeMap:
		key, err := b.typeSpec(rt.Key)
		if err != nil {
			return nil, err
		}
		val, err := b.typeSpec(rt.Elem)
		if err != nil {
			return nil, err
		}
		return ttype.MapOf(key, val), nil
	}

	switch target := rt.Target.(type) {
	case *idl.Struct:
		if desc, ok := b.structs[target]; ok {
			return ttype.StructOf(desc), nil
		}
	case *idl.Enum:
		if desc, ok := b.enums[target]; ok {
			return ttype.EnumOf(desc), nil
		}
	}
	return nil, idl.Semanticf(t.Pos, "type %q is not resolved", t.Name)
}

func (b *builder) service(s *idl.Service) (*ttype.ServiceDescriptor, error) {
	if b.done[s] {
		return b.services[s], nil
	}
	var parent *ttype.ServiceDescriptor
	if s.Parent != nil {
		if s.Parent.Doc != nil && s.Parent.Doc != s.Doc {
			if _, err := b.module(s.Parent.Doc); err != nil {
				return nil, err
			}
		}
		var err error
		if parent, err = b.service(s.Parent); err != nil {
			return nil, err
		}
	}
	moduleName := ""
	if s.Doc != nil {
		moduleName = s.Doc.Name
	}
	desc := ttype.NewServiceDescriptor(moduleName, s.Name, parent)
	for _, fn := range s.Functions {
		var ret *ttype.TypeSpec
		if fn.ReturnType != nil {
			var err error
			if ret, err = b.typeSpec(fn.ReturnType); err != nil {
				return nil, err
			}
		}
		params, err := b.fields(fn.Params)
		if err != nil {
			return nil, err
		}
		throws, err := b.fields(fn.Throws)
		if err != nil {
			return nil, err
		}
		if _, err := desc.AddMethod(fn.Name, ret, params, throws, fn.Oneway); err != nil {
			return nil, &idl.SemanticError{Pos: fn.Pos, Msg: err.Error()}
		}
	}
	b.services[s] = desc
	b.done[s] = true
	return desc, nil
}

// constValue converts a resolved constant into the canonical value for t.
func (b *builder) constValue(t *idl.Type, v *idl.ConstValue) (any, error) {
	if v.Kind == idl.ConstIdent {
		switch {
		case v.EnumItem != nil:
			return b.intValue(t, int64(v.EnumItem.Value), v)
		case v.Ref != nil:
			return b.constValue(t, v.Ref.Value)
		}
		return nil, idl.Semanticf(v.Pos, "constant reference %q is not resolved", v.Ident)
	}

	rt := t.Resolved()
	switch rt.Name {
	case idl.TypeBool:
		if v.Kind == idl.ConstInt {
			return v.Int != 0, nil
		}
		return v.Bool, nil
	case idl.TypeByte, idl.TypeI8, idl.TypeI16, idl.TypeI32, idl.TypeI64:
		return b.intValue(t, v.Int, v)
	case idl.TypeDouble:
		if v.Kind == idl.ConstInt {
			return float64(v.Int), nil
		}
		return v.Double, nil
	case idl.TypeString:
		return v.Str, nil
	case idl.TypeBinary:
		return []byte(v.Str), nil
	case idl.TypeList, idl.TypeSet:
		out := make([]any, 0, len(v.List))
		for _, e := range v.List {
			ev, err := b.constValue(rt.Elem, e)
			if err != nil {
				return nil, err
			}
			out = append(out, ev)
		}
		if rt.Name == idl.TypeSet {
			return ttype.Set(out), nil
		}
		return out, nil
	case idl.TypeMap:
		out := make(ttype.Map, 0, len(v.Map))
		for _, e := range v.Map {
			k, err := b.constValue(rt.Key, e.Key)
			if err != nil {
				return nil, err
			}
			val, err := b.constValue(rt.Elem, e.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, ttype.MapEntry{Key: k, Value: val})
		}
		return out, nil
	}

	switch target := rt.Target.(type) {
	case *idl.Enum:
		return b.intValue(t, v.Int, v)
	case *idl.Struct:
		desc, ok := b.structs[target]
		if !ok {
			return nil, idl.Semanticf(v.Pos, "struct %s is not compiled", target.Name)
		}
		s := ttype.New(desc)
		for _, e := range v.Map {
			var field *idl.Field
			for _, f := range target.Fields {
				if f.Name == e.Key.Str {
					field = f
				}
			}
			if field == nil {
				return nil, idl.Semanticf(e.Key.Pos, "%s has no field %q", target.Name, e.Key.Str)
			}
			fv, err := b.constValue(field.Type, e.Value)
			if err != nil {
				return nil, err
			}
			s.Set(field.Name, fv)
		}
		if desc.IsException() {
			return ttype.AsException(s), nil
		}
		return s, nil
	}
	return nil, idl.Semanticf(v.Pos, "cannot convert constant to %s", t)
}

func (b *builder) intValue(t *idl.Type, n int64, v *idl.ConstValue) (any, error) {
	rt := t.Resolved()
	switch rt.Name {
	case idl.TypeByte, idl.TypeI8:
		return int8(n), nil
	case idl.TypeI16:
		return int16(n), nil
	case idl.TypeI32:
		return int32(n), nil
	case idl.TypeI64:
		return n, nil
	case idl.TypeDouble:
		return float64(n), nil
	}
	if _, ok := rt.Target.(*idl.Enum); ok {
		return int32(n), nil
	}
	return nil, idl.Semanticf(v.Pos, "integer constant used for %s", t)
}
