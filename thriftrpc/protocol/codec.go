// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"unicode/utf8"

	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// WriteStruct encodes s as desc. Set fields are written in ascending id
// order. A missing required field, or a union with more than one field set,
// fails with InvalidData before anything is written.
func WriteStruct(p Protocol, desc *ttype.StructDescriptor, s *ttype.Struct) error {
	if s == nil {
		return newError(InvalidData, "nil %s", desc.QualifiedName())
	}
	if !ttype.SameType(s.Descriptor(), desc) {
		return newError(InvalidData, "cannot write %s as %s", s.Descriptor().QualifiedName(), desc.QualifiedName())
	}
	if err := s.Validate(); err != nil {
		return &ProtocolError{Kind: InvalidData, Msg: "validating " + desc.QualifiedName(), Err: err}
	}
	if err := p.WriteStructBegin(desc.Name); err != nil {
		return err
	}
	var werr error
	s.Range(func(f *ttype.FieldSpec, v any) bool {
		if werr = p.WriteFieldBegin(f.Name, f.Type.Type, f.ID); werr != nil {
			return false
		}
		if werr = WriteValue(p, f.Type, v); werr != nil {
			werr = fmt.Errorf("%s.%s: %w", desc.Name, f.Name, werr)
			return false
		}
		werr = p.WriteFieldEnd()
		return werr == nil
	})
	if werr != nil {
		return werr
	}
	if err := p.WriteFieldStop(); err != nil {
		return err
	}
	return p.WriteStructEnd()
}

// WriteValue encodes v as spec. Integers of any Go width are accepted when
// they fit; slices, arrays and maps are accepted for containers.
func WriteValue(p Protocol, spec *ttype.TypeSpec, v any) error {
	switch spec.Type {
	case ttype.BOOL:
		b, ok := v.(bool)
		if !ok {
			return mismatch(spec, v)
		}
		return p.WriteBool(b)
	case ttype.BYTE:
		n, err := intIn(spec, v, math.MinInt8, math.MaxInt8)
		if err != nil {
			return err
		}
		return p.WriteI8(int8(n))
	case ttype.I16:
		n, err := intIn(spec, v, math.MinInt16, math.MaxInt16)
		if err != nil {
			return err
		}
		return p.WriteI16(int16(n))
	case ttype.I32:
		n, err := intIn(spec, v, math.MinInt32, math.MaxInt32)
		if err != nil {
			return err
		}
		return p.WriteI32(int32(n))
	case ttype.I64:
		n, err := intIn(spec, v, math.MinInt64, math.MaxInt64)
		if err != nil {
			return err
		}
		return p.WriteI64(n)
	case ttype.DOUBLE:
		switch x := v.(type) {
		case float64:
			return p.WriteDouble(x)
		case float32:
			return p.WriteDouble(float64(x))
		}
		if n, ok := toInt64(v); ok {
			return p.WriteDouble(float64(n))
		}
		return mismatch(spec, v)
	case ttype.STRING:
		switch x := v.(type) {
		case string:
			return p.WriteString(x)
		case []byte:
			return p.WriteBinary(x)
		}
		return mismatch(spec, v)
	case ttype.STRUCT:
		switch x := v.(type) {
		case *ttype.Struct:
			return WriteStruct(p, spec.Struct, x)
		case *ttype.Exception:
			return WriteStruct(p, spec.Struct, x.Struct)
		}
		return mismatch(spec, v)
	case ttype.LIST, ttype.SET:
		elems, ok := elements(v, spec.Type == ttype.SET)
		if !ok {
			return mismatch(spec, v)
		}
		var err error
		if spec.Type == ttype.SET {
			err = p.WriteSetBegin(spec.Elem.Type, len(elems))
		} else {
			err = p.WriteListBegin(spec.Elem.Type, len(elems))
		}
		if err != nil {
			return err
		}
		for i, e := range elems {
			if err := WriteValue(p, spec.Elem, e); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		if spec.Type == ttype.SET {
			return p.WriteSetEnd()
		}
		return p.WriteListEnd()
	case ttype.MAP:
		entries, ok := mapEntries(v)
		if !ok {
			return mismatch(spec, v)
		}
		if err := p.WriteMapBegin(spec.Key.Type, spec.Elem.Type, len(entries)); err != nil {
			return err
		}
		for _, e := range entries {
			if err := WriteValue(p, spec.Key, e.Key); err != nil {
				return fmt.Errorf("map key: %w", err)
			}
			if err := WriteValue(p, spec.Elem, e.Value); err != nil {
				return fmt.Errorf("[%v]: %w", e.Key, err)
			}
		}
		return p.WriteMapEnd()
	}
	return newError(NotImplemented, "cannot write wire type %s", spec.Type)
}

func mismatch(spec *ttype.TypeSpec, v any) error {
	return newError(InvalidData, "cannot write %T as %s", v, spec)
}

func intIn(spec *ttype.TypeSpec, v any, lo, hi int64) (int64, error) {
	n, ok := toInt64(v)
	if !ok {
		return 0, mismatch(spec, v)
	}
	if n < lo || n > hi {
		return 0, newError(InvalidData, "%d out of range for %s", n, spec)
	}
	return n, nil
}

func toInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int:
		return int64(x), true
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case bool, float32, float64, string, nil:
		return 0, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, false
		}
		return int64(u), true
	}
	return 0, false
}

// elements flattens the accepted list and set representations. Go maps are
// accepted for sets only: map[T]bool contributes its true keys and any
// other map all of its keys.
func elements(v any, set bool) ([]any, bool) {
	switch x := v.(type) {
	case []any:
		return x, true
	case ttype.Set:
		return x, true
	case nil:
		return nil, false
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, true
	case reflect.Map:
		if !set {
			return nil, false
		}
		boolValues := rv.Type().Elem().Kind() == reflect.Bool
		out := make([]any, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			if boolValues && !iter.Value().Bool() {
				continue
			}
			out = append(out, iter.Key().Interface())
		}
		sortAny(out)
		return out, true
	}
	return nil, false
}

func mapEntries(v any) (ttype.Map, bool) {
	if m, ok := v.(ttype.Map); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	keys := make([]any, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.Interface())
	}
	sortAny(keys)
	out := make(ttype.Map, len(keys))
	for i, k := range keys {
		out[i] = ttype.MapEntry{Key: k, Value: rv.MapIndex(reflect.ValueOf(k)).Interface()}
	}
	return out, true
}

// sortAny orders Go map keys so that encoding is deterministic.
func sortAny(vs []any) {
	sort.SliceStable(vs, func(i, j int) bool {
		a, aok := toInt64(vs[i])
		b, bok := toInt64(vs[j])
		if aok && bok {
			return a < b
		}
		return fmt.Sprint(vs[i]) < fmt.Sprint(vs[j])
	})
}

// ReadStruct decodes a struct of type desc. Defaults from desc apply to
// fields absent on the wire. Unknown field ids and fields whose wire type
// differs from the descriptor are skipped, as are containers whose element
// types disagree with it.
func ReadStruct(p Protocol, desc *ttype.StructDescriptor) (*ttype.Struct, error) {
	return (&decoder{p: p}).readStruct(desc, MaxSkipDepth)
}

// ReadValue decodes one value of type spec. A container whose element types
// disagree with spec is consumed and reported as InvalidData.
func ReadValue(p Protocol, spec *ttype.TypeSpec) (any, error) {
	v, ok, err := (&decoder{p: p}).readValue(spec, MaxSkipDepth)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, newError(InvalidData, "wire element types do not match %s", spec)
	}
	return v, nil
}

type decoder struct {
	p Protocol
}

func (d *decoder) readStruct(desc *ttype.StructDescriptor, depth int) (*ttype.Struct, error) {
	if depth <= 0 {
		return nil, newError(DepthLimit, "nesting deeper than %d", MaxSkipDepth)
	}
	p := d.p
	if _, err := p.ReadStructBegin(); err != nil {
		return nil, err
	}
	s := ttype.New(desc)
	for {
		_, typ, id, err := p.ReadFieldBegin()
		if err != nil {
			return nil, err
		}
		if typ == ttype.STOP {
			break
		}
		f := desc.Field(id)
		if f == nil || f.Type.Type != typ {
			if err := skip(p, typ, depth-1); err != nil {
				return nil, err
			}
		} else {
			v, ok, err := d.readValue(f.Type, depth-1)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", desc.Name, f.Name, err)
			}
			if !ok {
				v = nil
			}
			s.SetID(id, v)
		}
		if err := p.ReadFieldEnd(); err != nil {
			return nil, err
		}
	}
	if err := p.ReadStructEnd(); err != nil {
		return nil, err
	}
	return s, nil
}

// readValue reports ok=false when a container's wire element types do not
// match spec; the container has then been skipped.
func (d *decoder) readValue(spec *ttype.TypeSpec, depth int) (any, bool, error) {
	if depth <= 0 {
		return nil, false, newError(DepthLimit, "nesting deeper than %d", MaxSkipDepth)
	}
	p := d.p
	switch spec.Type {
	case ttype.BOOL:
		v, err := p.ReadBool()
		return v, err == nil, err
	case ttype.BYTE:
		v, err := p.ReadI8()
		return v, err == nil, err
	case ttype.I16:
		v, err := p.ReadI16()
		return v, err == nil, err
	case ttype.I32:
		v, err := p.ReadI32()
		return v, err == nil, err
	case ttype.I64:
		v, err := p.ReadI64()
		return v, err == nil, err
	case ttype.DOUBLE:
		v, err := p.ReadDouble()
		return v, err == nil, err
	case ttype.STRING:
		b, err := p.ReadBinary()
		if err != nil {
			return nil, false, err
		}
		if spec.Binary || !utf8.Valid(b) {
			return b, true, nil
		}
		return string(b), true, nil
	case ttype.STRUCT:
		s, err := d.readStruct(spec.Struct, depth)
		if err != nil {
			return nil, false, err
		}
		if spec.Struct.IsException() {
			return ttype.AsException(s), true, nil
		}
		return s, true, nil
	case ttype.LIST, ttype.SET:
		var (
			et  ttype.TType
			n   int
			err error
		)
		if spec.Type == ttype.SET {
			et, n, err = p.ReadSetBegin()
		} else {
			et, n, err = p.ReadListBegin()
		}
		if err != nil {
			return nil, false, err
		}
		ok := n == 0 || et == spec.Elem.Type
		out := make([]any, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			if !ok {
				if err := skip(p, et, depth-1); err != nil {
					return nil, false, err
				}
				continue
			}
			v, eok, err := d.readValue(spec.Elem, depth-1)
			if err != nil {
				return nil, false, err
			}
			if !eok {
				ok = false
				continue
			}
			out = append(out, v)
		}
		if spec.Type == ttype.SET {
			err = p.ReadSetEnd()
		} else {
			err = p.ReadListEnd()
		}
		if err != nil || !ok {
			return nil, false, err
		}
		if spec.Type == ttype.SET {
			return ttype.Set(out), true, nil
		}
		return out, true, nil
	case ttype.MAP:
		kt, vt, n, err := p.ReadMapBegin()
		if err != nil {
			return nil, false, err
		}
		ok := n == 0 || (kt == spec.Key.Type && vt == spec.Elem.Type)
		out := make(ttype.Map, 0, min(n, 1024))
		for i := 0; i < n; i++ {
			if !ok {
				if err := skip(p, kt, depth-1); err != nil {
					return nil, false, err
				}
				if err := skip(p, vt, depth-1); err != nil {
					return nil, false, err
				}
				continue
			}
			k, kok, err := d.readValue(spec.Key, depth-1)
			if err != nil {
				return nil, false, err
			}
			v, vok, err := d.readValue(spec.Elem, depth-1)
			if err != nil {
				return nil, false, err
			}
			if !kok || !vok {
				ok = false
				continue
			}
			out = append(out, ttype.MapEntry{Key: k, Value: v})
		}
		if err := p.ReadMapEnd(); err != nil || !ok {
			return nil, false, err
		}
		return out, true, nil
	}
	return nil, false, newError(NotImplemented, "cannot read wire type %s", spec.Type)
}
