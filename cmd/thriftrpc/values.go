// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// jsonNumbers keeps numbers as json.Number so i64 values survive decoding.
var jsonNumbers = jsoniter.Config{UseNumber: true, EscapeHTML: false}.Froze()

// jsonOut writes indented JSON for the decode and call commands.
var jsonOut = jsoniter.Config{EscapeHTML: false, SortMapKeys: true, IndentionStep: 2}.Froze()

// fromJSON converts a decoded JSON value to the canonical value of spec. It
// is the inverse of ttype.ToNative followed by JSON encoding.
func fromJSON(spec *ttype.TypeSpec, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch spec.Type {
	case ttype.BOOL:
		b, ok := v.(bool)
		if !ok {
			return nil, mismatch(spec, v)
		}
		return b, nil
	case ttype.BYTE, ttype.I16, ttype.I32, ttype.I64:
		n, err := jsonInt(spec, v)
		if err != nil {
			return nil, err
		}
		switch spec.Type {
		case ttype.BYTE:
			return int8(n), nil
		case ttype.I16:
			return int16(n), nil
		case ttype.I32:
			return int32(n), nil
		}
		return n, nil
	case ttype.DOUBLE:
		switch x := v.(type) {
		case json.Number:
			return x.Float64()
		case float64:
			return x, nil
		}
		return nil, mismatch(spec, v)
	case ttype.STRING:
		s, ok := v.(string)
		if !ok {
			return nil, mismatch(spec, v)
		}
		if spec.Binary {
			return base64.StdEncoding.DecodeString(s)
		}
		return s, nil
	case ttype.LIST, ttype.SET:
		items, ok := v.([]any)
		if !ok {
			return nil, mismatch(spec, v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			e, err := fromJSON(spec.Elem, item)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = e
		}
		if spec.Type == ttype.SET {
			return ttype.Set(out), nil
		}
		return out, nil
	case ttype.MAP:
		return mapFromJSON(spec, v)
	case ttype.STRUCT:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil, mismatch(spec, v)
		}
		return structFromJSON(spec.Struct, obj)
	}
	return nil, fmt.Errorf("unsupported type %s", spec)
}

func structFromJSON(desc *ttype.StructDescriptor, obj map[string]any) (*ttype.Struct, error) {
	s := ttype.New(desc)
	for name, raw := range obj {
		f := desc.FieldByName(name)
		if f == nil {
			return nil, fmt.Errorf("%s has no field %q", desc.QualifiedName(), name)
		}
		v, err := fromJSON(f.Type, raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		s.SetID(f.ID, v)
	}
	return s, nil
}

func mapFromJSON(spec *ttype.TypeSpec, v any) (ttype.Map, error) {
	var out ttype.Map
	switch x := v.(type) {
	case map[string]any:
		for k, raw := range x {
			key, err := keyFromString(spec.Key, k)
			if err != nil {
				return nil, err
			}
			val, err := fromJSON(spec.Elem, raw)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out = append(out, ttype.MapEntry{Key: key, Value: val})
		}
	case []any:
		for i, item := range x {
			pair, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("[%d]: want {\"key\", \"value\"} object", i)
			}
			key, err := fromJSON(spec.Key, pair["key"])
			if err != nil {
				return nil, fmt.Errorf("[%d].key: %w", i, err)
			}
			val, err := fromJSON(spec.Elem, pair["value"])
			if err != nil {
				return nil, fmt.Errorf("[%d].value: %w", i, err)
			}
			out = append(out, ttype.MapEntry{Key: key, Value: val})
		}
	default:
		return nil, mismatch(spec, v)
	}
	return out, nil
}

// keyFromString converts a JSON object key, which is always a string.
func keyFromString(spec *ttype.TypeSpec, k string) (any, error) {
	switch spec.Type {
	case ttype.STRING:
		return fromJSON(spec, k)
	case ttype.BOOL:
		b, err := strconv.ParseBool(k)
		if err != nil {
			return nil, err
		}
		return b, nil
	case ttype.DOUBLE:
		return fromJSON(spec, json.Number(k))
	case ttype.BYTE, ttype.I16, ttype.I32, ttype.I64:
		if spec.Enum != nil {
			if _, ok := spec.Enum.ValueOf(k); ok {
				return fromJSON(spec, k)
			}
		}
		return fromJSON(spec, json.Number(k))
	}
	return nil, fmt.Errorf("map key type %s cannot be a JSON object key", spec)
}

func jsonInt(spec *ttype.TypeSpec, v any) (int64, error) {
	var n int64
	switch x := v.(type) {
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s: %w", spec, err)
		}
		n = i
	case float64:
		n = int64(x)
		if float64(n) != x {
			return 0, fmt.Errorf("%s: %v is not an integer", spec, x)
		}
	case string:
		if spec.Enum == nil {
			return 0, mismatch(spec, v)
		}
		i, ok := spec.Enum.ValueOf(x)
		if !ok {
			return 0, fmt.Errorf("%s has no member %q", spec.Enum.QualifiedName(), x)
		}
		n = int64(i)
	default:
		return 0, mismatch(spec, v)
	}
	var lo, hi int64
	switch spec.Type {
	case ttype.BYTE:
		lo, hi = -1<<7, 1<<7-1
	case ttype.I16:
		lo, hi = -1<<15, 1<<15-1
	case ttype.I32:
		lo, hi = -1<<31, 1<<31-1
	default:
		return n, nil
	}
	if n < lo || n > hi {
		return 0, fmt.Errorf("%d overflows %s", n, spec)
	}
	return n, nil
}

func mismatch(spec *ttype.TypeSpec, v any) error {
	return fmt.Errorf("cannot use JSON %T as %s", v, spec)
}

// zeroValue returns the smallest value of spec that encodes: structs get
// their required fields filled recursively.
func zeroValue(spec *ttype.TypeSpec) any {
	switch spec.Type {
	case ttype.BOOL:
		return false
	case ttype.BYTE:
		return int8(0)
	case ttype.I16:
		return int16(0)
	case ttype.I32:
		return int32(0)
	case ttype.I64:
		return int64(0)
	case ttype.DOUBLE:
		return 0.0
	case ttype.STRING:
		if spec.Binary {
			return []byte{}
		}
		return ""
	case ttype.LIST:
		return []any{}
	case ttype.SET:
		return ttype.Set{}
	case ttype.MAP:
		return ttype.Map{}
	case ttype.STRUCT:
		s := ttype.New(spec.Struct)
		for _, f := range spec.Struct.Fields {
			if f.Required == ttype.Required && !s.IsSet(f.Name) {
				s.SetID(f.ID, zeroValue(f.Type))
			}
		}
		return s
	}
	return nil
}
