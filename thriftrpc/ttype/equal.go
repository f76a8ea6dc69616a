// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package ttype

import (
	"bytes"
	"reflect"
)

// Equal reports deep structural equality of two values. Structs compare by
// qualified type name and field contents, never by descriptor identity.
// Integers compare by value regardless of Go width, strings equal byte
// slices with the same content, and sets and maps ignore order.
func Equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if ae, ok := a.(*Exception); ok {
		a = ae.Struct
	}
	if be, ok := b.(*Exception); ok {
		b = be.Struct
	}

	switch x := a.(type) {
	case *Struct:
		y, ok := b.(*Struct)
		if !ok || !SameType(x.desc, y.desc) || len(x.values) != len(y.values) {
			return false
		}
		for id, xv := range x.values {
			yv, ok := y.values[id]
			if !ok || !Equal(xv, yv) {
				return false
			}
		}
		return true
	case bool:
		y, ok := b.(bool)
		return ok && x == y
	case string:
		switch y := b.(type) {
		case string:
			return x == y
		case []byte:
			return x == string(y)
		}
		return false
	case []byte:
		switch y := b.(type) {
		case string:
			return string(x) == y
		case []byte:
			return bytes.Equal(x, y)
		}
		return false
	case float32, float64:
		xf, _ := toFloat(a)
		yf, ok := toFloat(b)
		return ok && xf == yf
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	case Set:
		y, ok := b.(Set)
		return ok && sameElements([]any(x), []any(y))
	case Map:
		y, ok := b.(Map)
		if !ok || len(x) != len(y) {
			return false
		}
		used := make([]bool, len(y))
	entries:
		for _, xe := range x {
			for j, ye := range y {
				if !used[j] && Equal(xe.Key, ye.Key) {
					if !Equal(xe.Value, ye.Value) {
						return false
					}
					used[j] = true
					continue entries
				}
			}
			return false
		}
		return true
	}

	if xi, ok := toInt(a); ok {
		yi, ok := toInt(b)
		return ok && xi == yi
	}
	return reflect.DeepEqual(a, b)
}

// sameElements compares two slices as multisets.
func sameElements(x, y []any) bool {
	if len(x) != len(y) {
		return false
	}
	used := make([]bool, len(y))
outer:
	for _, xe := range x {
		for j, ye := range y {
			if !used[j] && Equal(xe, ye) {
				used[j] = true
				continue outer
			}
		}
		return false
	}
	return true
}

func toInt(v any) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	case uint8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case uint32:
		return int64(x), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float32:
		return float64(x), true
	case float64:
		return x, true
	}
	return 0, false
}
