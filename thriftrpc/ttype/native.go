// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package ttype

import "fmt"

// ToNative converts a canonical value into plain Go maps and slices suitable
// for JSON encoding. Structs become map[string]any keyed by field name; maps
// with scalar keys become map[string]any, other maps a list of
// {"key", "value"} objects.
func ToNative(v any) any {
	switch x := v.(type) {
	case *Exception:
		return ToNative(x.Struct)
	case *Struct:
		out := make(map[string]any, x.Len())
		x.Range(func(f *FieldSpec, fv any) bool {
			out[f.Name] = ToNative(fv)
			return true
		})
		return out
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ToNative(e)
		}
		return out
	case Set:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = ToNative(e)
		}
		return out
	case Map:
		scalar := true
		for _, e := range x {
			switch e.Key.(type) {
			case *Struct, *Exception, []any, Set, Map:
				scalar = false
			}
		}
		if scalar {
			out := make(map[string]any, len(x))
			for _, e := range x {
				out[fmt.Sprint(e.Key)] = ToNative(e.Value)
			}
			return out
		}
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = map[string]any{"key": ToNative(e.Key), "value": ToNative(e.Value)}
		}
		return out
	case []byte:
		return append([]byte(nil), x...)
	}
	return v
}
