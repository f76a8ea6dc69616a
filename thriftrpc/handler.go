// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"context"
	"fmt"
	"reflect"

	"github.com/iancoleman/strcase"

	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// MethodFunc implements one RPC method. args holds the decoded parameters in
// declaration order; an unset parameter is nil. The returned value is encoded
// as the result of a non-void method. Returning a *ttype.Exception matching a
// declared throws field sends it as a declared exception; returning an
// *ApplicationException sends it as an EXCEPTION message.
type MethodFunc func(ctx context.Context, call *CallContext, args []any) (any, error)

// Handler resolves a method name to its implementation.
type Handler interface {
	Lookup(method string) (MethodFunc, bool)
}

// HandlerMap is a Handler backed by a map from method name to implementation.
type HandlerMap map[string]MethodFunc

func (h HandlerMap) Lookup(method string) (MethodFunc, bool) {
	fn, ok := h[method]
	return fn, ok
}

var (
	contextType     = reflect.TypeOf((*context.Context)(nil)).Elem()
	callContextType = reflect.TypeOf((*CallContext)(nil))
	errorType       = reflect.TypeOf((*error)(nil)).Elem()
)

// ReflectHandler binds the methods of svc to the exported methods of impl.
// The schema method get_phones binds to GetPhones. A Go method may take a
// leading context.Context and then a *CallContext, followed by one
// parameter per declared schema parameter, and may return (T, error), error,
// T or nothing. Decoded values are converted to the Go parameter types.
//
// ReflectHandler panics when impl lacks a method or a signature cannot be
// bound.
func ReflectHandler(svc *ttype.ServiceDescriptor, impl any) HandlerMap {
	v := reflect.ValueOf(impl)
	h := make(HandlerMap)
	for _, m := range svc.AllMethods() {
		goName := strcase.ToCamel(m.Name)
		mv := v.MethodByName(goName)
		if !mv.IsValid() {
			panic(fmt.Sprintf("thriftrpc: registering %q: %T has no method %s", m.Name, impl, goName))
		}
		fn, err := bindMethod(m, mv)
		if err != nil {
			panic(fmt.Sprintf("thriftrpc: registering %q: %v", m.Name, err))
		}
		h[m.Name] = fn
	}
	return h
}

func bindMethod(m *ttype.MethodSpec, mv reflect.Value) (MethodFunc, error) {
	mt := mv.Type()
	if mt.IsVariadic() {
		return nil, fmt.Errorf("variadic methods are not supported")
	}
	in := 0
	wantCtx := in < mt.NumIn() && mt.In(in) == contextType
	if wantCtx {
		in++
	}
	wantCall := in < mt.NumIn() && mt.In(in) == callContextType
	if wantCall {
		in++
	}
	if got := mt.NumIn() - in; got != len(m.Params) {
		return nil, fmt.Errorf("method takes %d parameters, schema declares %d", got, len(m.Params))
	}
	paramTypes := make([]reflect.Type, len(m.Params))
	for i := range m.Params {
		paramTypes[i] = mt.In(in + i)
	}

	hasResult, hasErr := false, false
	switch mt.NumOut() {
	case 0:
	case 1:
		if mt.Out(0) == errorType {
			hasErr = true
		} else {
			hasResult = true
		}
	case 2:
		if mt.Out(1) != errorType {
			return nil, fmt.Errorf("second return value must be error")
		}
		hasResult, hasErr = true, true
	default:
		return nil, fmt.Errorf("too many return values")
	}
	if hasResult && m.Void() {
		return nil, fmt.Errorf("void method returns a value")
	}

	return func(ctx context.Context, call *CallContext, args []any) (any, error) {
		callArgs := make([]reflect.Value, 0, mt.NumIn())
		if wantCtx {
			callArgs = append(callArgs, reflect.ValueOf(&ctx).Elem())
		}
		if wantCall {
			callArgs = append(callArgs, reflect.ValueOf(call))
		}
		for i, t := range paramTypes {
			var a any
			if i < len(args) {
				a = args[i]
			}
			rv, err := convertValue(a, t)
			if err != nil {
				return nil, NewApplicationException(ProtocolError, "%s: parameter %s: %v", m.Name, m.Params[i].Name, err)
			}
			callArgs = append(callArgs, rv)
		}

		out := mv.Call(callArgs)
		var err error
		if hasErr {
			if e := out[len(out)-1]; !e.IsNil() {
				err = e.Interface().(error)
			}
		}
		if !hasResult {
			return nil, err
		}
		res := out[0]
		switch res.Kind() {
		case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice:
			if res.IsNil() {
				return nil, err
			}
		}
		return res.Interface(), err
	}, nil
}

// convertValue converts a decoded canonical value to the Go type t.
func convertValue(v any, t reflect.Type) (reflect.Value, error) {
	if v == nil {
		return reflect.Zero(t), nil
	}
	if exc, ok := v.(*ttype.Exception); ok && t == reflect.TypeOf((*ttype.Struct)(nil)) {
		v = exc.Struct
	}
	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(t) {
		return rv, nil
	}

	out := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if !rv.CanInt() {
			break
		}
		n := rv.Int()
		if out.OverflowInt(n) {
			return out, fmt.Errorf("%d overflows %s", n, t)
		}
		out.SetInt(n)
		return out, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if !rv.CanInt() {
			break
		}
		n := rv.Int()
		if n < 0 || out.OverflowUint(uint64(n)) {
			return out, fmt.Errorf("%d overflows %s", n, t)
		}
		out.SetUint(uint64(n))
		return out, nil
	case reflect.Float32, reflect.Float64:
		if rv.CanFloat() {
			out.SetFloat(rv.Float())
			return out, nil
		}
	case reflect.Bool:
		if rv.Kind() == reflect.Bool {
			out.SetBool(rv.Bool())
			return out, nil
		}
	case reflect.String:
		switch x := v.(type) {
		case string:
			out.SetString(x)
			return out, nil
		case []byte:
			out.SetString(string(x))
			return out, nil
		}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			switch x := v.(type) {
			case string:
				out.SetBytes([]byte(x))
				return out, nil
			case []byte:
				out.SetBytes(x)
				return out, nil
			}
		}
		var elems []any
		switch x := v.(type) {
		case []any:
			elems = x
		case ttype.Set:
			elems = x
		default:
			return out, fmt.Errorf("cannot use %T as %s", v, t)
		}
		s := reflect.MakeSlice(t, len(elems), len(elems))
		for i, e := range elems {
			ev, err := convertValue(e, t.Elem())
			if err != nil {
				return out, err
			}
			s.Index(i).Set(ev)
		}
		return s, nil
	case reflect.Map:
		switch x := v.(type) {
		case ttype.Map:
			m := reflect.MakeMapWithSize(t, len(x))
			for _, e := range x {
				kv, err := convertValue(e.Key, t.Key())
				if err != nil {
					return out, err
				}
				if !kv.Type().Comparable() {
					return out, fmt.Errorf("map key type %s is not comparable", kv.Type())
				}
				vv, err := convertValue(e.Value, t.Elem())
				if err != nil {
					return out, err
				}
				m.SetMapIndex(kv, vv)
			}
			return m, nil
		case ttype.Set:
			var member reflect.Value
			switch t.Elem().Kind() {
			case reflect.Bool:
				member = reflect.ValueOf(true).Convert(t.Elem())
			case reflect.Struct:
				if t.Elem().NumField() == 0 {
					member = reflect.Zero(t.Elem())
				}
			}
			if !member.IsValid() {
				break
			}
			m := reflect.MakeMapWithSize(t, len(x))
			for _, e := range x {
				kv, err := convertValue(e, t.Key())
				if err != nil {
					return out, err
				}
				m.SetMapIndex(kv, member)
			}
			return m, nil
		}
	}
	return out, fmt.Errorf("cannot use %T as %s", v, t)
}
