// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"math"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/Query-farm/thriftrpc/thriftrpc"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// Case is one conformance check run through a client of the Conformance
// service.
type Case struct {
	Name string
	Run  func(ctx context.Context, c *thriftrpc.Client) error
}

// Result is the outcome of one Case. Err is nil when the case passed.
type Result struct {
	Name string
	Err  error
}

// Run executes every case whose name contains filter, in order. An empty
// filter selects all cases.
func Run(ctx context.Context, c *thriftrpc.Client, filter string) []Result {
	var results []Result
	for _, tc := range Cases() {
		if filter != "" && !strings.Contains(tc.Name, filter) {
			continue
		}
		results = append(results, Result{Name: tc.Name, Err: tc.Run(ctx, c)})
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// echo returns a case that sends value to method and expects it back.
func echo(name, method string, value any) Case {
	return expect(name, method, value, value)
}

func expect(name, method string, want any, args ...any) Case {
	return Case{Name: name, Run: func(ctx context.Context, c *thriftrpc.Client) error {
		got, err := c.Call(ctx, method, args...)
		if err != nil {
			return errors.Wrap(err, method)
		}
		if !ttype.Equal(got, want) {
			return errors.Errorf("%s: got %v, want %v", method, got, want)
		}
		return nil
	}}
}

// expectError returns a case that expects a ConformanceError with the
// given message and code.
func expectError(name, method, message string, code int32, args ...any) Case {
	return Case{Name: name, Run: func(ctx context.Context, c *thriftrpc.Client) error {
		_, err := c.Call(ctx, method, args...)
		var exc *ttype.Exception
		if !errors.As(err, &exc) {
			return errors.Errorf("%s: want ConformanceError, got %v", method, err)
		}
		if qn := exc.Descriptor().QualifiedName(); qn != "conformance.ConformanceError" {
			return errors.Errorf("%s: exception type %s", method, qn)
		}
		if got := exc.Get("message"); got != message {
			return errors.Errorf("%s: message %v, want %q", method, got, message)
		}
		if got := exc.Get("code"); !ttype.Equal(got, code) {
			return errors.Errorf("%s: code %v, want %d", method, got, code)
		}
		return nil
	}}
}

// Cases returns the conformance cases in execution order.
func Cases() []Case {
	point := NewPoint(1.5, -2)
	allTypes := ttype.New(Module.Struct("AllTypes")).
		Set("bool_field", true).
		Set("byte_field", int8(-7)).
		Set("i16_field", int16(math.MaxInt16)).
		Set("i32_field", int32(math.MinInt32)).
		Set("i64_field", int64(math.MaxInt64)).
		Set("double_field", 3.25).
		Set("str_field", "héllo wörld ✓").
		Set("bytes_field", []byte{0, 1, 0xfe, 0xff}).
		Set("enum_field", int32(5)).
		Set("list_of_int", []any{int32(1), int32(2), int32(3)}).
		Set("set_of_str", ttype.Set{"a", "b"}).
		Set("dict_field", ttype.Map{{Key: "x", Value: int64(-1)}, {Key: "y", Value: int64(1) << 40}}).
		Set("point", point).
		Set("nested_list", []any{[]any{int32(1)}, []any{}}).
		Set("by_status", ttype.Map{{Key: int32(1), Value: []any{point, NewPoint(0, 0)}}})

	return []Case{
		expect("void_noop", "void_noop", nil),
		echo("echo_bool", "echo_bool", true),
		echo("echo_byte", "echo_byte", int8(math.MinInt8)),
		echo("echo_i16", "echo_i16", int16(-12345)),
		echo("echo_int", "echo_int", int32(math.MaxInt32)),
		echo("echo_i64", "echo_i64", int64(math.MinInt64)),
		echo("echo_float", "echo_float", math.Inf(-1)),
		echo("echo_float_fraction", "echo_float", 0.1),
		echo("echo_string", "echo_string", "héllo wörld ✓"),
		echo("echo_string_empty", "echo_string", ""),
		echo("echo_bytes", "echo_bytes", []byte{0, 0x80, 0xff}),
		echo("echo_enum", "echo_enum", int32(5)),
		echo("echo_list", "echo_list", []any{int32(3), int32(-1), int32(3)}),
		echo("echo_list_empty", "echo_list", []any{}),
		echo("echo_set", "echo_set", ttype.Set{"x", "y", "z"}),
		echo("echo_dict", "echo_dict", ttype.Map{{Key: "a", Value: int64(1)}, {Key: "b", Value: int64(2)}}),
		echo("echo_nested_list", "echo_nested_list", []any{[]any{int32(1), int32(2)}, []any{}, []any{int32(3)}}),
		expect("echo_optional_set", "echo_optional", "given", "given"),
		expect("echo_optional_unset", "echo_optional", "<unset>"),
		echo("echo_point", "echo_point", point),
		expect("bounding_box", "bounding_box",
			ttype.New(Module.Struct("BoundingBox")).
				Set("top_left", NewPoint(-1, 4)).
				Set("bottom_right", NewPoint(3, 0)).
				Set("label", "area"),
			[]any{NewPoint(0, 0), NewPoint(3, 4), NewPoint(-1, 2)}, "area"),
		expect("bounding_box_default_label", "bounding_box",
			ttype.New(Module.Struct("BoundingBox")).
				Set("top_left", NewPoint(1.5, -2)).
				Set("bottom_right", NewPoint(1.5, -2)),
			[]any{point}, ""),
		expectError("bounding_box_empty", "bounding_box", "bounding_box needs at least one point", 400, []any{}, ""),
		echo("echo_all_types", "echo_all_types", allTypes),
		expect("default_all_types", "default_all_types", ttype.New(Module.Struct("AllTypes"))),
		echo("echo_shape_point", "echo_shape", ttype.New(Module.Struct("Shape")).Set("point", point)),
		expectError("echo_shape_empty", "echo_shape", "shape must have exactly one member", 422,
			ttype.New(Module.Struct("Shape"))),
		expect("divide", "divide", 2.5, 5.0, 2.0),
		expectError("divide_by_zero", "divide", "division by zero", 400, 1.0, 0.0),
		expectError("raise_error", "raise_error", "custom failure", 7, "custom failure", int32(7)),
		{Name: "raise_internal", Run: raiseInternal},
		{Name: "oneway_notify", Run: onewayNotify},
		{Name: "echo_metadata", Run: echoMetadata},
	}
}

func raiseInternal(ctx context.Context, c *thriftrpc.Client) error {
	_, err := c.Call(ctx, "raise_internal", "internal boom")
	var ae *thriftrpc.ApplicationException
	if !errors.As(err, &ae) {
		return errors.Errorf("raise_internal: want application exception, got %v", err)
	}
	if ae.Type != thriftrpc.InternalError || ae.Message != "internal boom" {
		return errors.Errorf("raise_internal: got %s %q", ae.Type, ae.Message)
	}
	return nil
}

func onewayNotify(ctx context.Context, c *thriftrpc.Client) error {
	note := "note-" + uuid.NewString()
	if _, err := c.Call(ctx, "notify", note); err != nil {
		return errors.Wrap(err, "notify")
	}
	got, err := c.Call(ctx, "notifications")
	if err != nil {
		return errors.Wrap(err, "notifications")
	}
	notes, _ := got.([]any)
	for _, n := range notes {
		if n == note {
			return nil
		}
	}
	return errors.Errorf("notifications: %q not delivered", note)
}

func echoMetadata(ctx context.Context, c *thriftrpc.Client) error {
	got, err := c.Call(ctx, "echo_metadata")
	if err != nil {
		return errors.Wrap(err, "echo_metadata")
	}
	if _, ok := got.(ttype.Map); !ok {
		return errors.Errorf("echo_metadata: got %T, want a map", got)
	}
	return nil
}
