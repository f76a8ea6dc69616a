// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package benchmark holds the service used to measure codec and dispatch
// throughput.
package benchmark

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Query-farm/thriftrpc/thriftrpc"
	"github.com/Query-farm/thriftrpc/thriftrpc/compile"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// Module is the compiled benchmark schema.
var Module = compile.MustLoadSource("bench.thrift", []byte(`
namespace go bench

enum Color {
    RED,
    GREEN,
    BLUE,
}

struct Row {
    1: required i64 i,
    2: required i64 value,
    3: optional string label,
}

struct Batch {
    1: list<Row> rows,
    2: map<string, double> totals,
    3: set<Color> colors,
    4: binary payload,
}

service Bench {
    void noop(),
    double add(1: double a, 2: double b),
    string greet(1: string name),
    string roundtrip_types(1: Color color, 2: map<string, i64> mapping, 3: list<i64> tags),
    list<Row> generate(1: i64 count),
    Batch transform(1: Batch batch, 2: double factor),
}
`))

// Service returns the Bench service descriptor.
func Service() *ttype.ServiceDescriptor { return Module.Service("Bench") }

// NewProcessor binds the benchmark methods to the Bench service.
func NewProcessor() *thriftrpc.Processor {
	svc := Service()
	return thriftrpc.NewProcessor(svc, thriftrpc.HandlerMap{
		"noop":            noop,
		"add":             add,
		"greet":           greet,
		"roundtrip_types": roundtripTypes,
		"generate":        generate,
		"transform":       transform,
	})
}

// Handler implementations

func noop(context.Context, *thriftrpc.CallContext, []any) (any, error) {
	return nil, nil
}

func add(_ context.Context, _ *thriftrpc.CallContext, args []any) (any, error) {
	a, _ := args[0].(float64)
	b, _ := args[1].(float64)
	return a + b, nil
}

func greet(_ context.Context, _ *thriftrpc.CallContext, args []any) (any, error) {
	name, _ := args[0].(string)
	return "Hello, " + name + "!", nil
}

// roundtripTypes formats its arguments as COLOR:{'k': v, ...}:[tags],
// with keys and tags sorted.
func roundtripTypes(_ context.Context, _ *thriftrpc.CallContext, args []any) (any, error) {
	color, _ := args[0].(int32)
	colorName, ok := Module.Enum("Color").NameOf(color)
	if !ok {
		return nil, thriftrpc.NewApplicationException(thriftrpc.ProtocolError, "unknown color %d", color)
	}

	mapping, _ := args[1].(ttype.Map)
	sorted := append(ttype.Map{}, mapping...)
	sort.Slice(sorted, func(i, j int) bool {
		return fmt.Sprint(sorted[i].Key) < fmt.Sprint(sorted[j].Key)
	})
	var mappingParts []string
	for _, e := range sorted {
		mappingParts = append(mappingParts, fmt.Sprintf("'%v': %v", e.Key, e.Value))
	}

	tags, _ := args[2].([]any)
	sortedTags := make([]int64, 0, len(tags))
	for _, t := range tags {
		n, _ := t.(int64)
		sortedTags = append(sortedTags, n)
	}
	sort.Slice(sortedTags, func(i, j int) bool { return sortedTags[i] < sortedTags[j] })
	var tagParts []string
	for _, t := range sortedTags {
		tagParts = append(tagParts, fmt.Sprintf("%d", t))
	}

	return fmt.Sprintf("%s:{%s}:[%s]", colorName,
		strings.Join(mappingParts, ", "), strings.Join(tagParts, ", ")), nil
}

func generate(_ context.Context, _ *thriftrpc.CallContext, args []any) (any, error) {
	count, _ := args[0].(int64)
	rows := make([]any, 0, max(count, 0))
	for i := int64(0); i < count; i++ {
		rows = append(rows, NewRow(i, i*i))
	}
	return rows, nil
}

// transform scales every row value and total by factor.
func transform(_ context.Context, _ *thriftrpc.CallContext, args []any) (any, error) {
	batch, _ := args[0].(*ttype.Struct)
	factor, _ := args[1].(float64)
	if batch == nil {
		return nil, thriftrpc.NewApplicationException(thriftrpc.ProtocolError, "transform: batch is unset")
	}
	out := batch.Copy()
	if rows, ok := batch.Get("rows").([]any); ok {
		scaled := make([]any, len(rows))
		for i, r := range rows {
			row := r.(*ttype.Struct).Copy()
			v, _ := row.Get("value").(int64)
			scaled[i] = row.Set("value", int64(float64(v)*factor))
		}
		out.Set("rows", scaled)
	}
	if totals, ok := batch.Get("totals").(ttype.Map); ok {
		scaled := make(ttype.Map, len(totals))
		for i, e := range totals {
			v, _ := e.Value.(float64)
			scaled[i] = ttype.MapEntry{Key: e.Key, Value: v * factor}
		}
		out.Set("totals", scaled)
	}
	return out, nil
}

// NewRow builds a Row struct.
func NewRow(i, value int64) *ttype.Struct {
	return ttype.New(Module.Struct("Row")).Set("i", i).Set("value", value)
}

// NewBatch builds a Batch of n rows with a payload of payloadSize bytes.
func NewBatch(n, payloadSize int) *ttype.Struct {
	rows := make([]any, n)
	for i := range rows {
		rows[i] = NewRow(int64(i), int64(i)*3).Set("label", fmt.Sprintf("row-%d", i))
	}
	return ttype.New(Module.Struct("Batch")).
		Set("rows", rows).
		Set("totals", ttype.Map{{Key: "sum", Value: float64(n)}, {Key: "mean", Value: 1.5}}).
		Set("colors", ttype.Set{int32(0), int32(2)}).
		Set("payload", make([]byte, payloadSize))
}
