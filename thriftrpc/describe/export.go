// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package describe

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// Records converts values of desc into a record batch with Schema(desc).
// Unset fields become nulls. The caller releases the batch.
func Records(mem memory.Allocator, desc *ttype.StructDescriptor, values []*ttype.Struct) (arrow.RecordBatch, error) {
	if mem == nil {
		mem = memory.NewGoAllocator()
	}
	schema := Schema(desc)
	builders := make([]array.Builder, len(desc.Fields))
	for i, f := range schema.Fields() {
		builders[i] = array.NewBuilder(mem, f.Type)
		defer builders[i].Release()
	}

	for row, v := range values {
		if v == nil || !ttype.SameType(v.Descriptor(), desc) {
			return nil, fmt.Errorf("row %d: want %s, got %v", row, desc, v)
		}
		for i, f := range desc.Fields {
			fv, _ := v.GetID(f.ID)
			if err := appendValue(builders[i], f.Type, fv); err != nil {
				return nil, fmt.Errorf("row %d: %s: %w", row, f.Name, err)
			}
		}
	}

	cols := make([]arrow.Array, len(builders))
	for i, b := range builders {
		cols[i] = b.NewArray()
		defer cols[i].Release()
	}
	return array.NewRecordBatch(schema, cols, int64(len(values))), nil
}

// WriteRecords writes values of desc as an Arrow IPC stream.
func WriteRecords(w io.Writer, desc *ttype.StructDescriptor, values []*ttype.Struct) error {
	batch, err := Records(nil, desc, values)
	if err != nil {
		return err
	}
	defer batch.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(batch.Schema()))
	if err := writer.Write(batch); err != nil {
		writer.Close()
		return fmt.Errorf("writing records: %w", err)
	}
	return writer.Close()
}

func appendValue(b array.Builder, spec *ttype.TypeSpec, v any) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	if exc, ok := v.(*ttype.Exception); ok {
		v = exc.Struct
	}

	switch b := b.(type) {
	case *array.BooleanBuilder:
		x, ok := v.(bool)
		if !ok {
			return mismatch(spec, v)
		}
		b.Append(x)
	case *array.Int8Builder:
		n, ok := intValue(v)
		if !ok {
			return mismatch(spec, v)
		}
		b.Append(int8(n))
	case *array.Int16Builder:
		n, ok := intValue(v)
		if !ok {
			return mismatch(spec, v)
		}
		b.Append(int16(n))
	case *array.Int32Builder:
		n, ok := intValue(v)
		if !ok {
			return mismatch(spec, v)
		}
		b.Append(int32(n))
	case *array.Int64Builder:
		n, ok := intValue(v)
		if !ok {
			return mismatch(spec, v)
		}
		b.Append(n)
	case *array.Float64Builder:
		switch x := v.(type) {
		case float64:
			b.Append(x)
		case float32:
			b.Append(float64(x))
		default:
			n, ok := intValue(v)
			if !ok {
				return mismatch(spec, v)
			}
			b.Append(float64(n))
		}
	case *array.StringBuilder:
		switch x := v.(type) {
		case string:
			b.Append(x)
		case []byte:
			b.Append(string(x))
		default:
			return mismatch(spec, v)
		}
	case *array.BinaryBuilder:
		if spec.Type == ttype.STRUCT {
			s, ok := v.(*ttype.Struct)
			if !ok {
				return mismatch(spec, v)
			}
			buf := transport.NewMemoryBuffer()
			if err := protocol.WriteStruct(protocol.NewBinary(buf, nil), spec.Struct, s); err != nil {
				return err
			}
			b.Append(buf.Bytes())
			return nil
		}
		switch x := v.(type) {
		case []byte:
			b.Append(x)
		case string:
			b.AppendString(x)
		default:
			return mismatch(spec, v)
		}
	case *array.ListBuilder:
		var elems []any
		switch x := v.(type) {
		case []any:
			elems = x
		case ttype.Set:
			elems = x
		default:
			return mismatch(spec, v)
		}
		b.Append(true)
		for _, e := range elems {
			if err := appendValue(b.ValueBuilder(), spec.Elem, e); err != nil {
				return err
			}
		}
	case *array.MapBuilder:
		m, ok := v.(ttype.Map)
		if !ok {
			return mismatch(spec, v)
		}
		b.Append(true)
		for _, e := range m {
			if e.Key == nil {
				return fmt.Errorf("null map key")
			}
			if err := appendValue(b.KeyBuilder(), spec.Key, e.Key); err != nil {
				return err
			}
			if err := appendValue(b.ItemBuilder(), spec.Elem, e.Value); err != nil {
				return err
			}
		}
	case *array.StructBuilder:
		s, ok := v.(*ttype.Struct)
		if !ok {
			return mismatch(spec, v)
		}
		b.Append(true)
		for i, f := range spec.Struct.Fields {
			fv, _ := s.GetID(f.ID)
			if err := appendValue(b.FieldBuilder(i), f.Type, fv); err != nil {
				return fmt.Errorf("%s: %w", f.Name, err)
			}
		}
	default:
		return fmt.Errorf("no Arrow column for %s", spec)
	}
	return nil
}

func mismatch(spec *ttype.TypeSpec, v any) error {
	return fmt.Errorf("cannot store %T as %s", v, spec)
}

func intValue(v any) (int64, bool) {
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
	}
	return 0, false
}
