// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package describe

import (
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// Field metadata keys attached to exported columns.
const (
	MetaFieldID   = "thrift.id"
	MetaFieldType = "thrift.type"
	MetaEncoding  = "thrift.encoding"
)

// EncodingBinary marks a column holding Thrift binary protocol bytes, used
// where a struct refers back to itself.
const EncodingBinary = "binary"

// Schema returns the Arrow schema for values of desc: one nullable column
// per field, in field id order.
func Schema(desc *ttype.StructDescriptor) *arrow.Schema {
	return arrow.NewSchema(structFields(desc, map[*ttype.StructDescriptor]bool{desc: true}), nil)
}

func structFields(desc *ttype.StructDescriptor, path map[*ttype.StructDescriptor]bool) []arrow.Field {
	fields := make([]arrow.Field, 0, len(desc.Fields))
	for _, f := range desc.Fields {
		dt, encoded := arrowType(f.Type, path)
		keys := []string{MetaFieldID, MetaFieldType}
		vals := []string{strconv.Itoa(int(f.ID)), f.Type.String()}
		if encoded {
			keys = append(keys, MetaEncoding)
			vals = append(vals, EncodingBinary)
		}
		fields = append(fields, arrow.Field{
			Name:     f.Name,
			Type:     dt,
			Nullable: true,
			Metadata: arrow.NewMetadata(keys, vals),
		})
	}
	return fields
}

// ArrowType returns the Arrow type used for values of spec.
func ArrowType(spec *ttype.TypeSpec) arrow.DataType {
	dt, _ := arrowType(spec, map[*ttype.StructDescriptor]bool{})
	return dt
}

// arrowType maps spec to an Arrow type. A struct already on path is
// represented as binary protocol bytes; the second result reports that.
func arrowType(spec *ttype.TypeSpec, path map[*ttype.StructDescriptor]bool) (arrow.DataType, bool) {
	switch spec.Type {
	case ttype.BOOL:
		return arrow.FixedWidthTypes.Boolean, false
	case ttype.BYTE:
		return arrow.PrimitiveTypes.Int8, false
	case ttype.I16:
		return arrow.PrimitiveTypes.Int16, false
	case ttype.I32:
		return arrow.PrimitiveTypes.Int32, false
	case ttype.I64:
		return arrow.PrimitiveTypes.Int64, false
	case ttype.DOUBLE:
		return arrow.PrimitiveTypes.Float64, false
	case ttype.STRING:
		if spec.Binary {
			return arrow.BinaryTypes.Binary, false
		}
		return arrow.BinaryTypes.String, false
	case ttype.LIST, ttype.SET:
		elem, enc := arrowType(spec.Elem, path)
		return arrow.ListOf(elem), enc
	case ttype.MAP:
		key, kenc := arrowType(spec.Key, path)
		val, venc := arrowType(spec.Elem, path)
		return arrow.MapOf(key, val), kenc || venc
	case ttype.STRUCT:
		if path[spec.Struct] {
			return arrow.BinaryTypes.Binary, true
		}
		path[spec.Struct] = true
		defer delete(path, spec.Struct)
		return arrow.StructOf(structFields(spec.Struct, path)...), false
	}
	return arrow.Null, false
}

// TypeName returns the schema-language spelling of spec.
func TypeName(spec *ttype.TypeSpec) string {
	if spec == nil {
		return "void"
	}
	return spec.String()
}
