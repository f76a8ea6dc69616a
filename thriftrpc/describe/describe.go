// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package describe exposes compiled services and decoded values as Apache
// Arrow data: one row per method for introspection, and record batches of
// struct values for export.
package describe

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	jsoniter "github.com/json-iterator/go"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// ContentType is the media type of the describe stream.
const ContentType = "application/vnd.apache.arrow.stream"

// Describe metadata keys.
const (
	MetaProtocolName    = "thriftrpc.protocol_name"
	MetaDescribeVersion = "thriftrpc.describe_version"
	MetaServerID        = "thriftrpc.server_id"
	DescribeVersion     = "1"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Schema of the describe batch: one row per method.
var describeSchema = arrow.NewSchema([]arrow.Field{
	{Name: "service", Type: arrow.BinaryTypes.String},
	{Name: "name", Type: arrow.BinaryTypes.String},
	{Name: "oneway", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "has_return", Type: arrow.FixedWidthTypes.Boolean},
	{Name: "return_type", Type: arrow.BinaryTypes.String},
	{Name: "params_schema_ipc", Type: arrow.BinaryTypes.Binary},
	{Name: "result_schema_ipc", Type: arrow.BinaryTypes.Binary},
	{Name: "param_types_json", Type: arrow.BinaryTypes.String, Nullable: true},
	{Name: "throws_json", Type: arrow.BinaryTypes.String, Nullable: true},
}, nil)

// Method is one row of a describe batch.
type Method struct {
	Service      string
	Name         string
	Oneway       bool
	HasReturn    bool
	ReturnType   string
	ParamsSchema *arrow.Schema
	ResultSchema *arrow.Schema
	ParamTypes   map[string]string
	Throws       map[string]string
}

// serializeSchema serializes an Arrow schema to IPC format bytes.
func serializeSchema(schema *arrow.Schema) []byte {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	w.Close()
	return buf.Bytes()
}

func deserializeSchema(b []byte) (*arrow.Schema, error) {
	r, err := ipc.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer r.Release()
	return r.Schema(), nil
}

func typesJSON(fields []*ttype.FieldSpec) (string, bool) {
	if len(fields) == 0 {
		return "", false
	}
	types := make(map[string]string, len(fields))
	for _, f := range fields {
		types[f.Name] = TypeName(f.Type)
	}
	b, err := json.Marshal(types)
	if err != nil {
		slog.Error("describe: marshal types", "err", err)
		return "", false
	}
	return string(b), true
}

// BuildBatch builds the describe batch for svcs, methods in declaration
// order with inherited methods first. The caller releases the batch.
func BuildBatch(svcs []*ttype.ServiceDescriptor, serverID string) arrow.RecordBatch {
	mem := memory.NewGoAllocator()

	serviceBuilder := array.NewStringBuilder(mem)
	defer serviceBuilder.Release()
	nameBuilder := array.NewStringBuilder(mem)
	defer nameBuilder.Release()
	onewayBuilder := array.NewBooleanBuilder(mem)
	defer onewayBuilder.Release()
	hasReturnBuilder := array.NewBooleanBuilder(mem)
	defer hasReturnBuilder.Release()
	returnTypeBuilder := array.NewStringBuilder(mem)
	defer returnTypeBuilder.Release()
	paramsSchemaBuilder := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer paramsSchemaBuilder.Release()
	resultSchemaBuilder := array.NewBinaryBuilder(mem, arrow.BinaryTypes.Binary)
	defer resultSchemaBuilder.Release()
	paramTypesBuilder := array.NewStringBuilder(mem)
	defer paramTypesBuilder.Release()
	throwsBuilder := array.NewStringBuilder(mem)
	defer throwsBuilder.Release()

	n := 0
	for _, svc := range svcs {
		for _, m := range svc.AllMethods() {
			n++
			serviceBuilder.Append(svc.QualifiedName())
			nameBuilder.Append(m.Name)
			onewayBuilder.Append(m.Oneway)
			hasReturnBuilder.Append(!m.Void())
			returnTypeBuilder.Append(TypeName(m.Return))
			paramsSchemaBuilder.Append(serializeSchema(Schema(m.Args)))
			resultSchemaBuilder.Append(serializeSchema(Schema(m.Result)))
			if s, ok := typesJSON(m.Params); ok {
				paramTypesBuilder.Append(s)
			} else {
				paramTypesBuilder.AppendNull()
			}
			if s, ok := typesJSON(m.Throws); ok {
				throwsBuilder.Append(s)
			} else {
				throwsBuilder.AppendNull()
			}
		}
	}

	cols := []arrow.Array{
		serviceBuilder.NewArray(),
		nameBuilder.NewArray(),
		onewayBuilder.NewArray(),
		hasReturnBuilder.NewArray(),
		returnTypeBuilder.NewArray(),
		paramsSchemaBuilder.NewArray(),
		resultSchemaBuilder.NewArray(),
		paramTypesBuilder.NewArray(),
		throwsBuilder.NewArray(),
	}
	for _, c := range cols {
		defer c.Release()
	}

	keys := []string{MetaProtocolName, MetaDescribeVersion}
	vals := []string{"thrift-binary", DescribeVersion}
	if serverID != "" {
		keys = append(keys, MetaServerID)
		vals = append(vals, serverID)
	}
	return array.NewRecordBatchWithMetadata(describeSchema, cols, int64(n), arrow.NewMetadata(keys, vals))
}

// WriteServices writes the describe batch for svcs as an Arrow IPC stream.
func WriteServices(w io.Writer, svcs []*ttype.ServiceDescriptor, serverID string) error {
	batch := BuildBatch(svcs, serverID)
	defer batch.Release()

	writer := ipc.NewWriter(w, ipc.WithSchema(describeSchema))
	if err := writer.Write(batch); err != nil {
		writer.Close()
		return fmt.Errorf("writing describe batch: %w", err)
	}
	return writer.Close()
}

// ReadServices reads a describe stream written by WriteServices. It returns
// the method rows and the batch metadata.
func ReadServices(r io.Reader) ([]Method, map[string]string, error) {
	reader, err := ipc.NewReader(r)
	if err != nil {
		return nil, nil, fmt.Errorf("reading describe stream: %w", err)
	}
	defer reader.Release()

	var (
		methods []Method
		meta    map[string]string
	)
	for reader.Next() {
		batch := reader.RecordBatch()
		if rb, ok := batch.(arrow.RecordBatchWithMetadata); ok {
			md := rb.Metadata()
			meta = make(map[string]string, md.Len())
			for i, k := range md.Keys() {
				meta[k] = md.Values()[i]
			}
		}
		rows, err := methodRows(batch)
		if err != nil {
			return nil, nil, err
		}
		methods = append(methods, rows...)
	}
	if err := reader.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading describe batch: %w", err)
	}
	return methods, meta, nil
}

func methodRows(batch arrow.RecordBatch) ([]Method, error) {
	if int(batch.NumCols()) != describeSchema.NumFields() {
		return nil, fmt.Errorf("describe batch has %d columns, want %d", batch.NumCols(), describeSchema.NumFields())
	}
	service := batch.Column(0).(*array.String)
	name := batch.Column(1).(*array.String)
	oneway := batch.Column(2).(*array.Boolean)
	hasReturn := batch.Column(3).(*array.Boolean)
	returnType := batch.Column(4).(*array.String)
	paramsSchema := batch.Column(5).(*array.Binary)
	resultSchema := batch.Column(6).(*array.Binary)
	paramTypes := batch.Column(7).(*array.String)
	throws := batch.Column(8).(*array.String)

	out := make([]Method, 0, batch.NumRows())
	for i := 0; i < int(batch.NumRows()); i++ {
		m := Method{
			Service:    service.Value(i),
			Name:       name.Value(i),
			Oneway:     oneway.Value(i),
			HasReturn:  hasReturn.Value(i),
			ReturnType: returnType.Value(i),
		}
		var err error
		if m.ParamsSchema, err = deserializeSchema(paramsSchema.Value(i)); err != nil {
			return nil, fmt.Errorf("%s params schema: %w", m.Name, err)
		}
		if m.ResultSchema, err = deserializeSchema(resultSchema.Value(i)); err != nil {
			return nil, fmt.Errorf("%s result schema: %w", m.Name, err)
		}
		if !paramTypes.IsNull(i) {
			if err := json.Unmarshal([]byte(paramTypes.Value(i)), &m.ParamTypes); err != nil {
				return nil, fmt.Errorf("%s param types: %w", m.Name, err)
			}
		}
		if !throws.IsNull(i) {
			if err := json.Unmarshal([]byte(throws.Value(i)), &m.Throws); err != nil {
				return nil, fmt.Errorf("%s throws: %w", m.Name, err)
			}
		}
		out = append(out, m)
	}
	return out, nil
}
