// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"context"
	"testing"

	"github.com/apache/thrift/lib/go/thrift"

	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// Bytes written by the reference Go implementation decode with this codec.
func TestDecodeApacheThriftMessage(t *testing.T) {
	ctx := context.Background()
	m := codecModule(t)

	buf := thrift.NewTMemoryBuffer()
	ap := thrift.NewTBinaryProtocolConf(buf, &thrift.TConfiguration{})
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatal(err)
		}
	}
	must(ap.WriteMessageBegin(ctx, "get", thrift.CALL, 9))
	must(ap.WriteStructBegin(ctx, "Everything"))
	must(ap.WriteFieldBegin(ctx, "i", thrift.I32, 4))
	must(ap.WriteI32(ctx, -7))
	must(ap.WriteFieldEnd(ctx))
	must(ap.WriteFieldBegin(ctx, "unknown", thrift.DOUBLE, 99))
	must(ap.WriteDouble(ctx, 1.5))
	must(ap.WriteFieldEnd(ctx))
	must(ap.WriteFieldBegin(ctx, "ss", thrift.SET, 10))
	must(ap.WriteSetBegin(ctx, thrift.STRING, 2))
	must(ap.WriteString(ctx, "x"))
	must(ap.WriteString(ctx, "y"))
	must(ap.WriteSetEnd(ctx))
	must(ap.WriteFieldEnd(ctx))
	must(ap.WriteFieldBegin(ctx, "item", thrift.STRUCT, 13))
	must(ap.WriteStructBegin(ctx, "Item"))
	must(ap.WriteFieldBegin(ctx, "name", thrift.STRING, 1))
	must(ap.WriteString(ctx, "widget"))
	must(ap.WriteFieldEnd(ctx))
	must(ap.WriteFieldStop(ctx))
	must(ap.WriteStructEnd(ctx))
	must(ap.WriteFieldEnd(ctx))
	must(ap.WriteFieldStop(ctx))
	must(ap.WriteStructEnd(ctx))
	must(ap.WriteMessageEnd(ctx))
	must(ap.Flush(ctx))

	p := NewBinary(transport.NewMemoryBufferWith(buf.Bytes()), nil)
	name, typ, seqid, err := p.ReadMessageBegin()
	must(err)
	if name != "get" || typ != CALL || seqid != 9 {
		t.Errorf("header = %q %s %d", name, typ, seqid)
	}
	got, err := ReadStruct(p, m.Struct("Everything"))
	must(err)

	want := ttype.New(m.Struct("Everything")).
		Set("i", int32(-7)).
		Set("ss", ttype.Set{"y", "x"}).
		Set("item", ttype.New(m.Struct("Item")).Set("name", "widget"))
	if !ttype.Equal(got, want) {
		t.Errorf("decoded %s, want %s", got, want)
	}
}

// Bytes written by this codec decode with the reference Go implementation.
func TestEncodeForApacheThrift(t *testing.T) {
	ctx := context.Background()
	m := codecModule(t)

	ours := transport.NewMemoryBuffer()
	p := NewBinary(ours, nil)
	v := ttype.New(m.Struct("Everything")).
		Set("b", true).
		Set("l", int64(1234567890123456789)).
		Set("d", 1234567890.1234567890).
		Set("str", "你好世界").
		Set("li", []any{5, 6}).
		Set("m", ttype.Map{{Key: "k", Value: []any{}}})
	if err := p.WriteMessageBegin("put", REPLY, 3); err != nil {
		t.Fatal(err)
	}
	if err := WriteStruct(p, m.Struct("Everything"), v); err != nil {
		t.Fatal(err)
	}

	buf := thrift.NewTMemoryBuffer()
	buf.Write(ours.Bytes())
	ap := thrift.NewTBinaryProtocolConf(buf, &thrift.TConfiguration{})

	name, typ, seqid, err := ap.ReadMessageBegin(ctx)
	if err != nil || name != "put" || typ != thrift.REPLY || seqid != 3 {
		t.Fatalf("header = %q %v %d %v", name, typ, seqid, err)
	}
	if _, err := ap.ReadStructBegin(ctx); err != nil {
		t.Fatal(err)
	}
	seen := map[int16]bool{}
	for {
		_, ft, id, err := ap.ReadFieldBegin(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if ft == thrift.STOP {
			break
		}
		seen[id] = true
		switch id {
		case 1:
			if b, _ := ap.ReadBool(ctx); !b {
				t.Errorf("b = false")
			}
		case 5:
			if l, _ := ap.ReadI64(ctx); l != 1234567890123456789 {
				t.Errorf("l = %d", l)
			}
		case 6:
			if d, _ := ap.ReadDouble(ctx); d != 1234567890.1234567890 {
				t.Errorf("d = %v", d)
			}
		case 7:
			if s, _ := ap.ReadString(ctx); s != "你好世界" {
				t.Errorf("str = %q", s)
			}
		case 9:
			et, n, _ := ap.ReadListBegin(ctx)
			if et != thrift.I32 || n != 2 {
				t.Fatalf("li header = %v %d", et, n)
			}
			a, _ := ap.ReadI32(ctx)
			b, _ := ap.ReadI32(ctx)
			if a != 5 || b != 6 {
				t.Errorf("li = %d %d", a, b)
			}
			_ = ap.ReadListEnd(ctx)
		default:
			if err := ap.Skip(ctx, ft); err != nil {
				t.Fatal(err)
			}
		}
		_ = ap.ReadFieldEnd(ctx)
	}
	for _, id := range []int16{1, 5, 6, 7, 9, 11} {
		if !seen[id] {
			t.Errorf("field %d missing", id)
		}
	}
}
