// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package benchmark

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Query-farm/thriftrpc/thriftrpc"
	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

type alreadyListening struct{ *transport.ServerSocket }

func (alreadyListening) Listen() error { return nil }

// startSocket serves the Bench processor on loopback TCP and returns a
// connected client.
func startSocket(tb testing.TB) *thriftrpc.Client {
	listener := transport.NewServerSocket("tcp", "127.0.0.1:0")
	if err := listener.Listen(); err != nil {
		tb.Fatal(err)
	}
	server := thriftrpc.NewServer(NewProcessor())
	done := make(chan error, 1)
	go func() { done <- server.Serve(context.Background(), alreadyListening{listener}) }()

	client, err := thriftrpc.Dial("tcp", listener.Addr().String(), Service(), thriftrpc.WithTimeout(5*time.Second))
	if err != nil {
		tb.Fatal(err)
	}

	tb.Cleanup(func() {
		client.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
		<-done
	})
	return client
}

func startHTTP(tb testing.TB) *thriftrpc.Client {
	hs := thriftrpc.NewHTTPServer(NewProcessor(), "")
	srv := httptest.NewServer(hs)
	tb.Cleanup(srv.Close)
	return thriftrpc.DialHTTP(srv.URL+hs.Prefix(), Service(), thriftrpc.WithHTTPClient(srv.Client()))
}

func TestFixtureMethods(t *testing.T) {
	client := startSocket(t)
	ctx := context.Background()

	if _, err := client.Call(ctx, "noop"); err != nil {
		t.Fatalf("noop: %v", err)
	}

	got, err := client.Call(ctx, "roundtrip_types", int32(1),
		ttype.Map{{Key: "b", Value: int64(2)}, {Key: "a", Value: int64(1)}},
		[]any{int64(3), int64(-1), int64(2)})
	if err != nil {
		t.Fatalf("roundtrip_types: %v", err)
	}
	if want := "GREEN:{'a': 1, 'b': 2}:[-1, 2, 3]"; got != want {
		t.Errorf("roundtrip_types = %q, want %q", got, want)
	}

	got, err = client.Call(ctx, "generate", int64(4))
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	rows := got.([]any)
	if len(rows) != 4 || !ttype.Equal(rows[3], NewRow(3, 9)) {
		t.Errorf("generate(4) = %v", rows)
	}

	got, err = client.Call(ctx, "transform", NewBatch(2, 8), 2.0)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	out := got.(*ttype.Struct)
	second := out.Get("rows").([]any)[1].(*ttype.Struct)
	if v := second.Get("value"); v != int64(6) {
		t.Errorf("scaled value = %v, want 6", v)
	}
	if sum, _ := out.Get("totals").(ttype.Map).Get("sum"); sum != 4.0 {
		t.Errorf("scaled sum = %v, want 4", sum)
	}
}

func benchmarkEncode(b *testing.B, rows, payload int) {
	batch := NewBatch(rows, payload)
	desc := batch.Descriptor()
	buf := transport.NewMemoryBuffer()
	p := protocol.NewBinary(buf, nil)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		buf.Reset()
		if err := protocol.WriteStruct(p, desc, batch); err != nil {
			b.Fatal(err)
		}
	}
	b.SetBytes(int64(buf.Len()))
}

func benchmarkDecode(b *testing.B, rows, payload int) {
	batch := NewBatch(rows, payload)
	desc := batch.Descriptor()
	buf := transport.NewMemoryBuffer()
	if err := protocol.WriteStruct(protocol.NewBinary(buf, nil), desc, batch); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()
	b.SetBytes(int64(len(data)))
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := protocol.NewBinary(transport.NewMemoryBufferWith(data), nil)
		if _, err := protocol.ReadStruct(p, desc); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeSmall(b *testing.B) { benchmarkEncode(b, 10, 64) }
func BenchmarkEncodeLarge(b *testing.B) { benchmarkEncode(b, 1000, 64<<10) }
func BenchmarkDecodeSmall(b *testing.B) { benchmarkDecode(b, 10, 64) }
func BenchmarkDecodeLarge(b *testing.B) { benchmarkDecode(b, 1000, 64<<10) }

func benchmarkCall(b *testing.B, client *thriftrpc.Client, method string, args ...any) {
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := client.Call(ctx, method, args...); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkSocketNoop(b *testing.B) { benchmarkCall(b, startSocket(b), "noop") }
func BenchmarkSocketAdd(b *testing.B)  { benchmarkCall(b, startSocket(b), "add", 1.0, 2.0) }

func BenchmarkSocketGenerate(b *testing.B) {
	benchmarkCall(b, startSocket(b), "generate", int64(1000))
}

func BenchmarkSocketTransform(b *testing.B) {
	benchmarkCall(b, startSocket(b), "transform", NewBatch(100, 1024), 1.5)
}

func BenchmarkHTTPNoop(b *testing.B)  { benchmarkCall(b, startHTTP(b), "noop") }
func BenchmarkHTTPGreet(b *testing.B) { benchmarkCall(b, startHTTP(b), "greet", "bench") }
