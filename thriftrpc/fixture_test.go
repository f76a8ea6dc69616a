// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"context"
	"errors"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Query-farm/thriftrpc/thriftrpc/compile"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

const calcSchema = `
namespace go calc

exception DivideByZero { 1: string message }
exception Unlisted { 1: string message }

struct Pair {
  1: required i32 a
  2: required i32 b
}

service Base {
  string ping()
}

service Calc extends Base {
  i32 add(1: i32 a, 2: i32 b)
  double divide(1: double x, 2: double y) throws (1: DivideByZero dz)
  void reset()
  oneway void fire(1: string note)
  i32 sum(1: list<i32> values)
  map<string, i32> count(1: set<string> words)
  Pair swap(1: Pair p)
  void explode(1: string how)
  i32 slow(1: i32 ms)
  i32 missing()
  i32 strict(1: required i32 x)
  string whoami()
}

service Echo {
  string echo(1: string s)
}

service Stranger {
  string ping()
  void nope()
}
`

var calcModule = compile.MustLoadSource("calc.thrift", []byte(calcSchema))

type calcHandler struct {
	resets atomic.Int32
	fired  chan string
}

func newCalcHandler() *calcHandler {
	return &calcHandler{fired: make(chan string, 16)}
}

func (h *calcHandler) Ping() string { return "pong" }

func (h *calcHandler) Add(a, b int32) (int32, error) { return a + b, nil }

func (h *calcHandler) Divide(ctx context.Context, x, y float64) (float64, error) {
	if y == 0 {
		exc := ttype.NewException(calcModule.Struct("DivideByZero"))
		exc.Set("message", "division by zero")
		return 0, exc
	}
	return x / y, nil
}

func (h *calcHandler) Reset() { h.resets.Add(1) }

func (h *calcHandler) Fire(call *CallContext, note string) error {
	h.fired <- note
	if note == "fail" {
		return errors.New("fire failed")
	}
	return nil
}

func (h *calcHandler) Sum(values []int32) int {
	total := 0
	for _, v := range values {
		total += int(v)
	}
	return total
}

func (h *calcHandler) Count(words map[string]bool) map[string]int32 {
	out := make(map[string]int32, len(words))
	for w := range words {
		out[w] = int32(len(w))
	}
	return out
}

func (h *calcHandler) Swap(p *ttype.Struct) *ttype.Struct {
	return ttype.New(p.Descriptor()).Set("a", p.Get("b")).Set("b", p.Get("a"))
}

func (h *calcHandler) Explode(how string) error {
	switch how {
	case "app":
		return NewApplicationException(InternalError, "explicit application failure")
	case "unlisted":
		exc := ttype.NewException(calcModule.Struct("Unlisted"))
		exc.Set("message", "not declared")
		return exc
	case "panic":
		panic("boom")
	}
	return errors.New("undeclared failure")
}

func (h *calcHandler) Slow(ctx context.Context, ms int32) (int32, error) {
	select {
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return ms, nil
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (h *calcHandler) Missing() (any, error) { return nil, nil }

func (h *calcHandler) Strict(x int32) int32 { return x }

func (h *calcHandler) Whoami(call *CallContext) string {
	return call.Service + "." + call.Method + " " + call.Metadata["x-caller"]
}

type echoHandler struct{}

func (echoHandler) Echo(s string) string { return s }

// testServer serves a processor on a loopback TCP socket.
type testServer struct {
	server *Server
	addr   string
	done   chan error
}

func startServer(proc MessageProcessor, opts ...ServerOption) *testServer {
	listener := transport.NewServerSocket("tcp", "127.0.0.1:0")
	if err := listener.Listen(); err != nil {
		panic(err)
	}
	ts := &testServer{
		server: NewServer(proc, opts...),
		addr:   listener.Addr().String(),
		done:   make(chan error, 1),
	}
	go func() { ts.done <- ts.server.Serve(context.Background(), alreadyListening{listener}) }()
	return ts
}

func (ts *testServer) stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = ts.server.Shutdown(ctx)
	<-ts.done
}

// dial opens a buffered binary client for svc, optionally multiplexed.
func (ts *testServer) dial(svc *ttype.ServiceDescriptor, service string) *Client {
	c, err := Dial("tcp", ts.addr, svc, WithTimeout(5*time.Second), WithMultiplexed(service))
	if err != nil {
		panic(err)
	}
	return c
}

// alreadyListening lets tests learn the address before Serve runs.
type alreadyListening struct{ *transport.ServerSocket }

func (alreadyListening) Listen() error { return nil }

// recordingHook records dispatches for assertions.
type recordingHook struct {
	mu     sync.Mutex
	starts []DispatchInfo
	ends   []string
	errs   []error
	panics bool
}

func (h *recordingHook) OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken) {
	h.mu.Lock()
	h.starts = append(h.starts, info)
	h.mu.Unlock()
	if h.panics {
		panic("hook start")
	}
	return ctx, info.Method
}

func (h *recordingHook) OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ends = append(h.ends, token.(string)+":"+stats.Outcome)
	h.errs = append(h.errs, err)
}

func (h *recordingHook) outcomes() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := append([]string(nil), h.ends...)
	sort.Strings(out)
	return out
}

// headerHook adds a metadata entry to every call.
type headerHook struct{ key, value string }

func (h headerHook) OnCallStart(ctx context.Context, info *CallInfo) (context.Context, HookToken) {
	info.Metadata[h.key] = h.value
	return ctx, nil
}

func (h headerHook) OnCallEnd(context.Context, HookToken, *CallInfo, error) {}
