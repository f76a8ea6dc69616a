// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftprom

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Query-farm/thriftrpc/thriftrpc"
	"github.com/Query-farm/thriftrpc/thriftrpc/compile"
	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
)

const kvSchema = `
service KV {
  string get(1: string key)
  oneway void put(1: string key, 2: string value)
}
`

func TestDispatchMetrics(t *testing.T) {
	kv := compile.MustLoadSource("kv.thrift", []byte(kvSchema)).Service("KV")
	proc := thriftrpc.NewProcessor(kv, thriftrpc.HandlerMap{
		"get": func(_ context.Context, _ *thriftrpc.CallContext, args []any) (any, error) {
			if args[0] == "missing" {
				return nil, thriftrpc.NewApplicationException(thriftrpc.MissingResult, "no such key")
			}
			return "value", nil
		},
		"put": func(context.Context, *thriftrpc.CallContext, []any) (any, error) { return nil, nil },
	})
	reg := prometheus.NewRegistry()
	m := New(reg)
	proc.SetDispatchHook(m)

	srv := httptest.NewServer(thriftrpc.NewHTTPServer(proc, ""))
	defer srv.Close()
	p := protocol.NewBinary(transport.NewHTTPClient(srv.URL+"/thrift", srv.Client()), nil)
	client := thriftrpc.NewClient(kv, p, p)

	ctx := context.Background()
	for _, key := range []string{"a", "b", "missing"} {
		_, _ = client.Call(ctx, "get", key)
	}
	if _, err := client.Call(ctx, "put", "k", "v"); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		method, outcome string
		want            float64
	}{
		{"get", thriftrpc.OutcomeSuccess, 2},
		{"get", thriftrpc.OutcomeApplicationException, 1},
		{"put", thriftrpc.OutcomeOneway, 1},
		{"get", thriftrpc.OutcomeInternalError, 0},
	}
	for _, tt := range tests {
		got := testutil.ToFloat64(m.requests.WithLabelValues("KV", tt.method, tt.outcome))
		if got != tt.want {
			t.Errorf("%s/%s = %v, want %v", tt.method, tt.outcome, got, tt.want)
		}
	}
	if got := testutil.ToFloat64(m.inFlight.WithLabelValues("KV")); got != 0 {
		t.Errorf("in flight = %v", got)
	}
	if got := testutil.ToFloat64(m.bytes.WithLabelValues("KV", "in")); got <= 0 {
		t.Errorf("bytes in = %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `thriftrpc_server_requests_total{method="get",outcome="success",service="KV"} 2`) {
		t.Errorf("exposition missing request counter:\n%s", body)
	}
}
