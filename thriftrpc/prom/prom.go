// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package thriftprom records Prometheus metrics for thriftrpc dispatch.
package thriftprom

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Query-farm/thriftrpc/thriftrpc"
)

const namespace = "thriftrpc"

// Metrics is a thriftrpc.DispatchHook backed by Prometheus collectors.
type Metrics struct {
	gatherer prometheus.Gatherer

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	bytes    *prometheus.CounterVec
	inFlight *prometheus.GaugeVec
}

// New registers the dispatch collectors with reg. A nil reg uses a fresh
// registry, which Handler then serves.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Number of dispatched calls by outcome",
		}, []string{"service", "method", "outcome"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "duration_seconds",
			Help:      "Time spent dispatching a call, including the reply write",
			Buckets:   prometheus.DefBuckets,
		}, []string{"service", "method"}),
		bytes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "bytes_total",
			Help:      "Wire bytes read and written by dispatched calls",
		}, []string{"service", "direction"}),
		inFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "in_flight",
			Help:      "Calls currently being dispatched",
		}, []string{"service"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

type token struct {
	start time.Time
}

func (m *Metrics) OnDispatchStart(ctx context.Context, info thriftrpc.DispatchInfo) (context.Context, thriftrpc.HookToken) {
	m.inFlight.WithLabelValues(info.Service).Inc()
	return ctx, token{start: time.Now()}
}

func (m *Metrics) OnDispatchEnd(_ context.Context, tok thriftrpc.HookToken, info thriftrpc.DispatchInfo, stats *thriftrpc.CallStatistics, _ error) {
	m.inFlight.WithLabelValues(info.Service).Dec()

	outcome := "unknown"
	if stats != nil {
		outcome = stats.Outcome
		m.bytes.WithLabelValues(info.Service, "in").Add(float64(stats.InputBytes))
		m.bytes.WithLabelValues(info.Service, "out").Add(float64(stats.OutputBytes))
	}
	m.requests.WithLabelValues(info.Service, info.Method, outcome).Inc()
	if t, ok := tok.(token); ok {
		m.duration.WithLabelValues(info.Service, info.Method).Observe(time.Since(t.start).Seconds())
	}
}
