// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package thriftotel provides OpenTelemetry instrumentation for thriftrpc
// processors and clients. It implements [thriftrpc.DispatchHook] and
// [thriftrpc.CallHook] to add distributed tracing and metrics.
//
// Usage:
//
//	proc := thriftrpc.NewProcessor(svc, handler)
//	thriftotel.InstrumentProcessor(proc, thriftotel.DefaultConfig())
//
//	client := thriftrpc.NewClient(svc, proto, proto)
//	thriftotel.InstrumentClient(client, thriftotel.DefaultConfig())
//
// Trace context crosses the wire in call metadata, so propagation works on
// transports that carry headers (HTTP).
package thriftotel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/Query-farm/thriftrpc/thriftrpc"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

const (
	instrumentationName = "thriftrpc"
	rpcSystem           = "apache_thrift"
)

// OtelConfig configures OpenTelemetry instrumentation.
type OtelConfig struct {
	// TracerProvider supplies the tracer. Defaults to otel.GetTracerProvider().
	TracerProvider trace.TracerProvider
	// MeterProvider supplies the meter. Defaults to otel.GetMeterProvider().
	MeterProvider metric.MeterProvider
	// Propagator moves trace context through call metadata.
	// Defaults to otel.GetTextMapPropagator().
	Propagator propagation.TextMapPropagator
	// EnableTracing enables span creation. Default true.
	EnableTracing bool
	// EnableMetrics enables counter and histogram recording. Default true.
	EnableMetrics bool
	// RecordExceptions calls RecordError on the span for failed calls.
	// Default true.
	RecordExceptions bool
	// ServiceName overrides the rpc.service attribute, which otherwise is
	// the name of the service being called.
	ServiceName string
	// CustomAttributes are added to every span.
	CustomAttributes []attribute.KeyValue
}

// DefaultConfig returns an OtelConfig with sensible defaults.
// TracerProvider, MeterProvider, and Propagator are resolved from the
// global OTel SDK at instrumentation time.
func DefaultConfig() OtelConfig {
	return OtelConfig{
		EnableTracing:    true,
		EnableMetrics:    true,
		RecordExceptions: true,
	}
}

func (cfg *OtelConfig) resolve() {
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}
	if cfg.Propagator == nil {
		cfg.Propagator = otel.GetTextMapPropagator()
	}
}

// DispatchHookSetter is satisfied by *thriftrpc.Processor and
// *thriftrpc.MultiplexedProcessor.
type DispatchHookSetter interface {
	SetDispatchHook(thriftrpc.DispatchHook)
}

// InstrumentProcessor installs a server-side hook on target.
func InstrumentProcessor(target DispatchHookSetter, cfg OtelConfig) {
	target.SetDispatchHook(NewDispatchHook(cfg))
}

// NewDispatchHook returns the server-side hook without installing it.
func NewDispatchHook(cfg OtelConfig) thriftrpc.DispatchHook {
	cfg.resolve()
	return &serverHook{instruments: newInstruments(cfg, "server")}
}

// InstrumentClient installs a client-side hook on client.
func InstrumentClient(client *thriftrpc.Client, cfg OtelConfig) {
	cfg.resolve()
	client.SetCallHook(&clientHook{instruments: newInstruments(cfg, "client")})
}

// instruments holds what both hook sides share.
type instruments struct {
	cfg               OtelConfig
	tracer            trace.Tracer
	requestCounter    metric.Int64Counter
	durationHistogram metric.Float64Histogram
}

func newInstruments(cfg OtelConfig, side string) instruments {
	in := instruments{
		cfg:    cfg,
		tracer: cfg.TracerProvider.Tracer(instrumentationName),
	}
	if cfg.EnableMetrics {
		meter := cfg.MeterProvider.Meter(instrumentationName)
		in.requestCounter, _ = meter.Int64Counter("rpc."+side+".requests",
			metric.WithUnit("{request}"),
			metric.WithDescription("Number of RPC requests"),
		)
		in.durationHistogram, _ = meter.Float64Histogram("rpc."+side+".duration",
			metric.WithUnit("s"),
			metric.WithDescription("Duration of RPC requests"),
		)
	}
	return in
}

func (in *instruments) serviceName(service string) string {
	if in.cfg.ServiceName != "" {
		return in.cfg.ServiceName
	}
	return service
}

func (in *instruments) record(ctx context.Context, start time.Time, service, method, outcome string, err error) {
	if !in.cfg.EnableMetrics {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", rpcSystem),
		attribute.String("rpc.service", in.serviceName(service)),
		attribute.String("rpc.method", method),
		attribute.String("status", status),
	}
	if outcome != "" {
		attrs = append(attrs, attribute.String("rpc.thrift.outcome", outcome))
	}
	metricAttrs := metric.WithAttributes(attrs...)
	if in.requestCounter != nil {
		in.requestCounter.Add(ctx, 1, metricAttrs)
	}
	if in.durationHistogram != nil {
		in.durationHistogram.Record(ctx, time.Since(start).Seconds(), metricAttrs)
	}
}

func (in *instruments) finish(span trace.Span, err error) {
	if span == nil || !span.IsRecording() {
		return
	}
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		if in.cfg.RecordExceptions {
			span.RecordError(err)
		}
		span.SetAttributes(attribute.String("rpc.thrift.error_type", errorType(err)))
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// errorType names a declared exception by its schema type and an
// application exception by its kind.
func errorType(err error) string {
	var exc *ttype.Exception
	if errors.As(err, &exc) {
		return exc.Descriptor().QualifiedName()
	}
	var ae *thriftrpc.ApplicationException
	if errors.As(err, &ae) {
		return ae.Type.String()
	}
	return fmt.Sprintf("%T", err)
}

// spanToken is the HookToken returned by the start callbacks.
type spanToken struct {
	span      trace.Span
	startTime time.Time
}

type serverHook struct {
	instruments
}

// OnDispatchStart extracts parent trace context and starts a server span.
func (h *serverHook) OnDispatchStart(ctx context.Context, info thriftrpc.DispatchInfo) (context.Context, thriftrpc.HookToken) {
	if h.cfg.Propagator != nil && info.TransportMetadata != nil {
		ctx = h.cfg.Propagator.Extract(ctx, propagation.MapCarrier(info.TransportMetadata))
	}

	if !h.cfg.EnableTracing {
		return ctx, &spanToken{startTime: time.Now()}
	}

	attrs := []attribute.KeyValue{
		attribute.String("rpc.system", rpcSystem),
		attribute.String("rpc.service", h.serviceName(info.Service)),
		attribute.String("rpc.method", info.Method),
		attribute.Int("rpc.thrift.seqid", int(info.SeqID)),
		attribute.Bool("rpc.thrift.oneway", info.Oneway),
		attribute.String("rpc.thrift.server_id", info.ServerID),
		attribute.String("rpc.thrift.request_id", info.RequestID),
	}
	attrs = append(attrs, h.cfg.CustomAttributes...)

	// HTTP only
	if v := info.TransportMetadata["remote_addr"]; v != "" {
		attrs = append(attrs, attribute.String("net.peer.ip", v))
	}
	if v := info.TransportMetadata["user-agent"]; v != "" {
		attrs = append(attrs, attribute.String("user_agent.original", v))
	}

	ctx, span := h.tracer.Start(ctx, "thriftrpc/"+info.Service+"."+info.Method,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(attrs...),
	)
	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnDispatchEnd records metrics and span attributes, then ends the span.
func (h *serverHook) OnDispatchEnd(ctx context.Context, token thriftrpc.HookToken, info thriftrpc.DispatchInfo, stats *thriftrpc.CallStatistics, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}

	var outcome string
	if stats != nil {
		outcome = stats.Outcome
	}
	h.record(ctx, st.startTime, info.Service, info.Method, outcome, err)

	if st.span != nil && st.span.IsRecording() && stats != nil {
		st.span.SetAttributes(
			attribute.String("rpc.thrift.outcome", stats.Outcome),
			attribute.Int64("rpc.thrift.input_bytes", stats.InputBytes),
			attribute.Int64("rpc.thrift.output_bytes", stats.OutputBytes),
		)
	}
	h.finish(st.span, err)
}

type clientHook struct {
	instruments
}

// OnCallStart starts a client span and injects its context into the call
// metadata.
func (h *clientHook) OnCallStart(ctx context.Context, info *thriftrpc.CallInfo) (context.Context, thriftrpc.HookToken) {
	var span trace.Span
	if h.cfg.EnableTracing {
		attrs := []attribute.KeyValue{
			attribute.String("rpc.system", rpcSystem),
			attribute.String("rpc.service", h.serviceName(info.Service)),
			attribute.String("rpc.method", info.Method),
			attribute.Int("rpc.thrift.seqid", int(info.SeqID)),
			attribute.Bool("rpc.thrift.oneway", info.Oneway),
		}
		attrs = append(attrs, h.cfg.CustomAttributes...)
		ctx, span = h.tracer.Start(ctx, "thriftrpc/"+info.Service+"."+info.Method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(attrs...),
		)
	}
	if h.cfg.Propagator != nil && info.Metadata != nil {
		h.cfg.Propagator.Inject(ctx, propagation.MapCarrier(info.Metadata))
	}
	return ctx, &spanToken{span: span, startTime: time.Now()}
}

// OnCallEnd records metrics and ends the client span.
func (h *clientHook) OnCallEnd(ctx context.Context, token thriftrpc.HookToken, info *thriftrpc.CallInfo, err error) {
	st, ok := token.(*spanToken)
	if !ok {
		return
	}
	h.record(ctx, st.startTime, info.Service, info.Method, "", err)
	h.finish(st.span, err)
}
