// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package thriftrpc implements Apache Thrift RPC clients and servers driven
// by schemas loaded at runtime, with no generated code.
//
// A schema is compiled from Thrift IDL with the compile package into
// descriptors (see the ttype package). Values travel as canonical Go values:
// integers as their sized Go types, strings as string (or []byte when the
// bytes are not UTF-8), lists as []any, sets as [ttype.Set], maps as
// [ttype.Map] and structs as *[ttype.Struct].
//
// # Handlers
//
// A [Processor] dispatches the methods of one service to a [Handler]. Bind
// handlers either as a [HandlerMap] of [MethodFunc] values or with
// [ReflectHandler], which maps the schema method get_phones to the Go
// method GetPhones and converts decoded arguments to its parameter types.
//
// Handler errors are reported to the caller by kind:
//
//   - a *ttype.Exception matching a declared throws field is sent in the
//     reply as that exception;
//   - an *[ApplicationException] is sent as an EXCEPTION message;
//   - any other error or a panic is sent as an InternalError and the
//     connection is closed.
//
// [MultiplexedProcessor] serves several services on one connection using
// the "Service:method" naming convention.
//
// # Transports
//
// [Server] accepts connections from a transport.ServerTransport, wraps each
// in its transport factory (buffered, framed or zstd) and runs the message
// loop. [Server.RunStdio] serves a single connection over stdin and stdout
// for subprocess workers.
//
// [HTTPServer] exposes a processor over HTTP with the following routes
// (default prefix /thrift):
//
//	POST /thrift           one message per request, 204 for oneway calls
//	GET  /thrift           HTML landing page
//	GET  /thrift/api       HTML method reference
//	GET  /thrift/describe  Arrow IPC describe stream
//
// Request headers reach handlers and hooks as call metadata.
//
// # Hooks
//
// [DispatchHook] and [CallHook] observe every server dispatch and client
// call. The otel and prom subpackages implement them for OpenTelemetry and
// Prometheus.
package thriftrpc
