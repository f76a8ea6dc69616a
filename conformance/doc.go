// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package conformance provides the fixtures for the thriftrpc interop
// conformance suite. It declares a Conformance service whose methods touch
// every wire type: scalars, binary, enums, containers, nested structs,
// unions, defaults, declared exceptions, application exceptions and oneway
// calls.
//
// Servers register the reference implementation with [NewProcessor].
// Clients, including ones written against another Thrift stack, are checked
// with [Run], which drives every [Case] through a [thriftrpc.Client] and
// reports the outcome of each.
package conformance
