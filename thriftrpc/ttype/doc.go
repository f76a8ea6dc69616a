// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package ttype holds the runtime type system: wire type codes, descriptors
// for structs, enums and services, and the dynamic values the protocol codec
// reads and writes.
//
// Descriptors are built in two phases so that types can refer to themselves
// and to types declared later: a descriptor is first declared with
// [NewStructDescriptor] and populated afterwards with
// [StructDescriptor.SetFields]. Once populated, descriptors are immutable
// and may be shared freely.
//
// Values use a small closed set of Go representations:
//
//	BOOL    bool
//	BYTE    int8
//	I16     int16
//	I32     int32 (also enums)
//	I64     int64
//	DOUBLE  float64
//	STRING  string, or []byte for binary fields and invalid UTF-8
//	STRUCT  *Struct (*Exception for exceptions used as errors)
//	LIST    []any
//	SET     Set
//	MAP     Map
//
// Values compare with [Equal], which is structural: two independently
// loaded copies of one schema produce values that compare equal.
package ttype
