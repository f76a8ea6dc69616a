// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package idl parses Thrift schema text into a [Document].
//
// Parsing happens in two passes. [Parse] turns source text into an
// unresolved syntax tree and reports malformed input as a *SyntaxError.
// [Resolve] then binds type references (including forward and self
// references), infers enum values, follows typedefs and validates constant
// values, reporting problems as a *SemanticError. A [Loader] combines both
// and resolves include headers through a search path:
//
//	loader := idl.NewLoader("/usr/share/thrift")
//	doc, err := loader.Load("addressbook.thrift")
//
// [Format] renders a document back to schema text.
package idl
