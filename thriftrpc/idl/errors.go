// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package idl

import "fmt"

// SyntaxErrorKind tells whether a SyntaxError came from the lexer or the grammar.
type SyntaxErrorKind int

const (
	LexerError SyntaxErrorKind = iota
	GrammarError
)

func (k SyntaxErrorKind) String() string {
	if k == LexerError {
		return "lexer"
	}
	return "grammar"
}

// Sentinels for use with errors.Is.
var (
	ErrSyntax   = &SyntaxError{}
	ErrSemantic = &SemanticError{}
)

// SyntaxError reports malformed schema text.
type SyntaxError struct {
	Kind SyntaxErrorKind
	Pos  Pos
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s: %s error: %s", e.Pos, e.Kind, e.Msg)
}

// Is supports errors.Is by matching any *SyntaxError target.
func (e *SyntaxError) Is(target error) bool {
	_, ok := target.(*SyntaxError)
	return ok
}

// SemanticError reports well-formed schema text that is invalid: undefined
// types, duplicate field ids, mistyped constants, dead or circular includes.
type SemanticError struct {
	Pos Pos
	Msg string
	Err error
}

func (e *SemanticError) Error() string {
	if e.Pos.Line == 0 && e.Pos.File == "" {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", e.Pos, e.Msg)
}

// Is supports errors.Is by matching any *SemanticError target.
func (e *SemanticError) Is(target error) bool {
	_, ok := target.(*SemanticError)
	return ok
}

func (e *SemanticError) Unwrap() error { return e.Err }

// Semanticf builds a SemanticError at pos.
func Semanticf(pos Pos, format string, args ...any) *SemanticError {
	return &SemanticError{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
