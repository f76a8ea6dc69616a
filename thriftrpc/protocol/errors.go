// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// ErrorKind classifies a ProtocolError.
type ErrorKind int

const (
	Unknown ErrorKind = iota
	InvalidData
	NegativeSize
	SizeLimit
	BadVersion
	NotImplemented
	DepthLimit
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidData:
		return "invalid data"
	case NegativeSize:
		return "negative size"
	case SizeLimit:
		return "size limit exceeded"
	case BadVersion:
		return "bad version"
	case NotImplemented:
		return "not implemented"
	case DepthLimit:
		return "depth limit exceeded"
	}
	return "unknown"
}

// ErrProtocol matches any *ProtocolError with errors.Is.
var ErrProtocol = &ProtocolError{Kind: -1}

// ProtocolError reports malformed or unencodable data.
type ProtocolError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

func newError(k ErrorKind, format string, args ...any) *ProtocolError {
	return &ProtocolError{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func (e *ProtocolError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("protocol: %s: %v", msg, e.Err)
	}
	return "protocol: " + msg
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// Is matches ErrProtocol, or another *ProtocolError with the same Kind.
func (e *ProtocolError) Is(target error) bool {
	t, ok := target.(*ProtocolError)
	if !ok {
		return false
	}
	return t.Kind == -1 || t.Kind == e.Kind
}
