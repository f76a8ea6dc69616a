// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
)

// ErrorKind classifies a TransportError.
type ErrorKind int

const (
	Unknown ErrorKind = iota
	NotOpen
	AlreadyOpen
	TimedOut
	EndOfFile
)

func (k ErrorKind) String() string {
	switch k {
	case NotOpen:
		return "not open"
	case AlreadyOpen:
		return "already open"
	case TimedOut:
		return "timed out"
	case EndOfFile:
		return "end of file"
	}
	return "unknown"
}

// ErrTransport matches any *TransportError with errors.Is.
var ErrTransport = &TransportError{Kind: -1}

// TransportError is a failure of the underlying byte stream.
type TransportError struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// NewError returns a TransportError of kind k.
func NewError(k ErrorKind, format string, args ...any) *TransportError {
	return &TransportError{Kind: k, Msg: fmt.Sprintf(format, args...)}
}

func (e *TransportError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Err != nil {
		return fmt.Sprintf("transport: %s: %v", msg, e.Err)
	}
	return "transport: " + msg
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is matches ErrTransport, or another *TransportError with the same Kind.
func (e *TransportError) Is(target error) bool {
	t, ok := target.(*TransportError)
	if !ok {
		return false
	}
	return t.Kind == -1 || t.Kind == e.Kind
}

// Wrap classifies err as a *TransportError. nil stays nil and an existing
// *TransportError is returned as is.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	var te *TransportError
	if errors.As(err, &te) {
		return err
	}
	var ne net.Error
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return &TransportError{Kind: EndOfFile, Err: err}
	case errors.Is(err, os.ErrDeadlineExceeded), errors.As(err, &ne) && ne.Timeout():
		return &TransportError{Kind: TimedOut, Err: err}
	case errors.Is(err, net.ErrClosed), errors.Is(err, os.ErrClosed):
		return &TransportError{Kind: NotOpen, Err: err}
	}
	return &TransportError{Kind: Unknown, Err: err}
}

// IsClosed reports whether err means the peer went away: end of stream, a
// closed connection, a reset or a broken pipe.
func IsClosed(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, &TransportError{Kind: EndOfFile}) || errors.Is(err, &TransportError{Kind: NotOpen}) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "EOF")
}
