// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package transport provides the byte streams protocols read from and
// write to: in-memory buffers, buffered and framed wrappers, zstd-compressed
// frames, TCP and unix sockets, and an HTTP client.
package transport

import (
	"fmt"
	"io"
	"net"
	"time"
)

// Transport is a bidirectional byte stream. Writes may be buffered until
// Flush.
type Transport interface {
	io.ReadWriteCloser
	Flush() error
	Open() error
	IsOpen() bool
}

// ServerTransport accepts inbound connections.
type ServerTransport interface {
	Listen() error
	Accept() (Transport, error)
	Close() error
	Addr() net.Addr
}

// Factory wraps a raw connection transport, typically once per accepted
// connection.
type Factory interface {
	GetTransport(trans Transport) (Transport, error)
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(trans Transport) (Transport, error)

func (f FactoryFunc) GetTransport(trans Transport) (Transport, error) { return f(trans) }

// FactoryByName returns the default factory for a framing name: "buffered"
// (or empty), "framed" or "zstd".
func FactoryByName(name string) (Factory, error) {
	switch name {
	case "", "buffered":
		return BufferedFactory{}, nil
	case "framed":
		return FramedFactory{}, nil
	case "zstd":
		return ZstdFactory{}, nil
	}
	return nil, fmt.Errorf("unknown framing %q (want buffered, framed or zstd)", name)
}

// Wrapper is implemented by transports layered over another transport.
type Wrapper interface {
	Underlying() Transport
}

// Deadliner is implemented by transports whose reads can time out.
type Deadliner interface {
	SetReadDeadline(t time.Time) error
}

// SetReadDeadline applies t to the first transport in the wrapper chain that
// supports deadlines. It reports false when none does.
func SetReadDeadline(trans Transport, t time.Time) (bool, error) {
	for trans != nil {
		if d, ok := trans.(Deadliner); ok {
			return true, d.SetReadDeadline(t)
		}
		w, ok := trans.(Wrapper)
		if !ok {
			break
		}
		trans = w.Underlying()
	}
	return false, nil
}

// ReadFull reads exactly n bytes. A short read is a *TransportError of kind
// EndOfFile.
func ReadFull(r io.Reader, n int) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, Wrap(err)
	}
	return buf, nil
}
