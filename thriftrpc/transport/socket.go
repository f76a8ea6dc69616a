// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"net"
	"sync"
	"time"
)

// Socket is a stream connection over TCP or a unix domain socket. Close may
// be called from another goroutine to interrupt a blocked read.
type Socket struct {
	network string
	address string

	mu   sync.Mutex
	conn net.Conn

	connectTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	deadline       time.Time
}

// SocketOption configures a Socket.
type SocketOption func(*Socket)

// WithConnectTimeout bounds Open.
func WithConnectTimeout(d time.Duration) SocketOption {
	return func(s *Socket) { s.connectTimeout = d }
}

// WithReadTimeout bounds every individual read.
func WithReadTimeout(d time.Duration) SocketOption {
	return func(s *Socket) { s.readTimeout = d }
}

// WithWriteTimeout bounds every individual write.
func WithWriteTimeout(d time.Duration) SocketOption {
	return func(s *Socket) { s.writeTimeout = d }
}

// NewSocket returns an unopened socket for network ("tcp" or "unix") and
// address.
func NewSocket(network, address string, opts ...SocketOption) *Socket {
	s := &Socket{network: network, address: address}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewSocketConn wraps an established connection.
func NewSocketConn(conn net.Conn, opts ...SocketOption) *Socket {
	s := &Socket{conn: conn}
	if addr := conn.RemoteAddr(); addr != nil {
		s.network, s.address = addr.Network(), addr.String()
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Socket) Open() error {
	if s.Conn() != nil {
		return NewError(AlreadyOpen, "socket to %s already open", s.address)
	}
	conn, err := net.DialTimeout(s.network, s.address, s.connectTimeout)
	if err != nil {
		return &TransportError{Kind: NotOpen, Msg: "dial " + s.address, Err: err}
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

func (s *Socket) IsOpen() bool { return s.Conn() != nil }

// Conn returns the underlying connection, nil before Open and after Close.
func (s *Socket) Conn() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn
}

// SetReadDeadline sets an absolute deadline for subsequent reads. The zero
// time clears it. A per-read timeout still applies when it is earlier.
func (s *Socket) SetReadDeadline(t time.Time) error {
	s.deadline = t
	return nil
}

func (s *Socket) Read(p []byte) (int, error) {
	conn := s.Conn()
	if conn == nil {
		return 0, NewError(NotOpen, "socket not open")
	}
	d := s.deadline
	if s.readTimeout > 0 {
		if t := time.Now().Add(s.readTimeout); d.IsZero() || t.Before(d) {
			d = t
		}
	}
	if err := conn.SetReadDeadline(d); err != nil {
		return 0, Wrap(err)
	}
	n, err := conn.Read(p)
	return n, Wrap(err)
}

func (s *Socket) Write(p []byte) (int, error) {
	conn := s.Conn()
	if conn == nil {
		return 0, NewError(NotOpen, "socket not open")
	}
	if s.writeTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
			return 0, Wrap(err)
		}
	}
	n, err := conn.Write(p)
	return n, Wrap(err)
}

func (s *Socket) Flush() error { return nil }

func (s *Socket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// ServerSocket listens for stream connections.
type ServerSocket struct {
	network  string
	address  string
	listener net.Listener
	opts     []SocketOption
}

// NewServerSocket returns a listener for network and address. opts apply to
// every accepted Socket.
func NewServerSocket(network, address string, opts ...SocketOption) *ServerSocket {
	return &ServerSocket{network: network, address: address, opts: opts}
}

// NewServerSocketListener wraps an existing listener.
func NewServerSocketListener(l net.Listener, opts ...SocketOption) *ServerSocket {
	return &ServerSocket{network: l.Addr().Network(), address: l.Addr().String(), listener: l, opts: opts}
}

func (s *ServerSocket) Listen() error {
	if s.listener != nil {
		return nil
	}
	l, err := net.Listen(s.network, s.address)
	if err != nil {
		return &TransportError{Kind: NotOpen, Msg: "listen " + s.address, Err: err}
	}
	s.listener = l
	return nil
}

func (s *ServerSocket) Accept() (Transport, error) {
	if s.listener == nil {
		return nil, NewError(NotOpen, "server socket not listening")
	}
	conn, err := s.listener.Accept()
	if err != nil {
		return nil, Wrap(err)
	}
	return NewSocketConn(conn, s.opts...), nil
}

// Addr returns the bound address, nil before Listen.
func (s *ServerSocket) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *ServerSocket) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}
