// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
)

// Server accepts connections and runs one goroutine per connection, each
// with its own transports and protocols, feeding messages to a shared
// MessageProcessor.
type Server struct {
	proc         MessageProcessor
	transFactory transport.Factory
	protoFactory protocol.Factory

	mu       sync.Mutex
	listener transport.ServerTransport
	conns    map[transport.Transport]struct{}
	wg       sync.WaitGroup
	closed   bool
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithTransportFactory sets the factory layering each accepted connection.
// The default buffers the connection.
func WithTransportFactory(f transport.Factory) ServerOption {
	return func(s *Server) { s.transFactory = f }
}

// WithProtocolFactory sets the protocol used on each connection. The
// default is the strict binary protocol.
func WithProtocolFactory(f protocol.Factory) ServerOption {
	return func(s *Server) { s.protoFactory = f }
}

// WithServerID sets the server identifier on processors that accept one.
func WithServerID(id string) ServerOption {
	return func(s *Server) {
		if p, ok := s.proc.(interface{ SetServerID(string) }); ok {
			p.SetServerID(id)
		}
	}
}

// WithDispatchHook sets the dispatch hook on processors that accept one.
func WithDispatchHook(hook DispatchHook) ServerOption {
	return func(s *Server) {
		if p, ok := s.proc.(interface{ SetDispatchHook(DispatchHook) }); ok {
			p.SetDispatchHook(hook)
		}
	}
}

// NewServer returns a server dispatching to proc.
func NewServer(proc MessageProcessor, opts ...ServerOption) *Server {
	s := &Server{
		proc:         proc,
		transFactory: transport.BufferedFactory{},
		protoFactory: protocol.BinaryFactory{},
		conns:        make(map[transport.Transport]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Serve listens on listener and serves every accepted connection until
// Shutdown is called or ctx is done.
func (s *Server) Serve(ctx context.Context, listener transport.ServerTransport) error {
	if err := listener.Listen(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		listener.Close()
		return nil
	}
	s.listener = listener
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { s.Shutdown(context.Background()) })
	defer stop()

	for {
		trans, err := listener.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed {
				return nil
			}
			return err
		}
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			trans.Close()
			return nil
		}
		s.wg.Add(1)
		s.mu.Unlock()
		go func() {
			defer s.wg.Done()
			_ = s.ServeConn(ctx, trans)
		}()
	}
}

// ServeConn runs the message loop on one connection until the peer goes
// away or an error tears the connection down. The connection is closed on
// return.
func (s *Server) ServeConn(ctx context.Context, trans transport.Transport) error {
	if !s.track(trans) {
		trans.Close()
		return nil
	}
	defer s.untrack(trans)
	defer trans.Close()

	layered, err := s.transFactory.GetTransport(transport.NewCounting(trans))
	if err != nil {
		slog.Error("transport setup failed", "err", err)
		return err
	}
	p := s.protoFactory.GetProtocol(layered)
	in := &seqTracker{Protocol: p}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		err := s.proc.Process(ctx, in, p)
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if transport.IsClosed(err) {
			return nil
		}
		slog.Error("serve loop error", "err", err)
		return err
	}
}

// RunStdio serves a single connection over stdin and stdout.
func (s *Server) RunStdio(ctx context.Context) error {
	// Writes to a closed pipe must return errors rather than kill the process.
	signal.Ignore(syscall.SIGPIPE)

	if isTerminal(os.Stdin) || isTerminal(os.Stdout) {
		fmt.Fprintln(os.Stderr,
			"WARNING: This process speaks Thrift on stdin/stdout "+
				"and is not intended to be run interactively.")
	}
	return s.ServeConn(ctx, transport.NewStdio())
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// Shutdown closes the listener and every open connection, then waits for
// connection goroutines to finish or ctx to be done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	var err error
	if s.listener != nil {
		err = s.listener.Close()
	}
	for c := range s.conns {
		c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) track(t transport.Transport) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[t] = struct{}{}
	return true
}

func (s *Server) untrack(t transport.Transport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conns, t)
}

// seqTracker logs sequence ids that do not advance on one connection.
type seqTracker struct {
	protocol.Protocol
	last int32
	seen bool
}

func (t *seqTracker) ReadMessageBegin() (string, protocol.MessageType, int32, error) {
	name, typ, seqid, err := t.Protocol.ReadMessageBegin()
	if err != nil {
		return name, typ, seqid, err
	}
	if t.seen && seqid <= t.last && seqid != 0 {
		slog.Debug("sequence id did not advance", "method", name, "last", t.last, "seqid", seqid)
	}
	t.last, t.seen = seqid, true
	return name, typ, seqid, nil
}
