// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// Client calls the methods of one service over a protocol pair. Calls are
// serialized, so a Client may be shared by goroutines.
//
// When ctx carries a deadline and the input transport supports deadlines,
// the reply read is bounded by it and fails with a TimedOut TransportError.
// After a failure mid-message the connection is out of step with the
// server: later calls fail with ErrClientBroken and the client should be
// closed.
type Client struct {
	mu    sync.Mutex
	svc   *ttype.ServiceDescriptor
	in    protocol.Protocol
	out   protocol.Protocol
	seqid int32
	hook  CallHook

	// broken holds the failure that left the connection out of step.
	broken error
}

// NewClient returns a client for svc. out may be nil or equal to in.
func NewClient(svc *ttype.ServiceDescriptor, in, out protocol.Protocol) *Client {
	if out == nil {
		out = in
	}
	return &Client{svc: svc, in: in, out: out}
}

// SetCallHook registers a hook invoked around each call.
func (c *Client) SetCallHook(hook CallHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hook = hook
}

// Service returns the descriptor of the called service.
func (c *Client) Service() *ttype.ServiceDescriptor { return c.svc }

// Close closes the input and output transports.
func (c *Client) Close() error {
	err := c.in.Transport().Close()
	if c.out.Transport() != c.in.Transport() {
		if oerr := c.out.Transport().Close(); err == nil {
			err = oerr
		}
	}
	return err
}

func (c *Client) method(name string) (*ttype.MethodSpec, error) {
	m := c.svc.Method(name)
	if m == nil {
		return nil, NewApplicationException(UnknownMethod, "%s has no method %q", c.svc.Name, name)
	}
	return m, nil
}

// Call invokes method with positional arguments in declaration order. A nil
// argument leaves the parameter unset. Declared exceptions are returned as
// *ttype.Exception, framework failures as *ApplicationException.
func (c *Client) Call(ctx context.Context, method string, args ...any) (any, error) {
	m, err := c.method(method)
	if err != nil {
		return nil, err
	}
	if len(args) > len(m.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", m.FullName(), len(m.Params), len(args))
	}
	s := ttype.New(m.Args)
	for i, a := range args {
		if a != nil {
			s.SetID(m.Params[i].ID, a)
		}
	}
	return c.call(ctx, m, s)
}

// CallNamed invokes method with arguments keyed by parameter name.
func (c *Client) CallNamed(ctx context.Context, method string, args map[string]any) (any, error) {
	m, err := c.method(method)
	if err != nil {
		return nil, err
	}
	s := ttype.New(m.Args)
	for name, a := range args {
		f := m.Args.FieldByName(name)
		if f == nil {
			return nil, fmt.Errorf("%s has no parameter %q", m.FullName(), name)
		}
		if a != nil {
			s.SetID(f.ID, a)
		}
	}
	return c.call(ctx, m, s)
}

// CallArgs invokes method with a prebuilt argument struct.
func (c *Client) CallArgs(ctx context.Context, method string, args *ttype.Struct) (any, error) {
	m, err := c.method(method)
	if err != nil {
		return nil, err
	}
	if !ttype.SameType(args.Descriptor(), m.Args) {
		return nil, fmt.Errorf("%s: argument struct is %s, want %s", m.FullName(), args.Descriptor(), m.Args)
	}
	return c.call(ctx, m, args)
}

func (c *Client) nextSeqID() int32 {
	id := c.seqid
	if c.seqid == math.MaxInt32 {
		c.seqid = 0
	} else {
		c.seqid++
	}
	return id
}

func (c *Client) call(ctx context.Context, m *ttype.MethodSpec, args *ttype.Struct) (result any, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken != nil {
		return nil, fmt.Errorf("%w: %w", ErrClientBroken, c.broken)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seqid := c.nextSeqID()
	info := &CallInfo{
		Service:  c.svc.Name,
		Method:   m.Name,
		SeqID:    seqid,
		Oneway:   m.Oneway,
		Metadata: make(map[string]string),
	}
	if c.hook != nil {
		var (
			token  HookToken
			active bool
		)
		ctx, token, active = callStart(c.hook, ctx, info)
		if active {
			defer func() { callEnd(c.hook, ctx, token, info, err) }()
		}
	}
	prepareTransport(c.out.Transport(), ctx, info.Metadata)

	// Bad arguments fail here, before anything reaches the wire.
	if _, err := protocol.Serialize(args); err != nil {
		return nil, &protocol.ProtocolError{Kind: protocol.InvalidData, Msg: m.FullName(), Err: err}
	}
	if err := c.send(m, seqid, args); err != nil {
		c.broken = err
		return nil, err
	}
	if m.Oneway {
		return nil, nil
	}
	if dl, ok := ctx.Deadline(); ok {
		if set, err := transport.SetReadDeadline(c.in.Transport(), dl); err != nil {
			return nil, err
		} else if set {
			defer transport.SetReadDeadline(c.in.Transport(), time.Time{})
		}
	}
	result, err = c.recv(m, seqid)
	if err != nil && !isRemoteError(err) {
		c.broken = err
	}
	return result, err
}

// ErrClientBroken is returned by calls on a client whose connection was
// left out of step by an earlier failure.
var ErrClientBroken = errors.New("thriftrpc: client connection is out of step")

// isRemoteError reports whether err was delivered in a complete reply.
func isRemoteError(err error) bool {
	var (
		ae  *ApplicationException
		exc *ttype.Exception
	)
	return errors.As(err, &ae) || errors.As(err, &exc)
}

func (c *Client) send(m *ttype.MethodSpec, seqid int32, args *ttype.Struct) error {
	if err := c.out.WriteMessageBegin(m.Name, protocol.CALL, seqid); err != nil {
		return err
	}
	if err := protocol.WriteStruct(c.out, m.Args, args); err != nil {
		return err
	}
	if err := c.out.WriteMessageEnd(); err != nil {
		return err
	}
	return c.out.Flush()
}

func (c *Client) recv(m *ttype.MethodSpec, seqid int32) (any, error) {
	name, typ, rseqid, err := c.in.ReadMessageBegin()
	if err != nil {
		return nil, err
	}
	switch {
	case typ == protocol.EXCEPTION:
		ae, err := ReadApplicationException(c.in)
		if err != nil {
			return nil, err
		}
		if err := c.in.ReadMessageEnd(); err != nil {
			return nil, err
		}
		return nil, ae
	case typ != protocol.REPLY:
		if err := skipMessage(c.in); err != nil {
			return nil, err
		}
		return nil, NewApplicationException(InvalidMessageType, "%s: unexpected message type %s", m.Name, typ)
	case name != m.Name:
		if err := skipMessage(c.in); err != nil {
			return nil, err
		}
		return nil, NewApplicationException(WrongMethodName, "%s: reply for %q", m.Name, name)
	}
	if rseqid != seqid {
		slog.Warn("sequence id mismatch", "method", m.Name, "want", seqid, "got", rseqid)
	}

	res, err := protocol.ReadStruct(c.in, m.Result)
	if err != nil {
		return nil, err
	}
	if err := c.in.ReadMessageEnd(); err != nil {
		return nil, err
	}
	if !m.Void() {
		if v, ok := res.GetID(0); ok {
			return v, nil
		}
	}
	for _, f := range m.Throws {
		v, ok := res.GetID(f.ID)
		if !ok {
			continue
		}
		if exc, ok := v.(*ttype.Exception); ok {
			return nil, exc
		}
		return nil, ttype.AsException(v.(*ttype.Struct))
	}
	if !m.Void() {
		return nil, NewApplicationException(MissingResult, "%s failed: unknown result", m.Name)
	}
	return nil, nil
}

// prepareTransport passes the call context and hook metadata to transports
// that carry them, such as HTTPClient.
func prepareTransport(t transport.Transport, ctx context.Context, md map[string]string) {
	for t != nil {
		if cs, ok := t.(interface{ SetContext(context.Context) }); ok {
			cs.SetContext(ctx)
		}
		if hs, ok := t.(interface{ SetRequestHeader(key, value string) }); ok {
			for k, v := range md {
				hs.SetRequestHeader(k, v)
			}
		}
		w, ok := t.(transport.Wrapper)
		if !ok {
			return
		}
		t = w.Underlying()
	}
}
