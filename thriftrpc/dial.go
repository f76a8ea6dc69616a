// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"context"
	"net/http"
	"time"

	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// DialOption configures Dial and DialHTTP.
type DialOption func(*dialer)

type dialer struct {
	transFactory transport.Factory
	protoFactory protocol.Factory
	service      string
	timeout      time.Duration
	httpClient   *http.Client
	hook         CallHook
}

// WithDialTransport sets the layering over the socket. The default buffers
// it. It has no effect on DialHTTP.
func WithDialTransport(f transport.Factory) DialOption {
	return func(d *dialer) { d.transFactory = f }
}

// WithDialProtocol sets the protocol. The default is the strict binary
// protocol.
func WithDialProtocol(f protocol.Factory) DialOption {
	return func(d *dialer) { d.protoFactory = f }
}

// WithMultiplexed prefixes outgoing method names with service.
func WithMultiplexed(service string) DialOption {
	return func(d *dialer) { d.service = service }
}

// WithTimeout bounds connecting and each socket read. For DialHTTP it is the
// timeout of the default HTTP client.
func WithTimeout(timeout time.Duration) DialOption {
	return func(d *dialer) { d.timeout = timeout }
}

// WithHTTPClient sets the client DialHTTP posts with.
func WithHTTPClient(c *http.Client) DialOption {
	return func(d *dialer) { d.httpClient = c }
}

// WithCallHook registers a hook on the returned client.
func WithCallHook(hook CallHook) DialOption {
	return func(d *dialer) { d.hook = hook }
}

func newDialer(opts []DialOption) *dialer {
	d := &dialer{
		transFactory: transport.BufferedFactory{},
		protoFactory: protocol.BinaryFactory{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *dialer) client(svc *ttype.ServiceDescriptor, t transport.Transport) *Client {
	p := d.protoFactory.GetProtocol(t)
	out := p
	if d.service != "" {
		out = protocol.NewMultiplexed(p, d.service)
	}
	c := NewClient(svc, p, out)
	c.hook = d.hook
	return c
}

// Dial connects to address and returns a client for svc. network is "tcp"
// or "unix".
func Dial(network, address string, svc *ttype.ServiceDescriptor, opts ...DialOption) (*Client, error) {
	d := newDialer(opts)
	var sockOpts []transport.SocketOption
	if d.timeout > 0 {
		sockOpts = append(sockOpts, transport.WithConnectTimeout(d.timeout), transport.WithReadTimeout(d.timeout))
	}
	sock := transport.NewSocket(network, address, sockOpts...)
	if err := sock.Open(); err != nil {
		return nil, err
	}
	t, err := d.transFactory.GetTransport(sock)
	if err != nil {
		sock.Close()
		return nil, err
	}
	return d.client(svc, t), nil
}

// DialHTTP returns a client that posts each call to url. No connection is
// made until the first call.
func DialHTTP(url string, svc *ttype.ServiceDescriptor, opts ...DialOption) *Client {
	d := newDialer(opts)
	hc := d.httpClient
	if hc == nil && d.timeout > 0 {
		hc = &http.Client{Timeout: d.timeout}
	}
	return d.client(svc, transport.NewHTTPClient(url, hc))
}

// ListenAndServe listens on address and serves proc until ctx is done.
func ListenAndServe(ctx context.Context, network, address string, proc MessageProcessor, opts ...ServerOption) error {
	return NewServer(proc, opts...).Serve(ctx, transport.NewServerSocket(network, address))
}
