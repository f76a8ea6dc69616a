// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/Query-farm/thriftrpc/thriftrpc"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

type endpoint struct {
	addr        string
	unix        string
	url         string
	framing     string
	multiplexed string
	timeout     time.Duration
}

func (e *endpoint) flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "TCP address host:port", Destination: &e.addr},
		&cli.StringFlag{Name: "unix", Usage: "Unix socket path", Destination: &e.unix},
		&cli.StringFlag{Name: "url", Usage: "HTTP endpoint, e.g. http://localhost:9090/thrift", Destination: &e.url},
		&cli.StringFlag{Name: "framing", Usage: "buffered, framed or zstd (sockets only)", Value: "buffered", Destination: &e.framing},
		&cli.StringFlag{Name: "multiplexed", Usage: "Prefix method names with this service name", Destination: &e.multiplexed},
		&cli.DurationFlag{Name: "timeout", Usage: "Connect and read timeout", Value: 30 * time.Second, Destination: &e.timeout},
	}
}

// dial connects a client for svc to whichever endpoint the flags name.
func (e *endpoint) dial(svc *ttype.ServiceDescriptor) (*thriftrpc.Client, error) {
	opts := []thriftrpc.DialOption{thriftrpc.WithTimeout(e.timeout)}
	if e.multiplexed != "" {
		opts = append(opts, thriftrpc.WithMultiplexed(e.multiplexed))
	}
	if e.url != "" {
		return thriftrpc.DialHTTP(e.url, svc, opts...), nil
	}
	network, address := "tcp", e.addr
	if e.unix != "" {
		network, address = "unix", e.unix
	}
	if address == "" {
		return nil, fmt.Errorf("one of --addr, --unix or --url is required")
	}
	factory, err := transport.FactoryByName(e.framing)
	if err != nil {
		return nil, err
	}
	return thriftrpc.Dial(network, address, svc, append(opts, thriftrpc.WithDialTransport(factory))...)
}

// headerHook copies fixed headers into every call's metadata.
type headerHook map[string]string

func (h headerHook) OnCallStart(ctx context.Context, info *thriftrpc.CallInfo) (context.Context, thriftrpc.HookToken) {
	for k, v := range h {
		info.Metadata[k] = v
	}
	return ctx, nil
}

func (headerHook) OnCallEnd(context.Context, thriftrpc.HookToken, *thriftrpc.CallInfo, error) {}

func callCommand() *cli.Command {
	var (
		ep      endpoint
		service string
		named   string
		headers cli.StringSlice
	)
	flags := append(ep.flags(),
		&cli.StringFlag{Name: "service", Aliases: []string{"s"}, Usage: "Service declaring the method", Destination: &service},
		&cli.StringFlag{Name: "args", Usage: "Arguments as one JSON object keyed by parameter name", Destination: &named},
		&cli.StringSliceFlag{Name: "header", Aliases: []string{"H"}, Usage: "HTTP header name=value (repeatable)", Destination: &headers},
	)
	return &cli.Command{
		Name:      "call",
		Usage:     "Call a method and print its result as JSON",
		ArgsUsage: "FILE METHOD [JSON_ARG...]",
		Flags:     flags,
		Action: func(c *cli.Context) error {
			mod, err := loadSchema(c)
			if err != nil {
				return err
			}
			svc, err := lookupService(mod, service)
			if err != nil {
				return err
			}
			if c.NArg() < 2 {
				return fmt.Errorf("call: missing method name")
			}
			m := svc.Method(c.Args().Get(1))
			if m == nil {
				return fmt.Errorf("%s has no method %q; it has %s",
					svc.QualifiedName(), c.Args().Get(1), strings.Join(svc.MethodNames(), ", "))
			}

			client, err := ep.dial(svc)
			if err != nil {
				return err
			}
			defer client.Close()
			if len(headers.Value()) > 0 {
				hook := headerHook{}
				for _, h := range headers.Value() {
					k, v, ok := strings.Cut(h, "=")
					if !ok {
						return fmt.Errorf("--header %q: want name=value", h)
					}
					hook[k] = v
				}
				client.SetCallHook(hook)
			}

			ctx, cancel := context.WithTimeout(c.Context, ep.timeout)
			defer cancel()

			var result any
			if named != "" {
				args, err := namedArgs(m, named)
				if err != nil {
					return err
				}
				result, err = client.CallNamed(ctx, m.Name, args)
				if err != nil {
					return reportCallError(c, err)
				}
			} else {
				args, err := positionalArgs(m, c.Args().Slice()[2:])
				if err != nil {
					return err
				}
				result, err = client.Call(ctx, m.Name, args...)
				if err != nil {
					return reportCallError(c, err)
				}
			}
			if m.Oneway || m.Void() {
				return nil
			}
			return printJSON(c.App.Writer, ttype.ToNative(result))
		},
	}
}

func positionalArgs(m *ttype.MethodSpec, raw []string) ([]any, error) {
	if len(raw) > len(m.Params) {
		return nil, fmt.Errorf("%s takes %d arguments, got %d", m.Name, len(m.Params), len(raw))
	}
	args := make([]any, len(raw))
	for i, s := range raw {
		var v any
		if err := jsonNumbers.UnmarshalFromString(s, &v); err != nil {
			// bare words are accepted for string parameters
			if m.Params[i].Type.Type != ttype.STRING || m.Params[i].Type.Binary {
				return nil, fmt.Errorf("argument %s: %w", m.Params[i].Name, err)
			}
			v = s
		}
		a, err := fromJSON(m.Params[i].Type, v)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", m.Params[i].Name, err)
		}
		args[i] = a
	}
	return args, nil
}

func namedArgs(m *ttype.MethodSpec, raw string) (map[string]any, error) {
	var obj map[string]any
	if err := jsonNumbers.UnmarshalFromString(raw, &obj); err != nil {
		return nil, fmt.Errorf("--args: %w", err)
	}
	args := make(map[string]any, len(obj))
	for name, v := range obj {
		f := m.Args.FieldByName(name)
		if f == nil {
			return nil, fmt.Errorf("%s has no parameter %q", m.Name, name)
		}
		a, err := fromJSON(f.Type, v)
		if err != nil {
			return nil, fmt.Errorf("argument %s: %w", name, err)
		}
		args[name] = a
	}
	return args, nil
}

// reportCallError prints a declared exception as JSON before failing.
func reportCallError(c *cli.Context, err error) error {
	var exc *ttype.Exception
	if errors.As(err, &exc) {
		_ = printJSON(c.App.Writer, map[string]any{
			"exception": exc.Descriptor().QualifiedName(),
			"value":     ttype.ToNative(exc),
		})
		return cli.Exit(fmt.Sprintf("%s raised %s", c.Args().Get(1), exc.Descriptor().QualifiedName()), 2)
	}
	return err
}
