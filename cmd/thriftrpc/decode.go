// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Query-farm/thriftrpc/thriftrpc"
	"github.com/Query-farm/thriftrpc/thriftrpc/describe"
	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

func decodeCommand() *cli.Command {
	var (
		structName string
		service    string
		input      string
		framing    string
		arrowOut   string
	)
	return &cli.Command{
		Name:  "decode",
		Usage: "Decode binary-protocol structs or messages to JSON",
		Description: "Reads --input (default stdin) until it is exhausted. With --struct each value is\n" +
			"a bare struct; otherwise each value is a message whose body is decoded with\n" +
			"the method's argument or result struct from --service.",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "struct", Usage: "Decode bare values of this struct", Destination: &structName},
			&cli.StringFlag{Name: "service", Aliases: []string{"s"}, Usage: "Service whose messages are decoded", Destination: &service},
			&cli.StringFlag{Name: "input", Aliases: []string{"i"}, Usage: "Input file", Destination: &input},
			&cli.StringFlag{Name: "framing", Usage: "none, framed or zstd", Value: "none", Destination: &framing},
			&cli.StringFlag{Name: "arrow", Usage: "With --struct, write an Arrow IPC stream to this file instead of JSON", Destination: &arrowOut},
		},
		Action: func(c *cli.Context) error {
			mod, err := loadSchema(c)
			if err != nil {
				return err
			}

			var r io.Reader = os.Stdin
			if input != "" {
				f, err := os.Open(input)
				if err != nil {
					return err
				}
				defer f.Close()
				r = f
			}
			data, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			raw := transport.NewMemoryBufferWith(data)
			framed, err := wrapFraming(raw, framing)
			if err != nil {
				return err
			}
			counted := transport.NewCounting(framed)
			p := protocol.NewBinary(counted, nil)

			if structName != "" {
				desc := mod.Struct(structName)
				if desc == nil {
					return fmt.Errorf("no struct %q in %s", structName, mod.Path)
				}
				values, err := decodeStructs(p, counted, desc)
				if err != nil {
					return err
				}
				if arrowOut != "" {
					f, err := os.Create(arrowOut)
					if err != nil {
						return err
					}
					defer f.Close()
					return describe.WriteRecords(f, desc, values)
				}
				for _, v := range values {
					if err := printJSON(c.App.Writer, ttype.ToNative(v)); err != nil {
						return err
					}
				}
				return nil
			}

			svc, err := lookupService(mod, service)
			if err != nil {
				return err
			}
			for {
				before := counted.BytesRead()
				msg, err := decodeMessage(p, svc)
				if err != nil {
					if atEnd(err) && counted.BytesRead() == before {
						return nil
					}
					return err
				}
				if err := printJSON(c.App.Writer, msg); err != nil {
					return err
				}
			}
		},
	}
}

func wrapFraming(t transport.Transport, framing string) (transport.Transport, error) {
	switch framing {
	case "", "none", "buffered":
		return t, nil
	case "framed":
		return transport.NewFramed(t, 0), nil
	case "zstd":
		return transport.ZstdFactory{}.GetTransport(t)
	}
	return nil, fmt.Errorf("unknown framing %q (want none, framed or zstd)", framing)
}

func atEnd(err error) bool {
	return errors.Is(err, &transport.TransportError{Kind: transport.EndOfFile})
}

func decodeStructs(p protocol.Protocol, counted *transport.Counting, desc *ttype.StructDescriptor) ([]*ttype.Struct, error) {
	var values []*ttype.Struct
	for {
		before := counted.BytesRead()
		s, err := protocol.ReadStruct(p, desc)
		if err != nil {
			if atEnd(err) && counted.BytesRead() == before {
				return values, nil
			}
			return nil, fmt.Errorf("value %d: %w", len(values), err)
		}
		values = append(values, s)
	}
}

func decodeMessage(p protocol.Protocol, svc *ttype.ServiceDescriptor) (map[string]any, error) {
	name, typ, seqid, err := p.ReadMessageBegin()
	if err != nil {
		return nil, err
	}
	out := map[string]any{"name": name, "type": typ.String(), "seqid": seqid}

	method := name
	if svcName, m, ok := strings.Cut(name, protocol.MultiplexSeparator); ok {
		out["service"] = svcName
		method = m
	}

	if typ == protocol.EXCEPTION {
		ae, err := thriftrpc.ReadApplicationException(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		out["body"] = map[string]any{"type": ae.Type.String(), "message": ae.Message}
		return out, p.ReadMessageEnd()
	}

	m := svc.Method(method)
	if m == nil {
		return nil, fmt.Errorf("%s has no method %q", svc.QualifiedName(), method)
	}
	desc := m.Args
	if typ == protocol.REPLY {
		desc = m.Result
	}
	body, err := protocol.ReadStruct(p, desc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	out["body"] = ttype.ToNative(body)
	return out, p.ReadMessageEnd()
}

func printJSON(w io.Writer, v any) error {
	b, err := jsonOut.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", b)
	return err
}
