// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/Query-farm/thriftrpc/thriftrpc/compile"
	"github.com/Query-farm/thriftrpc/thriftrpc/describe"
	"github.com/Query-farm/thriftrpc/thriftrpc/idl"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:      "check",
		Usage:     "Compile schema files and report what they declare",
		ArgsUsage: "FILE...",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return fmt.Errorf("check: missing schema file")
			}
			for _, path := range c.Args().Slice() {
				mod, err := compile.Load(path, compile.WithSearchPath(includeDirs.Value()...))
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.Writer, "%s: %d structs, %d enums, %d services, %d constants\n",
					path, len(mod.Structs), len(mod.Enums), len(mod.Services), len(mod.Consts))
			}
			return nil
		},
	}
}

func fmtCommand() *cli.Command {
	var write bool
	return &cli.Command{
		Name:      "fmt",
		Usage:     "Print a schema file in canonical layout",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "write",
				Aliases:     []string{"w"},
				Usage:       "Rewrite the file in place",
				Destination: &write,
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return fmt.Errorf("fmt: want exactly one schema file")
			}
			path := c.Args().First()
			src, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			doc, err := idl.Parse(path, src)
			if err != nil {
				return err
			}
			out := idl.Format(doc)
			if write {
				return os.WriteFile(path, []byte(out), 0o644)
			}
			_, err = fmt.Fprint(c.App.Writer, out)
			return err
		},
	}
}

func describeCommand() *cli.Command {
	var (
		service string
		output  string
	)
	return &cli.Command{
		Name:      "describe",
		Usage:     "List a schema's methods, or write them as an Arrow IPC stream",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "service",
				Aliases:     []string{"s"},
				Usage:       "Service to describe (default: all)",
				Destination: &service,
			},
			&cli.StringFlag{
				Name:        "arrow",
				Usage:       "Write the Arrow describe stream to this file ('-' for stdout)",
				Destination: &output,
			},
		},
		Action: func(c *cli.Context) error {
			mod, err := loadSchema(c)
			if err != nil {
				return err
			}
			var svcs []*ttype.ServiceDescriptor
			if service != "" {
				svc, err := lookupService(mod, service)
				if err != nil {
					return err
				}
				svcs = append(svcs, svc)
			} else {
				for _, name := range mod.ServiceNames() {
					svcs = append(svcs, mod.Service(name))
				}
			}

			if output != "" {
				w := c.App.Writer
				if output != "-" {
					f, err := os.Create(output)
					if err != nil {
						return err
					}
					defer f.Close()
					w = f
				}
				return describe.WriteServices(w, svcs, "")
			}

			for _, svc := range svcs {
				fmt.Fprintf(c.App.Writer, "service %s\n", svc.QualifiedName())
				for _, m := range svc.AllMethods() {
					from := ""
					if m.Service != nil && m.Service != svc {
						from = "  (from " + m.Service.Name + ")"
					}
					fmt.Fprintf(c.App.Writer, "  %s%s\n", methodSignature(m), from)
				}
			}
			return nil
		},
	}
}

func methodSignature(m *ttype.MethodSpec) string {
	sig := ""
	if m.Oneway {
		sig = "oneway "
	}
	sig += describe.TypeName(m.Return) + " " + m.Name + "("
	for i, p := range m.Params {
		if i > 0 {
			sig += ", "
		}
		sig += fmt.Sprintf("%d: %s %s", p.ID, describe.TypeName(p.Type), p.Name)
	}
	sig += ")"
	if len(m.Throws) > 0 {
		sig += " throws ("
		for i, t := range m.Throws {
			if i > 0 {
				sig += ", "
			}
			sig += fmt.Sprintf("%d: %s %s", t.ID, describe.TypeName(t.Type), t.Name)
		}
		sig += ")"
	}
	return sig
}
