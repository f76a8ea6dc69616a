// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Command thriftrpc inspects Thrift schemas and talks to thriftrpc servers.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/Query-farm/thriftrpc/thriftrpc/compile"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

var (
	includeDirs cli.StringSlice
	logLevel    string
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "thriftrpc: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "thriftrpc",
		Usage: "Inspect Thrift schemas and call or serve their services",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:        "include",
				Aliases:     []string{"I"},
				Usage:       "Directory searched for included schema files (repeatable)",
				EnvVars:     []string{"THRIFTRPC_INCLUDE"},
				Destination: &includeDirs,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "One of debug, info, warn, error",
				Value:       "warn",
				EnvVars:     []string{"THRIFTRPC_LOG_LEVEL"},
				Destination: &logLevel,
			},
		},
		Before: func(c *cli.Context) error {
			var level slog.Level
			if err := level.UnmarshalText([]byte(logLevel)); err != nil {
				return fmt.Errorf("--log-level: %w", err)
			}
			slog.SetDefault(slog.New(slog.NewTextHandler(c.App.ErrWriter, &slog.HandlerOptions{Level: level})))
			return nil
		},
		Commands: []*cli.Command{
			checkCommand(),
			fmtCommand(),
			describeCommand(),
			decodeCommand(),
			callCommand(),
			serveEchoCommand(),
		},
	}
}

// loadSchema compiles the schema named by the first positional argument.
func loadSchema(c *cli.Context) (*ttype.Module, error) {
	if c.NArg() < 1 {
		return nil, fmt.Errorf("%s: missing schema file", c.Command.Name)
	}
	return compile.Load(c.Args().First(), compile.WithSearchPath(includeDirs.Value()...))
}

// lookupService finds a service by name, or the only service when name is
// empty.
func lookupService(mod *ttype.Module, name string) (*ttype.ServiceDescriptor, error) {
	if name == "" {
		names := mod.ServiceNames()
		if len(names) != 1 {
			return nil, fmt.Errorf("--service is required: %s declares %d services (%s)",
				mod.Path, len(names), strings.Join(names, ", "))
		}
		name = names[0]
	}
	svc := mod.Service(name)
	if svc == nil {
		return nil, fmt.Errorf("no service %q in %s", name, mod.Path)
	}
	return svc, nil
}
