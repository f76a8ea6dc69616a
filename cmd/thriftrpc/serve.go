// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/Query-farm/thriftrpc/thriftrpc"
	thriftotel "github.com/Query-farm/thriftrpc/thriftrpc/otel"
	thriftprom "github.com/Query-farm/thriftrpc/thriftrpc/prom"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// echoHandler answers every method of svc: with the first argument whose
// type matches the return type, otherwise with the return type's zero value.
func echoHandler(svc *ttype.ServiceDescriptor) thriftrpc.HandlerMap {
	h := make(thriftrpc.HandlerMap)
	for _, m := range svc.AllMethods() {
		h[m.Name] = func(_ context.Context, call *thriftrpc.CallContext, args []any) (any, error) {
			native := make(map[string]any, len(args))
			for i, a := range args {
				native[m.Params[i].Name] = ttype.ToNative(a)
			}
			slog.Info("echo", "method", m.Name, "seqid", call.SeqID, "request_id", call.RequestID, "args", native)
			if m.Void() {
				return nil, nil
			}
			want := m.Return.String()
			for i, a := range args {
				if a != nil && m.Params[i].Type.String() == want {
					return a, nil
				}
			}
			return zeroValue(m.Return), nil
		}
	}
	return h
}

func serveEchoCommand() *cli.Command {
	var (
		service  string
		addr     string
		unix     string
		httpAddr string
		framing  string
		all      bool
		withOtel bool
	)
	return &cli.Command{
		Name:  "serve-echo",
		Usage: "Serve a schema's services with handlers that echo their arguments",
		Description: "Listens on --addr, --unix or --http; with none of them it serves one connection\n" +
			"on stdin/stdout. --all multiplexes every service in the file.",
		ArgsUsage: "FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "service", Aliases: []string{"s"}, Usage: "Service to serve", Destination: &service},
			&cli.BoolFlag{Name: "all", Usage: "Serve every service, multiplexed by name", Destination: &all},
			&cli.StringFlag{Name: "addr", Aliases: []string{"a"}, Usage: "TCP listen address", Destination: &addr},
			&cli.StringFlag{Name: "unix", Usage: "Unix socket path", Destination: &unix},
			&cli.StringFlag{Name: "http", Usage: "HTTP listen address; also serves /metrics", Destination: &httpAddr},
			&cli.StringFlag{Name: "framing", Usage: "buffered, framed or zstd (sockets only)", Value: "buffered", Destination: &framing},
			&cli.BoolFlag{Name: "otel", Usage: "Export traces and metrics to stderr", Destination: &withOtel},
		},
		Action: func(c *cli.Context) error {
			mod, err := loadSchema(c)
			if err != nil {
				return err
			}
			proc, err := echoProcessor(mod, service, all)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var hooks []thriftrpc.DispatchHook
			if withOtel {
				shutdown, err := setupOtel(c.App.ErrWriter)
				if err != nil {
					return err
				}
				defer func() {
					sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					if err := shutdown(sctx); err != nil {
						slog.Warn("otel shutdown", "err", err)
					}
				}()
				hooks = append(hooks, thriftotel.NewDispatchHook(thriftotel.DefaultConfig()))
			}
			var metrics *thriftprom.Metrics
			if httpAddr != "" {
				metrics = thriftprom.New(nil)
				hooks = append(hooks, metrics)
			}
			if len(hooks) > 0 {
				proc.SetDispatchHook(thriftrpc.ChainDispatchHooks(hooks...))
			}

			if httpAddr != "" {
				return serveHTTP(ctx, proc, httpAddr, metrics)
			}

			factory, err := transport.FactoryByName(framing)
			if err != nil {
				return err
			}
			withFraming := thriftrpc.WithTransportFactory(factory)

			switch {
			case addr != "":
				return thriftrpc.ListenAndServe(ctx, "tcp", addr, proc, withFraming)
			case unix != "":
				_ = os.Remove(unix)
				defer os.Remove(unix)
				return thriftrpc.ListenAndServe(ctx, "unix", unix, proc, withFraming)
			}
			return thriftrpc.NewServer(proc, withFraming).RunStdio(ctx)
		},
	}
}

type hookedProcessor interface {
	thriftrpc.MessageProcessor
	SetDispatchHook(thriftrpc.DispatchHook)
}

func echoProcessor(mod *ttype.Module, service string, all bool) (hookedProcessor, error) {
	if !all {
		svc, err := lookupService(mod, service)
		if err != nil {
			return nil, err
		}
		return thriftrpc.NewProcessor(svc, echoHandler(svc)), nil
	}
	mp := thriftrpc.NewMultiplexedProcessor()
	for _, name := range mod.ServiceNames() {
		svc := mod.Service(name)
		mp.RegisterProcessor(name, thriftrpc.NewProcessor(svc, echoHandler(svc)))
	}
	return mp, nil
}

func serveHTTP(ctx context.Context, proc thriftrpc.MessageProcessor, addr string, metrics *thriftprom.Metrics) error {
	hs := thriftrpc.NewHTTPServer(proc, "")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/", hs)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	slog.Info("serving http", "addr", listener.Addr().String(), "prefix", hs.Prefix())

	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}()
	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// setupOtel installs global providers that print to w and returns their
// shutdown.
func setupOtel(w io.Writer) (func(context.Context) error, error) {
	traceExp, err := stdouttrace.New(stdouttrace.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("trace exporter: %w", err)
	}
	metricExp, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
	if err != nil {
		return nil, fmt.Errorf("metric exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(traceExp))
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExp)))
	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) error {
		return errors.Join(tp.Shutdown(ctx), mp.Shutdown(ctx))
	}, nil
}
