// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Command thriftrpc-conformance-go serves the reference Conformance service,
// or checks a remote implementation of it.
//
//	thriftrpc-conformance-go                 serve on stdin/stdout
//	thriftrpc-conformance-go --http          serve HTTP at /thrift, prints PORT:<n>
//	thriftrpc-conformance-go --tcp           serve framed TCP, prints PORT:<n>
//	thriftrpc-conformance-go --unix PATH     serve a unix socket, prints UNIX:<path>
//	thriftrpc-conformance-go --check URL     run every case against an HTTP endpoint
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Query-farm/thriftrpc/conformance"
	"github.com/Query-farm/thriftrpc/thriftrpc"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
)

func main() {
	proc := conformance.NewProcessor(conformance.NewHandler())

	// Catch SIGTERM/SIGINT so the process exits cleanly and flushes
	// coverage data when built with -cover.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	switch {
	case len(os.Args) > 1 && os.Args[1] == "--http":
		serveHTTP(ctx, proc)
	case len(os.Args) > 1 && os.Args[1] == "--tcp":
		serveSocket(ctx, proc, "tcp", "127.0.0.1:0", thriftrpc.WithTransportFactory(transport.FramedFactory{}))
	case len(os.Args) > 2 && os.Args[1] == "--unix":
		path := os.Args[2]
		os.Remove(path)
		serveSocket(ctx, proc, "unix", path)
		os.Remove(path)
	case len(os.Args) > 2 && os.Args[1] == "--check":
		os.Exit(check(ctx, os.Args[2]))
	default:
		if err := thriftrpc.NewServer(proc).RunStdio(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "stdio serve error: %v\n", err)
			os.Exit(1)
		}
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func serveHTTP(ctx context.Context, proc *thriftrpc.Processor) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fail("failed to listen: %v", err)
	}
	fmt.Printf("PORT:%d\n", listener.Addr().(*net.TCPAddr).Port)
	os.Stdout.Sync()

	srv := &http.Server{Handler: thriftrpc.NewHTTPServer(proc, "")}
	go func() {
		<-ctx.Done()
		srv.Shutdown(context.Background())
	}()
	if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
		fail("http serve error: %v", err)
	}
}

func serveSocket(ctx context.Context, proc *thriftrpc.Processor, network, addr string, opts ...thriftrpc.ServerOption) {
	listener := transport.NewServerSocket(network, addr)
	if err := listener.Listen(); err != nil {
		fail("failed to listen on %s socket: %v", network, err)
	}
	if network == "unix" {
		fmt.Printf("UNIX:%s\n", addr)
	} else {
		fmt.Printf("PORT:%d\n", listener.Addr().(*net.TCPAddr).Port)
	}
	os.Stdout.Sync()

	if err := thriftrpc.NewServer(proc, opts...).Serve(ctx, listener); err != nil {
		fail("serve error: %v", err)
	}
}

// check runs the conformance cases against an HTTP endpoint and returns the
// process exit code.
func check(ctx context.Context, url string) int {
	client := thriftrpc.DialHTTP(url, conformance.Service(), thriftrpc.WithTimeout(time.Minute))
	results := conformance.Run(ctx, client, "")
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("FAIL %s: %v\n", r.Name, r.Err)
		} else {
			fmt.Printf("ok   %s\n", r.Name)
		}
	}
	failed := conformance.Failed(results)
	fmt.Printf("%d/%d passed\n", len(results)-len(failed), len(results))
	if len(failed) > 0 {
		return 1
	}
	return 0
}
