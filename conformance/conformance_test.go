// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Query-farm/thriftrpc/thriftrpc"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// listening lets the test learn the address before Serve runs.
type listening struct{ *transport.ServerSocket }

func (listening) Listen() error { return nil }

type tagHook struct{}

func (tagHook) OnCallStart(ctx context.Context, info *thriftrpc.CallInfo) (context.Context, thriftrpc.HookToken) {
	info.Metadata["X-Suite"] = "conformance"
	return ctx, nil
}

func (tagHook) OnCallEnd(context.Context, thriftrpc.HookToken, *thriftrpc.CallInfo, error) {}

func expectAllPass(results []Result) {
	Expect(results).To(HaveLen(len(Cases())))
	for _, r := range results {
		Expect(r.Err).ToNot(HaveOccurred(), r.Name)
	}
	Expect(Failed(results)).To(BeEmpty())
}

var _ = Describe("Conformance", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Context("over a socket", func() {
		var (
			server *thriftrpc.Server
			addr   string
			done   chan error
		)

		start := func(opts ...thriftrpc.ServerOption) {
			listener := transport.NewServerSocket("tcp", "127.0.0.1:0")
			Expect(listener.Listen()).To(Succeed())
			addr = listener.Addr().String()
			server = thriftrpc.NewServer(NewProcessor(NewHandler()), opts...)
			done = make(chan error, 1)
			go func() { done <- server.Serve(context.Background(), listening{listener}) }()
		}

		dial := func(framing transport.Factory) *thriftrpc.Client {
			client, err := thriftrpc.Dial("tcp", addr, Service(),
				thriftrpc.WithTimeout(5*time.Second), thriftrpc.WithDialTransport(framing))
			Expect(err).ToNot(HaveOccurred())
			return client
		}

		AfterEach(func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(sctx)
			Eventually(done).Should(Receive())
		})

		It("passes every case with buffered binary", func() {
			start()
			client := dial(transport.BufferedFactory{})
			defer client.Close()
			expectAllPass(Run(ctx, client, ""))
		})

		It("passes every case with framed binary", func() {
			start(thriftrpc.WithTransportFactory(transport.FramedFactory{}))
			client := dial(transport.FramedFactory{})
			defer client.Close()
			expectAllPass(Run(ctx, client, ""))
		})

		It("runs only the cases matching a filter", func() {
			start()
			client := dial(transport.BufferedFactory{})
			defer client.Close()
			results := Run(ctx, client, "bounding_box")
			Expect(results).To(HaveLen(3))
			Expect(Failed(results)).To(BeEmpty())
		})
	})

	Context("over HTTP", func() {
		var (
			srv *httptest.Server
			hs  *thriftrpc.HTTPServer
		)

		BeforeEach(func() {
			hs = thriftrpc.NewHTTPServer(NewProcessor(NewHandler()), "")
			srv = httptest.NewServer(hs)
		})

		AfterEach(func() { srv.Close() })

		newClient := func() *thriftrpc.Client {
			return thriftrpc.DialHTTP(srv.URL+hs.Prefix(), Service(), thriftrpc.WithHTTPClient(srv.Client()))
		}

		It("passes every case", func() {
			expectAllPass(Run(ctx, newClient(), ""))
		})

		It("echoes request headers as metadata", func() {
			client := newClient()
			client.SetCallHook(tagHook{})
			v, err := client.Call(ctx, "echo_metadata")
			Expect(err).ToNot(HaveOccurred())
			got, ok := v.(ttype.Map).Get("x-suite")
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal("conformance"))
		})
	})

	Context("against a faulty server", func() {
		It("reports failing cases by name", func() {
			svc := Service()
			handler := thriftrpc.ReflectHandler(svc, NewHandler())
			handler["echo_int"] = func(context.Context, *thriftrpc.CallContext, []any) (any, error) {
				return int32(0), nil
			}
			hs := thriftrpc.NewHTTPServer(thriftrpc.NewProcessor(svc, handler), "")
			srv := httptest.NewServer(hs)
			defer srv.Close()

			client := thriftrpc.DialHTTP(srv.URL+hs.Prefix(), svc, thriftrpc.WithHTTPClient(srv.Client()))
			failed := Failed(Run(ctx, client, "echo_"))
			Expect(failed).To(HaveLen(1))
			Expect(failed[0].Name).To(Equal("echo_int"))
			Expect(failed[0].Err).To(MatchError(ContainSubstring("echo_int: got 0")))
		})
	})
})

var _ = Describe("Handler", func() {
	It("records notifications in arrival order", func() {
		h := NewHandler()
		h.Notify(context.Background(), "a")
		h.Notify(context.Background(), "b")
		Expect(h.Notifications()).To(Equal([]string{"a", "b"}))
	})

	It("keeps the declared default error code", func() {
		Expect(NewError("x", 0).Get("code")).To(Equal(int32(400)))
		Expect(NewError("x", 9).Get("code")).To(Equal(int32(9)))
	})

	It("fills the default label when none is given", func() {
		box, err := NewHandler().BoundingBox([]*ttype.Struct{NewPoint(1, 2)}, "")
		Expect(err).ToNot(HaveOccurred())
		Expect(box.Get("label")).To(Equal("box"))
	})

	It("declares ConformanceError on every method that can raise it", func() {
		for _, name := range []string{"bounding_box", "echo_shape", "divide", "raise_error"} {
			m := Service().Method(name)
			Expect(m).ToNot(BeNil(), name)
			Expect(m.Throws).To(HaveLen(1), name)
			Expect(m.Throws[0].Type.Struct.Name).To(Equal("ConformanceError"), name)
		}
	})
})
