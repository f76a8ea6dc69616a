// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Query-farm/thriftrpc/thriftrpc/describe"
	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
)

var _ = Describe("HTTPServer", func() {
	var (
		ctx     context.Context
		handler *calcHandler
		srv     *httptest.Server
		hs      *HTTPServer
	)

	BeforeEach(func() {
		ctx = context.Background()
		calc := calcModule.Service("Calc")
		handler = newCalcHandler()
		proc := NewProcessor(calc, ReflectHandler(calc, handler))
		proc.SetServerID("http-1")
		hs = NewHTTPServer(proc, "")
		srv = httptest.NewServer(hs)
	})

	AfterEach(func() { srv.Close() })

	newClient := func() (*Client, *transport.HTTPClient) {
		t := transport.NewHTTPClient(srv.URL+hs.Prefix(), srv.Client())
		p := protocol.NewBinary(t, nil)
		return NewClient(calcModule.Service("Calc"), p, p), t
	}

	It("serves calls over POST", func() {
		client, _ := newClient()
		v, err := client.Call(ctx, "add", int32(40), int32(2))
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(int32(42)))

		_, err = client.Call(ctx, "divide", 1.0, 0.0)
		Expect(err).To(MatchError("DivideByZero: division by zero"))
	})

	It("answers oneway calls with no content", func() {
		client, _ := newClient()
		_, err := client.Call(ctx, "fire", "over http")
		Expect(err).ToNot(HaveOccurred())
		Eventually(handler.fired).Should(Receive(Equal("over http")))
	})

	It("exposes request headers as call metadata", func() {
		client, _ := newClient()
		client.SetCallHook(headerHook{key: "X-Caller", value: "tester"})
		v, err := client.Call(ctx, "whoami")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal("Calc.whoami tester"))
	})

	It("does not carry one call's metadata into the next", func() {
		client, _ := newClient()
		client.SetCallHook(headerHook{key: "X-Caller", value: "first"})
		v, err := client.Call(ctx, "whoami")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal("Calc.whoami first"))

		client.SetCallHook(nil)
		v, err = client.Call(ctx, "whoami")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal("Calc.whoami "))
	})

	It("rejects other content types", func() {
		resp, err := http.Post(srv.URL+"/thrift", "application/json", bytes.NewReader([]byte("{}")))
		Expect(err).ToNot(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnsupportedMediaType))
	})

	It("reports undecodable bodies", func() {
		resp, err := http.Post(srv.URL+"/thrift", transport.ContentType, bytes.NewReader([]byte{1, 2}))
		Expect(err).ToNot(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
	})

	It("serves a landing page and an API reference", func() {
		resp, err := http.Get(srv.URL + "/thrift")
		Expect(err).ToNot(HaveOccurred())
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/html; charset=utf-8"))
		Expect(string(body)).To(ContainSubstring("i32 add(1: i32 a, 2: i32 b)"))
		Expect(string(body)).To(ContainSubstring("http-1"))

		resp, err = http.Get(srv.URL + "/thrift/api")
		Expect(err).ToNot(HaveOccurred())
		body, _ = io.ReadAll(resp.Body)
		resp.Body.Close()
		Expect(string(body)).To(ContainSubstring("calc.DivideByZero"))
		Expect(string(body)).To(ContainSubstring("from Base"))

		resp, err = http.Get(srv.URL + "/thrift/elsewhere")
		Expect(err).ToNot(HaveOccurred())
		resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
	})

	It("serves the Arrow describe stream", func() {
		resp, err := http.Get(srv.URL + "/thrift/describe")
		Expect(err).ToNot(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.Header.Get("Content-Type")).To(Equal(describe.ContentType))

		methods, meta, err := describe.ReadServices(resp.Body)
		Expect(err).ToNot(HaveOccurred())
		Expect(meta[describe.MetaServerID]).To(Equal("http-1"))
		names := make([]string, len(methods))
		for i, m := range methods {
			names[i] = m.Name
		}
		Expect(names).To(Equal(calcModule.Service("Calc").MethodNames()))
		Expect(methods[1].ParamTypes).To(Equal(map[string]string{"a": "i32", "b": "i32"}))
	})
})
