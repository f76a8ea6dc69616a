// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"context"
	"net"
	"net/http/httptest"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
)

var _ = Describe("Dial", func() {
	It("talks to ListenAndServe over a framed unix socket", func() {
		dir, err := os.MkdirTemp("", "thriftrpc")
		Expect(err).ToNot(HaveOccurred())
		defer os.RemoveAll(dir)
		path := filepath.Join(dir, "calc.sock")

		calc := calcModule.Service("Calc")
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() {
			done <- ListenAndServe(ctx, "unix", path, NewProcessor(calc, ReflectHandler(calc, newCalcHandler())),
				WithTransportFactory(transport.FramedFactory{}))
		}()

		var client *Client
		Eventually(func() error {
			client, err = Dial("unix", path, calc,
				WithDialTransport(transport.FramedFactory{}),
				WithTimeout(time.Second))
			return err
		}, 5*time.Second, 20*time.Millisecond).Should(Succeed())

		v, err := client.Call(context.Background(), "add", int32(40), int32(2))
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal(int32(42)))
		Expect(client.Close()).To(Succeed())

		cancel()
		Eventually(done, 5*time.Second).Should(Receive(BeNil()))
	})

	It("reports a refused connection", func() {
		l, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).ToNot(HaveOccurred())
		addr := l.Addr().String()
		l.Close()

		_, err = Dial("tcp", addr, calcModule.Service("Calc"), WithTimeout(time.Second))
		Expect(err).To(HaveOccurred())
	})

	It("posts calls with DialHTTP and carries hook metadata", func() {
		calc := calcModule.Service("Calc")
		hs := NewHTTPServer(NewProcessor(calc, ReflectHandler(calc, newCalcHandler())), "")
		srv := httptest.NewServer(hs)
		defer srv.Close()

		client := DialHTTP(srv.URL+hs.Prefix(), calc,
			WithHTTPClient(srv.Client()),
			WithCallHook(headerHook{"X-Caller", "dialer"}))
		v, err := client.Call(context.Background(), "whoami")
		Expect(err).ToNot(HaveOccurred())
		Expect(v).To(Equal("Calc.whoami dialer"))
	})
})
