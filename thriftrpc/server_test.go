// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
)

var _ = Describe("Server", func() {
	It("shuts down cleanly while connections keep arriving", func() {
		calc := calcModule.Service("Calc")
		ts := startServer(NewProcessor(calc, ReflectHandler(calc, newCalcHandler())))

		stop := make(chan struct{})
		var wg sync.WaitGroup
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					sock := transport.NewSocket("tcp", ts.addr, transport.WithConnectTimeout(100*time.Millisecond))
					if sock.Open() == nil {
						sock.Close()
					}
				}
			}()
		}
		time.Sleep(50 * time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		Expect(ts.server.Shutdown(ctx)).To(Succeed())
		Eventually(ts.done, 5*time.Second).Should(Receive(BeNil()))
		close(stop)
		wg.Wait()
	})

	It("does not serve after Shutdown", func() {
		calc := calcModule.Service("Calc")
		server := NewServer(NewProcessor(calc, ReflectHandler(calc, newCalcHandler())))
		Expect(server.Shutdown(context.Background())).To(Succeed())

		listener := transport.NewServerSocket("tcp", "127.0.0.1:0")
		Expect(server.Serve(context.Background(), listener)).To(Succeed())
		_, err := listener.Accept()
		Expect(err).To(HaveOccurred())
	})
})
