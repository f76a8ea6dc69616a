// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Transport", func() {
	Context("MemoryBuffer", func() {
		It("reads back what was written", func() {
			m := NewMemoryBuffer()
			_, err := m.Write([]byte("hello"))
			Expect(err).ToNot(HaveOccurred())

			got, err := ReadFull(m, 5)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(got)).To(Equal("hello"))
		})

		It("reports a short read as EndOfFile", func() {
			m := NewMemoryBufferWith([]byte{1, 2})
			_, err := ReadFull(m, 4)
			Expect(err).To(HaveOccurred())
			Expect(errors.Is(err, &TransportError{Kind: EndOfFile})).To(BeTrue())
			Expect(errors.Is(err, ErrTransport)).To(BeTrue())
			Expect(IsClosed(err)).To(BeTrue())
		})
	})

	Context("Buffered", func() {
		It("holds writes until Flush", func() {
			inner := NewMemoryBuffer()
			b := NewBuffered(inner, 64)
			_, err := b.Write([]byte("abc"))
			Expect(err).ToNot(HaveOccurred())
			Expect(inner.Len()).To(Equal(0))

			Expect(b.Flush()).To(Succeed())
			Expect(inner.String()).To(Equal("abc"))

			got, err := ReadFull(b, 3)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(got)).To(Equal("abc"))
		})
	})

	Context("Framed", func() {
		It("writes a big-endian length prefix", func() {
			inner := NewMemoryBuffer()
			f := NewFramed(inner, 0)
			_, _ = f.Write([]byte{0xaa, 0xbb, 0xcc})
			Expect(f.Flush()).To(Succeed())
			Expect(inner.Bytes()).To(Equal([]byte{0, 0, 0, 3, 0xaa, 0xbb, 0xcc}))
		})

		It("reads frames across several Read calls", func() {
			inner := NewMemoryBufferWith([]byte{0, 0, 0, 2, 'h', 'i', 0, 0, 0, 0, 0, 0, 0, 1, '!'})
			f := NewFramed(inner, 0)
			got, err := io.ReadAll(io.LimitReader(f, 3))
			Expect(err).ToNot(HaveOccurred())
			Expect(string(got)).To(Equal("hi!"))
		})

		It("rejects frames over the maximum", func() {
			inner := NewMemoryBufferWith([]byte{0, 0, 1, 0})
			f := NewFramed(inner, 16)
			_, err := f.Read(make([]byte, 1))
			Expect(err).To(MatchError(ContainSubstring("exceeds maximum 16")))
		})
	})

	Context("Zstd", func() {
		It("round-trips compressed frames", func() {
			inner := NewMemoryBuffer()
			w, err := NewZstd(inner, 3, 0)
			Expect(err).ToNot(HaveOccurred())
			payload := bytes.Repeat([]byte("thrift "), 200)
			_, _ = w.Write(payload)
			Expect(w.Flush()).To(Succeed())
			Expect(inner.Len()).To(BeNumerically("<", len(payload)))

			r, err := ZstdFactory{}.GetTransport(inner)
			Expect(err).ToNot(HaveOccurred())
			got, err := ReadFull(r, len(payload))
			Expect(err).ToNot(HaveOccurred())
			Expect(got).To(Equal(payload))
		})
	})

	Context("Counting", func() {
		It("counts bytes in both directions", func() {
			c := NewCounting(NewMemoryBuffer())
			_, _ = c.Write([]byte("12345"))
			_, _ = ReadFull(c, 2)
			Expect(c.BytesWritten()).To(Equal(int64(5)))
			Expect(c.BytesRead()).To(Equal(int64(2)))
		})
	})

	Context("Socket", func() {
		var server *ServerSocket

		BeforeEach(func() {
			server = NewServerSocket("tcp", "127.0.0.1:0")
			Expect(server.Listen()).To(Succeed())
		})

		AfterEach(func() {
			_ = server.Close()
		})

		It("exchanges bytes with an accepted connection", func() {
			accepted := make(chan Transport, 1)
			go func() {
				defer GinkgoRecover()
				conn, err := server.Accept()
				Expect(err).ToNot(HaveOccurred())
				accepted <- conn
			}()

			client := NewSocket("tcp", server.Addr().String(), WithConnectTimeout(time.Second))
			Expect(client.Open()).To(Succeed())
			defer client.Close()
			Expect(client.Open()).To(MatchError(ContainSubstring("already open")))

			_, err := client.Write([]byte("ping"))
			Expect(err).ToNot(HaveOccurred())

			var conn Transport
			Eventually(accepted).Should(Receive(&conn))
			defer conn.Close()
			got, err := ReadFull(conn, 4)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(got)).To(Equal("ping"))
		})

		It("times out a read with no data", func() {
			go func() {
				conn, err := server.Accept()
				if err == nil {
					time.Sleep(500 * time.Millisecond)
					conn.Close()
				}
			}()
			client := NewSocket("tcp", server.Addr().String(), WithReadTimeout(50*time.Millisecond))
			Expect(client.Open()).To(Succeed())
			defer client.Close()

			_, err := client.Read(make([]byte, 1))
			Expect(errors.Is(err, &TransportError{Kind: TimedOut})).To(BeTrue())
		})

		It("applies an explicit deadline through wrappers", func() {
			go func() {
				conn, err := server.Accept()
				if err == nil {
					time.Sleep(500 * time.Millisecond)
					conn.Close()
				}
			}()
			sock := NewSocket("tcp", server.Addr().String())
			Expect(sock.Open()).To(Succeed())
			trans := NewBuffered(NewFramed(sock, 0), 0)
			defer trans.Close()

			ok, err := SetReadDeadline(trans, time.Now().Add(50*time.Millisecond))
			Expect(ok).To(BeTrue())
			Expect(err).ToNot(HaveOccurred())
			_, err = trans.Read(make([]byte, 1))
			Expect(errors.Is(err, &TransportError{Kind: TimedOut})).To(BeTrue())

			ok, _ = SetReadDeadline(NewMemoryBuffer(), time.Now())
			Expect(ok).To(BeFalse())
		})
	})

	Context("HTTPClient", func() {
		It("posts the buffered message and reads the reply", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				defer GinkgoRecover()
				Expect(r.Method).To(Equal(http.MethodPost))
				Expect(r.Header.Get("Content-Type")).To(Equal(ContentType))
				Expect(r.Header.Get("X-Trace")).To(Equal("abc"))
				body, _ := io.ReadAll(r.Body)
				_, _ = w.Write(append([]byte("echo:"), body...))
			}))
			defer srv.Close()

			h := NewHTTPClient(srv.URL, nil)
			h.SetHeader("X-Trace", "abc")
			_, _ = h.Write([]byte("req"))
			Expect(h.Flush()).To(Succeed())
			got, err := ReadFull(h, 8)
			Expect(err).ToNot(HaveOccurred())
			Expect(string(got)).To(Equal("echo:req"))
		})

		It("sends request headers with the next request only", func() {
			seen := make(chan http.Header, 2)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				seen <- r.Header.Clone()
			}))
			defer srv.Close()

			h := NewHTTPClient(srv.URL, nil)
			h.SetHeader("X-Trace", "abc")
			h.SetRequestHeader("X-Once", "1")
			Expect(h.Flush()).To(Succeed())
			Expect(h.Flush()).To(Succeed())

			first, second := <-seen, <-seen
			Expect(first.Get("X-Once")).To(Equal("1"))
			Expect(second.Get("X-Once")).To(BeEmpty())
			Expect(second.Get("X-Trace")).To(Equal("abc"))
		})

		It("fails on a non-success status", func() {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", http.StatusTeapot)
			}))
			defer srv.Close()

			h := NewHTTPClient(srv.URL, nil)
			Expect(h.Flush()).To(MatchError(ContainSubstring("HTTP 418")))
		})
	})

	Context("Wrap", func() {
		It("classifies closed connections", func() {
			err := Wrap(net.ErrClosed)
			Expect(errors.Is(err, &TransportError{Kind: NotOpen})).To(BeTrue())
			Expect(errors.Is(err, net.ErrClosed)).To(BeTrue())
			Expect(Wrap(nil)).To(BeNil())
		})
	})
})
