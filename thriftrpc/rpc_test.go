// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

var _ = Describe("RPC", func() {
	var (
		ctx     context.Context
		calc    *ttype.ServiceDescriptor
		handler *calcHandler
	)

	BeforeEach(func() {
		ctx = context.Background()
		calc = calcModule.Service("Calc")
		handler = newCalcHandler()
	})

	Context("over a socket", func() {
		var (
			ts     *testServer
			client *Client
		)

		BeforeEach(func() {
			ts = startServer(NewProcessor(calc, ReflectHandler(calc, handler)))
			client = ts.dial(calc, "")
		})

		AfterEach(func() {
			client.Close()
			ts.stop()
		})

		It("calls inherited and own methods", func() {
			v, err := client.Call(ctx, "ping")
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal("pong"))

			v, err = client.Call(ctx, "add", int32(2), int32(3))
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(int32(5)))

			v, err = client.CallNamed(ctx, "add", map[string]any{"b": 10, "a": 1})
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(int32(11)))
		})

		It("invokes a void handler exactly once", func() {
			v, err := client.Call(ctx, "reset")
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(BeNil())
			Expect(handler.resets.Load()).To(Equal(int32(1)))
		})

		It("converts containers and structs", func() {
			v, err := client.Call(ctx, "sum", []int32{1, 2, 3, 4})
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(int32(10)))

			v, err = client.Call(ctx, "count", ttype.Set{"go", "thrift"})
			Expect(err).ToNot(HaveOccurred())
			Expect(ttype.Equal(v, ttype.Map{{Key: "go", Value: int32(2)}, {Key: "thrift", Value: int32(6)}})).To(BeTrue())

			pair := calcModule.Struct("Pair")
			v, err = client.Call(ctx, "swap", ttype.New(pair).Set("a", int32(1)).Set("b", int32(2)))
			Expect(err).ToNot(HaveOccurred())
			Expect(ttype.Equal(v, ttype.New(pair).Set("a", int32(2)).Set("b", int32(1)))).To(BeTrue())
		})

		It("re-hydrates a declared exception", func() {
			_, err := client.Call(ctx, "divide", 1.0, 0.0)
			Expect(err).To(HaveOccurred())

			var exc *ttype.Exception
			Expect(errors.As(err, &exc)).To(BeTrue())
			Expect(exc.Descriptor().QualifiedName()).To(Equal("calc.DivideByZero"))
			Expect(exc.Get("message")).To(Equal("division by zero"))
			Expect(errors.Is(err, ttype.NewException(calcModule.Struct("DivideByZero")))).To(BeTrue())

			v, err := client.Call(ctx, "divide", 1.0, 4.0)
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(0.25))
		})

		It("returns from oneway calls without a reply", func() {
			v, err := client.Call(ctx, "fire", "fail")
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(BeNil())
			Eventually(handler.fired).Should(Receive(Equal("fail")))

			// The server-side error never reaches the client.
			v, err = client.Call(ctx, "ping")
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal("pong"))
		})

		It("reports methods the server does not know", func() {
			stranger := ts.dial(calcModule.Service("Stranger"), "")
			defer stranger.Close()

			_, err := stranger.Call(ctx, "nope")
			var ae *ApplicationException
			Expect(errors.As(err, &ae)).To(BeTrue())
			Expect(ae.Type).To(Equal(UnknownMethod))
			Expect(ae.Message).To(ContainSubstring("Unknown method: 'nope'"))
			Expect(ae.Message).To(ContainSubstring("add"))

			v, err := stranger.Call(ctx, "ping")
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal("pong"))
		})

		It("rejects unknown methods and bad arguments locally", func() {
			_, err := client.Call(ctx, "nope")
			Expect(errors.Is(err, &ApplicationException{Type: UnknownMethod})).To(BeTrue())

			_, err = client.Call(ctx, "add", 1, 2, 3)
			Expect(err).To(MatchError(ContainSubstring("takes 2 arguments")))

			_, err = client.CallNamed(ctx, "add", map[string]any{"c": 1})
			Expect(err).To(MatchError(ContainSubstring(`no parameter "c"`)))

			_, err = client.CallArgs(ctx, "add", ttype.New(calc.Method("divide").Args))
			Expect(err).To(HaveOccurred())
		})

		It("fails before writing when a required argument is unset", func() {
			_, err := client.Call(ctx, "strict")
			Expect(errors.Is(err, &protocol.ProtocolError{Kind: protocol.InvalidData})).To(BeTrue())

			v, err := client.Call(ctx, "strict", int32(7))
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(int32(7)))
		})

		It("keeps the connection after an argument of the wrong type", func() {
			_, err := client.Call(ctx, "add", "not-an-int", 1)
			Expect(errors.Is(err, &protocol.ProtocolError{Kind: protocol.InvalidData})).To(BeTrue())
			Expect(errors.Is(err, ErrClientBroken)).To(BeFalse())

			v, err := client.Call(ctx, "add", int32(1), int32(2))
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(int32(3)))
		})

		It("reports a missing result", func() {
			_, err := client.Call(ctx, "missing")
			Expect(errors.Is(err, &ApplicationException{Type: MissingResult})).To(BeTrue())
		})

		It("passes application exceptions through and keeps the connection", func() {
			_, err := client.Call(ctx, "explode", "app")
			var ae *ApplicationException
			Expect(errors.As(err, &ae)).To(BeTrue())
			Expect(ae.Message).To(Equal("explicit application failure"))

			_, err = client.Call(ctx, "ping")
			Expect(err).ToNot(HaveOccurred())
		})

		for _, how := range []string{"undeclared", "unlisted", "panic"} {
			how := how
			It(fmt.Sprintf("turns a %s failure into InternalError and drops the connection", how), func() {
				_, err := client.Call(ctx, "explode", how)
				var ae *ApplicationException
				Expect(errors.As(err, &ae)).To(BeTrue())
				Expect(ae.Type).To(Equal(InternalError))

				_, err = client.Call(ctx, "ping")
				Expect(err).To(HaveOccurred())

				fresh := ts.dial(calc, "")
				defer fresh.Close()
				_, err = fresh.Call(ctx, "ping")
				Expect(err).ToNot(HaveOccurred())
			})
		}

		It("times out a slow reply", func() {
			tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
			defer cancel()
			_, err := client.Call(tctx, "slow", int32(500))
			Expect(errors.Is(err, &transport.TransportError{Kind: transport.TimedOut})).To(BeTrue())

			_, err = client.Call(ctx, "ping")
			Expect(errors.Is(err, ErrClientBroken)).To(BeTrue())
		})

		It("serializes calls on a shared client", func() {
			var wg sync.WaitGroup
			errs := make(chan error, 8)
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func(g int32) {
					defer GinkgoRecover()
					defer wg.Done()
					for i := int32(0); i < 25; i++ {
						v, err := client.Call(ctx, "add", g, i)
						if err != nil {
							errs <- err
							return
						}
						Expect(v).To(Equal(g + i))
					}
				}(int32(g))
			}
			wg.Wait()
			close(errs)
			Expect(errs).To(BeEmpty())
		})

		It("keeps concurrent connections apart", func() {
			var wg sync.WaitGroup
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func(g int32) {
					defer GinkgoRecover()
					defer wg.Done()
					c := ts.dial(calc, "")
					defer c.Close()
					for i := int32(0); i < 25; i++ {
						v, err := c.Call(ctx, "add", g*1000, i)
						Expect(err).ToNot(HaveOccurred())
						Expect(v).To(Equal(g*1000 + i))
					}
				}(int32(g))
			}
			wg.Wait()
		})
	})

	Context("with hooks", func() {
		It("reports every dispatch outcome", func() {
			hook := &recordingHook{}
			ts := startServer(NewProcessor(calc, ReflectHandler(calc, handler)), WithDispatchHook(hook), WithServerID("srv-1"))
			defer ts.stop()
			client := ts.dial(calc, "")
			defer client.Close()

			_, err := client.Call(ctx, "add", int32(1), int32(1))
			Expect(err).ToNot(HaveOccurred())
			_, err = client.Call(ctx, "divide", 1.0, 0.0)
			Expect(err).To(HaveOccurred())
			_, err = client.Call(ctx, "explode", "app")
			Expect(err).To(HaveOccurred())
			_, err = client.Call(ctx, "fire", "ok")
			Expect(err).ToNot(HaveOccurred())

			Eventually(hook.outcomes).Should(Equal([]string{
				"add:success",
				"divide:declared_exception",
				"explode:application_exception",
				"fire:oneway",
			}))
			hook.mu.Lock()
			defer hook.mu.Unlock()
			Expect(hook.starts[0].ServerID).To(Equal("srv-1"))
			Expect(hook.starts[0].Service).To(Equal("Calc"))
			Expect(hook.starts[0].RequestID).ToNot(BeEmpty())
			Expect(hook.starts[0].RequestID).ToNot(Equal(hook.starts[1].RequestID))
		})

		It("survives a panicking hook", func() {
			hook := &recordingHook{panics: true}
			ts := startServer(NewProcessor(calc, ReflectHandler(calc, handler)), WithDispatchHook(hook))
			defer ts.stop()
			client := ts.dial(calc, "")
			defer client.Close()

			v, err := client.Call(ctx, "add", int32(2), int32(2))
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(int32(4)))
			Expect(hook.outcomes()).To(BeEmpty())
		})
	})

	Context("multiplexed", func() {
		var ts *testServer

		BeforeEach(func() {
			echo := calcModule.Service("Echo")
			mux := NewMultiplexedProcessor()
			mux.RegisterProcessor("Calc", NewProcessor(calc, ReflectHandler(calc, handler)))
			mux.RegisterProcessor("Echo", NewProcessor(echo, ReflectHandler(echo, echoHandler{})))
			mux.RegisterDefault(NewProcessor(echo, ReflectHandler(echo, echoHandler{})))
			ts = startServer(mux)
		})

		AfterEach(func() { ts.stop() })

		It("routes each service over its own prefix", func() {
			c := ts.dial(calc, "Calc")
			defer c.Close()
			e := ts.dial(calcModule.Service("Echo"), "Echo")
			defer e.Close()

			v, err := c.Call(ctx, "add", int32(20), int32(22))
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(int32(42)))

			v, err = e.Call(ctx, "echo", "hi")
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal("hi"))
		})

		It("uses the default processor for unprefixed names", func() {
			e := ts.dial(calcModule.Service("Echo"), "")
			defer e.Close()
			v, err := e.Call(ctx, "echo", "plain")
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal("plain"))
		})

		It("rejects unknown services", func() {
			e := ts.dial(calcModule.Service("Echo"), "Nope")
			defer e.Close()
			_, err := e.Call(ctx, "echo", "x")
			Expect(errors.Is(err, &ApplicationException{Type: UnknownMethod})).To(BeTrue())
		})
	})

	Context("reply decoding", func() {
		replyClient := func(method string, res *ttype.Struct, seqid int32) *Client {
			m := calc.Method(method)
			buf := transport.NewMemoryBuffer()
			p := protocol.NewBinary(buf, nil)
			Expect(p.WriteMessageBegin(method, protocol.REPLY, seqid)).To(Succeed())
			Expect(protocol.WriteStruct(p, m.Result, res)).To(Succeed())
			Expect(p.WriteMessageEnd()).To(Succeed())
			return NewClient(calc, p, protocol.NewBinary(transport.NewMemoryBuffer(), nil))
		}

		It("prefers success when throws is also set", func() {
			m := calc.Method("divide")
			exc := ttype.New(calcModule.Struct("DivideByZero")).Set("message", "ignored")
			res := ttype.New(m.Result).Set("success", 2.5).Set("dz", exc)

			v, err := replyClient("divide", res, 0).Call(ctx, "divide", 5.0, 2.0)
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(2.5))
		})

		It("tolerates a sequence id mismatch", func() {
			res := ttype.New(calc.Method("add").Result).Set("success", int32(9))
			v, err := replyClient("add", res, 77).Call(ctx, "add", int32(4), int32(5))
			Expect(err).ToNot(HaveOccurred())
			Expect(v).To(Equal(int32(9)))
		})

		It("rejects a reply for another method", func() {
			res := ttype.New(calc.Method("ping").Result).Set("success", "pong")
			_, err := replyClient("ping", res, 0).Call(ctx, "add", int32(1), int32(1))
			Expect(errors.Is(err, &ApplicationException{Type: WrongMethodName})).To(BeTrue())
		})

		It("decodes an EXCEPTION message", func() {
			buf := transport.NewMemoryBuffer()
			p := protocol.NewBinary(buf, nil)
			Expect(writeApplicationException(p, "add", 0, NewApplicationException(BadSequenceID, "out of order"))).To(Succeed())
			_, err := NewClient(calc, p, protocol.NewBinary(transport.NewMemoryBuffer(), nil)).Call(ctx, "add", 1, 2)
			Expect(err).To(Equal(&ApplicationException{Type: BadSequenceID, Message: "out of order"}))
		})
	})

	Context("processor", func() {
		process := func(p *Processor, write func(protocol.Protocol)) (*transport.MemoryBuffer, error) {
			in := transport.NewMemoryBuffer()
			write(protocol.NewBinary(in, nil))
			out := transport.NewMemoryBuffer()
			err := p.Process(ctx, protocol.NewBinary(in, nil), protocol.NewBinary(out, nil))
			return out, err
		}

		It("answers a REPLY message with InvalidMessageType", func() {
			proc := NewProcessor(calc, ReflectHandler(calc, handler))
			out, err := process(proc, func(p protocol.Protocol) {
				_ = p.WriteMessageBegin("add", protocol.REPLY, 3)
				_ = protocol.WriteStruct(p, calc.Method("add").Args, ttype.New(calc.Method("add").Args))
			})
			Expect(err).ToNot(HaveOccurred())

			rp := protocol.NewBinary(out, nil)
			_, typ, seqid, err := rp.ReadMessageBegin()
			Expect(err).ToNot(HaveOccurred())
			Expect(typ).To(Equal(protocol.EXCEPTION))
			Expect(seqid).To(Equal(int32(3)))
			ae, err := ReadApplicationException(rp)
			Expect(err).ToNot(HaveOccurred())
			Expect(ae.Type).To(Equal(InvalidMessageType))
		})

		It("accepts the ONEWAY message type and writes nothing", func() {
			proc := NewProcessor(calc, ReflectHandler(calc, handler))
			out, err := process(proc, func(p protocol.Protocol) {
				_ = p.WriteMessageBegin("fire", protocol.ONEWAY, 1)
				_ = protocol.WriteStruct(p, calc.Method("fire").Args, ttype.New(calc.Method("fire").Args).Set("note", "x"))
			})
			Expect(err).ToNot(HaveOccurred())
			Expect(out.Len()).To(BeZero())
			Expect(handler.fired).To(Receive(Equal("x")))
		})

		It("fails on undecodable arguments", func() {
			proc := NewProcessor(calc, HandlerMap{})
			_, err := process(proc, func(p protocol.Protocol) {
				_ = p.WriteMessageBegin("add", protocol.CALL, 1)
				_ = p.WriteFieldBegin("a", ttype.I32, 1)
				_ = p.WriteI16(1)
			})
			Expect(err).To(HaveOccurred())
		})

		It("answers an unencodable result with InternalError", func() {
			proc := NewProcessor(calc, HandlerMap{
				"add": func(ctx context.Context, call *CallContext, args []any) (any, error) {
					return "oops", nil
				},
			})
			out, err := process(proc, func(p protocol.Protocol) {
				_ = p.WriteMessageBegin("add", protocol.CALL, 9)
				_ = protocol.WriteStruct(p, calc.Method("add").Args, ttype.New(calc.Method("add").Args).Set("a", int32(1)).Set("b", int32(2)))
			})
			Expect(err).To(MatchError(ContainSubstring("encoding reply")))

			rp := protocol.NewBinary(out, nil)
			name, typ, seqid, err := rp.ReadMessageBegin()
			Expect(err).ToNot(HaveOccurred())
			Expect(name).To(Equal("add"))
			Expect(typ).To(Equal(protocol.EXCEPTION))
			Expect(seqid).To(Equal(int32(9)))
			ae, err := ReadApplicationException(rp)
			Expect(err).ToNot(HaveOccurred())
			Expect(ae.Type).To(Equal(InternalError))
			Expect(ae.Message).To(ContainSubstring("encoding reply"))
		})

		It("dispatches through a HandlerMap", func() {
			proc := NewProcessor(calc, HandlerMap{
				"ping": func(ctx context.Context, call *CallContext, args []any) (any, error) {
					return "map:" + call.Method, nil
				},
			})
			Expect(proc.availableMethods()).To(Equal([]string{"ping"}))

			out, err := process(proc, func(p protocol.Protocol) {
				_ = p.WriteMessageBegin("ping", protocol.CALL, 5)
				_ = protocol.WriteStruct(p, calc.Method("ping").Args, ttype.New(calc.Method("ping").Args))
			})
			Expect(err).ToNot(HaveOccurred())
			rp := protocol.NewBinary(out, nil)
			_, typ, _, err := rp.ReadMessageBegin()
			Expect(err).ToNot(HaveOccurred())
			Expect(typ).To(Equal(protocol.REPLY))
			res, err := protocol.ReadStruct(rp, calc.Method("ping").Result)
			Expect(err).ToNot(HaveOccurred())
			Expect(res.Get("success")).To(Equal("map:ping"))
		})
	})
})
