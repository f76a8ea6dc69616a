// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// MessageProcessor handles exactly one inbound message per Process call.
// A nil error means the connection may continue with the next message.
type MessageProcessor interface {
	Process(ctx context.Context, in, out protocol.Protocol) error
}

// Processor dispatches the methods of one service to a Handler.
type Processor struct {
	svc      *ttype.ServiceDescriptor
	handler  Handler
	serverID string
	hook     DispatchHook
}

// NewProcessor returns a Processor for svc. Methods the handler does not
// provide answer with ApplicationException(UnknownMethod).
func NewProcessor(svc *ttype.ServiceDescriptor, handler Handler) *Processor {
	return &Processor{
		svc:      svc,
		handler:  handler,
		serverID: uuid.New().String()[:12],
	}
}

// Service returns the descriptor this processor serves.
func (p *Processor) Service() *ttype.ServiceDescriptor { return p.svc }

// Services returns the descriptor this processor serves as a one-element slice.
func (p *Processor) Services() []*ttype.ServiceDescriptor {
	return []*ttype.ServiceDescriptor{p.svc}
}

// SetServerID sets the server identifier reported to hooks and handlers.
func (p *Processor) SetServerID(id string) { p.serverID = id }

// ServerID returns the server identifier.
func (p *Processor) ServerID() string { return p.serverID }

// SetDispatchHook registers a hook invoked around each dispatch. Set it
// before serving; it is not safe to change while calls are in flight.
func (p *Processor) SetDispatchHook(hook DispatchHook) { p.hook = hook }

func (p *Processor) availableMethods() []string {
	var names []string
	for _, m := range p.svc.AllMethods() {
		if _, ok := p.handler.Lookup(m.Name); ok {
			names = append(names, m.Name)
		}
	}
	sort.Strings(names)
	return names
}

func (p *Processor) Process(ctx context.Context, in, out protocol.Protocol) error {
	inCounter := byteCounter(in.Transport())
	outCounter := byteCounter(out.Transport())
	var readStart, writeStart int64
	if inCounter != nil {
		readStart = inCounter.BytesRead()
	}
	if outCounter != nil {
		writeStart = outCounter.BytesWritten()
	}

	name, typ, seqid, err := in.ReadMessageBegin()
	if err != nil {
		return err
	}
	slog.Debug("dispatch", "method", name, "type", typ, "seqid", seqid)

	if typ != protocol.CALL && typ != protocol.ONEWAY {
		if err := skipMessage(in); err != nil {
			return err
		}
		return writeApplicationException(out, name, seqid,
			NewApplicationException(InvalidMessageType, "unexpected message type %s", typ))
	}

	m := p.svc.Method(name)
	var fn MethodFunc
	if m != nil {
		fn, _ = p.handler.Lookup(name)
	}
	if fn == nil {
		if err := skipMessage(in); err != nil {
			return err
		}
		if typ == protocol.ONEWAY || (m != nil && m.Oneway) {
			slog.Warn("oneway call to unknown method", "method", name)
			return nil
		}
		return writeApplicationException(out, name, seqid, NewApplicationException(UnknownMethod,
			"Unknown method: '%s'. Available methods: %v", name, p.availableMethods()))
	}
	oneway := m.Oneway || typ == protocol.ONEWAY

	args, err := protocol.ReadStruct(in, m.Args)
	if err == nil {
		err = in.ReadMessageEnd()
	}
	if err != nil {
		if !oneway {
			_ = writeApplicationException(out, name, seqid, NewApplicationException(ProtocolError, "%s: %v", name, err))
		}
		return fmt.Errorf("%s: decoding arguments: %w", name, err)
	}
	params := make([]any, len(m.Params))
	for i, f := range m.Params {
		params[i], _ = args.GetID(f.ID)
	}

	md := MetadataFromContext(ctx)
	call := &CallContext{
		Service:   p.svc.Name,
		Method:    name,
		SeqID:     seqid,
		RequestID: uuid.NewString(),
		ServerID:  p.serverID,
		Oneway:    oneway,
		Metadata:  md,
	}
	info := DispatchInfo{
		Service:           p.svc.Name,
		Method:            name,
		SeqID:             seqid,
		Oneway:            oneway,
		ServerID:          p.serverID,
		RequestID:         call.RequestID,
		TransportMetadata: md,
	}
	stats := &CallStatistics{}
	var (
		token      HookToken
		hookActive bool
	)
	if p.hook != nil {
		ctx, token, hookActive = dispatchStart(p.hook, ctx, info)
	}
	call.Ctx = ctx

	result, herr := invoke(ctx, fn, call, params)
	retErr := p.reply(out, m, seqid, oneway, result, herr, stats)

	if hookActive {
		if inCounter != nil {
			stats.InputBytes = inCounter.BytesRead() - readStart
		}
		if outCounter != nil {
			stats.OutputBytes = outCounter.BytesWritten() - writeStart
		}
		hookErr := herr
		if hookErr == nil {
			hookErr = retErr
		}
		dispatchEnd(p.hook, ctx, token, info, stats, hookErr)
	}
	return retErr
}

// reply writes the response for one dispatch and records its outcome.
func (p *Processor) reply(out protocol.Protocol, m *ttype.MethodSpec, seqid int32, oneway bool, result any, herr error, stats *CallStatistics) error {
	if oneway {
		stats.Outcome = OutcomeOneway
		if herr != nil {
			slog.Error("oneway handler error", "method", m.Name, "err", herr)
		}
		return nil
	}

	res := ttype.New(m.Result)
	var (
		exc *ttype.Exception
		ae  *ApplicationException
	)
	switch {
	case herr == nil:
		stats.Outcome = OutcomeSuccess
		if !m.Void() && result != nil {
			res.SetID(0, result)
		}
	case errors.As(herr, &exc) && p.setThrows(m, res, exc):
		stats.Outcome = OutcomeDeclaredException
	case errors.As(herr, &ae):
		stats.Outcome = OutcomeApplicationException
		return writeApplicationException(out, m.Name, seqid, ae)
	default:
		stats.Outcome = OutcomeInternalError
		slog.Error("undeclared handler error", "method", m.Name, "err", herr)
		_ = writeApplicationException(out, m.Name, seqid, NewApplicationException(InternalError, "%s", herr.Error()))
		return fmt.Errorf("%s: %w", m.Name, herr)
	}

	if _, err := protocol.Serialize(res); err != nil {
		stats.Outcome = OutcomeInternalError
		slog.Error("encoding reply failed", "method", m.Name, "err", err)
		_ = writeApplicationException(out, m.Name, seqid, NewApplicationException(InternalError, "%s: encoding reply: %s", m.Name, err.Error()))
		return fmt.Errorf("%s: encoding reply: %w", m.Name, err)
	}
	if err := out.WriteMessageBegin(m.Name, protocol.REPLY, seqid); err != nil {
		return err
	}
	if err := protocol.WriteStruct(out, m.Result, res); err != nil {
		return err
	}
	if err := out.WriteMessageEnd(); err != nil {
		return err
	}
	return out.Flush()
}

// setThrows stores exc in the first throws field of its type.
func (p *Processor) setThrows(m *ttype.MethodSpec, res *ttype.Struct, exc *ttype.Exception) bool {
	for _, f := range m.Throws {
		if ttype.SameType(f.Type.Struct, exc.Descriptor()) {
			res.SetID(f.ID, exc.Struct)
			return true
		}
	}
	return false
}

// invoke calls fn, converting a panic into an undeclared error.
func invoke(ctx context.Context, fn MethodFunc, call *CallContext, params []any) (result any, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			result, err = nil, fmt.Errorf("handler panic: %v", rv)
		}
	}()
	return fn(ctx, call, params)
}

func skipMessage(in protocol.Protocol) error {
	if err := in.Skip(ttype.STRUCT); err != nil {
		return err
	}
	return in.ReadMessageEnd()
}

// byteCounter finds a transport.Counting in the wrapper chain of t.
func byteCounter(t transport.Transport) *transport.Counting {
	for t != nil {
		if c, ok := t.(*transport.Counting); ok {
			return c
		}
		w, ok := t.(transport.Wrapper)
		if !ok {
			return nil
		}
		t = w.Underlying()
	}
	return nil
}
