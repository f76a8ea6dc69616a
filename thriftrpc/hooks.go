// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"context"
	"log/slog"
)

// Outcome strings recorded in CallStatistics.Outcome.
const (
	OutcomeSuccess              = "success"
	OutcomeDeclaredException    = "declared_exception"
	OutcomeApplicationException = "application_exception"
	OutcomeInternalError        = "internal_error"
	OutcomeOneway               = "oneway"
)

// DispatchHook provides observability callpoints around server-side dispatch.
// Implementations must be safe for concurrent use (servers dispatch
// connections concurrently).
type DispatchHook interface {
	OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken)
	OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error)
}

// HookToken is an opaque value returned by a start callback and passed back
// to the matching end callback. Only meaningful to the hook that created it.
type HookToken interface{}

// DispatchInfo carries method metadata passed to dispatch hooks.
type DispatchInfo struct {
	Service           string            // Service declaring the method
	Method            string            // RPC method name
	SeqID             int32             // Sequence id from the message header
	Oneway            bool              // No reply is written
	ServerID          string            // Server identifier
	RequestID         string            // Server-generated request identifier
	TransportMetadata map[string]string // Transport-level metadata (HTTP headers)
}

// CallStatistics records how a dispatch ended and the wire bytes it used
// where the transport counts them.
type CallStatistics struct {
	Outcome     string
	InputBytes  int64
	OutputBytes int64
}

// CallHook provides observability callpoints around client calls.
type CallHook interface {
	OnCallStart(ctx context.Context, info *CallInfo) (context.Context, HookToken)
	OnCallEnd(ctx context.Context, token HookToken, info *CallInfo, err error)
}

// CallInfo describes an outgoing call. Hooks may add Metadata entries in
// OnCallStart; transports that carry headers send them with the request.
type CallInfo struct {
	Service  string
	Method   string
	SeqID    int32
	Oneway   bool
	Metadata map[string]string
}

func dispatchStart(hook DispatchHook, ctx context.Context, info DispatchInfo) (context.Context, HookToken, bool) {
	var (
		token  HookToken
		active bool
	)
	func() {
		defer func() {
			if rv := recover(); rv != nil {
				slog.Error("dispatch hook start panic", "err", rv)
			}
		}()
		var hookCtx context.Context
		hookCtx, token = hook.OnDispatchStart(ctx, info)
		if hookCtx != nil {
			ctx = hookCtx
		}
		active = true
	}()
	return ctx, token, active
}

func dispatchEnd(hook DispatchHook, ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			slog.Error("dispatch hook end panic", "err", rv)
		}
	}()
	hook.OnDispatchEnd(ctx, token, info, stats, err)
}

func callStart(hook CallHook, ctx context.Context, info *CallInfo) (context.Context, HookToken, bool) {
	var (
		token  HookToken
		active bool
	)
	func() {
		defer func() {
			if rv := recover(); rv != nil {
				slog.Error("call hook start panic", "err", rv)
			}
		}()
		var hookCtx context.Context
		hookCtx, token = hook.OnCallStart(ctx, info)
		if hookCtx != nil {
			ctx = hookCtx
		}
		active = true
	}()
	return ctx, token, active
}

func callEnd(hook CallHook, ctx context.Context, token HookToken, info *CallInfo, err error) {
	defer func() {
		if rv := recover(); rv != nil {
			slog.Error("call hook end panic", "err", rv)
		}
	}()
	hook.OnCallEnd(ctx, token, info, err)
}

// ChainDispatchHooks returns a hook that calls each of hooks in order on
// start and in reverse order on end.
func ChainDispatchHooks(hooks ...DispatchHook) DispatchHook {
	if len(hooks) == 1 {
		return hooks[0]
	}
	return dispatchChain(hooks)
}

type dispatchChain []DispatchHook

func (c dispatchChain) OnDispatchStart(ctx context.Context, info DispatchInfo) (context.Context, HookToken) {
	tokens := make([]HookToken, len(c))
	for i, h := range c {
		var tok HookToken
		var active bool
		ctx, tok, active = dispatchStart(h, ctx, info)
		if !active {
			tok = skippedHook{}
		}
		tokens[i] = tok
	}
	return ctx, tokens
}

func (c dispatchChain) OnDispatchEnd(ctx context.Context, token HookToken, info DispatchInfo, stats *CallStatistics, err error) {
	tokens, _ := token.([]HookToken)
	for i := len(c) - 1; i >= 0; i-- {
		var tok HookToken
		if i < len(tokens) {
			tok = tokens[i]
		}
		if _, skip := tok.(skippedHook); skip {
			continue
		}
		dispatchEnd(c[i], ctx, tok, info, stats, err)
	}
}

// skippedHook marks a chained hook whose start panicked.
type skippedHook struct{}
