// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"context"
	"log/slog"
	"math"
	"sync"

	"github.com/Query-farm/thriftrpc/thriftrpc"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// ServerID identifies the reference implementation in describe output.
const ServerID = "thriftrpc-conformance-go"

// Handler is the reference implementation of the Conformance service.
type Handler struct {
	mu    sync.Mutex
	notes []string
}

// NewHandler returns a Handler with no recorded notifications.
func NewHandler() *Handler { return &Handler{} }

// NewProcessor binds h to the Conformance service.
func NewProcessor(h *Handler) *thriftrpc.Processor {
	proc := thriftrpc.NewProcessor(Service(), thriftrpc.ReflectHandler(Service(), h))
	proc.SetServerID(ServerID)
	return proc
}

// --- Scalars ---

func (h *Handler) VoidNoop() {}

func (h *Handler) EchoBool(v bool) bool          { return v }
func (h *Handler) EchoByte(v int8) int8          { return v }
func (h *Handler) EchoI16(v int16) int16         { return v }
func (h *Handler) EchoInt(v int32) int32         { return v }
func (h *Handler) EchoI64(v int64) int64         { return v }
func (h *Handler) EchoFloat(v float64) float64   { return v }
func (h *Handler) EchoString(v string) string    { return v }
func (h *Handler) EchoBytes(v []byte) []byte     { return append([]byte{}, v...) }
func (h *Handler) EchoEnum(v int32) int32        { return v }
func (h *Handler) EchoList(v []int32) []int32    { return append([]int32{}, v...) }
func (h *Handler) EchoSet(v ttype.Set) ttype.Set { return append(ttype.Set{}, v...) }

func (h *Handler) EchoDict(v map[string]int64) map[string]int64 {
	if v == nil {
		return map[string]int64{}
	}
	return v
}

func (h *Handler) EchoNestedList(v [][]int32) [][]int32 {
	if v == nil {
		return [][]int32{}
	}
	return v
}

// EchoOptional reports an unset parameter as "<unset>".
func (h *Handler) EchoOptional(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case []byte:
		return string(s)
	}
	return "<unset>"
}

// --- Structs ---

func (h *Handler) EchoPoint(p *ttype.Struct) *ttype.Struct { return p }

// BoundingBox returns the smallest box containing points. An empty label
// leaves the declared default in place.
func (h *Handler) BoundingBox(points []*ttype.Struct, label string) (*ttype.Struct, error) {
	if len(points) == 0 {
		return nil, NewError("bounding_box needs at least one point", 0)
	}
	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, p := range points {
		x, _ := p.Get("x").(float64)
		y, _ := p.Get("y").(float64)
		minX, maxX = math.Min(minX, x), math.Max(maxX, x)
		minY, maxY = math.Min(minY, y), math.Max(maxY, y)
	}
	box := ttype.New(Module.Struct("BoundingBox")).
		Set("top_left", NewPoint(minX, maxY)).
		Set("bottom_right", NewPoint(maxX, minY))
	if label != "" {
		box.Set("label", label)
	}
	return box, nil
}

func (h *Handler) EchoAllTypes(v *ttype.Struct) *ttype.Struct { return v }

func (h *Handler) DefaultAllTypes() *ttype.Struct {
	return ttype.New(Module.Struct("AllTypes"))
}

// EchoShape rejects a union with no member set.
func (h *Handler) EchoShape(s *ttype.Struct) (*ttype.Struct, error) {
	if s == nil || s.Len() != 1 {
		return nil, NewError("shape must have exactly one member", 422)
	}
	return s, nil
}

// --- Errors ---

func (h *Handler) Divide(a, b float64) (float64, error) {
	if b == 0 {
		return 0, NewError("division by zero", 0)
	}
	return a / b, nil
}

func (h *Handler) RaiseError(message string, code int32) error {
	return NewError(message, code)
}

func (h *Handler) RaiseInternal(message string) error {
	return thriftrpc.NewApplicationException(thriftrpc.InternalError, "%s", message)
}

// --- Oneway and metadata ---

func (h *Handler) Notify(ctx context.Context, note string) {
	slog.DebugContext(ctx, "notification", "note", note)
	h.mu.Lock()
	h.notes = append(h.notes, note)
	h.mu.Unlock()
}

// Notifications returns the notes received so far, oldest first.
func (h *Handler) Notifications() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.notes...)
}

// EchoMetadata returns the transport metadata of the call. Transports that
// carry none produce an empty map.
func (h *Handler) EchoMetadata(call *thriftrpc.CallContext) map[string]string {
	out := make(map[string]string, len(call.Metadata))
	for k, v := range call.Metadata {
		out[k] = v
	}
	return out
}
