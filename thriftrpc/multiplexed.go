// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// MultiplexedProcessor routes "service:method" messages to the processor
// registered under the service name.
type MultiplexedProcessor struct {
	mu    sync.RWMutex
	procs map[string]MessageProcessor
	def   MessageProcessor
}

func NewMultiplexedProcessor() *MultiplexedProcessor {
	return &MultiplexedProcessor{procs: make(map[string]MessageProcessor)}
}

// RegisterProcessor routes messages prefixed with name to p.
func (m *MultiplexedProcessor) RegisterProcessor(name string, p MessageProcessor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.procs[name] = p
}

// RegisterDefault routes messages without a service prefix to p.
func (m *MultiplexedProcessor) RegisterDefault(p MessageProcessor) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.def = p
}

// SetDispatchHook sets hook on every registered processor that accepts one.
func (m *MultiplexedProcessor) SetDispatchHook(hook DispatchHook) {
	m.each(func(p MessageProcessor) {
		if hs, ok := p.(interface{ SetDispatchHook(DispatchHook) }); ok {
			hs.SetDispatchHook(hook)
		}
	})
}

// SetServerID sets id on every registered processor that accepts one.
func (m *MultiplexedProcessor) SetServerID(id string) {
	m.each(func(p MessageProcessor) {
		if s, ok := p.(interface{ SetServerID(string) }); ok {
			s.SetServerID(id)
		}
	})
}

// Services returns the descriptors of all registered processors.
func (m *MultiplexedProcessor) Services() []*ttype.ServiceDescriptor {
	var out []*ttype.ServiceDescriptor
	seen := make(map[*ttype.ServiceDescriptor]bool)
	m.each(func(p MessageProcessor) {
		d, ok := p.(interface {
			Services() []*ttype.ServiceDescriptor
		})
		if !ok {
			return
		}
		for _, s := range d.Services() {
			if !seen[s] {
				seen[s] = true
				out = append(out, s)
			}
		}
	})
	return out
}

func (m *MultiplexedProcessor) each(fn func(MessageProcessor)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.procs))
	for name := range m.procs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fn(m.procs[name])
	}
	if m.def != nil {
		fn(m.def)
	}
}

func (m *MultiplexedProcessor) Process(ctx context.Context, in, out protocol.Protocol) error {
	name, typ, seqid, err := in.ReadMessageBegin()
	if err != nil {
		return err
	}

	m.mu.RLock()
	service, method, found := strings.Cut(name, protocol.MultiplexSeparator)
	var p MessageProcessor
	if found {
		p = m.procs[service]
	} else {
		p, method = m.def, name
	}
	m.mu.RUnlock()

	if p == nil {
		if err := skipMessage(in); err != nil {
			return err
		}
		if typ == protocol.ONEWAY {
			return nil
		}
		ae := NewApplicationException(UnknownMethod, "unknown service %q", service)
		if !found {
			ae = NewApplicationException(UnknownMethod, "no service name in %q and no default processor", name)
		}
		return writeApplicationException(out, name, seqid, ae)
	}
	return p.Process(ctx, protocol.NewStoredMessage(in, method, typ, seqid), out)
}
