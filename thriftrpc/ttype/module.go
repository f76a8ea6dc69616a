// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package ttype

import (
	"sort"
	"strings"
)

// Module holds every descriptor compiled from one schema file. It is
// immutable once built and safe to share between goroutines.
type Module struct {
	Name       string
	Path       string
	Namespaces map[string]string
	Includes   map[string]*Module

	Structs  map[string]*StructDescriptor
	Enums    map[string]*EnumDescriptor
	Services map[string]*ServiceDescriptor
	Typedefs map[string]*TypeSpec
	// Consts holds evaluated constants as canonical values.
	Consts map[string]any
}

// NewModule returns an empty module.
func NewModule(name, path string) *Module {
	return &Module{
		Name:       name,
		Path:       path,
		Namespaces: make(map[string]string),
		Includes:   make(map[string]*Module),
		Structs:    make(map[string]*StructDescriptor),
		Enums:      make(map[string]*EnumDescriptor),
		Services:   make(map[string]*ServiceDescriptor),
		Typedefs:   make(map[string]*TypeSpec),
		Consts:     make(map[string]any),
	}
}

// scope splits an include-qualified name and returns the module it lives in.
func (m *Module) scope(name string) (*Module, string) {
	if i := strings.IndexByte(name, '.'); i > 0 {
		if inc, ok := m.Includes[name[:i]]; ok {
			return inc, name[i+1:]
		}
	}
	return m, name
}

// Struct looks up a struct, union or exception; name may be include-qualified.
func (m *Module) Struct(name string) *StructDescriptor {
	if d, ok := m.Structs[name]; ok {
		return d
	}
	mod, local := m.scope(name)
	return mod.Structs[local]
}

// Enum looks up an enum.
func (m *Module) Enum(name string) *EnumDescriptor {
	if d, ok := m.Enums[name]; ok {
		return d
	}
	mod, local := m.scope(name)
	return mod.Enums[local]
}

// Service looks up a service.
func (m *Module) Service(name string) *ServiceDescriptor {
	if d, ok := m.Services[name]; ok {
		return d
	}
	mod, local := m.scope(name)
	return mod.Services[local]
}

// Const looks up an evaluated constant. The returned value is a copy.
func (m *Module) Const(name string) (any, bool) {
	v, ok := m.Consts[name]
	if !ok {
		mod, local := m.scope(name)
		v, ok = mod.Consts[local]
	}
	return CopyValue(v), ok
}

// Typedef looks up an alias.
func (m *Module) Typedef(name string) *TypeSpec {
	if t, ok := m.Typedefs[name]; ok {
		return t
	}
	mod, local := m.scope(name)
	return mod.Typedefs[local]
}

// ServiceNames returns the module's own service names, sorted.
func (m *Module) ServiceNames() []string { return sortedKeys(m.Services) }

// StructNames returns the module's own struct, union and exception names, sorted.
func (m *Module) StructNames() []string { return sortedKeys(m.Structs) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
