// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package ttype

import "fmt"

// SuccessField is the name of field 0 in method result envelopes.
const SuccessField = "success"

// MethodSpec describes one service method together with its envelopes.
type MethodSpec struct {
	Name    string
	Service *ServiceDescriptor
	// Return is nil for void methods.
	Return *TypeSpec
	// Params are in declaration order, which is the positional call order.
	Params []*FieldSpec
	Throws []*FieldSpec
	Oneway bool

	// Args is the <method>_args envelope, with one field per parameter.
	Args *StructDescriptor
	// Result is the <method>_result envelope: field 0 "success" for
	// non-void methods followed by the optional throws fields.
	Result *StructDescriptor
}

// Void reports whether the method returns nothing.
func (m *MethodSpec) Void() bool { return m.Return == nil }

// FullName returns "Service.method".
func (m *MethodSpec) FullName() string {
	if m.Service == nil {
		return m.Name
	}
	return m.Service.Name + "." + m.Name
}

// ServiceDescriptor describes a service and its inheritance chain.
type ServiceDescriptor struct {
	Name    string
	Module  string
	Extends *ServiceDescriptor
	// Methods holds the service's own methods in declaration order.
	Methods []*MethodSpec

	byName map[string]*MethodSpec
}

// NewServiceDescriptor declares a service with no methods.
func NewServiceDescriptor(module, name string, extends *ServiceDescriptor) *ServiceDescriptor {
	return &ServiceDescriptor{Name: name, Module: module, Extends: extends, byName: make(map[string]*MethodSpec)}
}

// QualifiedName returns "module.Name".
func (s *ServiceDescriptor) QualifiedName() string {
	if s.Module == "" {
		return s.Name
	}
	return s.Module + "." + s.Name
}

// AddMethod builds the method's envelopes and appends it. Names must be
// unique across the whole extends chain; throws must be exception structs.
func (s *ServiceDescriptor) AddMethod(name string, ret *TypeSpec, params, throws []*FieldSpec, oneway bool) (*MethodSpec, error) {
	if prev := s.Method(name); prev != nil {
		return nil, fmt.Errorf("service %s: method %q collides with %s", s.Name, name, prev.FullName())
	}
	if oneway && (ret != nil || len(throws) > 0) {
		return nil, fmt.Errorf("service %s: oneway method %q must be void without throws", s.Name, name)
	}
	m := &MethodSpec{Name: name, Service: s, Return: ret, Params: params, Throws: throws, Oneway: oneway}

	scope := s.QualifiedName()
	m.Args = NewStructDescriptor(scope, name+"_args", KindStruct)
	if err := m.Args.SetFields(params); err != nil {
		return nil, err
	}

	resultFields := make([]*FieldSpec, 0, len(throws)+1)
	if ret != nil {
		resultFields = append(resultFields, &FieldSpec{ID: 0, Name: SuccessField, Type: ret, Required: Optional})
	}
	for _, f := range throws {
		if f.Type.Type != STRUCT || !f.Type.Struct.IsException() {
			return nil, fmt.Errorf("%s.%s: throws field %q is not an exception", s.Name, name, f.Name)
		}
		if f.Name == SuccessField {
			return nil, fmt.Errorf("%s.%s: throws field may not be named %q", s.Name, name, SuccessField)
		}
		if f.ID == 0 {
			return nil, fmt.Errorf("%s.%s: throws field %q may not use id 0", s.Name, name, f.Name)
		}
		resultFields = append(resultFields, &FieldSpec{ID: f.ID, Name: f.Name, Type: f.Type, Required: Optional})
	}
	m.Result = NewStructDescriptor(scope, name+"_result", KindStruct)
	if err := m.Result.SetFields(resultFields); err != nil {
		return nil, err
	}

	s.Methods = append(s.Methods, m)
	s.byName[name] = m
	return m, nil
}

// Method finds a method by name, searching the extends chain.
func (s *ServiceDescriptor) Method(name string) *MethodSpec {
	for svc := s; svc != nil; svc = svc.Extends {
		if m, ok := svc.byName[name]; ok {
			return m
		}
	}
	return nil
}

// AllMethods returns the effective method set: inherited methods first, in
// chain order from the root, then the service's own methods.
func (s *ServiceDescriptor) AllMethods() []*MethodSpec {
	var out []*MethodSpec
	if s.Extends != nil {
		out = s.Extends.AllMethods()
	}
	return append(out, s.Methods...)
}

// MethodNames lists AllMethods by name.
func (s *ServiceDescriptor) MethodNames() []string {
	methods := s.AllMethods()
	names := make([]string, len(methods))
	for i, m := range methods {
		names[i] = m.Name
	}
	return names
}
