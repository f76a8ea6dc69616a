// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package compile

import (
	"io/fs"

	"github.com/Query-farm/thriftrpc/thriftrpc/idl"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// Option configures Load and LoadSource.
type Option func(*idl.Loader)

// WithSearchPath appends directories searched for includes after the
// including file's own directory.
func WithSearchPath(dirs ...string) Option {
	return func(l *idl.Loader) { l.SearchPath = append(l.SearchPath, dirs...) }
}

// WithFS resolves every schema path inside fsys instead of the OS file system.
func WithFS(fsys fs.FS) Option {
	return func(l *idl.Loader) { l.FS = fsys }
}

func newLoader(opts []Option) *idl.Loader {
	l := idl.NewLoader()
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load parses, resolves and compiles the schema at path. Every call yields a
// fresh Module; included files are compiled once per call.
func Load(path string, opts ...Option) (*ttype.Module, error) {
	doc, err := newLoader(opts).Load(path)
	if err != nil {
		return nil, err
	}
	return Build(doc)
}

// LoadSource compiles in-memory schema text. name determines the module name
// and the directory includes are resolved against.
func LoadSource(name string, src []byte, opts ...Option) (*ttype.Module, error) {
	doc, err := newLoader(opts).LoadSource(name, src)
	if err != nil {
		return nil, err
	}
	return Build(doc)
}

// MustLoad is like Load but panics on error. It is meant for package-level
// variables in tests and examples.
func MustLoad(path string, opts ...Option) *ttype.Module {
	m, err := Load(path, opts...)
	if err != nil {
		panic("compile: " + err.Error())
	}
	return m
}

// MustLoadSource is like LoadSource but panics on error.
func MustLoadSource(name string, src []byte, opts ...Option) *ttype.Module {
	m, err := LoadSource(name, src, opts...)
	if err != nil {
		panic("compile: " + err.Error())
	}
	return m
}
