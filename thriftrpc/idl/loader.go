// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Loader parses schema files and their includes. Each file is parsed once
// per Loader; include cycles are reported as a *SemanticError.
//
// Includes are searched relative to the including file first, then in each
// SearchPath directory in order. When FS is set, all paths are resolved
// inside it using slash-separated names; otherwise the OS file system is used.
type Loader struct {
	SearchPath []string
	FS         fs.FS

	docs  map[string]*Document
	stack []string
}

// NewLoader returns a Loader reading from the OS file system.
func NewLoader(searchPath ...string) *Loader {
	return &Loader{SearchPath: searchPath}
}

// Load parses and resolves the schema file at filename and everything it includes.
func (l *Loader) Load(filename string) (*Document, error) {
	key := l.clean(filename)
	if doc, ok := l.docs[key]; ok {
		return doc, nil
	}
	src, err := l.read(key)
	if err != nil {
		return nil, errors.Wrapf(err, "reading schema %s", filename)
	}
	return l.load(key, src)
}

// LoadSource parses and resolves in-memory schema text. Includes are
// searched relative to the directory of name, then the search path.
func (l *Loader) LoadSource(name string, src []byte) (*Document, error) {
	return l.load(l.clean(name), src)
}

func (l *Loader) load(key string, src []byte) (*Document, error) {
	for i, p := range l.stack {
		if p == key {
			chain := append(append([]string{}, l.stack[i:]...), key)
			return nil, &SemanticError{Msg: "circular include: " + strings.Join(chain, " -> ")}
		}
	}
	l.stack = append(l.stack, key)
	defer func() { l.stack = l.stack[:len(l.stack)-1] }()

	doc, err := Parse(key, src)
	if err != nil {
		return nil, err
	}
	for _, inc := range doc.Includes {
		incPath, err := l.find(l.dir(key), inc.Path)
		if err != nil {
			return nil, &SemanticError{Pos: inc.Pos, Msg: "include " + inc.Path + " not found", Err: err}
		}
		if inc.Doc, err = l.Load(incPath); err != nil {
			return nil, err
		}
	}
	if err := Resolve(doc); err != nil {
		return nil, err
	}
	if l.docs == nil {
		l.docs = make(map[string]*Document)
	}
	l.docs[key] = doc
	return doc, nil
}

// find locates an include relative to dir, then along the search path.
func (l *Loader) find(dir, name string) (string, error) {
	candidates := make([]string, 0, len(l.SearchPath)+1)
	if l.isAbs(name) {
		candidates = append(candidates, name)
	} else {
		candidates = append(candidates, l.join(dir, name))
		for _, sp := range l.SearchPath {
			candidates = append(candidates, l.join(sp, name))
		}
	}
	for _, c := range candidates {
		c = l.clean(c)
		if l.exists(c) {
			return c, nil
		}
	}
	return "", errors.Errorf("searched %s", strings.Join(candidates, ", "))
}

func (l *Loader) read(name string) ([]byte, error) {
	if l.FS != nil {
		return fs.ReadFile(l.FS, name)
	}
	return os.ReadFile(name)
}

func (l *Loader) exists(name string) bool {
	var (
		info fs.FileInfo
		err  error
	)
	if l.FS != nil {
		info, err = fs.Stat(l.FS, name)
	} else {
		info, err = os.Stat(name)
	}
	return err == nil && !info.IsDir()
}

func (l *Loader) clean(name string) string {
	if l.FS != nil {
		return path.Clean(strings.TrimPrefix(name, "/"))
	}
	return filepath.Clean(name)
}

func (l *Loader) join(elem ...string) string {
	if l.FS != nil {
		return path.Join(elem...)
	}
	return filepath.Join(elem...)
}

func (l *Loader) dir(name string) string {
	if l.FS != nil {
		return path.Dir(name)
	}
	return filepath.Dir(name)
}

func (l *Loader) isAbs(name string) bool {
	if l.FS != nil {
		return false
	}
	return filepath.IsAbs(name)
}
