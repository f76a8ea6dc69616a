// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"fmt"
	"path"
	"strings"
)

// Parse parses one schema file. It performs no name resolution; use
// [Resolve] or a [Loader] to obtain a validated document.
func Parse(filename string, src []byte) (*Document, error) {
	p := &parser{lex: newLexer(filename, src)}
	if err := p.advance(); err != nil {
		return nil, err
	}
	doc := &Document{Name: documentName(filename), Path: filename}
	if err := p.document(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// documentName derives the include-qualifier name from a file path.
func documentName(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	if i := strings.LastIndexByte(base, '.'); i > 0 {
		base = base[:i]
	}
	return base
}

type parser struct {
	lex *lexer
	tok token
}

func (p *parser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *parser) errorf(format string, args ...any) error {
	return &SyntaxError{Kind: GrammarError, Pos: p.tok.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) isPunct(s string) bool {
	return p.tok.kind == tokPunct && p.tok.text == s
}

func (p *parser) isKeyword(s string) bool {
	return p.tok.kind == tokIdent && p.tok.text == s
}

func (p *parser) expectPunct(s string) error {
	if !p.isPunct(s) {
		return p.errorf("expected %q, found %s", s, p.tok)
	}
	return p.advance()
}

// identifier consumes a non-reserved identifier.
func (p *parser) identifier(what string) (string, Pos, error) {
	tok := p.tok
	if tok.kind != tokIdent {
		return "", tok.pos, p.errorf("expected %s, found %s", what, tok)
	}
	if keywords[tok.text] {
		return "", tok.pos, p.errorf("reserved word %q cannot be used as %s", tok.text, what)
	}
	return tok.text, tok.pos, p.advance()
}

func (p *parser) literal(what string) (string, error) {
	if p.tok.kind != tokString {
		return "", p.errorf("expected %s, found %s", what, p.tok)
	}
	s := p.tok.text
	return s, p.advance()
}

// listSeparator consumes an optional ',' or ';'.
func (p *parser) listSeparator() error {
	if p.isPunct(",") || p.isPunct(";") {
		return p.advance()
	}
	return nil
}

func (p *parser) document(doc *Document) error {
	// Headers must precede definitions.
headers:
	for {
		switch {
		case p.isKeyword("include"):
			pos := p.tok.pos
			if err := p.advance(); err != nil {
				return err
			}
			file, err := p.literal("include path")
			if err != nil {
				return err
			}
			doc.Includes = append(doc.Includes, &Include{Pos: pos, Path: file, Name: documentName(file)})
		case p.isKeyword("cpp_include"):
			if err := p.advance(); err != nil {
				return err
			}
			file, err := p.literal("cpp_include path")
			if err != nil {
				return err
			}
			doc.CppIncludes = append(doc.CppIncludes, file)
		case p.isKeyword("namespace"):
			ns, err := p.namespace()
			if err != nil {
				return err
			}
			doc.Namespaces = append(doc.Namespaces, ns)
		default:
			break headers
		}
		if err := p.listSeparator(); err != nil {
			return err
		}
	}

	for p.tok.kind != tokEOF {
		if p.isKeyword("include") || p.isKeyword("cpp_include") || p.isKeyword("namespace") {
			return p.errorf("%s must appear before definitions", p.tok.text)
		}
		def, err := p.definition(doc)
		if err != nil {
			return err
		}
		doc.Definitions = append(doc.Definitions, def)
		switch d := def.(type) {
		case *Typedef:
			doc.Typedefs = append(doc.Typedefs, d)
		case *Const:
			doc.Consts = append(doc.Consts, d)
		case *Enum:
			doc.Enums = append(doc.Enums, d)
		case *Struct:
			doc.Structs = append(doc.Structs, d)
		case *Service:
			doc.Services = append(doc.Services, d)
		}
	}
	return nil
}

func (p *parser) namespace() (*Namespace, error) {
	ns := &Namespace{Pos: p.tok.pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	switch {
	case p.isPunct("*"):
		ns.Scope = "*"
		if err := p.advance(); err != nil {
			return nil, err
		}
	case p.tok.kind == tokIdent:
		ns.Scope = p.tok.text
		if err := p.advance(); err != nil {
			return nil, err
		}
	default:
		return nil, p.errorf("expected namespace scope, found %s", p.tok)
	}
	if p.tok.kind != tokIdent {
		return nil, p.errorf("expected namespace name, found %s", p.tok)
	}
	ns.Name = p.tok.text
	return ns, p.advance()
}

func (p *parser) definition(doc *Document) (Definition, error) {
	if p.tok.kind != tokIdent {
		return nil, p.errorf("expected definition, found %s", p.tok)
	}
	switch p.tok.text {
	case "const":
		return p.constDef()
	case "typedef":
		return p.typedef()
	case "enum":
		return p.enum()
	case "struct":
		return p.structDef(doc, StructKindStruct)
	case "union":
		return p.structDef(doc, StructKindUnion)
	case "exception":
		return p.structDef(doc, StructKindException)
	case "service":
		return p.service(doc)
	}
	return nil, p.errorf("unexpected %s, expected a definition", p.tok)
}

func (p *parser) constDef() (*Const, error) {
	c := &Const{Pos: p.tok.pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var err error
	if c.Type, err = p.fieldType(); err != nil {
		return nil, err
	}
	if c.Name, _, err = p.identifier("constant name"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("="); err != nil {
		return nil, err
	}
	if c.Value, err = p.constValue(); err != nil {
		return nil, err
	}
	return c, p.listSeparator()
}

func (p *parser) typedef() (*Typedef, error) {
	t := &Typedef{Pos: p.tok.pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var err error
	if t.Type, err = p.fieldType(); err != nil {
		return nil, err
	}
	if t.Name, _, err = p.identifier("typedef name"); err != nil {
		return nil, err
	}
	if t.Annotations, err = p.annotations(); err != nil {
		return nil, err
	}
	return t, p.listSeparator()
}

func (p *parser) enum() (*Enum, error) {
	e := &Enum{Pos: p.tok.pos}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var err error
	if e.Name, _, err = p.identifier("enum name"); err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	for !p.isPunct("}") {
		item := &EnumItem{Enum: e}
		if item.Name, item.Pos, err = p.identifier("enum member"); err != nil {
			return nil, err
		}
		if p.isPunct("=") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			if p.tok.kind != tokInt {
				return nil, p.errorf("expected integer enum value, found %s", p.tok)
			}
			if p.tok.i < -1<<31 || p.tok.i > 1<<31-1 {
				return nil, p.errorf("enum value %d out of i32 range", p.tok.i)
			}
			item.Value = int32(p.tok.i)
			item.Explicit = true
			if err := p.advance(); err != nil {
				return nil, err
			}
		}
		if item.Annotations, err = p.annotations(); err != nil {
			return nil, err
		}
		if err := p.listSeparator(); err != nil {
			return nil, err
		}
		e.Items = append(e.Items, item)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if e.Annotations, err = p.annotations(); err != nil {
		return nil, err
	}
	return e, p.listSeparator()
}

func (p *parser) structDef(doc *Document, kind StructKind) (*Struct, error) {
	s := &Struct{Pos: p.tok.pos, Kind: kind, Doc: doc}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var err error
	if s.Name, _, err = p.identifier(kind.String() + " name"); err != nil {
		return nil, err
	}
	if p.isKeyword("xsd_all") {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	if s.Fields, err = p.fieldList("{", "}", true); err != nil {
		return nil, err
	}
	if s.Annotations, err = p.annotations(); err != nil {
		return nil, err
	}
	return s, p.listSeparator()
}

func (p *parser) service(doc *Document) (*Service, error) {
	s := &Service{Pos: p.tok.pos, Doc: doc}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var err error
	if s.Name, _, err = p.identifier("service name"); err != nil {
		return nil, err
	}
	if p.isKeyword("extends") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if s.Extends, _, err = p.identifier("base service name"); err != nil {
			return nil, err
		}
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	for !p.isPunct("}") {
		fn, err := p.function()
		if err != nil {
			return nil, err
		}
		s.Functions = append(s.Functions, fn)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if s.Annotations, err = p.annotations(); err != nil {
		return nil, err
	}
	return s, p.listSeparator()
}

func (p *parser) function() (*Function, error) {
	fn := &Function{Pos: p.tok.pos}
	if p.isKeyword("oneway") {
		fn.Oneway = true
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	var err error
	if p.isKeyword("void") {
		if err := p.advance(); err != nil {
			return nil, err
		}
	} else if fn.ReturnType, err = p.fieldType(); err != nil {
		return nil, err
	}
	if fn.Name, _, err = p.identifier("function name"); err != nil {
		return nil, err
	}
	if fn.Params, err = p.fieldList("(", ")", false); err != nil {
		return nil, err
	}
	if p.isKeyword("throws") {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if fn.Throws, err = p.fieldList("(", ")", false); err != nil {
			return nil, err
		}
	}
	if fn.Annotations, err = p.annotations(); err != nil {
		return nil, err
	}
	return fn, p.listSeparator()
}

func (p *parser) fieldList(open, close string, allowDefault bool) ([]*Field, error) {
	if err := p.expectPunct(open); err != nil {
		return nil, err
	}
	var fields []*Field
	for !p.isPunct(close) {
		f, err := p.field(allowDefault)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	return fields, p.advance()
}

func (p *parser) field(allowDefault bool) (*Field, error) {
	f := &Field{Pos: p.tok.pos}
	if p.tok.kind != tokInt {
		return nil, p.errorf("field identifier required, found %s", p.tok)
	}
	if p.tok.i < 1 || p.tok.i > 1<<15-1 {
		return nil, p.errorf("field identifier %d out of range 1..32767", p.tok.i)
	}
	f.ID = int(p.tok.i)
	if err := p.advance(); err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	switch {
	case p.isKeyword("required"):
		f.Requiredness = Required
	case p.isKeyword("optional"):
		f.Requiredness = Optional
	}
	if f.Requiredness != DefaultRequiredness {
		if err := p.advance(); err != nil {
			return nil, err
		}
	}
	var err error
	if f.Type, err = p.fieldType(); err != nil {
		return nil, err
	}
	if f.Name, _, err = p.identifier("field name"); err != nil {
		return nil, err
	}
	if p.isPunct("=") {
		if !allowDefault {
			return nil, p.errorf("default values are not allowed here")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if f.Default, err = p.constValue(); err != nil {
			return nil, err
		}
	}
	if f.Annotations, err = p.annotations(); err != nil {
		return nil, err
	}
	return f, p.listSeparator()
}

func (p *parser) fieldType() (*Type, error) {
	if p.tok.kind != tokIdent {
		return nil, p.errorf("expected type, found %s", p.tok)
	}
	t := &Type{Pos: p.tok.pos, Name: p.tok.text}
	if keywords[t.Name] {
		return nil, p.errorf("expected type, found reserved word %q", t.Name)
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var err error
	switch t.Name {
	case TypeList, TypeSet:
		if err := p.expectPunct("<"); err != nil {
			return nil, err
		}
		if t.Elem, err = p.fieldType(); err != nil {
			return nil, err
		}
		if err := p.expectPunct(">"); err != nil {
			return nil, err
		}
	case TypeMap:
		if err := p.expectPunct("<"); err != nil {
			return nil, err
		}
		if t.Key, err = p.fieldType(); err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		if t.Elem, err = p.fieldType(); err != nil {
			return nil, err
		}
		if err := p.expectPunct(">"); err != nil {
			return nil, err
		}
	}
	if t.Annotations, err = p.annotations(); err != nil {
		return nil, err
	}
	return t, nil
}

func (p *parser) annotations() ([]*Annotation, error) {
	if !p.isPunct("(") {
		return nil, nil
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	var out []*Annotation
	for !p.isPunct(")") {
		if p.tok.kind != tokIdent {
			return nil, p.errorf("expected annotation name, found %s", p.tok)
		}
		a := &Annotation{Pos: p.tok.pos, Name: p.tok.text}
		if err := p.advance(); err != nil {
			return nil, err
		}
		if p.isPunct("=") {
			if err := p.advance(); err != nil {
				return nil, err
			}
			v, err := p.literal("annotation value")
			if err != nil {
				return nil, err
			}
			a.Value = v
		}
		if err := p.listSeparator(); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, p.advance()
}

func (p *parser) constValue() (*ConstValue, error) {
	v := &ConstValue{Pos: p.tok.pos}
	switch p.tok.kind {
	case tokInt:
		v.Kind, v.Int = ConstInt, p.tok.i
	case tokDouble:
		v.Kind, v.Double = ConstDouble, p.tok.f
	case tokString:
		v.Kind, v.Str = ConstString, p.tok.text
	case tokIdent:
		switch p.tok.text {
		case "true", "false":
			v.Kind, v.Bool = ConstBool, p.tok.text == "true"
		default:
			if keywords[p.tok.text] {
				return nil, p.errorf("unexpected reserved word %q in constant", p.tok.text)
			}
			v.Kind, v.Ident = ConstIdent, p.tok.text
		}
	case tokPunct:
		switch p.tok.text {
		case "[":
			return p.constList(v)
		case "{":
			return p.constMap(v)
		}
		return nil, p.errorf("expected constant value, found %s", p.tok)
	default:
		return nil, p.errorf("expected constant value, found %s", p.tok)
	}
	return v, p.advance()
}

func (p *parser) constList(v *ConstValue) (*ConstValue, error) {
	v.Kind = ConstList
	if err := p.advance(); err != nil {
		return nil, err
	}
	for !p.isPunct("]") {
		elem, err := p.constValue()
		if err != nil {
			return nil, err
		}
		v.List = append(v.List, elem)
		if err := p.listSeparator(); err != nil {
			return nil, err
		}
	}
	return v, p.advance()
}

func (p *parser) constMap(v *ConstValue) (*ConstValue, error) {
	v.Kind = ConstMap
	if err := p.advance(); err != nil {
		return nil, err
	}
	for !p.isPunct("}") {
		key, err := p.constValue()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(":"); err != nil {
			return nil, err
		}
		val, err := p.constValue()
		if err != nil {
			return nil, err
		}
		v.Map = append(v.Map, &ConstMapEntry{Key: key, Value: val})
		if err := p.listSeparator(); err != nil {
			return nil, err
		}
	}
	return v, p.advance()
}
