// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package idl

import (
	"fmt"
	"strconv"
	"strings"
)

// Format renders doc as canonical schema text. Definitions keep their
// declaration order; comments are not preserved.
func Format(doc *Document) string {
	f := &formatter{dst: &strings.Builder{}}
	f.document(doc)
	return f.dst.String()
}

type formatter struct {
	dst *strings.Builder
}

func (f *formatter) printf(format string, args ...any) {
	fmt.Fprintf(f.dst, format, args...)
}

func (f *formatter) document(doc *Document) {
	for _, inc := range doc.Includes {
		f.printf("include %s\n", quoteLiteral(inc.Path))
	}
	for _, inc := range doc.CppIncludes {
		f.printf("cpp_include %s\n", quoteLiteral(inc))
	}
	if len(doc.Includes)+len(doc.CppIncludes) > 0 {
		f.dst.WriteString("\n")
	}
	for _, ns := range doc.Namespaces {
		f.printf("namespace %s %s\n", ns.Scope, ns.Name)
	}
	if len(doc.Namespaces) > 0 {
		f.dst.WriteString("\n")
	}

	for i, def := range doc.Definitions {
		if i > 0 {
			f.dst.WriteString("\n")
		}
		switch d := def.(type) {
		case *Typedef:
			f.printf("typedef %s %s%s\n", typeString(d.Type), d.Name, annotationString(d.Annotations))
		case *Const:
			f.printf("const %s %s = %s\n", typeString(d.Type), d.Name, constString(d.Value))
		case *Enum:
			f.enum(d)
		case *Struct:
			f.structDef(d)
		case *Service:
			f.service(d)
		}
	}
}

func (f *formatter) enum(e *Enum) {
	f.printf("enum %s {\n", e.Name)
	for _, it := range e.Items {
		if it.Explicit {
			f.printf("    %s = %d%s,\n", it.Name, it.Value, annotationString(it.Annotations))
		} else {
			f.printf("    %s%s,\n", it.Name, annotationString(it.Annotations))
		}
	}
	f.printf("}%s\n", annotationString(e.Annotations))
}

func (f *formatter) structDef(s *Struct) {
	f.printf("%s %s {\n", s.Kind, s.Name)
	for _, field := range s.Fields {
		f.printf("    %s,\n", fieldString(field))
	}
	f.printf("}%s\n", annotationString(s.Annotations))
}

func (f *formatter) service(s *Service) {
	if s.Extends != "" {
		f.printf("service %s extends %s {\n", s.Name, s.Extends)
	} else {
		f.printf("service %s {\n", s.Name)
	}
	for _, fn := range s.Functions {
		f.dst.WriteString("    ")
		if fn.Oneway {
			f.dst.WriteString("oneway ")
		}
		if fn.ReturnType == nil {
			f.dst.WriteString("void")
		} else {
			f.dst.WriteString(typeString(fn.ReturnType))
		}
		f.printf(" %s(%s)", fn.Name, fieldsString(fn.Params))
		if len(fn.Throws) > 0 {
			f.printf(" throws (%s)", fieldsString(fn.Throws))
		}
		f.printf("%s,\n", annotationString(fn.Annotations))
	}
	f.printf("}%s\n", annotationString(s.Annotations))
}

func fieldsString(fields []*Field) string {
	parts := make([]string, len(fields))
	for i, field := range fields {
		parts[i] = fieldString(field)
	}
	return strings.Join(parts, ", ")
}

func fieldString(field *Field) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d: ", field.ID)
	if r := field.Requiredness.String(); r != "" {
		sb.WriteString(r + " ")
	}
	sb.WriteString(typeString(field.Type))
	sb.WriteString(" " + field.Name)
	if field.Default != nil {
		sb.WriteString(" = " + constString(field.Default))
	}
	sb.WriteString(annotationString(field.Annotations))
	return sb.String()
}

func typeString(t *Type) string {
	var s string
	switch t.Name {
	case TypeList, TypeSet:
		s = fmt.Sprintf("%s<%s>", t.Name, typeString(t.Elem))
	case TypeMap:
		s = fmt.Sprintf("map<%s, %s>", typeString(t.Key), typeString(t.Elem))
	default:
		s = t.Name
	}
	return s + annotationString(t.Annotations)
}

func annotationString(annotations []*Annotation) string {
	if len(annotations) == 0 {
		return ""
	}
	parts := make([]string, len(annotations))
	for i, a := range annotations {
		parts[i] = fmt.Sprintf("%s = %s", a.Name, quoteLiteral(a.Value))
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func constString(v *ConstValue) string {
	switch v.Kind {
	case ConstInt:
		return strconv.FormatInt(v.Int, 10)
	case ConstDouble:
		s := strconv.FormatFloat(v.Double, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return s
	case ConstString:
		return quoteLiteral(v.Str)
	case ConstBool:
		return strconv.FormatBool(v.Bool)
	case ConstIdent:
		return v.Ident
	case ConstList:
		parts := make([]string, len(v.List))
		for i, e := range v.List {
			parts[i] = constString(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case ConstMap:
		parts := make([]string, len(v.Map))
		for i, e := range v.Map {
			parts[i] = constString(e.Key) + ": " + constString(e.Value)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	}
	return ""
}

// quoteLiteral quotes s using only the escapes the lexer understands.
func quoteLiteral(s string) string {
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			sb.WriteString(`\n`)
		case '\t':
			sb.WriteString(`\t`)
		case '\r':
			sb.WriteString(`\r`)
		case '\\':
			sb.WriteString(`\\`)
		case '"':
			sb.WriteString(`\"`)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte('"')
	return sb.String()
}
