// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package compile

import (
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/Query-farm/thriftrpc/thriftrpc/idl"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

const addressBook = "../idl/testdata/addressbook.thrift"

func TestLoadAddressBook(t *testing.T) {
	m, err := Load(addressBook)
	if err != nil {
		t.Fatal(err)
	}
	if m.Name != "addressbook" {
		t.Errorf("module name = %q", m.Name)
	}

	person := m.Struct("Person")
	if person == nil {
		t.Fatal("Person not compiled")
	}
	if got := person.QualifiedName(); got != "addressbook.Person" {
		t.Errorf("qualified name = %s", got)
	}
	if mgr := person.FieldByName("manager"); mgr.Type.Struct != person || mgr.Required != ttype.Optional {
		t.Errorf("manager field = %+v", mgr)
	}
	if name := person.FieldByName("name"); name.Type.Type != ttype.STRING {
		t.Errorf("typedef Name compiled to %s", name.Type)
	}
	audit := person.FieldByName("audit").Type.Struct
	if audit == nil || audit.QualifiedName() != "shared.Audit" {
		t.Fatalf("audit type = %v", audit)
	}
	if audit.FieldByName("created_at").Type.Type != ttype.I64 {
		t.Errorf("Timestamp should compile to i64")
	}
	if audit != m.Struct("shared.Audit") {
		t.Errorf("include lookup returned a different descriptor")
	}

	phone := m.Struct("PhoneNumber")
	tags := phone.FieldByName("tags").Type
	if tags.Type != ttype.LIST || tags.Elem.Struct != m.Struct("Tag") {
		t.Errorf("forward reference not bound: %s", tags)
	}
	if v := ttype.New(phone).Get("type"); v != int32(0) {
		t.Errorf("enum default = %#v", v)
	}
	if !m.Struct("Contact").IsUnion() {
		t.Errorf("Contact should be a union")
	}
}

func TestConstants(t *testing.T) {
	m, err := Load(addressBook)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		want any
	}{
		{"DEFAULT_LIST_SIZE", int16(10)},
		{"DEFAULT_STATUS", int32(0)},
		{"TAGS", []any{"home", "work"}},
		{"LIMITS", ttype.Map{{Key: "people", Value: int32(100)}, {Key: "phones", Value: int32(5)}}},
		{"shared.DEFAULT_PAGE", int32(20)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := m.Const(tt.name)
			if !ok {
				t.Fatalf("constant %s missing", tt.name)
			}
			if !ttype.Equal(got, tt.want) {
				t.Errorf("%s = %#v, want %#v", tt.name, got, tt.want)
			}
		})
	}
}

func TestServiceInheritance(t *testing.T) {
	m, err := Load(addressBook)
	if err != nil {
		t.Fatal(err)
	}
	svc := m.Service("AddressBookService")
	if svc.Extends == nil || svc.Extends.Name != "Base" {
		t.Fatalf("extends = %v", svc.Extends)
	}
	if svc.Method("ping") == nil {
		t.Errorf("inherited ping missing")
	}
	want := "[ping version hello add remove get book get_phones get_all_phones sleep]"
	if got := fmt.Sprint(svc.MethodNames()); got != want {
		t.Errorf("methods = %s\nwant      %s", got, want)
	}

	sleep := svc.Method("sleep")
	if !sleep.Oneway || !sleep.Void() {
		t.Errorf("sleep should be oneway void")
	}
	get := svc.Method("get")
	if get.Result.Field(0).Type.Struct != m.Struct("Person") {
		t.Errorf("get success type = %s", get.Result.Field(0).Type)
	}
	if f := get.Result.FieldByName("not_exists"); f == nil || !f.Type.Struct.IsException() {
		t.Errorf("get throws = %+v", f)
	}
	phones := svc.Method("get_all_phones")
	if ret := phones.Return; ret.Type != ttype.MAP || ret.Elem.Type != ttype.LIST {
		t.Errorf("get_all_phones returns %s", ret)
	}
	if p := phones.Args.FieldByName("names"); p.Type.Type != ttype.SET {
		t.Errorf("names param = %s", p.Type)
	}
}

func TestFreshDescriptorsPerLoad(t *testing.T) {
	a, err := Load(addressBook)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Load(addressBook)
	if err != nil {
		t.Fatal(err)
	}
	if a.Struct("Person") == b.Struct("Person") {
		t.Fatal("descriptors shared between loads")
	}
	x := ttype.New(a.Struct("Person")).Set("name", "alice")
	y := ttype.New(b.Struct("Person")).Set("name", "alice")
	if !ttype.Equal(x, y) {
		t.Errorf("values from two loads should compare equal")
	}
}

func TestStructConstants(t *testing.T) {
	fsys := fstest.MapFS{
		"point.thrift": {Data: []byte(`
struct Point { 1: i32 x, 2: i32 y = 7 }
const Point ORIGIN = {"x": 0}
exception Oops { 1: string message }
const Oops DEFAULT_OOPS = {"message": "boom"}
struct Shape { 1: Point center = ORIGIN, 2: binary blob = "raw" }
`)},
	}
	m, err := Load("point.thrift", WithFS(fsys))
	if err != nil {
		t.Fatal(err)
	}
	origin, _ := m.Const("ORIGIN")
	p, ok := origin.(*ttype.Struct)
	if !ok {
		t.Fatalf("ORIGIN = %T", origin)
	}
	if p.Get("x") != int32(0) || p.Get("y") != int32(7) {
		t.Errorf("ORIGIN = %s", p)
	}
	oops, _ := m.Const("DEFAULT_OOPS")
	if exc, ok := oops.(*ttype.Exception); !ok || exc.Error() != "Oops: boom" {
		t.Errorf("DEFAULT_OOPS = %#v", oops)
	}
	shape := ttype.New(m.Struct("Shape"))
	if !ttype.Equal(shape.Get("center"), p) {
		t.Errorf("center default = %v", shape.Get("center"))
	}
	if b, ok := shape.Get("blob").([]byte); !ok || string(b) != "raw" {
		t.Errorf("binary default = %#v", shape.Get("blob"))
	}
}

func TestSearchPath(t *testing.T) {
	fsys := fstest.MapFS{
		"lib/common.thrift": {Data: []byte(`struct Id { 1: i64 value }`)},
		"app/main.thrift":   {Data: []byte("include \"common.thrift\"\nstruct User { 1: common.Id id }")},
	}
	if _, err := Load("app/main.thrift", WithFS(fsys)); err == nil {
		t.Fatal("include resolved without search path")
	}
	m, err := Load("app/main.thrift", WithFS(fsys), WithSearchPath("lib"))
	if err != nil {
		t.Fatal(err)
	}
	if got := m.Struct("User").FieldByName("id").Type.Struct.QualifiedName(); got != "common.Id" {
		t.Errorf("id type = %s", got)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"inherited collision", "service A { void f() }\nservice B extends A { void f() }"},
		{"oneway returns", "service S { oneway i32 f() }"},
		{"unknown type", "struct S { 1: Missing m }"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadSource("bad.thrift", []byte(tt.src))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, idl.ErrSemantic) {
				t.Errorf("error %v is not semantic", err)
			}
		})
	}
}
