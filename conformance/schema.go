// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package conformance

import (
	"github.com/Query-farm/thriftrpc/thriftrpc/compile"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// ServiceName is the unqualified name of the conformance service.
const ServiceName = "Conformance"

// Source is the IDL of the conformance service.
const Source = `
namespace go conformance
namespace py conformance

const i32 DEFAULT_CODE = 400
const string DEFAULT_LABEL = "box"

enum Status {
    PENDING = 0,
    ACTIVE = 1,
    CLOSED = 5,
}

struct Point {
    1: required double x,
    2: required double y,
}

struct BoundingBox {
    1: required Point top_left,
    2: required Point bottom_right,
    3: optional string label = DEFAULT_LABEL,
}

struct AllTypes {
    1: bool bool_field,
    2: byte byte_field,
    3: i16 i16_field,
    4: i32 i32_field,
    5: i64 i64_field,
    6: double double_field,
    7: string str_field,
    8: binary bytes_field,
    9: Status enum_field = Status.ACTIVE,
    10: list<i32> list_of_int,
    11: set<string> set_of_str,
    12: map<string, i64> dict_field,
    13: optional Point point,
    14: list<list<i32>> nested_list,
    15: optional map<Status, list<Point>> by_status,
}

union Shape {
    1: Point point,
    2: BoundingBox box,
}

exception ConformanceError {
    1: string message,
    2: i32 code = DEFAULT_CODE,
}

service Conformance {
    void void_noop(),
    bool echo_bool(1: bool value),
    byte echo_byte(1: byte value),
    i16 echo_i16(1: i16 value),
    i32 echo_int(1: i32 value),
    i64 echo_i64(1: i64 value),
    double echo_float(1: double value),
    string echo_string(1: string value),
    binary echo_bytes(1: binary value),
    Status echo_enum(1: Status value),
    list<i32> echo_list(1: list<i32> value),
    set<string> echo_set(1: set<string> value),
    map<string, i64> echo_dict(1: map<string, i64> value),
    list<list<i32>> echo_nested_list(1: list<list<i32>> value),
    string echo_optional(1: optional string value),
    Point echo_point(1: Point point),
    BoundingBox bounding_box(1: list<Point> points, 2: string label) throws (1: ConformanceError err),
    AllTypes echo_all_types(1: AllTypes value),
    AllTypes default_all_types(),
    Shape echo_shape(1: Shape shape) throws (1: ConformanceError err),
    double divide(1: double a, 2: double b) throws (1: ConformanceError err),
    void raise_error(1: string message, 2: i32 code) throws (1: ConformanceError err),
    void raise_internal(1: string message),
    oneway void notify(1: string note),
    list<string> notifications(),
    map<string, string> echo_metadata(),
}
`

// Module is the compiled conformance schema.
var Module = compile.MustLoadSource("conformance.thrift", []byte(Source))

// Service returns the conformance service descriptor.
func Service() *ttype.ServiceDescriptor { return Module.Service(ServiceName) }

// NewPoint builds a Point struct.
func NewPoint(x, y float64) *ttype.Struct {
	return ttype.New(Module.Struct("Point")).Set("x", x).Set("y", y)
}

// NewError builds a ConformanceError. A zero code keeps the declared default.
func NewError(message string, code int32) *ttype.Exception {
	exc := ttype.NewException(Module.Struct("ConformanceError"))
	exc.Set("message", message)
	if code != 0 {
		exc.Set("code", code)
	}
	return exc
}
