// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package thriftrpc

import (
	"fmt"

	"github.com/Query-farm/thriftrpc/thriftrpc/protocol"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// AppExceptionType identifies the framework-level failure carried by an
// ApplicationException.
type AppExceptionType int32

const (
	UnknownApplicationException AppExceptionType = 0
	UnknownMethod               AppExceptionType = 1
	InvalidMessageType          AppExceptionType = 2
	WrongMethodName             AppExceptionType = 3
	BadSequenceID               AppExceptionType = 4
	MissingResult               AppExceptionType = 5
	InternalError               AppExceptionType = 6
	ProtocolError               AppExceptionType = 7
)

func (t AppExceptionType) String() string {
	switch t {
	case UnknownApplicationException:
		return "Default (unknown) TApplicationException"
	case UnknownMethod:
		return "Unknown method"
	case InvalidMessageType:
		return "Invalid message type"
	case WrongMethodName:
		return "Wrong method name"
	case BadSequenceID:
		return "Bad sequence ID"
	case MissingResult:
		return "Missing result"
	case InternalError:
		return "Internal error"
	case ProtocolError:
		return "Protocol error"
	}
	return fmt.Sprintf("AppExceptionType(%d)", int32(t))
}

// ErrApplication is a sentinel for use with errors.Is to check whether any
// error in a chain is an *ApplicationException.
var ErrApplication = &ApplicationException{Type: -1}

// ApplicationException is a framework-level error sent in an EXCEPTION
// message instead of a reply.
type ApplicationException struct {
	Type    AppExceptionType
	Message string
}

// NewApplicationException returns an ApplicationException with a formatted message.
func NewApplicationException(t AppExceptionType, format string, args ...any) *ApplicationException {
	return &ApplicationException{Type: t, Message: fmt.Sprintf(format, args...)}
}

func (e *ApplicationException) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Type.String()
}

// Is matches ErrApplication, or another *ApplicationException with the same Type.
func (e *ApplicationException) Is(target error) bool {
	t, ok := target.(*ApplicationException)
	if !ok {
		return false
	}
	return t.Type == -1 || t.Type == e.Type
}

// applicationExceptionDesc is the wire shape: 1: string message, 2: i32 type.
var applicationExceptionDesc = func() *ttype.StructDescriptor {
	d := ttype.NewStructDescriptor("thrift", "TApplicationException", ttype.KindException)
	if err := d.SetFields([]*ttype.FieldSpec{
		{ID: 1, Name: "message", Type: ttype.Simple(ttype.STRING)},
		{ID: 2, Name: "type", Type: ttype.Simple(ttype.I32)},
	}); err != nil {
		panic(err)
	}
	return d
}()

func writeApplicationException(out protocol.Protocol, name string, seqid int32, ae *ApplicationException) error {
	s := ttype.New(applicationExceptionDesc).Set("type", int32(ae.Type))
	if ae.Message != "" {
		s.Set("message", ae.Message)
	}
	if err := out.WriteMessageBegin(name, protocol.EXCEPTION, seqid); err != nil {
		return err
	}
	if err := protocol.WriteStruct(out, applicationExceptionDesc, s); err != nil {
		return err
	}
	if err := out.WriteMessageEnd(); err != nil {
		return err
	}
	return out.Flush()
}

// ReadApplicationException decodes the body of an EXCEPTION message, after
// its header has been read.
func ReadApplicationException(in protocol.Protocol) (*ApplicationException, error) {
	s, err := protocol.ReadStruct(in, applicationExceptionDesc)
	if err != nil {
		return nil, err
	}
	ae := &ApplicationException{}
	if v, ok := s.Lookup("type"); ok {
		ae.Type = AppExceptionType(v.(int32))
	}
	if v, ok := s.Lookup("message"); ok {
		ae.Message = fmt.Sprint(v)
	}
	return ae, nil
}
