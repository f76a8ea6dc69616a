// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

// Package protocol implements the Thrift binary protocol and a generic codec
// that reads and writes dynamic values against ttype descriptors.
package protocol

import (
	"fmt"

	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// MessageType is the kind of an RPC message envelope.
type MessageType int8

const (
	CALL      MessageType = 1
	REPLY     MessageType = 2
	EXCEPTION MessageType = 3
	ONEWAY    MessageType = 4
)

func (t MessageType) String() string {
	switch t {
	case CALL:
		return "CALL"
	case REPLY:
		return "REPLY"
	case EXCEPTION:
		return "EXCEPTION"
	case ONEWAY:
		return "ONEWAY"
	}
	return fmt.Sprintf("MessageType(%d)", int8(t))
}

// Protocol reads and writes Thrift primitives, containers and envelopes on a
// transport. Implementations are not safe for concurrent use.
type Protocol interface {
	WriteMessageBegin(name string, typ MessageType, seqid int32) error
	WriteMessageEnd() error
	WriteStructBegin(name string) error
	WriteStructEnd() error
	WriteFieldBegin(name string, typ ttype.TType, id int16) error
	WriteFieldEnd() error
	WriteFieldStop() error
	WriteMapBegin(keyType, valueType ttype.TType, size int) error
	WriteMapEnd() error
	WriteListBegin(elemType ttype.TType, size int) error
	WriteListEnd() error
	WriteSetBegin(elemType ttype.TType, size int) error
	WriteSetEnd() error
	WriteBool(v bool) error
	WriteI8(v int8) error
	WriteI16(v int16) error
	WriteI32(v int32) error
	WriteI64(v int64) error
	WriteDouble(v float64) error
	WriteString(v string) error
	WriteBinary(v []byte) error

	ReadMessageBegin() (name string, typ MessageType, seqid int32, err error)
	ReadMessageEnd() error
	ReadStructBegin() (name string, err error)
	ReadStructEnd() error
	ReadFieldBegin() (name string, typ ttype.TType, id int16, err error)
	ReadFieldEnd() error
	ReadMapBegin() (keyType, valueType ttype.TType, size int, err error)
	ReadMapEnd() error
	ReadListBegin() (elemType ttype.TType, size int, err error)
	ReadListEnd() error
	ReadSetBegin() (elemType ttype.TType, size int, err error)
	ReadSetEnd() error
	ReadBool() (bool, error)
	ReadI8() (int8, error)
	ReadI16() (int16, error)
	ReadI32() (int32, error)
	ReadI64() (int64, error)
	ReadDouble() (float64, error)
	ReadString() (string, error)
	ReadBinary() ([]byte, error)

	// Skip consumes one value of type t without decoding it.
	Skip(t ttype.TType) error
	Flush() error
	Transport() transport.Transport
}

// Factory creates a protocol for a transport.
type Factory interface {
	GetProtocol(trans transport.Transport) Protocol
}
