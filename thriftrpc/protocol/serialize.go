// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

// Serialize encodes s with the binary protocol and no message envelope.
func Serialize(s *ttype.Struct) ([]byte, error) {
	if s == nil {
		return nil, newError(InvalidData, "nil struct")
	}
	buf := transport.NewMemoryBuffer()
	if err := WriteStruct(NewBinary(buf, nil), s.Descriptor(), s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Deserialize decodes data written by Serialize as a desc struct. Bytes
// after the struct's stop field are ignored.
func Deserialize(desc *ttype.StructDescriptor, data []byte) (*ttype.Struct, error) {
	return ReadStruct(NewBinary(transport.NewMemoryBufferWith(data), nil), desc)
}
