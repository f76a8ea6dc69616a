// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package protocol

import "github.com/Query-farm/thriftrpc/thriftrpc/ttype"

// MaxSkipDepth bounds container and struct nesting while skipping or decoding.
const MaxSkipDepth = 64

// Skip consumes one value of wire type t from p, recursing into structs and
// containers.
func Skip(p Protocol, t ttype.TType) error {
	return skip(p, t, MaxSkipDepth)
}

func skip(p Protocol, t ttype.TType, depth int) error {
	if depth <= 0 {
		return newError(DepthLimit, "nesting deeper than %d", MaxSkipDepth)
	}
	switch t {
	case ttype.BOOL:
		_, err := p.ReadBool()
		return err
	case ttype.BYTE:
		_, err := p.ReadI8()
		return err
	case ttype.I16:
		_, err := p.ReadI16()
		return err
	case ttype.I32:
		_, err := p.ReadI32()
		return err
	case ttype.I64:
		_, err := p.ReadI64()
		return err
	case ttype.DOUBLE:
		_, err := p.ReadDouble()
		return err
	case ttype.STRING:
		_, err := p.ReadBinary()
		return err
	case ttype.STRUCT:
		if _, err := p.ReadStructBegin(); err != nil {
			return err
		}
		for {
			_, ft, _, err := p.ReadFieldBegin()
			if err != nil {
				return err
			}
			if ft == ttype.STOP {
				break
			}
			if err := skip(p, ft, depth-1); err != nil {
				return err
			}
			if err := p.ReadFieldEnd(); err != nil {
				return err
			}
		}
		return p.ReadStructEnd()
	case ttype.MAP:
		kt, vt, n, err := p.ReadMapBegin()
		if err != nil {
			return err
		}
		for i := 0; i < n; i++ {
			if err := skip(p, kt, depth-1); err != nil {
				return err
			}
			if err := skip(p, vt, depth-1); err != nil {
				return err
			}
		}
		return p.ReadMapEnd()
	case ttype.SET:
		et, n, err := p.ReadSetBegin()
		if err != nil {
			return err
		}
		if err := skipN(p, et, n, depth-1); err != nil {
			return err
		}
		return p.ReadSetEnd()
	case ttype.LIST:
		et, n, err := p.ReadListBegin()
		if err != nil {
			return err
		}
		if err := skipN(p, et, n, depth-1); err != nil {
			return err
		}
		return p.ReadListEnd()
	}
	return newError(InvalidData, "cannot skip wire type %s", t)
}

func skipN(p Protocol, t ttype.TType, n, depth int) error {
	for i := 0; i < n; i++ {
		if err := skip(p, t, depth); err != nil {
			return err
		}
	}
	return nil
}
