// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/Query-farm/thriftrpc/thriftrpc/transport"
	"github.com/Query-farm/thriftrpc/thriftrpc/ttype"
)

const (
	version1    uint32 = 0x80010000
	versionMask uint32 = 0xffff0000
	typeMask    uint32 = 0x000000ff
)

// Config tunes a binary protocol. A zero limit means unlimited.
type Config struct {
	StrictRead         bool
	StrictWrite        bool
	MaxStringLength    int32
	MaxContainerLength int32
}

// DefaultConfig returns strict framing with a 100 MiB string limit and a
// 10M element container limit.
func DefaultConfig() *Config {
	return &Config{
		StrictRead:         true,
		StrictWrite:        true,
		MaxStringLength:    100 * 1024 * 1024,
		MaxContainerLength: 10_000_000,
	}
}

// Binary is the Thrift binary protocol: big-endian fixed-width integers,
// length-prefixed strings and (type, id) field headers.
type Binary struct {
	trans transport.Transport
	cfg   Config
	buf   [8]byte
}

// NewBinary returns a binary protocol over trans. A nil cfg selects
// DefaultConfig.
func NewBinary(trans transport.Transport, cfg *Config) *Binary {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &Binary{trans: trans, cfg: *cfg}
}

// BinaryFactory creates Binary protocols sharing one Config.
type BinaryFactory struct {
	Config *Config
}

func (f BinaryFactory) GetProtocol(trans transport.Transport) Protocol {
	return NewBinary(trans, f.Config)
}

func (p *Binary) Transport() transport.Transport { return p.trans }
func (p *Binary) Flush() error                   { return transport.Wrap(p.trans.Flush()) }
func (p *Binary) Skip(t ttype.TType) error       { return Skip(p, t) }

func (p *Binary) write(b []byte) error {
	_, err := p.trans.Write(b)
	return transport.Wrap(err)
}

func (p *Binary) WriteMessageBegin(name string, typ MessageType, seqid int32) error {
	if p.cfg.StrictWrite {
		if err := p.WriteI32(int32(version1 | uint32(typ))); err != nil {
			return err
		}
		if err := p.WriteString(name); err != nil {
			return err
		}
		return p.WriteI32(seqid)
	}
	if err := p.WriteString(name); err != nil {
		return err
	}
	if err := p.WriteI8(int8(typ)); err != nil {
		return err
	}
	return p.WriteI32(seqid)
}

func (p *Binary) WriteMessageEnd() error             { return nil }
func (p *Binary) WriteStructBegin(name string) error { return nil }
func (p *Binary) WriteStructEnd() error              { return nil }

func (p *Binary) WriteFieldBegin(name string, typ ttype.TType, id int16) error {
	if err := p.WriteI8(int8(typ)); err != nil {
		return err
	}
	return p.WriteI16(id)
}

func (p *Binary) WriteFieldEnd() error  { return nil }
func (p *Binary) WriteFieldStop() error { return p.WriteI8(int8(ttype.STOP)) }

func (p *Binary) WriteMapBegin(keyType, valueType ttype.TType, size int) error {
	if err := p.WriteI8(int8(keyType)); err != nil {
		return err
	}
	if err := p.WriteI8(int8(valueType)); err != nil {
		return err
	}
	return p.writeSize(size)
}

func (p *Binary) WriteMapEnd() error { return nil }

func (p *Binary) WriteListBegin(elemType ttype.TType, size int) error {
	if err := p.WriteI8(int8(elemType)); err != nil {
		return err
	}
	return p.writeSize(size)
}

func (p *Binary) WriteListEnd() error { return nil }

func (p *Binary) WriteSetBegin(elemType ttype.TType, size int) error {
	return p.WriteListBegin(elemType, size)
}

func (p *Binary) WriteSetEnd() error { return nil }

func (p *Binary) writeSize(size int) error {
	if size > math.MaxInt32 {
		return newError(SizeLimit, "size %d does not fit in i32", size)
	}
	return p.WriteI32(int32(size))
}

func (p *Binary) WriteBool(v bool) error {
	if v {
		return p.WriteI8(1)
	}
	return p.WriteI8(0)
}

func (p *Binary) WriteI8(v int8) error {
	p.buf[0] = byte(v)
	return p.write(p.buf[:1])
}

func (p *Binary) WriteI16(v int16) error {
	binary.BigEndian.PutUint16(p.buf[:2], uint16(v))
	return p.write(p.buf[:2])
}

func (p *Binary) WriteI32(v int32) error {
	binary.BigEndian.PutUint32(p.buf[:4], uint32(v))
	return p.write(p.buf[:4])
}

func (p *Binary) WriteI64(v int64) error {
	binary.BigEndian.PutUint64(p.buf[:8], uint64(v))
	return p.write(p.buf[:8])
}

func (p *Binary) WriteDouble(v float64) error {
	return p.WriteI64(int64(math.Float64bits(v)))
}

func (p *Binary) WriteString(v string) error {
	if err := p.writeSize(len(v)); err != nil {
		return err
	}
	_, err := io.WriteString(p.trans, v)
	return transport.Wrap(err)
}

func (p *Binary) WriteBinary(v []byte) error {
	if err := p.writeSize(len(v)); err != nil {
		return err
	}
	return p.write(v)
}

func (p *Binary) ReadMessageBegin() (string, MessageType, int32, error) {
	size, err := p.ReadI32()
	if err != nil {
		return "", 0, 0, err
	}
	if size < 0 {
		if !p.cfg.StrictRead {
			return "", 0, 0, newError(BadVersion, "strict message header received by non-strict reader")
		}
		if v := uint32(size) & versionMask; v != version1 {
			return "", 0, 0, newError(BadVersion, "bad version %#x in message header", v)
		}
		typ := MessageType(uint32(size) & typeMask)
		name, err := p.ReadString()
		if err != nil {
			return "", 0, 0, err
		}
		seqid, err := p.ReadI32()
		return name, typ, seqid, err
	}
	if p.cfg.StrictRead {
		return "", 0, 0, newError(BadVersion, "missing version in message header")
	}
	name, err := p.readStringBody(size)
	if err != nil {
		return "", 0, 0, err
	}
	typ, err := p.ReadI8()
	if err != nil {
		return "", 0, 0, err
	}
	seqid, err := p.ReadI32()
	return name, MessageType(typ), seqid, err
}

func (p *Binary) ReadMessageEnd() error            { return nil }
func (p *Binary) ReadStructBegin() (string, error) { return "", nil }
func (p *Binary) ReadStructEnd() error             { return nil }

func (p *Binary) ReadFieldBegin() (string, ttype.TType, int16, error) {
	t, err := p.ReadI8()
	if err != nil {
		return "", 0, 0, err
	}
	typ := ttype.TType(t)
	if typ == ttype.STOP {
		return "", typ, 0, nil
	}
	id, err := p.ReadI16()
	return "", typ, id, err
}

func (p *Binary) ReadFieldEnd() error { return nil }

func (p *Binary) ReadMapBegin() (ttype.TType, ttype.TType, int, error) {
	k, err := p.ReadI8()
	if err != nil {
		return 0, 0, 0, err
	}
	v, err := p.ReadI8()
	if err != nil {
		return 0, 0, 0, err
	}
	size, err := p.readContainerSize()
	return ttype.TType(k), ttype.TType(v), size, err
}

func (p *Binary) ReadMapEnd() error { return nil }

func (p *Binary) ReadListBegin() (ttype.TType, int, error) {
	e, err := p.ReadI8()
	if err != nil {
		return 0, 0, err
	}
	size, err := p.readContainerSize()
	return ttype.TType(e), size, err
}

func (p *Binary) ReadListEnd() error { return nil }

func (p *Binary) ReadSetBegin() (ttype.TType, int, error) { return p.ReadListBegin() }
func (p *Binary) ReadSetEnd() error                       { return nil }

func (p *Binary) readContainerSize() (int, error) {
	size, err := p.ReadI32()
	if err != nil {
		return 0, err
	}
	if size < 0 {
		return 0, newError(NegativeSize, "negative container size %d", size)
	}
	if p.cfg.MaxContainerLength > 0 && size > p.cfg.MaxContainerLength {
		return 0, newError(SizeLimit, "container size %d exceeds limit %d", size, p.cfg.MaxContainerLength)
	}
	return int(size), nil
}

func (p *Binary) read(n int) ([]byte, error) {
	if _, err := io.ReadFull(p.trans, p.buf[:n]); err != nil {
		return nil, transport.Wrap(err)
	}
	return p.buf[:n], nil
}

func (p *Binary) ReadBool() (bool, error) {
	v, err := p.ReadI8()
	return v != 0, err
}

func (p *Binary) ReadI8() (int8, error) {
	b, err := p.read(1)
	if err != nil {
		return 0, err
	}
	return int8(b[0]), nil
}

func (p *Binary) ReadI16() (int16, error) {
	b, err := p.read(2)
	if err != nil {
		return 0, err
	}
	return int16(binary.BigEndian.Uint16(b)), nil
}

func (p *Binary) ReadI32() (int32, error) {
	b, err := p.read(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

func (p *Binary) ReadI64() (int64, error) {
	b, err := p.read(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

func (p *Binary) ReadDouble() (float64, error) {
	v, err := p.ReadI64()
	return math.Float64frombits(uint64(v)), err
}

func (p *Binary) ReadString() (string, error) {
	b, err := p.ReadBinary()
	return string(b), err
}

func (p *Binary) ReadBinary() ([]byte, error) {
	size, err := p.ReadI32()
	if err != nil {
		return nil, err
	}
	return p.readBytes(size)
}

func (p *Binary) readStringBody(size int32) (string, error) {
	b, err := p.readBytes(size)
	return string(b), err
}

func (p *Binary) readBytes(size int32) ([]byte, error) {
	if size < 0 {
		return nil, newError(NegativeSize, "negative string length %d", size)
	}
	if p.cfg.MaxStringLength > 0 && size > p.cfg.MaxStringLength {
		return nil, newError(SizeLimit, "string length %d exceeds limit %d", size, p.cfg.MaxStringLength)
	}
	return transport.ReadFull(p.trans, int(size))
}
