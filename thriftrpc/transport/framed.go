// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"
	"encoding/binary"
)

// DefaultMaxFrameSize bounds frames read by Framed and Zstd.
const DefaultMaxFrameSize = 16 * 1024 * 1024

// Framed prefixes every flushed payload with its length as a 4-byte
// big-endian integer. Reads consume one frame at a time.
type Framed struct {
	inner    Transport
	maxFrame uint32
	rbuf     bytes.Reader
	wbuf     bytes.Buffer
}

// NewFramed wraps trans. maxFrame of 0 selects DefaultMaxFrameSize.
func NewFramed(trans Transport, maxFrame uint32) *Framed {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrameSize
	}
	return &Framed{inner: trans, maxFrame: maxFrame}
}

func (f *Framed) Read(p []byte) (int, error) {
	for f.rbuf.Len() == 0 {
		frame, err := readFrame(f.inner, f.maxFrame)
		if err != nil {
			return 0, err
		}
		f.rbuf.Reset(frame)
	}
	return f.rbuf.Read(p)
}

func (f *Framed) Write(p []byte) (int, error) { return f.wbuf.Write(p) }

func (f *Framed) Flush() error {
	err := writeFrame(f.inner, f.wbuf.Bytes())
	f.wbuf.Reset()
	if err != nil {
		return err
	}
	return f.inner.Flush()
}

func (f *Framed) Open() error           { return f.inner.Open() }
func (f *Framed) IsOpen() bool          { return f.inner.IsOpen() }
func (f *Framed) Close() error          { return f.inner.Close() }
func (f *Framed) Underlying() Transport { return f.inner }

func readFrame(trans Transport, maxFrame uint32) ([]byte, error) {
	hdr, err := ReadFull(trans, 4)
	if err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(hdr)
	if size > maxFrame {
		return nil, NewError(Unknown, "frame size %d exceeds maximum %d", size, maxFrame)
	}
	return ReadFull(trans, int(size))
}

func writeFrame(trans Transport, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := trans.Write(hdr[:]); err != nil {
		return Wrap(err)
	}
	if _, err := trans.Write(payload); err != nil {
		return Wrap(err)
	}
	return nil
}

// FramedFactory wraps each transport in a Framed.
type FramedFactory struct {
	MaxFrameSize uint32
}

func (f FramedFactory) GetTransport(trans Transport) (Transport, error) {
	return NewFramed(trans, f.MaxFrameSize), nil
}
