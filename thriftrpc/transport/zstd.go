// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"bytes"

	"github.com/klauspost/compress/zstd"
)

// Zstd is a framed transport whose frame payloads are zstd-compressed. The
// 4-byte length prefix counts compressed bytes.
type Zstd struct {
	inner    Transport
	maxFrame uint32
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	rbuf     bytes.Reader
	wbuf     bytes.Buffer
}

// NewZstd wraps trans. level is a zstd compression level (1-22, 0 for the
// library default); maxFrame bounds both compressed and decompressed frames.
func NewZstd(trans Transport, level int, maxFrame uint32) (*Zstd, error) {
	if maxFrame == 0 {
		maxFrame = DefaultMaxFrameSize
	}
	encLevel := zstd.SpeedDefault
	if level > 0 {
		encLevel = zstd.EncoderLevelFromZstd(level)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(encLevel), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(1), zstd.WithDecoderMaxMemory(uint64(maxFrame)))
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Zstd{inner: trans, maxFrame: maxFrame, enc: enc, dec: dec}, nil
}

func (z *Zstd) Read(p []byte) (int, error) {
	for z.rbuf.Len() == 0 {
		frame, err := readFrame(z.inner, z.maxFrame)
		if err != nil {
			return 0, err
		}
		plain, err := z.dec.DecodeAll(frame, nil)
		if err != nil {
			return 0, &TransportError{Kind: Unknown, Msg: "zstd decode", Err: err}
		}
		z.rbuf.Reset(plain)
	}
	return z.rbuf.Read(p)
}

func (z *Zstd) Write(p []byte) (int, error) { return z.wbuf.Write(p) }

func (z *Zstd) Flush() error {
	compressed := z.enc.EncodeAll(z.wbuf.Bytes(), nil)
	z.wbuf.Reset()
	if err := writeFrame(z.inner, compressed); err != nil {
		return err
	}
	return z.inner.Flush()
}

func (z *Zstd) Open() error  { return z.inner.Open() }
func (z *Zstd) IsOpen() bool { return z.inner.IsOpen() }

func (z *Zstd) Close() error {
	z.enc.Close()
	z.dec.Close()
	return z.inner.Close()
}

func (z *Zstd) Underlying() Transport { return z.inner }

// ZstdFactory wraps each transport in a Zstd.
type ZstdFactory struct {
	Level        int
	MaxFrameSize uint32
}

func (f ZstdFactory) GetTransport(trans Transport) (Transport, error) {
	return NewZstd(trans, f.Level, f.MaxFrameSize)
}
