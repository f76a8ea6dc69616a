// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package transport

import "bufio"

// DefaultBufferSize is the buffer size used when none is given.
const DefaultBufferSize = 4096

// Buffered adds read and write buffering to another transport. Flush writes
// the buffered bytes and flushes the inner transport.
type Buffered struct {
	inner Transport
	r     *bufio.Reader
	w     *bufio.Writer
}

// NewBuffered wraps trans with buffers of size bytes each.
func NewBuffered(trans Transport, size int) *Buffered {
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Buffered{inner: trans, r: bufio.NewReaderSize(trans, size), w: bufio.NewWriterSize(trans, size)}
}

func (b *Buffered) Read(p []byte) (int, error) {
	n, err := b.r.Read(p)
	return n, Wrap(err)
}

func (b *Buffered) Write(p []byte) (int, error) {
	n, err := b.w.Write(p)
	return n, Wrap(err)
}

func (b *Buffered) Flush() error {
	if err := b.w.Flush(); err != nil {
		return Wrap(err)
	}
	return b.inner.Flush()
}

func (b *Buffered) Open() error           { return b.inner.Open() }
func (b *Buffered) IsOpen() bool          { return b.inner.IsOpen() }
func (b *Buffered) Close() error          { return b.inner.Close() }
func (b *Buffered) Underlying() Transport { return b.inner }

// BufferedFactory wraps each transport in a Buffered.
type BufferedFactory struct {
	Size int
}

func (f BufferedFactory) GetTransport(trans Transport) (Transport, error) {
	return NewBuffered(trans, f.Size), nil
}
