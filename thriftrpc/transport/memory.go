// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package transport

import "bytes"

// MemoryBuffer is an in-memory transport. Writes append to the buffer and
// reads consume from its front, so a single MemoryBuffer can serve as both
// ends of a loopback.
type MemoryBuffer struct {
	bytes.Buffer
	closed bool
}

// NewMemoryBuffer returns an empty buffer.
func NewMemoryBuffer() *MemoryBuffer { return &MemoryBuffer{} }

// NewMemoryBufferWith returns a buffer whose unread content is data.
func NewMemoryBufferWith(data []byte) *MemoryBuffer {
	m := &MemoryBuffer{}
	m.Write(data)
	return m
}

func (m *MemoryBuffer) Open() error  { m.closed = false; return nil }
func (m *MemoryBuffer) IsOpen() bool { return !m.closed }
func (m *MemoryBuffer) Flush() error { return nil }
func (m *MemoryBuffer) Close() error { m.closed = true; return nil }
