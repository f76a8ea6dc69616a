// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package transport

import "sync/atomic"

// Counting records the number of bytes read from and written to the
// transport it wraps.
type Counting struct {
	inner   Transport
	read    atomic.Int64
	written atomic.Int64
}

// NewCounting wraps trans.
func NewCounting(trans Transport) *Counting { return &Counting{inner: trans} }

func (c *Counting) Read(p []byte) (int, error) {
	n, err := c.inner.Read(p)
	c.read.Add(int64(n))
	return n, err
}

func (c *Counting) Write(p []byte) (int, error) {
	n, err := c.inner.Write(p)
	c.written.Add(int64(n))
	return n, err
}

func (c *Counting) Flush() error          { return c.inner.Flush() }
func (c *Counting) Open() error           { return c.inner.Open() }
func (c *Counting) IsOpen() bool          { return c.inner.IsOpen() }
func (c *Counting) Close() error          { return c.inner.Close() }
func (c *Counting) Underlying() Transport { return c.inner }

// BytesRead returns the total bytes read so far.
func (c *Counting) BytesRead() int64 { return c.read.Load() }

// BytesWritten returns the total bytes written so far.
func (c *Counting) BytesWritten() int64 { return c.written.Load() }
