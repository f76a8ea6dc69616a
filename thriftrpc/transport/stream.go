// © Copyright 2025-2026, Query.Farm LLC - https://query.farm
// SPDX-License-Identifier: Apache-2.0

package transport

import (
	"io"
	"os"
)

// Stream adapts a reader/writer pair, such as a subprocess's stdin and
// stdout, to a Transport.
type Stream struct {
	r      io.Reader
	w      io.Writer
	closed bool
}

// NewStream returns a transport reading from r and writing to w.
func NewStream(r io.Reader, w io.Writer) *Stream { return &Stream{r: r, w: w} }

// NewStdio returns a transport over os.Stdin and os.Stdout.
func NewStdio() *Stream { return NewStream(os.Stdin, os.Stdout) }

func (s *Stream) Open() error  { s.closed = false; return nil }
func (s *Stream) IsOpen() bool { return !s.closed }

func (s *Stream) Read(p []byte) (int, error) {
	n, err := s.r.Read(p)
	if err != nil {
		return n, Wrap(err)
	}
	return n, nil
}

func (s *Stream) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	if err != nil {
		return n, Wrap(err)
	}
	return n, nil
}

// Flush is a no-op; writes go straight to the writer.
func (s *Stream) Flush() error { return nil }

// Close closes the reader and writer when they are io.Closers.
func (s *Stream) Close() error {
	s.closed = true
	var err error
	if c, ok := s.r.(io.Closer); ok {
		err = c.Close()
	}
	if c, ok := s.w.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
