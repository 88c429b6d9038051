// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import (
	"bufio"
	"io"
	"strings"
	"sync"
)

// LineConn frames a byte stream into newline-terminated UTF-8 lines.
//
// Partial input is buffered across reads until the terminator arrives, and
// UTF-8 sequences never contain the terminator byte, so a multi-byte
// character is never split. Writes are serialized; the connection may be
// handed to one reading goroutine and any number of writers.
type LineConn struct {
	rw   io.ReadWriter
	br   *bufio.Reader
	wmu  sync.Mutex
	once sync.Once
	cerr error
}

// NewLineConn wraps an open byte channel.
func NewLineConn(rw io.ReadWriter) *LineConn {
	return &LineConn{rw: rw, br: bufio.NewReader(rw)}
}

// ReadLine blocks until a complete line is available and returns it without
// the terminator. A trailing carriage return is stripped for tolerance of
// CRLF firmware builds. Channel failure, including EOF mid-line, returns a
// *TransportError.
func (c *LineConn) ReadLine() (string, error) {
	line, err := c.br.ReadString(byte(Terminator))
	if err != nil {
		return "", &TransportError{Op: "read", Err: err}
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, nil
}

// ReadCommand reads and parses the next line.
func (c *LineConn) ReadCommand() (*Command, error) {
	line, err := c.ReadLine()
	if err != nil {
		return nil, err
	}
	return ParseCommand(line)
}

// WriteLine appends the terminator and writes the whole line in a single
// write call. A failed write returns *TransportError.
func (c *LineConn) WriteLine(line string) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if _, err := io.WriteString(c.rw, line+string(Terminator)); err != nil {
		return &TransportError{Op: "write", Err: err}
	}
	return nil
}

// WriteCommand encodes and writes a command in one step.
func (c *LineConn) WriteCommand(cmd *Command) error {
	line, err := EncodeCommand(cmd)
	if err != nil {
		return err
	}
	return c.WriteLine(line)
}

// Close releases the underlying channel when it is closable. Close is
// idempotent and safe on every exit path; the first error is retained.
func (c *LineConn) Close() error {
	c.once.Do(func() {
		if cl, ok := c.rw.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				c.cerr = &TransportError{Op: "close", Err: err}
			}
		}
	})
	return c.cerr
}
