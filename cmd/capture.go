// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Capture direction markers.
const (
	DirRx = "rx" // deck to host
	DirTx = "tx" // host to deck
)

// CaptureRecord is one observed protocol line. Records are written as a
// plain CBOR stream, one map per line, so captures can be appended to and
// truncated files still replay up to the damage.
type CaptureRecord struct {
	Time time.Time `cbor:"t"`
	Dir  string    `cbor:"dir"`
	Line string    `cbor:"line"`
}

// CaptureWriter streams capture records to a file.
type CaptureWriter struct {
	enc *cbor.Encoder
}

// NewCaptureWriter wraps a destination in a capture encoder.
func NewCaptureWriter(w io.Writer) *CaptureWriter {
	return &CaptureWriter{enc: cbor.NewEncoder(w)}
}

// Record appends one line to the capture, stamped now.
func (cw *CaptureWriter) Record(dir, line string) error {
	return cw.enc.Encode(CaptureRecord{Time: time.Now(), Dir: dir, Line: line})
}

// ReadCapture decodes an entire capture stream. A truncated final record
// is reported alongside the records read before it.
func ReadCapture(r io.Reader) ([]CaptureRecord, error) {
	dec := cbor.NewDecoder(r)
	var records []CaptureRecord
	for {
		var rec CaptureRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return records, nil
			}
			return records, fmt.Errorf("capture record %d: %v", len(records), err)
		}
		records = append(records, rec)
	}
}
