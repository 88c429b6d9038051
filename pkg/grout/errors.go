// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import "fmt"

// ParseError reports a line that does not conform to the wire grammar.
// Malformed lines are non-fatal: callers drop the line and continue.
type ParseError struct {
	Line   string // the offending line, without terminator
	Reason string
}

// Error implements the error interface
func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Line, e.Reason)
}

// TransportError reports a failure of the underlying byte channel.
// A transport error ends the session; recovery requires a full
// reconnect and resync.
type TransportError struct {
	Op  string // "read", "write", or "close"
	Err error
}

// Error implements the error interface
func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As
func (e *TransportError) Unwrap() error {
	return e.Err
}

// DeviceError is an ERROR:code:message reply from the device.
// During a sync transaction any device error is fatal for the session;
// outside sync it marks a single failed command.
type DeviceError struct {
	Code    int
	Message string
}

// Error implements the error interface
func (e *DeviceError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("device error %d", e.Code)
	}
	return fmt.Sprintf("device error %d: %s", e.Code, e.Message)
}
