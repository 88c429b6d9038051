// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"errors"
	"fmt"
)

// Sentinel errors for session lifecycle misuse and teardown.
var (
	// ErrNotReady indicates an operation was attempted before the session
	// reached the Ready state.
	ErrNotReady = errors.New("session not ready")

	// ErrAlreadyStarted indicates Start was called twice.
	ErrAlreadyStarted = errors.New("session already started")

	// ErrClosed indicates the session was closed by its owner.
	ErrClosed = errors.New("session closed")

	// ErrDeviceRebooted indicates the device announced READY mid-session,
	// meaning it lost all state and needs a full resync.
	ErrDeviceRebooted = errors.New("device rebooted mid-session")
)

// TimeoutError reports a command that was never acknowledged, after all
// retransmissions were exhausted.
type TimeoutError struct {
	Op       string
	Attempts int
}

// Error implements the error interface.
func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no acknowledgment after %d attempts", e.Op, e.Attempts)
}
