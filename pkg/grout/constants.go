// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package grout provides a reference Go implementation of the Grout serial protocol.
//
// Grout is a line-oriented text protocol for communication between a host
// controller and a Tessera macro deck. Every message is a single UTF-8 line
// terminated by a newline, with colon-separated fields. The device holds its
// configuration in RAM only, so the host re-synchronizes the full deck layout
// after every connect, reset, or power loss via a SYNC_START..SYNC_END
// transaction with per-command acknowledgment.
//
// This package provides line framing, command parsing/encoding, value
// validation, human-readable formatting, and the device-side state machine.
package grout

// Protocol framing
const (
	Separator  = ":"
	Terminator = '\n'
)

// Commands (Host → Device)
const (
	VerbBtn       = "BTN"        // BTN:mode:button:hotkey:label
	VerbMode      = "MODE"       // MODE:mode
	VerbModeCount = "MODE_COUNT" // MODE_COUNT:count
	VerbModeName  = "MODE_NAME"  // MODE_NAME:mode:name
	VerbSlider    = "SLIDER"     // SLIDER:slider:app
	VerbClear     = "CLEAR"      // CLEAR:mode:button
	VerbSyncStart = "SYNC_START"
	VerbSyncEnd   = "SYNC_END"
	VerbPing      = "PING"
	VerbReset     = "RESET"
)

// Replies and events (Device → Host)
const (
	VerbReady        = "READY" // READY[:version]
	VerbAck          = "ACK"   // ACK:command[:params]
	VerbError        = "ERROR" // ERROR:code:message
	VerbPong         = "PONG"
	VerbBtnPress     = "BTN_PRESS"     // BTN_PRESS:mode:button
	VerbSliderChange = "SLIDER_CHANGE" // SLIDER_CHANGE:slider:value
	VerbModeChange   = "MODE_CHANGE"   // MODE_CHANGE:mode
)

// AckSyncComplete is the ACK detail confirming a completed sync transaction.
const AckSyncComplete = "SYNC_COMPLETE"

// Configuration bounds
const (
	MinModes       = 1
	MaxModes       = 10
	ButtonsPerMode = 9
	NumSliders     = 3
	MaxNameLen     = 20 // mode name length limit, in characters
)

// SliderMax is the highest raw slider value on the wire (10-bit ADC).
const SliderMax = 1023

// Device error codes carried in ERROR:code:message replies
const (
	ErrCodeInvalidIndex   = 1 // index or value out of range, no mutation applied
	ErrCodeUnknownCommand = 2 // unrecognized or malformed verb
	ErrCodeSyncFailed     = 3 // buffered sync failed validation against final MODE_COUNT
	ErrCodeResyncRequired = 4 // device is faulted, only RESET is serviceable
	ErrCodeNotSyncing     = 5 // SYNC_END without a sync transaction in progress
)

// DeviceState represents the device state machine position
type DeviceState int

const (
	DeviceBooting DeviceState = iota
	DeviceIdle
	DeviceSyncBuffering
	DeviceFaulted
)

// String returns the human-readable state name
func (s DeviceState) String() string {
	switch s {
	case DeviceBooting:
		return "BOOTING"
	case DeviceIdle:
		return "IDLE"
	case DeviceSyncBuffering:
		return "SYNC_BUFFERING"
	case DeviceFaulted:
		return "FAULTED"
	default:
		return "UNKNOWN"
	}
}
