// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import "strconv"

// Command builder functions create Command structs ready for encoding.
// They are the only place where integer fields are rendered to strings, so
// callers never hand-format wire lines.

// NewBtnCommand creates a BTN command assigning a hotkey and label to a
// button slot. The label is the free-text tail and may contain separators
// and spaces; the hotkey is a fixed field and must not contain the separator.
func NewBtnCommand(mode, button int, hotkey, label string) *Command {
	return &Command{Verb: VerbBtn, Args: []string{itoa(mode), itoa(button), hotkey, label}}
}

// NewModeCommand creates a MODE command switching the active mode.
func NewModeCommand(mode int) *Command {
	return &Command{Verb: VerbMode, Args: []string{itoa(mode)}}
}

// NewModeCountCommand creates a MODE_COUNT command setting the number of
// modes (1-10).
func NewModeCountCommand(count int) *Command {
	return &Command{Verb: VerbModeCount, Args: []string{itoa(count)}}
}

// NewModeNameCommand creates a MODE_NAME command. The name is the free-text
// tail: it is transmitted verbatim, separators included.
func NewModeNameCommand(mode int, name string) *Command {
	return &Command{Verb: VerbModeName, Args: []string{itoa(mode), name}}
}

// NewSliderCommand creates a SLIDER command assigning an application to a
// slider slot.
func NewSliderCommand(slider int, app string) *Command {
	return &Command{Verb: VerbSlider, Args: []string{itoa(slider), app}}
}

// NewClearCommand creates a CLEAR command emptying one button slot.
func NewClearCommand(mode, button int) *Command {
	return &Command{Verb: VerbClear, Args: []string{itoa(mode), itoa(button)}}
}

// NewSyncStartCommand creates a SYNC_START command. The device clears all
// state on receipt and begins buffering the transaction.
func NewSyncStartCommand() *Command {
	return &Command{Verb: VerbSyncStart}
}

// NewSyncEndCommand creates a SYNC_END command closing the transaction.
func NewSyncEndCommand() *Command {
	return &Command{Verb: VerbSyncEnd}
}

// NewPingCommand creates a PING command. Devices answer PONG in every state.
func NewPingCommand() *Command {
	return &Command{Verb: VerbPing}
}

// NewResetCommand creates a RESET command returning the device to its
// cleared boot state.
func NewResetCommand() *Command {
	return &Command{Verb: VerbReset}
}

// NewReadyEvent creates the READY announcement a device emits after boot.
// An empty version omits the field.
func NewReadyEvent(version string) *Command {
	if version == "" {
		return &Command{Verb: VerbReady}
	}
	return &Command{Verb: VerbReady, Args: []string{version}}
}

// NewAck creates an ACK reply. The detail names the acknowledged command,
// e.g. ACK:BTN or ACK:SYNC_COMPLETE.
func NewAck(detail ...string) *Command {
	return &Command{Verb: VerbAck, Args: detail}
}

// NewDeviceError creates an ERROR:code:message reply.
func NewDeviceError(code int, message string) *Command {
	return &Command{Verb: VerbError, Args: []string{itoa(code), message}}
}

// NewPong creates a PONG reply.
func NewPong() *Command {
	return &Command{Verb: VerbPong}
}

// NewButtonPressEvent creates a BTN_PRESS event for a physical key press.
func NewButtonPressEvent(mode, button int) *Command {
	return &Command{Verb: VerbBtnPress, Args: []string{itoa(mode), itoa(button)}}
}

// NewSliderChangeEvent creates a SLIDER_CHANGE event carrying the raw
// 0-1023 slider position.
func NewSliderChangeEvent(slider, value int) *Command {
	return &Command{Verb: VerbSliderChange, Args: []string{itoa(slider), itoa(value)}}
}

// NewModeChangeEvent creates a MODE_CHANGE event for a mode switch made on
// the device itself.
func NewModeChangeEvent(mode int) *Command {
	return &Command{Verb: VerbModeChange, Args: []string{itoa(mode)}}
}

func itoa(n int) string {
	return strconv.Itoa(n)
}
