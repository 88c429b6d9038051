// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import (
	"fmt"
	"sync"
)

// ButtonConfig is one button slot of a mode
type ButtonConfig struct {
	Configured bool
	Hotkey     string
	Label      string
}

// ModeConfig is a named set of button slots active as a unit
type ModeConfig struct {
	Name    string
	Buttons [ButtonsPerMode]ButtonConfig
}

// DeviceSnapshot is a copy of the externally observable device state
type DeviceSnapshot struct {
	State       DeviceState
	NumModes    int
	CurrentMode int
	InSync      bool
	Modes       []ModeConfig
	Sliders     [NumSliders]string
}

// Device is the authoritative in-memory model of a Tessera deck.
//
// State lives in RAM only: boot, RESET, and power loss all rebuild it from
// nothing, announced by READY, after which the host replays the full layout.
// During a sync transaction (SYNC_START..SYNC_END) every mutation is
// buffered and applied atomically at SYNC_END, so runtime handlers never
// observe a partially applied layout.
//
// Each received line yields exactly one reply line (RESET yields two:
// ACK:RESET followed by a fresh READY), which is what lets the host match
// acknowledgments positionally.
type Device struct {
	mu      sync.Mutex
	version string

	state       DeviceState
	numModes    int
	currentMode int
	inSync      bool
	modes       [MaxModes]ModeConfig
	sliders     [NumSliders]string

	buffered []*Command

	// Set after a successful SYNC_END so a retransmitted SYNC_END (the
	// host's ACK was lost) is answered ACK:SYNC_COMPLETE again instead of
	// ERROR. Cleared by any other command.
	syncCompleted bool

	// Invoked under the device lock; must not call back into the device.
	onStateChange func(old, new DeviceState)
}

// NewDevice creates a device in the Booting state. Call Boot to clear state
// and obtain the READY announcement.
func NewDevice(version string) *Device {
	return &Device{version: version, state: DeviceBooting, numModes: MinModes}
}

// OnStateChange registers a callback invoked after every state transition.
func (d *Device) OnStateChange(fn func(old, new DeviceState)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onStateChange = fn
}

// Boot clears all state, enters Idle, and returns the lines the device
// emits on power-up.
func (d *Device) Boot() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clearLocked()
	d.setStateLocked(DeviceIdle)
	return []string{MustEncodeCommand(NewReadyEvent(d.version))}
}

// HandleLine parses one wire line, runs it through the state machine, and
// returns the reply lines to transmit. Unparseable lines yield ERROR:2.
func (d *Device) HandleLine(line string) []string {
	c, err := ParseCommand(line)
	if err != nil {
		return commandLines([]*Command{NewDeviceError(ErrCodeUnknownCommand, "malformed line")})
	}
	return commandLines(d.Handle(c))
}

// Handle runs one parsed command through the state machine and returns the
// replies in transmit order.
func (d *Device) Handle(c *Command) []*Command {
	d.mu.Lock()
	defer d.mu.Unlock()

	// PING is serviced in every state, without disturbing a transaction.
	if c.Is(VerbPing) {
		return []*Command{NewPong()}
	}
	if c.Is(VerbReset) {
		return d.resetLocked()
	}

	completed := d.syncCompleted
	d.syncCompleted = false

	switch d.state {
	case DeviceFaulted:
		return []*Command{NewDeviceError(ErrCodeResyncRequired, "resync required, send RESET")}
	case DeviceSyncBuffering:
		return d.handleSyncingLocked(c)
	default:
		return d.handleIdleLocked(c, completed)
	}
}

// handleIdleLocked services commands while no sync transaction is open.
// Mutations are validated against the live bounds and applied immediately.
func (d *Device) handleIdleLocked(c *Command, completed bool) []*Command {
	switch c.Verb {
	case VerbSyncStart:
		// Clear before any transaction data arrives so no stale state can
		// leak into the new layout.
		d.clearLocked()
		d.inSync = true
		d.setStateLocked(DeviceSyncBuffering)
		return []*Command{NewAck(VerbSyncStart)}

	case VerbSyncEnd:
		if completed {
			d.syncCompleted = true
			return []*Command{NewAck(AckSyncComplete)}
		}
		return []*Command{NewDeviceError(ErrCodeNotSyncing, "no sync in progress")}

	case VerbModeCount, VerbModeName, VerbBtn, VerbSlider, VerbClear, VerbMode:
		if reason := validateMutation(c, d.numModes); reason != "" {
			return []*Command{NewDeviceError(ErrCodeInvalidIndex, reason)}
		}
		d.applyMutationLocked(c)
		return []*Command{NewAck(c.Verb)}

	default:
		return []*Command{NewDeviceError(ErrCodeUnknownCommand, fmt.Sprintf("unsupported command %s", c.Verb))}
	}
}

// handleSyncingLocked buffers transaction commands without applying them,
// acknowledging each so the host pipeline can advance. Validation against
// the final bounds is deferred to SYNC_END.
func (d *Device) handleSyncingLocked(c *Command) []*Command {
	switch c.Verb {
	case VerbSyncStart:
		// Retransmit after a lost ACK restarts the transaction.
		d.clearLocked()
		d.inSync = true
		return []*Command{NewAck(VerbSyncStart)}

	case VerbSyncEnd:
		return d.commitSyncLocked()

	case VerbModeCount, VerbModeName, VerbBtn, VerbSlider, VerbClear, VerbMode:
		d.buffered = append(d.buffered, c)
		return []*Command{NewAck(c.Verb)}

	default:
		return []*Command{NewDeviceError(ErrCodeUnknownCommand, fmt.Sprintf("unsupported command %s", c.Verb))}
	}
}

// commitSyncLocked validates the buffered transaction against the final
// MODE_COUNT and applies it in received order. Failure is fatal for the
// layout: state was already cleared at SYNC_START, so there is nothing to
// roll back to and only RESET plus a full resync recovers.
func (d *Device) commitSyncLocked() []*Command {
	finalCount := MinModes
	for _, c := range d.buffered {
		if c.Is(VerbModeCount) {
			if n, err := c.Int(0); err == nil {
				finalCount = n
			}
		}
	}

	for i, c := range d.buffered {
		if reason := validateMutation(c, finalCount); reason != "" {
			d.buffered = nil
			d.inSync = false
			d.setStateLocked(DeviceFaulted)
			return []*Command{NewDeviceError(ErrCodeSyncFailed,
				fmt.Sprintf("command %d (%s): %s", i, c.Verb, reason))}
		}
	}

	for _, c := range d.buffered {
		d.applyMutationLocked(c)
	}
	d.buffered = nil
	d.inSync = false
	d.syncCompleted = true
	d.setStateLocked(DeviceIdle)
	return []*Command{NewAck(AckSyncComplete)}
}

// resetLocked returns the device to the cleared boot state from any state,
// Faulted included. The reply acknowledges the RESET, then a fresh READY
// announces the reboot; the host must resync before further commands.
func (d *Device) resetLocked() []*Command {
	d.setStateLocked(DeviceBooting)
	d.clearLocked()
	d.setStateLocked(DeviceIdle)
	return []*Command{NewAck(VerbReset), NewReadyEvent(d.version)}
}

// validateMutation checks a mutating command's fields against the given
// mode count. Returns "" when valid, otherwise the rejection reason.
func validateMutation(c *Command, modeCount int) string {
	checkMode := func(i int) string {
		mode, err := c.Int(i)
		if err != nil {
			return fmt.Sprintf("mode %q is not an integer", c.Arg(i))
		}
		if mode < 0 || mode >= modeCount {
			return fmt.Sprintf("mode %d out of range (0-%d)", mode, modeCount-1)
		}
		return ""
	}
	checkButton := func(i int) string {
		button, err := c.Int(i)
		if err != nil {
			return fmt.Sprintf("button %q is not an integer", c.Arg(i))
		}
		if button < 0 || button >= ButtonsPerMode {
			return fmt.Sprintf("button %d out of range (0-%d)", button, ButtonsPerMode-1)
		}
		return ""
	}

	switch c.Verb {
	case VerbModeCount:
		count, err := c.Int(0)
		if err != nil {
			return fmt.Sprintf("count %q is not an integer", c.Arg(0))
		}
		if count < MinModes || count > MaxModes {
			return fmt.Sprintf("mode count %d out of range (%d-%d)", count, MinModes, MaxModes)
		}
		return ""
	case VerbModeName, VerbMode:
		return checkMode(0)
	case VerbBtn, VerbClear:
		if reason := checkMode(0); reason != "" {
			return reason
		}
		return checkButton(1)
	case VerbSlider:
		slider, err := c.Int(0)
		if err != nil {
			return fmt.Sprintf("slider %q is not an integer", c.Arg(0))
		}
		if slider < 0 || slider >= NumSliders {
			return fmt.Sprintf("slider %d out of range (0-%d)", slider, NumSliders-1)
		}
		return ""
	}
	return ""
}

// applyMutationLocked applies a validated mutation to the live model.
func (d *Device) applyMutationLocked(c *Command) {
	switch c.Verb {
	case VerbModeCount:
		count, _ := c.Int(0)
		d.numModes = count
		if d.currentMode >= count {
			d.currentMode = count - 1
		}
	case VerbModeName:
		mode, _ := c.Int(0)
		d.modes[mode].Name = c.Arg(1)
	case VerbBtn:
		mode, _ := c.Int(0)
		button, _ := c.Int(1)
		d.modes[mode].Buttons[button] = ButtonConfig{
			Configured: true,
			Hotkey:     c.Arg(2),
			Label:      c.Arg(3),
		}
	case VerbSlider:
		slider, _ := c.Int(0)
		d.sliders[slider] = c.Arg(1)
	case VerbClear:
		mode, _ := c.Int(0)
		button, _ := c.Int(1)
		d.modes[mode].Buttons[button] = ButtonConfig{}
	case VerbMode:
		mode, _ := c.Int(0)
		d.currentMode = mode
	}
}

// clearLocked wipes every field back to the power-on defaults.
func (d *Device) clearLocked() {
	d.numModes = MinModes
	d.currentMode = 0
	d.inSync = false
	d.modes = [MaxModes]ModeConfig{}
	d.sliders = [NumSliders]string{}
	d.buffered = nil
	d.syncCompleted = false
}

func (d *Device) setStateLocked(next DeviceState) {
	if d.state == next {
		return
	}
	old := d.state
	d.state = next
	if d.onStateChange != nil {
		d.onStateChange(old, next)
	}
}

// PressButton records a physical key press in the current mode and returns
// the BTN_PRESS line to transmit. Unconfigured buttons still emit the
// event; the host decides whether it is actionable.
func (d *Device) PressButton(button int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if button < 0 || button >= ButtonsPerMode {
		return "", fmt.Errorf("button %d out of range (0-%d)", button, ButtonsPerMode-1)
	}
	return MustEncodeCommand(NewButtonPressEvent(d.currentMode, button)), nil
}

// MoveSlider records a physical slider movement and returns the
// SLIDER_CHANGE line to transmit. The raw value is clamped to 0-1023.
func (d *Device) MoveSlider(slider, value int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if slider < 0 || slider >= NumSliders {
		return "", fmt.Errorf("slider %d out of range (0-%d)", slider, NumSliders-1)
	}
	if value < 0 {
		value = 0
	}
	if value > SliderMax {
		value = SliderMax
	}
	return MustEncodeCommand(NewSliderChangeEvent(slider, value)), nil
}

// SwitchMode changes the active mode locally, as the deck's own mode
// buttons do, and returns the MODE_CHANGE line to transmit.
func (d *Device) SwitchMode(mode int) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if mode < 0 || mode >= d.numModes {
		return "", fmt.Errorf("mode %d out of range (0-%d)", mode, d.numModes-1)
	}
	d.currentMode = mode
	return MustEncodeCommand(NewModeChangeEvent(mode)), nil
}

// State returns the current state machine position.
func (d *Device) State() DeviceState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Version returns the firmware version string.
func (d *Device) Version() string {
	return d.version
}

// Snapshot returns a copy of the observable device state.
func (d *Device) Snapshot() DeviceSnapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := DeviceSnapshot{
		State:       d.state,
		NumModes:    d.numModes,
		CurrentMode: d.currentMode,
		InSync:      d.inSync,
		Modes:       make([]ModeConfig, d.numModes),
		Sliders:     d.sliders,
	}
	copy(snap.Modes, d.modes[:d.numModes])
	return snap
}

// commandLines encodes a reply list to wire lines.
func commandLines(cmds []*Command) []string {
	lines := make([]string, 0, len(cmds))
	for _, c := range cmds {
		lines = append(lines, MustEncodeCommand(c))
	}
	return lines
}
