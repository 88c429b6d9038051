// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"sync/atomic"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/tessera/pkg/grout"
	"github.com/Thermoquad/tessera/pkg/layout"
)

// Event is a typed device input delivered on the session's event channel.
type Event interface {
	event()
}

// HotkeyEvent is a press of a configured button in the current mode. The
// consumer injects the hotkey into the OS.
type HotkeyEvent struct {
	Mode   int
	Button int
	Hotkey string
	Label  string
}

// VolumeEvent is a physical slider movement. App is empty when the slider
// has no assignment; Fraction is the raw wire value scaled to 0.0-1.0.
type VolumeEvent struct {
	Slider   int
	App      string
	Raw      int
	Fraction float64
}

// ModeEvent is a mode switch made on the device itself.
type ModeEvent struct {
	Mode int
}

func (HotkeyEvent) event() {}
func (VolumeEvent) event() {}
func (ModeEvent) event()   {}

// dispatcher turns unsolicited device commands into typed events on a
// buffered channel. It runs entirely on the session's reader goroutine;
// when the channel is full the oldest event is dropped so the reader never
// blocks behind a slow consumer.
type dispatcher struct {
	events    chan Event
	stale     atomic.Uint64
	dropped   atomic.Uint64
	malformed atomic.Uint64
}

func newDispatcher(buffer int) *dispatcher {
	if buffer <= 0 {
		buffer = 16
	}
	return &dispatcher{events: make(chan Event, buffer)}
}

// dispatch routes one event command. currentMode is the host's tracked
// mode at receive time; lay resolves button and slider assignments.
// Returns the new current mode (changed only by MODE_CHANGE).
func (d *dispatcher) dispatch(c *grout.Command, currentMode int, lay *layout.Layout) int {
	switch c.Verb {
	case grout.VerbBtnPress:
		mode, merr := c.Int(0)
		button, berr := c.Int(1)
		if merr != nil || berr != nil {
			d.malformed.Add(1)
			return currentMode
		}
		// A press raced a host-side mode switch: the assignment it meant
		// is gone, so it is dropped rather than fired into the wrong mode.
		if mode != currentMode {
			d.stale.Add(1)
			log.Debug().Int("mode", mode).Int("current", currentMode).
				Msg("discarding stale button press")
			return currentMode
		}
		b, ok := lay.Button(mode, button)
		if !ok {
			d.stale.Add(1)
			log.Debug().Int("mode", mode).Int("button", button).
				Msg("discarding press of unconfigured button")
			return currentMode
		}
		d.publish(HotkeyEvent{Mode: mode, Button: button, Hotkey: b.Hotkey, Label: b.Label})

	case grout.VerbSliderChange:
		slider, serr := c.Int(0)
		raw, verr := c.Int(1)
		if serr != nil || verr != nil || slider < 0 || slider >= grout.NumSliders {
			d.malformed.Add(1)
			return currentMode
		}
		app, _ := lay.Slider(slider)
		d.publish(VolumeEvent{
			Slider:   slider,
			App:      app,
			Raw:      raw,
			Fraction: grout.SliderFraction(raw),
		})

	case grout.VerbModeChange:
		mode, err := c.Int(0)
		if err != nil || mode < 0 || mode >= lay.NumModes() {
			d.malformed.Add(1)
			return currentMode
		}
		d.publish(ModeEvent{Mode: mode})
		return mode
	}
	return currentMode
}

// publish delivers an event without ever blocking, dropping the oldest
// buffered event when the consumer has fallen behind.
func (d *dispatcher) publish(ev Event) {
	for {
		select {
		case d.events <- ev:
			return
		default:
		}
		select {
		case <-d.events:
			d.dropped.Add(1)
			log.Warn().Msg("event buffer full, dropping oldest event")
		default:
		}
	}
}

func (d *dispatcher) close() {
	close(d.events)
}
