// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package layout holds the host-side source of truth for a Tessera deck:
// the modes, button assignments, and slider mappings that a sync
// transaction replays onto the device. Layouts load from YAML, are checked
// by Validate, and are filled in by Normalize; the session consumes the
// result and echoes confirmed runtime edits back through the edit methods.
package layout

import (
	"fmt"

	"github.com/Thermoquad/tessera/pkg/grout"
)

// Layout is the full deck configuration.
type Layout struct {
	Modes   []Mode             `yaml:"modes"`
	Sliders []SliderAssignment `yaml:"sliders,omitempty"`
}

// Mode is one named page of button assignments.
type Mode struct {
	Name    string   `yaml:"name"`
	Buttons []Button `yaml:"buttons,omitempty"`
}

// Button is one configured button slot. Slots absent from the list are
// unconfigured and stay empty on the device.
type Button struct {
	Index  int    `yaml:"index"`
	Hotkey string `yaml:"hotkey"`
	Label  string `yaml:"label"`
}

// SliderAssignment maps one physical slider to an application name.
type SliderAssignment struct {
	Index int    `yaml:"index"`
	App   string `yaml:"app"`
}

// Default returns the factory layout: four empty modes with default names,
// no button or slider assignments.
func Default() *Layout {
	l := &Layout{}
	for i := 0; i < 4; i++ {
		l.Modes = append(l.Modes, Mode{Name: DefaultModeName(i)})
	}
	return l
}

// DefaultModeName returns the display name used for an unnamed mode.
// Names are one-based on screen even though wire indices are zero-based.
func DefaultModeName(index int) string {
	return fmt.Sprintf("Mode %d", index+1)
}

// NumModes returns the number of modes in the layout.
func (l *Layout) NumModes() int {
	return len(l.Modes)
}

// Button returns the assignment for a button slot, if configured.
func (l *Layout) Button(mode, button int) (Button, bool) {
	if mode < 0 || mode >= len(l.Modes) {
		return Button{}, false
	}
	for _, b := range l.Modes[mode].Buttons {
		if b.Index == button {
			return b, true
		}
	}
	return Button{}, false
}

// Slider returns the application assigned to a slider, if any.
func (l *Layout) Slider(index int) (string, bool) {
	for _, s := range l.Sliders {
		if s.Index == index {
			return s.App, true
		}
	}
	return "", false
}

// SetModeName renames a mode.
func (l *Layout) SetModeName(mode int, name string) error {
	if mode < 0 || mode >= len(l.Modes) {
		return fmt.Errorf("mode %d out of range (0-%d)", mode, len(l.Modes)-1)
	}
	l.Modes[mode].Name = name
	return nil
}

// SetButton assigns a hotkey and label to a button slot, replacing any
// previous assignment.
func (l *Layout) SetButton(mode, button int, hotkey, label string) error {
	if mode < 0 || mode >= len(l.Modes) {
		return fmt.Errorf("mode %d out of range (0-%d)", mode, len(l.Modes)-1)
	}
	if button < 0 || button >= grout.ButtonsPerMode {
		return fmt.Errorf("button %d out of range (0-%d)", button, grout.ButtonsPerMode-1)
	}
	m := &l.Modes[mode]
	for i := range m.Buttons {
		if m.Buttons[i].Index == button {
			m.Buttons[i].Hotkey = hotkey
			m.Buttons[i].Label = label
			return nil
		}
	}
	m.Buttons = append(m.Buttons, Button{Index: button, Hotkey: hotkey, Label: label})
	return nil
}

// ClearButton removes the assignment from a button slot. Clearing an
// already empty slot is not an error.
func (l *Layout) ClearButton(mode, button int) error {
	if mode < 0 || mode >= len(l.Modes) {
		return fmt.Errorf("mode %d out of range (0-%d)", mode, len(l.Modes)-1)
	}
	if button < 0 || button >= grout.ButtonsPerMode {
		return fmt.Errorf("button %d out of range (0-%d)", button, grout.ButtonsPerMode-1)
	}
	m := &l.Modes[mode]
	for i := range m.Buttons {
		if m.Buttons[i].Index == button {
			m.Buttons = append(m.Buttons[:i], m.Buttons[i+1:]...)
			return nil
		}
	}
	return nil
}

// SetSlider assigns an application to a slider, replacing any previous
// assignment. An empty app removes the assignment.
func (l *Layout) SetSlider(index int, app string) error {
	if index < 0 || index >= grout.NumSliders {
		return fmt.Errorf("slider %d out of range (0-%d)", index, grout.NumSliders-1)
	}
	for i := range l.Sliders {
		if l.Sliders[i].Index == index {
			if app == "" {
				l.Sliders = append(l.Sliders[:i], l.Sliders[i+1:]...)
			} else {
				l.Sliders[i].App = app
			}
			return nil
		}
	}
	if app != "" {
		l.Sliders = append(l.Sliders, SliderAssignment{Index: index, App: app})
	}
	return nil
}

// Clone returns a deep copy. The session snapshots the layout before a
// sync so concurrent edits cannot tear the transaction.
func (l *Layout) Clone() *Layout {
	if l == nil {
		return nil
	}
	c := &Layout{
		Modes:   make([]Mode, len(l.Modes)),
		Sliders: append([]SliderAssignment(nil), l.Sliders...),
	}
	for i, m := range l.Modes {
		c.Modes[i] = Mode{
			Name:    m.Name,
			Buttons: append([]Button(nil), m.Buttons...),
		}
	}
	return c
}
