// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package layout

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/Thermoquad/tessera/pkg/grout"
)

// Validate checks a layout against the device bounds and the wire format.
// It performs declarative validation only and never mutates the layout;
// call Normalize afterwards to fill defaults.
func Validate(l *Layout) error {
	if l == nil {
		return fmt.Errorf("layout is nil")
	}

	if len(l.Modes) < grout.MinModes || len(l.Modes) > grout.MaxModes {
		return fmt.Errorf("layout has %d modes, device supports %d-%d",
			len(l.Modes), grout.MinModes, grout.MaxModes)
	}

	for mi, m := range l.Modes {
		if n := utf8.RuneCountInString(m.Name); n > grout.MaxNameLen {
			return fmt.Errorf("mode %d: name %q is %d characters (max %d)",
				mi, m.Name, n, grout.MaxNameLen)
		}
		if strings.ContainsRune(m.Name, grout.Terminator) {
			return fmt.Errorf("mode %d: name contains a line terminator", mi)
		}

		seen := map[int]bool{}
		for _, b := range m.Buttons {
			if b.Index < 0 || b.Index >= grout.ButtonsPerMode {
				return fmt.Errorf("mode %d: button index %d out of range (0-%d)",
					mi, b.Index, grout.ButtonsPerMode-1)
			}
			if seen[b.Index] {
				return fmt.Errorf("mode %d: button index %d assigned twice", mi, b.Index)
			}
			seen[b.Index] = true

			// The hotkey travels as a fixed wire field; the label is the
			// free-text tail and may contain separators.
			if strings.Contains(b.Hotkey, grout.Separator) {
				return fmt.Errorf("mode %d button %d: hotkey %q contains %q",
					mi, b.Index, b.Hotkey, grout.Separator)
			}
			if strings.ContainsRune(b.Hotkey, grout.Terminator) {
				return fmt.Errorf("mode %d button %d: hotkey contains a line terminator", mi, b.Index)
			}
			if strings.ContainsRune(b.Label, grout.Terminator) {
				return fmt.Errorf("mode %d button %d: label contains a line terminator", mi, b.Index)
			}
		}
	}

	seen := map[int]bool{}
	for _, s := range l.Sliders {
		if s.Index < 0 || s.Index >= grout.NumSliders {
			return fmt.Errorf("slider index %d out of range (0-%d)",
				s.Index, grout.NumSliders-1)
		}
		if seen[s.Index] {
			return fmt.Errorf("slider index %d assigned twice", s.Index)
		}
		seen[s.Index] = true
		if strings.ContainsRune(s.App, grout.Terminator) {
			return fmt.Errorf("slider %d: app contains a line terminator", s.Index)
		}
	}

	return nil
}
