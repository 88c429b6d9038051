// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package layout

import (
	"strings"
	"testing"
)

// oneMode builds a single-mode layout around one button assignment.
func oneMode(name string, b Button) *Layout {
	return &Layout{Modes: []Mode{{Name: name, Buttons: []Button{b}}}}
}

func TestValidate_NilLayout(t *testing.T) {
	if err := Validate(nil); err == nil {
		t.Errorf("expected error for nil layout")
	}
}

func TestValidate_ModeCountBounds(t *testing.T) {
	if err := Validate(&Layout{}); err == nil {
		t.Errorf("expected error for zero modes")
	}

	l := &Layout{}
	for i := 0; i < 11; i++ {
		l.Modes = append(l.Modes, Mode{Name: "M"})
	}
	if err := Validate(l); err == nil {
		t.Errorf("expected error for 11 modes")
	}

	l.Modes = l.Modes[:10]
	if err := Validate(l); err != nil {
		t.Errorf("10 modes should validate: %v", err)
	}
}

func TestValidate_ModeNameLength(t *testing.T) {
	if err := Validate(&Layout{Modes: []Mode{{Name: strings.Repeat("x", 20)}}}); err != nil {
		t.Errorf("20 characters should validate: %v", err)
	}
	if err := Validate(&Layout{Modes: []Mode{{Name: strings.Repeat("x", 21)}}}); err == nil {
		t.Errorf("expected error for 21 characters")
	}
	// Runes, not bytes.
	if err := Validate(&Layout{Modes: []Mode{{Name: strings.Repeat("🎵", 20)}}}); err != nil {
		t.Errorf("20 multi-byte runes should validate: %v", err)
	}
}

func TestValidate_ButtonIndexBounds(t *testing.T) {
	if err := Validate(oneMode("M", Button{Index: 8, Hotkey: "a", Label: "b"})); err != nil {
		t.Errorf("index 8 should validate: %v", err)
	}
	if err := Validate(oneMode("M", Button{Index: 9, Hotkey: "a", Label: "b"})); err == nil {
		t.Errorf("expected error for index 9")
	}
	if err := Validate(oneMode("M", Button{Index: -1, Hotkey: "a", Label: "b"})); err == nil {
		t.Errorf("expected error for negative index")
	}
}

func TestValidate_DuplicateButtonIndex(t *testing.T) {
	l := &Layout{Modes: []Mode{{
		Name: "M",
		Buttons: []Button{
			{Index: 3, Hotkey: "a", Label: "A"},
			{Index: 3, Hotkey: "b", Label: "B"},
		},
	}}}
	if err := Validate(l); err == nil {
		t.Errorf("expected error for duplicate button index")
	}
}

func TestValidate_HotkeyWireSafety(t *testing.T) {
	// Separators are legal in the label (free-text tail) but not the hotkey.
	if err := Validate(oneMode("M", Button{Index: 0, Hotkey: "ctrl+m", Label: "Scene: Main"})); err != nil {
		t.Errorf("separator in label should validate: %v", err)
	}
	if err := Validate(oneMode("M", Button{Index: 0, Hotkey: "ctrl:m", Label: "x"})); err == nil {
		t.Errorf("expected error for separator in hotkey")
	}
	if err := Validate(oneMode("M", Button{Index: 0, Hotkey: "ctrl+m", Label: "two\nlines"})); err == nil {
		t.Errorf("expected error for terminator in label")
	}
}

func TestValidate_SliderBounds(t *testing.T) {
	base := []Mode{{Name: "M"}}

	l := &Layout{Modes: base, Sliders: []SliderAssignment{{Index: 2, App: "x"}}}
	if err := Validate(l); err != nil {
		t.Errorf("slider 2 should validate: %v", err)
	}

	l = &Layout{Modes: base, Sliders: []SliderAssignment{{Index: 3, App: "x"}}}
	if err := Validate(l); err == nil {
		t.Errorf("expected error for slider 3")
	}

	l = &Layout{Modes: base, Sliders: []SliderAssignment{{Index: 0, App: "a"}, {Index: 0, App: "b"}}}
	if err := Validate(l); err == nil {
		t.Errorf("expected error for duplicate slider index")
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	l := &Layout{Modes: []Mode{
		{Name: "", Buttons: []Button{{Index: 5}, {Index: 0}}},
	}}
	if err := Validate(l); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if l.Modes[0].Name != "" {
		t.Errorf("Validate filled a default name")
	}
	if l.Modes[0].Buttons[0].Index != 5 {
		t.Errorf("Validate reordered buttons")
	}
}
