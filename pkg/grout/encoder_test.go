// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import (
	"strings"
	"testing"
)

// ============================================================
// Encode Tests
// ============================================================

func TestEncodeCommand_WireLines(t *testing.T) {
	tests := []struct {
		name     string
		command  *Command
		expected string
	}{
		{name: "BTN", command: NewBtnCommand(0, 3, "ctrl+shift+m", "Mute Mic"), expected: "BTN:0:3:ctrl+shift+m:Mute Mic"},
		{name: "BTN label with separator", command: NewBtnCommand(1, 0, "ctrl+1", "Scene: Main"), expected: "BTN:1:0:ctrl+1:Scene: Main"},
		{name: "BTN empty label", command: NewBtnCommand(2, 5, "f13", ""), expected: "BTN:2:5:f13:"},
		{name: "MODE", command: NewModeCommand(7), expected: "MODE:7"},
		{name: "MODE_COUNT", command: NewModeCountCommand(4), expected: "MODE_COUNT:4"},
		{name: "MODE_NAME", command: NewModeNameCommand(3, "🎵 Music"), expected: "MODE_NAME:3:🎵 Music"},
		{name: "SLIDER", command: NewSliderCommand(0, "Discord.exe"), expected: "SLIDER:0:Discord.exe"},
		{name: "CLEAR", command: NewClearCommand(0, 8), expected: "CLEAR:0:8"},
		{name: "SYNC_START", command: NewSyncStartCommand(), expected: "SYNC_START"},
		{name: "SYNC_END", command: NewSyncEndCommand(), expected: "SYNC_END"},
		{name: "PING", command: NewPingCommand(), expected: "PING"},
		{name: "RESET", command: NewResetCommand(), expected: "RESET"},
		{name: "READY versioned", command: NewReadyEvent("1.0.0"), expected: "READY:1.0.0"},
		{name: "READY bare", command: NewReadyEvent(""), expected: "READY"},
		{name: "ACK bare", command: NewAck(), expected: "ACK"},
		{name: "ACK with detail", command: NewAck("SYNC_COMPLETE"), expected: "ACK:SYNC_COMPLETE"},
		{name: "ERROR", command: NewDeviceError(1, "mode 12 out of range (0-9)"), expected: "ERROR:1:mode 12 out of range (0-9)"},
		{name: "PONG", command: NewPong(), expected: "PONG"},
		{name: "BTN_PRESS", command: NewButtonPressEvent(2, 4), expected: "BTN_PRESS:2:4"},
		{name: "SLIDER_CHANGE", command: NewSliderChangeEvent(1, 512), expected: "SLIDER_CHANGE:1:512"},
		{name: "MODE_CHANGE", command: NewModeChangeEvent(9), expected: "MODE_CHANGE:9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line, err := EncodeCommand(tt.command)
			if err != nil {
				t.Fatalf("unexpected encode error: %v", err)
			}
			if line != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, line)
			}
		})
	}
}

func TestEncodeCommand_RoundTrip(t *testing.T) {
	commands := []*Command{
		NewBtnCommand(0, 3, "ctrl+shift+m", "Mute Mic"),
		NewBtnCommand(1, 0, "ctrl+1", "Scene: Main"),
		NewBtnCommand(9, 8, "f24", ""),
		NewModeCommand(0),
		NewModeCountCommand(10),
		NewModeNameCommand(3, "🎵 Music"),
		NewModeNameCommand(2, "OBS: Stream: Live"),
		NewModeNameCommand(1, ""),
		NewSliderCommand(2, "Spotify.exe"),
		NewClearCommand(0, 0),
		NewSyncStartCommand(),
		NewSyncEndCommand(),
		NewPingCommand(),
		NewResetCommand(),
		NewReadyEvent("1.0.0"),
		NewReadyEvent(""),
		NewAck(),
		NewAck(VerbBtn),
		NewAck("SYNC_COMPLETE"),
		NewDeviceError(3, "expected 2 modes, buffered names for 3"),
		NewPong(),
		NewButtonPressEvent(2, 4),
		NewSliderChangeEvent(0, 1023),
		NewModeChangeEvent(5),
	}

	for _, c := range commands {
		t.Run(c.String(), func(t *testing.T) {
			line, err := EncodeCommand(c)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			parsed, err := ParseCommand(line)
			if err != nil {
				t.Fatalf("parse of encoded line %q failed: %v", line, err)
			}
			if !parsed.Equal(c) {
				t.Errorf("round trip mismatch: sent %v, got back %v", c, parsed)
			}
		})
	}
}

func TestEncodeCommand_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		command *Command
	}{
		{name: "nil command", command: nil},
		{name: "empty verb", command: &Command{}},
		{name: "separator in verb", command: &Command{Verb: "BTN:0"}},
		{name: "terminator in verb", command: &Command{Verb: "PING\n"}},
		{name: "terminator in parameter", command: NewModeNameCommand(0, "two\nlines")},
		{name: "separator in fixed field", command: NewBtnCommand(0, 0, "ctrl:m", "ok")},
		{name: "separator in SLIDER app", command: &Command{Verb: VerbSlider, Args: []string{"0:1", "x"}}},
		{name: "BTN wrong arity", command: &Command{Verb: VerbBtn, Args: []string{"0", "1"}}},
		{name: "PING with parameter", command: &Command{Verb: VerbPing, Args: []string{"x"}}},
		{name: "MODE missing parameter", command: &Command{Verb: VerbMode}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := EncodeCommand(tt.command); err == nil {
				t.Errorf("expected encode error, got none")
			}
		})
	}
}

func TestEncode_Direct(t *testing.T) {
	line, err := Encode(VerbModeName, "0", "Gaming")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line != "MODE_NAME:0:Gaming" {
		t.Errorf("expected MODE_NAME:0:Gaming, got %q", line)
	}
}

func TestMustEncodeCommand_PanicsOnInvalid(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic for invalid command")
		}
	}()
	MustEncodeCommand(&Command{Verb: "BAD\nVERB"})
}

func TestMustEncodeCommand_Valid(t *testing.T) {
	if got := MustEncodeCommand(NewPingCommand()); got != "PING" {
		t.Errorf("expected PING, got %q", got)
	}
	if got := strings.TrimSpace(MustEncodeCommand(NewClearCommand(1, 2))); got != "CLEAR:1:2" {
		t.Errorf("expected CLEAR:1:2, got %q", got)
	}
}
