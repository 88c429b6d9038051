// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"testing/iotest"
)

// ============================================================
// Parse Tests
// ============================================================

func TestParseCommand_ValidCommands(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		expected *Command
	}{
		{
			name:     "BTN with all fields",
			line:     "BTN:0:3:ctrl+shift+m:Mute Mic",
			expected: &Command{Verb: "BTN", Args: []string{"0", "3", "ctrl+shift+m", "Mute Mic"}},
		},
		{
			name:     "BTN label keeps embedded separators",
			line:     "BTN:1:0:ctrl+1:Scene: Main",
			expected: &Command{Verb: "BTN", Args: []string{"1", "0", "ctrl+1", "Scene: Main"}},
		},
		{
			name:     "MODE",
			line:     "MODE:7",
			expected: &Command{Verb: "MODE", Args: []string{"7"}},
		},
		{
			name:     "MODE_COUNT",
			line:     "MODE_COUNT:10",
			expected: &Command{Verb: "MODE_COUNT", Args: []string{"10"}},
		},
		{
			name:     "MODE_NAME plain",
			line:     "MODE_NAME:0:Gaming",
			expected: &Command{Verb: "MODE_NAME", Args: []string{"0", "Gaming"}},
		},
		{
			name:     "MODE_NAME with multi-byte glyphs",
			line:     "MODE_NAME:3:🎵 Music",
			expected: &Command{Verb: "MODE_NAME", Args: []string{"3", "🎵 Music"}},
		},
		{
			name:     "MODE_NAME with embedded separators",
			line:     "MODE_NAME:2:OBS: Stream: Live",
			expected: &Command{Verb: "MODE_NAME", Args: []string{"2", "OBS: Stream: Live"}},
		},
		{
			name:     "MODE_NAME empty name",
			line:     "MODE_NAME:1:",
			expected: &Command{Verb: "MODE_NAME", Args: []string{"1", ""}},
		},
		{
			name:     "SLIDER",
			line:     "SLIDER:0:Discord.exe",
			expected: &Command{Verb: "SLIDER", Args: []string{"0", "Discord.exe"}},
		},
		{
			name:     "CLEAR",
			line:     "CLEAR:0:8",
			expected: &Command{Verb: "CLEAR", Args: []string{"0", "8"}},
		},
		{
			name:     "SYNC_START bare",
			line:     "SYNC_START",
			expected: &Command{Verb: "SYNC_START"},
		},
		{
			name:     "SYNC_END bare",
			line:     "SYNC_END",
			expected: &Command{Verb: "SYNC_END"},
		},
		{
			name:     "PING bare",
			line:     "PING",
			expected: &Command{Verb: "PING"},
		},
		{
			name:     "RESET bare",
			line:     "RESET",
			expected: &Command{Verb: "RESET"},
		},
		{
			name:     "READY without version",
			line:     "READY",
			expected: &Command{Verb: "READY"},
		},
		{
			name:     "READY with version",
			line:     "READY:1.0.0",
			expected: &Command{Verb: "READY", Args: []string{"1.0.0"}},
		},
		{
			name:     "ACK with detail",
			line:     "ACK:SYNC_COMPLETE",
			expected: &Command{Verb: "ACK", Args: []string{"SYNC_COMPLETE"}},
		},
		{
			name:     "ACK bare",
			line:     "ACK",
			expected: &Command{Verb: "ACK"},
		},
		{
			name:     "ACK with several params",
			line:     "ACK:BTN:0:3",
			expected: &Command{Verb: "ACK", Args: []string{"BTN", "0", "3"}},
		},
		{
			name:     "ERROR with message",
			line:     "ERROR:1:mode 12 out of range (0-9)",
			expected: &Command{Verb: "ERROR", Args: []string{"1", "mode 12 out of range (0-9)"}},
		},
		{
			name:     "PONG",
			line:     "PONG",
			expected: &Command{Verb: "PONG"},
		},
		{
			name:     "BTN_PRESS",
			line:     "BTN_PRESS:2:4",
			expected: &Command{Verb: "BTN_PRESS", Args: []string{"2", "4"}},
		},
		{
			name:     "SLIDER_CHANGE",
			line:     "SLIDER_CHANGE:1:512",
			expected: &Command{Verb: "SLIDER_CHANGE", Args: []string{"1", "512"}},
		},
		{
			name:     "MODE_CHANGE",
			line:     "MODE_CHANGE:3",
			expected: &Command{Verb: "MODE_CHANGE", Args: []string{"3"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := ParseCommand(tt.line)
			if err != nil {
				t.Fatalf("unexpected parse error: %v", err)
			}
			if !c.Equal(tt.expected) {
				t.Errorf("parse mismatch: expected %v, got %v", tt.expected, c)
			}
		})
	}
}

func TestParseCommand_InvalidLines(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{name: "empty line", line: ""},
		{name: "missing verb", line: ":0:1"},
		{name: "BTN too few fields", line: "BTN:0:3:ctrl+m"},
		{name: "MODE_NAME missing name", line: "MODE_NAME:3"},
		{name: "MODE missing parameter", line: "MODE"},
		{name: "MODE extra parameter", line: "MODE:1:2"},
		{name: "CLEAR too few fields", line: "CLEAR:0"},
		{name: "PING with parameter", line: "PING:now"},
		{name: "SYNC_START with parameter", line: "SYNC_START:0"},
		{name: "BTN_PRESS extra field", line: "BTN_PRESS:0:1:2"},
		{name: "embedded terminator", line: "PING\nPONG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCommand(tt.line)
			if err == nil {
				t.Fatalf("expected parse error for %q, got none", tt.line)
			}
			var parseErr *ParseError
			if !errors.As(err, &parseErr) {
				t.Errorf("expected *ParseError, got %T", err)
			}
		})
	}
}

func TestParseCommand_UnknownVerbStillParses(t *testing.T) {
	c, err := ParseCommand("SPOTIFY:Artist|Title")
	if err != nil {
		t.Fatalf("unknown verbs should parse for display: %v", err)
	}
	if c.Verb != "SPOTIFY" || c.Arg(0) != "Artist|Title" {
		t.Errorf("unexpected command: %v", c)
	}
	if KnownVerb(c.Verb) {
		t.Errorf("SPOTIFY should not be a known verb")
	}
}

// ============================================================
// Accessor Tests
// ============================================================

func TestCommand_Int(t *testing.T) {
	c := &Command{Verb: VerbBtnPress, Args: []string{"2", "x"}}

	if v, err := c.Int(0); err != nil || v != 2 {
		t.Errorf("Int(0): expected 2, got %d (err %v)", v, err)
	}
	if _, err := c.Int(1); err == nil {
		t.Errorf("Int(1) on %q should fail", "x")
	}
	if _, err := c.Int(5); err == nil {
		t.Errorf("Int(5) out of range should fail")
	}
}

func TestAsDeviceError(t *testing.T) {
	c := &Command{Verb: VerbError, Args: []string{"1", "mode 12 out of range"}}
	derr := AsDeviceError(c)
	if derr == nil {
		t.Fatalf("expected device error")
	}
	if derr.Code != ErrCodeInvalidIndex {
		t.Errorf("expected code %d, got %d", ErrCodeInvalidIndex, derr.Code)
	}
	if derr.Message != "mode 12 out of range" {
		t.Errorf("unexpected message: %q", derr.Message)
	}

	if AsDeviceError(&Command{Verb: VerbAck}) != nil {
		t.Errorf("ACK is not a device error")
	}
}

// ============================================================
// Validator Tests
// ============================================================

func TestValidateCommand(t *testing.T) {
	tests := []struct {
		name    string
		command *Command
		valid   bool
		anomaly AnomalyType
	}{
		{name: "valid BTN", command: NewBtnCommand(9, 8, "ctrl+m", "Mute"), valid: true},
		{name: "BTN mode too high", command: NewBtnCommand(10, 0, "a", "b"), valid: false, anomaly: AnomalyInvalidMode},
		{name: "BTN button too high", command: NewBtnCommand(0, 9, "a", "b"), valid: false, anomaly: AnomalyInvalidButton},
		{name: "BTN negative mode", command: NewBtnCommand(-1, 0, "a", "b"), valid: false, anomaly: AnomalyInvalidMode},
		{name: "valid MODE_COUNT upper", command: NewModeCountCommand(10), valid: true},
		{name: "MODE_COUNT zero", command: NewModeCountCommand(0), valid: false, anomaly: AnomalyInvalidModeCount},
		{name: "MODE_COUNT eleven", command: NewModeCountCommand(11), valid: false, anomaly: AnomalyInvalidModeCount},
		{name: "valid MODE_NAME at limit", command: NewModeNameCommand(0, strings.Repeat("x", 20)), valid: true},
		{name: "MODE_NAME too long", command: NewModeNameCommand(0, strings.Repeat("x", 21)), valid: false, anomaly: AnomalyNameTooLong},
		{name: "MODE_NAME multi-byte at limit", command: NewModeNameCommand(0, strings.Repeat("🎵", 20)), valid: true},
		{name: "valid SLIDER", command: NewSliderCommand(2, "Spotify.exe"), valid: true},
		{name: "SLIDER index too high", command: NewSliderCommand(3, "x"), valid: false, anomaly: AnomalyInvalidSlider},
		{name: "valid SLIDER_CHANGE", command: NewSliderChangeEvent(0, 1023), valid: true},
		{name: "SLIDER_CHANGE value too high", command: NewSliderChangeEvent(0, 1024), valid: false, anomaly: AnomalyInvalidValue},
		{name: "non-integer mode", command: &Command{Verb: VerbMode, Args: []string{"abc"}}, valid: false, anomaly: AnomalyBadField},
		{name: "unknown verb", command: &Command{Verb: "BOGUS"}, valid: false, anomaly: AnomalyUnknownVerb},
		{name: "PING has nothing to validate", command: NewPingCommand(), valid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := ValidateCommand(tt.command)
			if tt.valid {
				if len(errs) != 0 {
					t.Fatalf("expected valid, got %d errors: %v", len(errs), errs[0].Message)
				}
				return
			}
			if len(errs) == 0 {
				t.Fatalf("expected validation errors, got none")
			}
			found := false
			for _, e := range errs {
				if e.Type == tt.anomaly {
					found = true
				}
			}
			if !found {
				t.Errorf("expected anomaly %d, got %v", tt.anomaly, errs)
			}
		})
	}
}

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatCommand(t *testing.T) {
	tests := []struct {
		name     string
		command  *Command
		expected string
	}{
		{
			name:     "BTN",
			command:  NewBtnCommand(0, 3, "ctrl+m", "Mute"),
			expected: `BTN mode=0 button=3 hotkey="ctrl+m" label="Mute"`,
		},
		{
			name:     "READY with version",
			command:  NewReadyEvent("1.0.0"),
			expected: "READY version=1.0.0",
		},
		{
			name:     "READY without version",
			command:  NewReadyEvent(""),
			expected: "READY (no version)",
		},
		{
			name:     "ERROR names the code",
			command:  NewDeviceError(ErrCodeSyncFailed, "bad"),
			expected: `ERROR code=3 (SYNC_FAILED) "bad"`,
		},
		{
			name:     "SLIDER_CHANGE shows percent",
			command:  NewSliderChangeEvent(1, 1023),
			expected: "SLIDER_CHANGE slider=1 value=1023 (100%)",
		},
		{
			name:     "bare verbs format as themselves",
			command:  NewPingCommand(),
			expected: "PING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatCommand(tt.command)
			if got != tt.expected {
				t.Errorf("format mismatch:\nexpected %q\ngot      %q", tt.expected, got)
			}
		})
	}
}

func TestSliderFraction(t *testing.T) {
	if f := SliderFraction(0); f != 0 {
		t.Errorf("fraction of 0: expected 0, got %f", f)
	}
	if f := SliderFraction(SliderMax); f != 1 {
		t.Errorf("fraction of max: expected 1, got %f", f)
	}
	if f := SliderFraction(2000); f != 1 {
		t.Errorf("fraction clamps high: expected 1, got %f", f)
	}
	if f := SliderFraction(-5); f != 0 {
		t.Errorf("fraction clamps low: expected 0, got %f", f)
	}
}

// ============================================================
// Transport Tests
// ============================================================

func TestLineConn_ReadLine(t *testing.T) {
	conn := NewLineConn(readWriter{Reader: strings.NewReader("READY:1.0.0\nPONG\n"), Writer: io.Discard})

	line, err := conn.ReadLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line != "READY:1.0.0" {
		t.Errorf("expected READY:1.0.0, got %q", line)
	}

	line, err = conn.ReadLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line != "PONG" {
		t.Errorf("expected PONG, got %q", line)
	}

	if _, err = conn.ReadLine(); err == nil {
		t.Fatalf("expected transport error at EOF")
	}
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Errorf("expected *TransportError, got %T", err)
	}
}

func TestLineConn_ReadLine_StripsCarriageReturn(t *testing.T) {
	conn := NewLineConn(readWriter{Reader: strings.NewReader("PONG\r\n"), Writer: io.Discard})
	line, err := conn.ReadLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line != "PONG" {
		t.Errorf("expected PONG, got %q", line)
	}
}

func TestLineConn_ReadLine_ByteAtATime(t *testing.T) {
	// One byte per Read call: multi-byte characters arrive split across
	// reads and must still come out whole.
	r := iotest.OneByteReader(strings.NewReader("MODE_NAME:3:🎵 Music\n"))
	conn := NewLineConn(readWriter{Reader: r, Writer: io.Discard})

	line, err := conn.ReadLine()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if line != "MODE_NAME:3:🎵 Music" {
		t.Errorf("multi-byte line mangled: got %q", line)
	}
}

func TestLineConn_ReadLine_PartialLineAtEOF(t *testing.T) {
	conn := NewLineConn(readWriter{Reader: strings.NewReader("READY"), Writer: io.Discard})
	_, err := conn.ReadLine()
	if err == nil {
		t.Fatalf("expected transport error for unterminated line")
	}
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Errorf("expected *TransportError, got %T", err)
	}
}

func TestLineConn_WriteLine(t *testing.T) {
	var sb strings.Builder
	conn := NewLineConn(readWriter{Reader: strings.NewReader(""), Writer: &sb})

	if err := conn.WriteLine("PING"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := conn.WriteCommand(NewModeCommand(2)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sb.String() != "PING\nMODE:2\n" {
		t.Errorf("unexpected output: %q", sb.String())
	}
}

func TestLineConn_WriteLine_Failure(t *testing.T) {
	conn := NewLineConn(readWriter{Reader: strings.NewReader(""), Writer: failWriter{}})
	err := conn.WriteLine("PING")
	if err == nil {
		t.Fatalf("expected transport error")
	}
	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransportError, got %T", err)
	}
	if terr.Op != "write" {
		t.Errorf("expected write op, got %q", terr.Op)
	}
}

func TestLineConn_CloseIdempotent(t *testing.T) {
	cc := &countingCloser{}
	conn := NewLineConn(cc)
	if err := conn.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Fatalf("unexpected error on second close: %v", err)
	}
	if cc.closes != 1 {
		t.Errorf("expected exactly one close, got %d", cc.closes)
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	stats := NewStatistics()

	ack := NewAck(VerbBtn)
	stats.Update(ack, nil, nil)
	stats.Update(NewButtonPressEvent(0, 1), nil, nil)
	stats.Update(NewDeviceError(1, "x"), nil, nil)
	stats.Update(nil, &ParseError{Line: "???", Reason: "bad"}, nil)
	bad := &Command{Verb: "BOGUS"}
	stats.Update(bad, nil, ValidateCommand(bad))

	if stats.TotalLines != 5 {
		t.Errorf("expected 5 total, got %d", stats.TotalLines)
	}
	if stats.ValidLines != 3 {
		t.Errorf("expected 3 valid, got %d", stats.ValidLines)
	}
	if stats.Acks != 1 || stats.Events != 1 || stats.DeviceErrors != 1 {
		t.Errorf("unexpected classification: acks=%d events=%d deviceErrors=%d",
			stats.Acks, stats.Events, stats.DeviceErrors)
	}
	if stats.ParseErrors != 1 {
		t.Errorf("expected 1 parse error, got %d", stats.ParseErrors)
	}
	if stats.UnknownVerbs != 1 {
		t.Errorf("expected 1 unknown verb, got %d", stats.UnknownVerbs)
	}

	stats.Reset()
	if stats.TotalLines != 0 || stats.ValidLines != 0 {
		t.Errorf("reset did not clear counters")
	}
}

// ============================================================
// Test Helpers
// ============================================================

type readWriter struct {
	io.Reader
	io.Writer
}

type failWriter struct{}

func (failWriter) Write(p []byte) (int, error) {
	return 0, fmt.Errorf("broken pipe")
}

type countingCloser struct {
	closes int
}

func (c *countingCloser) Read(p []byte) (int, error)  { return 0, io.EOF }
func (c *countingCloser) Write(p []byte) (int, error) { return len(p), nil }
func (c *countingCloser) Close() error                { c.closes++; return nil }
