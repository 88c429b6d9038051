// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"fmt"
	"testing"

	"github.com/Thermoquad/tessera/pkg/grout"
	"github.com/Thermoquad/tessera/pkg/layout"
)

func dispatchLayout() *layout.Layout {
	l := &layout.Layout{Modes: []layout.Mode{
		{Name: "One", Buttons: []layout.Button{{Index: 3, Hotkey: "f13", Label: "Cut"}}},
		{Name: "Two"},
	}}
	l.SetSlider(1, "chrome.exe")
	return l
}

func mustParse(t *testing.T, line string) *grout.Command {
	t.Helper()
	c, err := grout.ParseCommand(line)
	if err != nil {
		t.Fatalf("parse %q: %v", line, err)
	}
	return c
}

// ============================================================
// Dispatch Rule Tests
// ============================================================

func TestDispatch_ButtonPress(t *testing.T) {
	lay := dispatchLayout()

	tests := []struct {
		name      string
		line      string
		mode      int
		wantEvent bool
		wantStale uint64
	}{
		{"configured press", "BTN_PRESS:0:3", 0, true, 0},
		{"wrong mode", "BTN_PRESS:1:3", 0, false, 1},
		{"unconfigured button", "BTN_PRESS:0:7", 0, false, 1},
		{"mode already changed", "BTN_PRESS:0:3", 1, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newDispatcher(4)
			got := d.dispatch(mustParse(t, tt.line), tt.mode, lay)
			if got != tt.mode {
				t.Errorf("button press must not move the mode: got %d", got)
			}
			if tt.wantEvent {
				ev := <-d.events
				hk, ok := ev.(HotkeyEvent)
				if !ok || hk.Hotkey != "f13" || hk.Label != "Cut" {
					t.Errorf("unexpected event: %#v", ev)
				}
			} else if len(d.events) != 0 {
				t.Errorf("expected no event, got %d", len(d.events))
			}
			if d.stale.Load() != tt.wantStale {
				t.Errorf("expected %d stale, got %d", tt.wantStale, d.stale.Load())
			}
		})
	}
}

func TestDispatch_SliderChange(t *testing.T) {
	lay := dispatchLayout()
	d := newDispatcher(4)

	d.dispatch(mustParse(t, "SLIDER_CHANGE:1:512"), 0, lay)
	ev := (<-d.events).(VolumeEvent)
	if ev.App != "chrome.exe" || ev.Raw != 512 {
		t.Errorf("unexpected event: %+v", ev)
	}
	if ev.Fraction < 0.49 || ev.Fraction > 0.51 {
		t.Errorf("unexpected fraction: %v", ev.Fraction)
	}

	// No assignment still reports, with an empty app.
	d.dispatch(mustParse(t, "SLIDER_CHANGE:0:0"), 0, lay)
	ev = (<-d.events).(VolumeEvent)
	if ev.App != "" || ev.Fraction != 0 {
		t.Errorf("unexpected event: %+v", ev)
	}

	// Out-of-range slider index is malformed, not an event.
	d.dispatch(mustParse(t, "SLIDER_CHANGE:3:10"), 0, lay)
	if len(d.events) != 0 || d.malformed.Load() != 1 {
		t.Errorf("expected malformed discard, events=%d malformed=%d",
			len(d.events), d.malformed.Load())
	}
}

func TestDispatch_ModeChange(t *testing.T) {
	lay := dispatchLayout()
	d := newDispatcher(4)

	got := d.dispatch(mustParse(t, "MODE_CHANGE:1"), 0, lay)
	if got != 1 {
		t.Errorf("expected tracked mode 1, got %d", got)
	}
	ev := (<-d.events).(ModeEvent)
	if ev.Mode != 1 {
		t.Errorf("unexpected event: %+v", ev)
	}

	// A mode beyond the layout is malformed and does not move tracking.
	got = d.dispatch(mustParse(t, "MODE_CHANGE:5"), 1, lay)
	if got != 1 || d.malformed.Load() != 1 {
		t.Errorf("expected discard, mode=%d malformed=%d", got, d.malformed.Load())
	}
}

func TestDispatch_MalformedFields(t *testing.T) {
	lay := dispatchLayout()
	d := newDispatcher(4)

	d.dispatch(mustParse(t, "BTN_PRESS:abc:1"), 0, lay)
	d.dispatch(mustParse(t, "SLIDER_CHANGE:0:xyz"), 0, lay)
	d.dispatch(mustParse(t, "MODE_CHANGE:no"), 0, lay)

	if len(d.events) != 0 {
		t.Errorf("expected no events, got %d", len(d.events))
	}
	if d.malformed.Load() != 3 {
		t.Errorf("expected 3 malformed, got %d", d.malformed.Load())
	}
}

func TestDispatch_OverflowDropsOldest(t *testing.T) {
	d := newDispatcher(2)

	for i := 0; i < 5; i++ {
		d.publish(ModeEvent{Mode: i})
	}

	if d.dropped.Load() != 3 {
		t.Errorf("expected 3 dropped, got %d", d.dropped.Load())
	}
	// The survivors are the newest two, in order.
	for want := 3; want <= 4; want++ {
		ev := (<-d.events).(ModeEvent)
		if ev.Mode != want {
			t.Errorf("expected mode %d, got %d", want, ev.Mode)
		}
	}
	if len(d.events) != 0 {
		t.Errorf("expected empty channel, got %d", len(d.events))
	}
}

func TestDispatch_CloseEndsChannel(t *testing.T) {
	d := newDispatcher(2)
	d.publish(ModeEvent{Mode: 0})
	d.close()

	n := 0
	for range d.events {
		n++
	}
	if n != 1 {
		t.Errorf("expected 1 buffered event before close, got %d", n)
	}
}

func TestTimeoutError_Message(t *testing.T) {
	err := &TimeoutError{Op: grout.VerbSyncStart, Attempts: 3}
	want := "SYNC_START: no acknowledgment after 3 attempts"
	if got := fmt.Sprint(err); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}
