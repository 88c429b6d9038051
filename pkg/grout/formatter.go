// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import (
	"fmt"
	"strings"
)

// FormatCommand formats a command into a human-readable string for monitors
// and logs. Unknown verbs and malformed field values fall back to the raw
// wire form.
func FormatCommand(c *Command) string {
	if c == nil {
		return ""
	}

	switch c.Verb {
	case VerbBtn:
		if len(c.Args) == 4 {
			return fmt.Sprintf("BTN mode=%s button=%s hotkey=%q label=%q",
				c.Arg(0), c.Arg(1), c.Arg(2), c.Arg(3))
		}
	case VerbMode:
		return fmt.Sprintf("MODE mode=%s", c.Arg(0))
	case VerbModeCount:
		return fmt.Sprintf("MODE_COUNT count=%s", c.Arg(0))
	case VerbModeName:
		return fmt.Sprintf("MODE_NAME mode=%s name=%q", c.Arg(0), c.Arg(1))
	case VerbSlider:
		return fmt.Sprintf("SLIDER slider=%s app=%q", c.Arg(0), c.Arg(1))
	case VerbClear:
		return fmt.Sprintf("CLEAR mode=%s button=%s", c.Arg(0), c.Arg(1))
	case VerbReady:
		if len(c.Args) == 0 || c.Arg(0) == "" {
			return "READY (no version)"
		}
		return fmt.Sprintf("READY version=%s", c.Arg(0))
	case VerbAck:
		if len(c.Args) == 0 {
			return "ACK"
		}
		return "ACK " + strings.Join(c.Args, " ")
	case VerbError:
		code, err := c.Int(0)
		if err == nil {
			return fmt.Sprintf("ERROR code=%d (%s) %q", code, ErrorCodeName(code), c.Arg(1))
		}
	case VerbBtnPress:
		return fmt.Sprintf("BTN_PRESS mode=%s button=%s", c.Arg(0), c.Arg(1))
	case VerbSliderChange:
		if raw, err := c.Int(1); err == nil {
			return fmt.Sprintf("SLIDER_CHANGE slider=%s value=%d (%.0f%%)",
				c.Arg(0), raw, SliderFraction(raw)*100)
		}
	case VerbModeChange:
		return fmt.Sprintf("MODE_CHANGE mode=%s", c.Arg(0))
	case VerbSyncStart, VerbSyncEnd, VerbPing, VerbPong, VerbReset:
		return c.Verb
	}

	return c.String()
}

// ErrorCodeName returns the human-readable name for a device error code
func ErrorCodeName(code int) string {
	switch code {
	case ErrCodeInvalidIndex:
		return "INVALID_INDEX"
	case ErrCodeUnknownCommand:
		return "UNKNOWN_COMMAND"
	case ErrCodeSyncFailed:
		return "SYNC_FAILED"
	case ErrCodeResyncRequired:
		return "RESYNC_REQUIRED"
	case ErrCodeNotSyncing:
		return "NOT_SYNCING"
	default:
		return "UNKNOWN"
	}
}

// SliderFraction converts a raw wire slider value to a 0.0-1.0 fraction,
// clamping out-of-range input.
func SliderFraction(raw int) float64 {
	if raw < 0 {
		return 0
	}
	if raw > SliderMax {
		return 1
	}
	return float64(raw) / float64(SliderMax)
}
