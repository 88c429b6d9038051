// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import (
	"fmt"
	"unicode/utf8"
)

// AnomalyType represents different types of command anomalies
type AnomalyType int

const (
	AnomalyUnknownVerb AnomalyType = iota
	AnomalyBadField
	AnomalyInvalidMode
	AnomalyInvalidButton
	AnomalyInvalidSlider
	AnomalyInvalidModeCount
	AnomalyInvalidValue
	AnomalyNameTooLong
)

// ValidationError represents a command validation failure
type ValidationError struct {
	Type    AnomalyType
	Message string
	Details map[string]interface{}
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	return v.Message
}

// ValidateCommand checks field values against the static protocol bounds
// (mode 0-9, button 0-8, slider 0-2, mode count 1-10, name length, raw
// slider value 0-1023). Returns a slice of validation errors, empty if the
// command is valid. The device additionally validates indices against its
// live mode count; this function is the host-side and monitor-side check.
func ValidateCommand(c *Command) []ValidationError {
	errors := []ValidationError{}
	if c == nil {
		return errors
	}

	if !KnownVerb(c.Verb) {
		return append(errors, ValidationError{
			Type:    AnomalyUnknownVerb,
			Message: fmt.Sprintf("Unknown verb %q", c.Verb),
			Details: map[string]interface{}{"verb": c.Verb},
		})
	}

	switch c.Verb {
	case VerbBtn, VerbClear, VerbBtnPress:
		errors = append(errors, checkIntField(c, 0, "mode", 0, MaxModes-1, AnomalyInvalidMode)...)
		errors = append(errors, checkIntField(c, 1, "button", 0, ButtonsPerMode-1, AnomalyInvalidButton)...)
	case VerbMode, VerbModeChange:
		errors = append(errors, checkIntField(c, 0, "mode", 0, MaxModes-1, AnomalyInvalidMode)...)
	case VerbModeCount:
		errors = append(errors, checkIntField(c, 0, "count", MinModes, MaxModes, AnomalyInvalidModeCount)...)
	case VerbModeName:
		errors = append(errors, checkIntField(c, 0, "mode", 0, MaxModes-1, AnomalyInvalidMode)...)
		if n := utf8.RuneCountInString(c.Arg(1)); n > MaxNameLen {
			errors = append(errors, ValidationError{
				Type:    AnomalyNameTooLong,
				Message: fmt.Sprintf("Mode name is %d characters (max %d)", n, MaxNameLen),
				Details: map[string]interface{}{"length": n, "max": MaxNameLen},
			})
		}
	case VerbSlider:
		errors = append(errors, checkIntField(c, 0, "slider", 0, NumSliders-1, AnomalyInvalidSlider)...)
	case VerbSliderChange:
		errors = append(errors, checkIntField(c, 0, "slider", 0, NumSliders-1, AnomalyInvalidSlider)...)
		errors = append(errors, checkIntField(c, 1, "value", 0, SliderMax, AnomalyInvalidValue)...)
	}

	return errors
}

// checkIntField validates one integer field against an inclusive range
func checkIntField(c *Command, i int, name string, min, max int, anomaly AnomalyType) []ValidationError {
	errors := []ValidationError{}
	v, err := c.Int(i)
	if err != nil {
		return append(errors, ValidationError{
			Type:    AnomalyBadField,
			Message: fmt.Sprintf("%s %s: %q is not an integer", c.Verb, name, c.Arg(i)),
			Details: map[string]interface{}{"field": name, "value": c.Arg(i)},
		})
	}
	if v < min || v > max {
		errors = append(errors, ValidationError{
			Type:    anomaly,
			Message: fmt.Sprintf("Invalid %s=%d (range %d-%d)", name, v, min, max),
			Details: map[string]interface{}{"field": name, "value": v, "min": min, "max": max},
		})
	}
	return errors
}
