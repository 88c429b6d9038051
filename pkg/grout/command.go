// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import (
	"fmt"
	"strconv"
)

// Command is a single protocol message in either direction: a verb and its
// ordered string parameters. Parameters are kept as strings; numeric fields
// are converted on access so that parse(encode(c)) reproduces c exactly.
type Command struct {
	Verb string
	Args []string
}

// verbSpec describes the wire shape of a known verb.
//
// args is the fixed parameter count after the verb. When freeTail is set the
// final parameter absorbs everything after the preceding separator verbatim,
// including further separators, spaces, and multi-byte glyphs. When variadic
// is set the verb takes any number of parameters and args is ignored. When
// optionalTail is set the final (free-tail) parameter may be absent entirely.
type verbSpec struct {
	args         int
	freeTail     bool
	variadic     bool
	optionalTail bool
}

var verbSpecs = map[string]verbSpec{
	// Host → device
	VerbBtn:       {args: 4, freeTail: true},
	VerbMode:      {args: 1},
	VerbModeCount: {args: 1},
	VerbModeName:  {args: 2, freeTail: true},
	VerbSlider:    {args: 2, freeTail: true},
	VerbClear:     {args: 2},
	VerbSyncStart: {args: 0},
	VerbSyncEnd:   {args: 0},
	VerbPing:      {args: 0},
	VerbReset:     {args: 0},

	// Device → host
	VerbReady:        {args: 1, freeTail: true, optionalTail: true},
	VerbAck:          {variadic: true},
	VerbError:        {args: 2, freeTail: true},
	VerbPong:         {args: 0},
	VerbBtnPress:     {args: 2},
	VerbSliderChange: {args: 2},
	VerbModeChange:   {args: 1},
}

// KnownVerb reports whether verb is part of the protocol vocabulary.
func KnownVerb(verb string) bool {
	_, ok := verbSpecs[verb]
	return ok
}

// Is reports whether the command carries the given verb.
func (c *Command) Is(verb string) bool {
	return c.Verb == verb
}

// Arg returns parameter i, or "" when absent.
func (c *Command) Arg(i int) string {
	if i < 0 || i >= len(c.Args) {
		return ""
	}
	return c.Args[i]
}

// Int returns parameter i parsed as a decimal integer.
func (c *Command) Int(i int) (int, error) {
	if i < 0 || i >= len(c.Args) {
		return 0, fmt.Errorf("%s: missing parameter %d", c.Verb, i)
	}
	n, err := strconv.Atoi(c.Args[i])
	if err != nil {
		return 0, fmt.Errorf("%s: parameter %d: %q is not an integer", c.Verb, i, c.Args[i])
	}
	return n, nil
}

// IsEvent reports whether the command is an unsolicited device event.
// Events bypass the host's pending-acknowledgment slot entirely.
func (c *Command) IsEvent() bool {
	switch c.Verb {
	case VerbBtnPress, VerbSliderChange, VerbModeChange:
		return true
	}
	return false
}

// AsDeviceError converts an ERROR reply into a *DeviceError.
// Returns nil for any other verb.
func AsDeviceError(c *Command) *DeviceError {
	if c == nil || c.Verb != VerbError {
		return nil
	}
	code, err := c.Int(0)
	if err != nil {
		code = 0
	}
	return &DeviceError{Code: code, Message: c.Arg(1)}
}

// Equal reports whether two commands have the same verb and parameters.
func (c *Command) Equal(o *Command) bool {
	if c == nil || o == nil {
		return c == o
	}
	if c.Verb != o.Verb || len(c.Args) != len(o.Args) {
		return false
	}
	for i := range c.Args {
		if c.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// String returns the wire form without the terminator, for logs and errors.
// Unlike EncodeCommand it never fails; invalid commands are still printable.
func (c *Command) String() string {
	line := c.Verb
	for _, a := range c.Args {
		line += Separator + a
	}
	return line
}
