// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import (
	"fmt"
	"strings"
)

// EncodeCommand renders a command to its wire line, without the terminator.
//
// Separators are never escaped: only the free-text tail of a verb may carry
// them, and EncodeCommand rejects commands that would not survive a parse
// round trip (separator in a fixed field, terminator anywhere, wrong
// parameter count for a known verb).
func EncodeCommand(c *Command) (string, error) {
	if c == nil || c.Verb == "" {
		return "", fmt.Errorf("encode: empty verb")
	}
	if strings.Contains(c.Verb, Separator) || strings.ContainsRune(c.Verb, Terminator) {
		return "", fmt.Errorf("encode: verb %q contains reserved characters", c.Verb)
	}

	spec, known := verbSpecs[c.Verb]
	if known && !spec.variadic {
		ok := len(c.Args) == spec.args || (spec.optionalTail && len(c.Args) == spec.args-1)
		if !ok {
			return "", fmt.Errorf("encode %s: expects %d parameters, got %d", c.Verb, spec.args, len(c.Args))
		}
	}

	for i, arg := range c.Args {
		if strings.ContainsRune(arg, Terminator) {
			return "", fmt.Errorf("encode %s: parameter %d contains a line terminator", c.Verb, i)
		}
		freeTail := known && spec.freeTail && i == spec.args-1
		if !freeTail && strings.Contains(arg, Separator) {
			return "", fmt.Errorf("encode %s: parameter %d contains the separator", c.Verb, i)
		}
	}

	return c.String(), nil
}

// Encode renders a verb and parameters directly, without building a Command.
func Encode(verb string, params ...string) (string, error) {
	return EncodeCommand(&Command{Verb: verb, Args: params})
}

// MustEncodeCommand encodes a command known to be valid; it panics on error.
// Intended for builder-produced commands with validated fields.
func MustEncodeCommand(c *Command) string {
	line, err := EncodeCommand(c)
	if err != nil {
		panic(err)
	}
	return line
}
