// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package grout

import (
	"fmt"
	"strings"
)

// ParseCommand parses one wire line (without terminator) into a Command.
//
// Fields are split on the separator. For verbs with a trailing free-text
// field, everything after the last fixed separator belongs to that field
// verbatim: MODE_NAME:3:🎵 Music parses to mode "3", name "🎵 Music", and
// MODE_NAME:0:A:B parses to name "A:B". Verbs with fixed arity fail with
// *ParseError on a wrong field count. Unknown verbs parse into a Command
// with their raw fields so monitors can display them and the device can
// answer ERROR:2.
func ParseCommand(line string) (*Command, error) {
	if line == "" {
		return nil, &ParseError{Line: line, Reason: "empty line"}
	}
	if strings.ContainsRune(line, Terminator) {
		return nil, &ParseError{Line: line, Reason: "embedded line terminator"}
	}

	verb, rest, hasRest := strings.Cut(line, Separator)
	if verb == "" {
		return nil, &ParseError{Line: line, Reason: "missing verb"}
	}

	spec, known := verbSpecs[verb]
	if !known || spec.variadic {
		if !hasRest {
			return &Command{Verb: verb}, nil
		}
		return &Command{Verb: verb, Args: strings.Split(rest, Separator)}, nil
	}

	if spec.args == 0 {
		if hasRest {
			return nil, &ParseError{Line: line, Reason: fmt.Sprintf("%s takes no parameters", verb)}
		}
		return &Command{Verb: verb}, nil
	}

	if spec.freeTail {
		parts := strings.SplitN(line, Separator, spec.args+1)
		if len(parts) < spec.args+1 {
			if spec.optionalTail && len(parts) == spec.args {
				return &Command{Verb: verb, Args: parts[1:]}, nil
			}
			return nil, &ParseError{
				Line:   line,
				Reason: fmt.Sprintf("%s expects %d parameters, got %d", verb, spec.args, len(parts)-1),
			}
		}
		return &Command{Verb: verb, Args: parts[1:]}, nil
	}

	var args []string
	if hasRest {
		args = strings.Split(rest, Separator)
	}
	if len(args) != spec.args {
		return nil, &ParseError{
			Line:   line,
			Reason: fmt.Sprintf("%s expects %d parameters, got %d", verb, spec.args, len(args)),
		}
	}
	return &Command{Verb: verb, Args: args}, nil
}
