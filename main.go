// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad
//
// Tessera - Grout Deck Host
//
// A CLI tool for syncing layouts onto a Tessera macro deck and
// dispatching the hotkey, volume, and mode events it sends back.

package main

import (
	"os"

	"github.com/Thermoquad/tessera/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
