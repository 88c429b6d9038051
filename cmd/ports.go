// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.bug.st/serial"
)

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List available serial ports",
	Long: `List the serial ports present on this machine.

Useful for finding the deck's device path to pass to --port.

Exit codes:
  0 - At least one port found
  1 - No serial ports found
  2 - Enumeration error`,
	RunE: runPorts,
}

func init() {
	rootCmd.AddCommand(portsCmd)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to enumerate serial ports: %v\n", err)
		os.Exit(2)
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found.")
		os.Exit(1)
	}

	for _, port := range ports {
		fmt.Println(port)
	}
	return nil
}
