// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tessera/pkg/grout"
)

var replayRaw bool

var replayCmd = &cobra.Command{
	Use:   "replay <capture.cbor>",
	Short: "Decode and display a protocol capture file",
	Long: `Read a CBOR capture written by "tessera monitor --capture" and display
each recorded line with its original timestamp and direction.

Lines are decoded the same way the monitor decodes live traffic; use
--raw to see the wire text instead.

Exit codes:
  0 - Capture replayed
  1 - Capture was truncated (lines before the damage were replayed)
  2 - File error`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().BoolVar(&replayRaw, "raw", false, "Show raw wire text instead of decoded lines")
}

func runReplay(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "File error: %v\n", err)
		os.Exit(2)
	}
	defer f.Close()

	records, readErr := ReadCapture(f)

	fmt.Printf("Tessera - Capture Replay\n")
	fmt.Printf("File: %s (%d records)\n\n", args[0], len(records))

	stats := grout.NewStatistics()
	for _, rec := range records {
		timestamp := rec.Time.Format("01/02/06 15:04:05.000")
		dir := "<-"
		if rec.Dir == DirTx {
			dir = "->"
		}

		if replayRaw {
			fmt.Printf("[%s] %s %s\n", timestamp, dir, rec.Line)
			continue
		}

		c, err := grout.ParseCommand(rec.Line)
		if err != nil {
			stats.Update(nil, err, nil)
			fmt.Printf("[%s] %s MALFORMED: %v\n", timestamp, dir, err)
			continue
		}
		stats.Update(c, nil, grout.ValidateCommand(c))
		fmt.Printf("[%s] %s %s\n", timestamp, dir, grout.FormatCommand(c))
	}

	if !replayRaw {
		fmt.Println()
		fmt.Print(stats.String())
	}

	if readErr != nil {
		fmt.Fprintf(os.Stderr, "\nCapture truncated: %v\n", readErr)
		os.Exit(1)
	}
	return nil
}
