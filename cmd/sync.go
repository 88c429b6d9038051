// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tessera/pkg/layout"
	"github.com/Thermoquad/tessera/pkg/session"
)

var (
	syncLayoutPath string
	syncRelaxed    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push a layout onto the deck and exit",
	Long: `Connect to the deck, replay the full layout, and exit.

The deck holds its configuration in RAM only, so the layout is always
transmitted in full: SYNC_START, MODE_COUNT, every mode name, every
configured button, every slider assignment, SYNC_END. The deck buffers
the transaction and applies it atomically on SYNC_END.

Without --layout, the factory default of four empty modes is pushed.

Examples:
  # Push a layout over serial
  tessera sync --port /dev/ttyUSB0 --layout deck.yaml

  # Push the default layout to a simulated deck
  tessera sync --url tcp://localhost:7361

Exit codes:
  0 - Layout synced, deck acknowledged SYNC_COMPLETE
  1 - Sync failed (timeout, validation rejection, device fault)
  2 - Connection or layout file error`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVarP(&syncLayoutPath, "layout", "l", "", "Layout YAML file")
	syncCmd.Flags().BoolVar(&syncRelaxed, "relaxed", false, "Pace sync commands instead of awaiting each ACK")
}

// loadLayout reads and validates a layout file, or returns the factory
// default when no path is given.
func loadLayout(path string) (*layout.Layout, error) {
	if path == "" {
		return layout.Default(), nil
	}
	return layout.Load(path)
}

func runSync(cmd *cobra.Command, args []string) error {
	lay, err := loadLayout(syncLayoutPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Layout error: %v\n", err)
		os.Exit(2)
	}

	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Tessera - Layout Sync\n")
	fmt.Printf("Connection: %s\n", connInfo)
	if syncLayoutPath != "" {
		fmt.Printf("Layout: %s (%d modes)\n\n", syncLayoutPath, lay.NumModes())
	} else {
		fmt.Printf("Layout: factory default (%d modes)\n\n", lay.NumModes())
	}

	cfg := session.DefaultConfig()
	cfg.PingInterval = 0 // one-shot, no keepalive
	cfg.RelaxedAcks = syncRelaxed

	sess := session.New(conn, lay, cfg)
	defer sess.Close()

	start := time.Now()
	if err := sess.Start(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "Sync failed: %v\n", err)
		os.Exit(1)
	}

	if v := sess.Version(); v != "" {
		fmt.Printf("Deck firmware: %s\n", v)
	}
	fmt.Printf("Synced %d modes in %v\n", lay.NumModes(), time.Since(start).Round(time.Millisecond))
	return nil
}
