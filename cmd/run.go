// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tessera/pkg/layout"
	"github.com/Thermoquad/tessera/pkg/session"
)

var (
	runLayoutPath string
	runReconnect  bool
	runRelaxed    bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the deck host: sync, then dispatch events until interrupted",
	Long: `Run the long-lived host side of the deck.

On connect the full layout is replayed onto the deck, then the host
stays attached: button presses print the hotkey to fire, slider moves
print the volume target, and mode switches are tracked so stale presses
from the previous mode are discarded. A periodic PING keeps the link
verified; a deck that reboots mid-session is detected by its unsolicited
READY and triggers a full resync.

With --reconnect the host survives unplugs: it polls the connection
every 2 seconds and replays the layout once the deck reappears.

Examples:
  # Run with a layout over serial, reconnecting across unplugs
  tessera run --port /dev/ttyUSB0 --layout deck.yaml --reconnect

  # Run against a simulated deck
  tessera run --url tcp://localhost:7361 --layout deck.yaml

Exit codes:
  0 - Interrupted by the user
  1 - Session ended and --reconnect was not set
  2 - Connection or layout file error`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().StringVarP(&runLayoutPath, "layout", "l", "", "Layout YAML file")
	runCmd.Flags().BoolVar(&runReconnect, "reconnect", false, "Reconnect and resync when the deck disappears")
	runCmd.Flags().BoolVar(&runRelaxed, "relaxed", false, "Pace sync commands instead of awaiting each ACK")
}

func runRun(cmd *cobra.Command, args []string) error {
	lay, err := loadLayout(runLayoutPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Layout error: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Tessera - Deck Host\n")
	fmt.Printf("Layout: %d modes\n", lay.NumModes())
	fmt.Printf("Press Ctrl+C to exit\n\n")

	firstAttempt := true
	for {
		conn, connInfo, err := OpenConnection()
		if err != nil {
			if firstAttempt {
				fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
				os.Exit(2)
			}
			// Deck still gone; keep polling.
			select {
			case <-ctx.Done():
				fmt.Printf("\nInterrupted.\n")
				return nil
			case <-time.After(2 * time.Second):
				continue
			}
		}
		firstAttempt = false

		err = hostSession(ctx, conn, connInfo, lay)
		conn.Close()

		if ctx.Err() != nil {
			fmt.Printf("\nInterrupted.\n")
			return nil
		}
		if err != nil {
			fmt.Printf("Session ended: %v\n", err)
		}
		if !runReconnect {
			os.Exit(1)
		}

		fmt.Printf("Waiting for deck to reappear...\n")
		select {
		case <-ctx.Done():
			fmt.Printf("\nInterrupted.\n")
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

// hostSession drives one connection from sync to disconnect and prints
// events as they arrive.
func hostSession(ctx context.Context, conn Connection, connInfo string, lay *layout.Layout) error {
	cfg := session.DefaultConfig()
	cfg.RelaxedAcks = runRelaxed

	sess := session.New(conn, lay, cfg)
	defer sess.Close()

	fmt.Printf("Connecting: %s\n", connInfo)
	start := time.Now()
	if err := sess.Start(ctx); err != nil {
		return err
	}

	if v := sess.Version(); v != "" {
		fmt.Printf("Deck firmware %s, synced in %v\n\n", v, time.Since(start).Round(time.Millisecond))
	} else {
		fmt.Printf("Deck synced in %v\n\n", time.Since(start).Round(time.Millisecond))
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case <-sess.Done():
			if err := sess.Err(); !errors.Is(err, session.ErrClosed) {
				return err
			}
			return nil

		case ev, ok := <-sess.Events():
			if !ok {
				return sess.Err()
			}
			printEvent(ev)
		}
	}
}

// printEvent renders one deck event as a log line.
func printEvent(ev session.Event) {
	timestamp := time.Now().Format("15:04:05.000")
	switch e := ev.(type) {
	case session.HotkeyEvent:
		fmt.Printf("[%s] HOTKEY  mode %d button %d: %s (%q)\n",
			timestamp, e.Mode, e.Button, e.Hotkey, e.Label)
	case session.VolumeEvent:
		app := e.App
		if app == "" {
			app = "(unassigned)"
		}
		fmt.Printf("[%s] VOLUME  slider %d -> %3.0f%% %s\n",
			timestamp, e.Slider, e.Fraction*100, app)
	case session.ModeEvent:
		fmt.Printf("[%s] MODE    deck switched to mode %d\n", timestamp, e.Mode)
	}
}
