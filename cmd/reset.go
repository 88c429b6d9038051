// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tessera/pkg/grout"
)

var resetTimeout int

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reboot the deck and wait for it to come back up",
	Long: `Send a RESET line and wait for the deck's ACK:RESET and fresh READY.

RESET clears the deck completely: all modes, buttons, and sliders are
gone until the next full sync. It is also the recovery path for a deck
stuck in the Faulted state after a failed sync transaction.

After a successful reset the deck holds only the factory single unnamed
mode; run "tessera sync" or "tessera run" to push a layout back.

Exit codes:
  0 - Deck acknowledged and re-announced READY
  1 - Timeout waiting for the deck
  2 - Connection error`,
	RunE: runReset,
}

func init() {
	rootCmd.AddCommand(resetCmd)
	resetCmd.Flags().IntVar(&resetTimeout, "timeout", 5, "Timeout in seconds for the reboot")
}

func runReset(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Tessera - Deck Reset\n")
	fmt.Printf("Connection: %s\n\n", connInfo)

	lc := grout.NewLineConn(conn)

	type step struct {
		cmd *grout.Command
		at  time.Time
	}
	ackChan := make(chan step, 1)
	readyChan := make(chan step, 1)
	errChan := make(chan error, 1)

	go func() {
		for {
			c, err := lc.ReadCommand()
			if err != nil {
				var perr *grout.ParseError
				if errors.As(err, &perr) {
					continue
				}
				errChan <- err
				return
			}
			switch {
			case c.Is(grout.VerbAck) && c.Arg(0) == grout.VerbReset:
				ackChan <- step{c, time.Now()}
			case c.Is(grout.VerbReady):
				select {
				case readyChan <- step{c, time.Now()}:
					return
				default:
				}
			}
		}
	}()

	start := time.Now()
	if err := lc.WriteCommand(grout.NewResetCommand()); err != nil {
		fmt.Fprintf(os.Stderr, "Send failed: %v\n", err)
		os.Exit(2)
	}

	deadline := time.After(time.Duration(resetTimeout) * time.Second)

	select {
	case s := <-ackChan:
		fmt.Printf("ACK:RESET after %v\n", s.at.Sub(start).Round(time.Millisecond))
	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
		os.Exit(2)
	case <-deadline:
		fmt.Fprintf(os.Stderr, "TIMEOUT: no ACK:RESET within %ds\n", resetTimeout)
		os.Exit(1)
	}

	select {
	case s := <-readyChan:
		version := s.cmd.Arg(0)
		if version == "" {
			fmt.Printf("READY after %v (no version announced)\n", s.at.Sub(start).Round(time.Millisecond))
		} else {
			fmt.Printf("READY after %v, firmware %s\n", s.at.Sub(start).Round(time.Millisecond), version)
		}
	case err := <-errChan:
		fmt.Fprintf(os.Stderr, "Read failed: %v\n", err)
		os.Exit(2)
	case <-deadline:
		fmt.Fprintf(os.Stderr, "TIMEOUT: no READY within %ds\n", resetTimeout)
		os.Exit(1)
	}

	fmt.Printf("\nDeck is up with factory state. Run \"tessera sync\" to push a layout.\n")
	return nil
}
