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

var (
	pingTimeout int
	pingCount   int
)

var pingCmd = &cobra.Command{
	Use:   "ping",
	Short: "Test deck connectivity by sending PING and awaiting PONG",
	Long: `Send PING lines to the deck and wait for PONG replies.

The deck answers PING from every state, including mid-boot and Faulted,
so this works without a layout sync. A booted deck that never repeated
its READY still answers, which makes ping the quickest way to verify:
  - The connection is open and wired correctly
  - The deck firmware is running
  - Round-trip latency of the link

Exit codes:
  0 - All pings answered
  1 - One or more pings timed out
  2 - Connection error`,
	RunE: runPing,
}

func init() {
	rootCmd.AddCommand(pingCmd)
	pingCmd.Flags().IntVar(&pingTimeout, "timeout", 2, "Timeout in seconds for each ping")
	pingCmd.Flags().IntVar(&pingCount, "count", 3, "Number of pings to send")
}

func runPing(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Tessera - Deck Ping\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Timeout: %d seconds per ping\n", pingTimeout)
	fmt.Printf("Count: %d pings\n\n", pingCount)

	lc := grout.NewLineConn(conn)
	successCount := 0
	failCount := 0

	// Replies arrive on their own goroutine so timeouts stay precise.
	pongChan := make(chan time.Time, 1)
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
			if c.Is(grout.VerbPong) {
				select {
				case pongChan <- time.Now():
				default:
				}
			}
			// Anything else (a boot READY, a stray event) is not a pong.
		}
	}()

	for i := 1; i <= pingCount; i++ {
		fmt.Printf("Ping %d/%d: ", i, pingCount)

		// Discard a pong that arrived after its ping timed out.
		select {
		case <-pongChan:
		default:
		}

		startTime := time.Now()
		if err := lc.WriteCommand(grout.NewPingCommand()); err != nil {
			fmt.Printf("SEND FAILED: %v\n", err)
			failCount++
			continue
		}

		select {
		case at := <-pongChan:
			rtt := at.Sub(startTime)
			fmt.Printf("PONG, rtt=%v\n", rtt.Round(time.Microsecond))
			successCount++

		case err := <-errChan:
			fmt.Printf("READ FAILED: %v\n", err)
			os.Exit(2)

		case <-time.After(time.Duration(pingTimeout) * time.Second):
			fmt.Printf("TIMEOUT (no PONG in %ds)\n", pingTimeout)
			failCount++
		}

		// Small delay between pings
		if i < pingCount {
			time.Sleep(100 * time.Millisecond)
		}
	}

	// Summary
	fmt.Printf("\n--- Ping statistics ---\n")
	fmt.Printf("%d pings sent, %d answered, %.0f%% loss\n",
		pingCount, successCount, float64(failCount)/float64(pingCount)*100)

	if failCount > 0 {
		os.Exit(1)
	}
	return nil
}
