// SPDX-License-Identifier: Apache-2.0
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

	"github.com/Thermoquad/tessera/pkg/grout"
)

var (
	monitorShowAll       bool
	monitorStatsInterval int
	monitorCapturePath   string
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Passively decode and display deck protocol traffic",
	Long: `Continuously read, parse, and display Grout lines as they arrive.

Each line is parsed and validated: events, acknowledgments, and device
errors are displayed decoded, malformed lines are flagged, and counters
accumulate into a statistics summary printed at a fixed interval.

By default only anomalies are displayed. Use --show-all to display every
line. With --capture, every raw line is appended to a CBOR capture file
for later "tessera replay".

Monitoring is read-only: nothing is transmitted, so it can sit on a
line beside another host without disturbing the session.

Exit codes:
  0 - Interrupted by the user
  2 - Connection or capture file error`,
	RunE: runMonitor,
}

func init() {
	rootCmd.AddCommand(monitorCmd)
	monitorCmd.Flags().BoolVar(&monitorShowAll, "show-all", false, "Show all lines (not just anomalies)")
	monitorCmd.Flags().IntVar(&monitorStatsInterval, "stats-interval", 10, "Statistics update interval (seconds)")
	monitorCmd.Flags().StringVar(&monitorCapturePath, "capture", "", "Append raw lines to a CBOR capture file")
}

func runMonitor(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	var capture *CaptureWriter
	if monitorCapturePath != "" {
		f, err := os.OpenFile(monitorCapturePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Capture file error: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()
		capture = NewCaptureWriter(f)
	}

	fmt.Printf("Tessera - Protocol Monitor\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Statistics interval: %d seconds\n", monitorStatsInterval)
	if monitorShowAll {
		fmt.Printf("Mode: All lines\n")
	} else {
		fmt.Printf("Mode: Anomalies only\n")
	}
	if monitorCapturePath != "" {
		fmt.Printf("Capture: %s\n", monitorCapturePath)
	}
	fmt.Printf("Press Ctrl+C to exit\n\n")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lc := grout.NewLineConn(conn)
	stats := grout.NewStatistics()

	statsTicker := time.NewTicker(time.Duration(monitorStatsInterval) * time.Second)
	defer statsTicker.Stop()

	// Channel for non-blocking line reads
	lines := make(chan string, 64)
	errChan := make(chan error, 1)
	go func() {
		for {
			line, err := lc.ReadLine()
			if err != nil {
				errChan <- err
				return
			}
			lines <- line
		}
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Printf("\nInterrupted.\n\n")
			fmt.Print(stats.String())
			return nil

		case line := <-lines:
			if capture != nil {
				if err := capture.Record(DirRx, line); err != nil {
					fmt.Fprintf(os.Stderr, "Capture write error: %v\n", err)
					os.Exit(2)
				}
			}
			monitorLine(stats, line)

		case err := <-errChan:
			var terr *grout.TransportError
			if errors.As(err, &terr) {
				fmt.Printf("\nConnection closed: %v\n", err)
				fmt.Println()
				fmt.Print(stats.String())
				return nil
			}
			fmt.Fprintf(os.Stderr, "Read error: %v\n", err)
			os.Exit(2)

		case <-statsTicker.C:
			fmt.Println()
			fmt.Print(stats.String())
			fmt.Println()
		}
	}
}

// monitorLine parses, validates, counts, and optionally displays one line.
func monitorLine(stats *grout.Statistics, line string) {
	timestamp := time.Now().Format("15:04:05.000")

	c, err := grout.ParseCommand(line)
	if err != nil {
		stats.Update(nil, err, nil)
		fmt.Printf("[%s] \033[1;31mMALFORMED:\033[0m %v\n", timestamp, err)
		return
	}

	validationErrors := grout.ValidateCommand(c)
	stats.Update(c, nil, validationErrors)

	if len(validationErrors) > 0 {
		fmt.Printf("[%s] \033[1;33mINVALID:\033[0m %s\n", timestamp, grout.FormatCommand(c))
		for i, verr := range validationErrors {
			fmt.Printf("  Issue %d: %s\n", i+1, verr.Message)
		}
		return
	}

	if derr := grout.AsDeviceError(c); derr != nil {
		fmt.Printf("[%s] \033[1;31mDEVICE ERROR:\033[0m %s\n", timestamp, grout.FormatCommand(c))
		return
	}

	if monitorShowAll {
		fmt.Printf("[%s] %s\n", timestamp, grout.FormatCommand(c))
	}
}
