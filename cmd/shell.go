// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ergochat/readline"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/tessera/pkg/grout"
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive shell for sending raw protocol lines",
	Long: `Open a line-editing shell wired straight to the deck.

Everything you type is sent verbatim as one Grout line; every line the
deck sends back is displayed decoded. Useful for poking at a deck by
hand: PING, MODE:2, BTN:0:3:ctrl+m:Mute, SYNC_START, RESET.

History is kept at ~/.tessera_history. Ctrl+D or "exit" leaves the
shell.

Examples:
  tessera shell --port /dev/ttyUSB0
  tessera shell --url tcp://localhost:7361

Exit codes:
  0 - Shell exited
  2 - Connection error`,
	RunE: runShell,
}

func init() {
	rootCmd.AddCommand(shellCmd)
}

func runShell(cmd *cobra.Command, args []string) error {
	conn, connInfo, err := OpenConnection()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Connection error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	historyPath := ""
	if home, err := os.UserHomeDir(); err == nil {
		historyPath = filepath.Join(home, ".tessera_history")
	}

	rl, err := readline.NewFromConfig(&readline.Config{
		Prompt:                 "grout> ",
		HistoryFile:            historyPath,
		HistoryLimit:           500,
		DisableAutoSaveHistory: true,
	})
	if err != nil {
		return fmt.Errorf("readline init failed: %v", err)
	}
	defer rl.Close()

	fmt.Printf("Tessera - Protocol Shell\n")
	fmt.Printf("Connection: %s\n", connInfo)
	fmt.Printf("Type protocol lines; Ctrl+D or \"exit\" to leave\n\n")

	lc := grout.NewLineConn(conn)

	// Deck output prints above the prompt as it arrives.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			c, err := lc.ReadCommand()
			if err != nil {
				var perr *grout.ParseError
				if errors.As(err, &perr) {
					fmt.Fprintf(rl, "<- MALFORMED: %v\n", err)
					continue
				}
				fmt.Fprintf(rl, "connection closed: %v\n", err)
				return
			}
			fmt.Fprintf(rl, "<- %s\n", grout.FormatCommand(c))
		}
	}()

	for {
		select {
		case <-done:
			return nil
		default:
		}

		line, err := rl.Readline()
		if err != nil {
			// Ctrl+C clears the line, Ctrl+D leaves the shell.
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		rl.SaveToHistory(line)

		if err := lc.WriteLine(line); err != nil {
			fmt.Fprintf(os.Stderr, "send failed: %v\n", err)
			return nil
		}
	}
}
