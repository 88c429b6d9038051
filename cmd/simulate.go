// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Thermoquad/tessera/pkg/sim"
)

var (
	simListenAddr string
	simVersion    string
	simDropAcks   int
	simAckDelay   time.Duration
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Serve a simulated deck over TCP or serial",
	Long: `Run a software deck that speaks the full Grout protocol.

The simulated deck boots once and then survives host reconnects the way
real hardware does: the READY announcement goes out on power-up only,
and a host attaching later must discover it by PING. State lives in RAM
only; host sessions sync layouts onto it and drive it exactly as they
would the real device.

While running, device-side input can be injected on stdin:
  press <button>          key press in the current mode
  slide <slider> <value>  slider movement (0-1023)
  mode <mode>             mode switch on the deck itself
  reboot                  power-cycle (host sees an unsolicited READY)
  drop <n>                swallow the next n replies
  state                   print the deck's current state

Fault injection flags exercise host retransmit and timeout paths:
--drop-acks swallows the first n replies, --ack-delay delays every
reply by a fixed duration.

Examples:
  # Serve on TCP and run a host against it
  tessera simulate --listen :7361
  tessera run --url tcp://localhost:7361 --layout deck.yaml

  # Simulate a slow deck on a pseudo terminal
  tessera simulate --port /dev/pts/3 --ack-delay 150ms

Exit codes:
  0 - Interrupted by the user
  2 - Listen or port error`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().StringVar(&simListenAddr, "listen", "", "TCP listen address (e.g. :7361)")
	simulateCmd.Flags().StringVar(&simVersion, "version", "1.0.0", "Firmware version to announce")
	simulateCmd.Flags().IntVar(&simDropAcks, "drop-acks", 0, "Swallow the first n replies")
	simulateCmd.Flags().DurationVar(&simAckDelay, "ack-delay", 0, "Delay every reply by this duration")
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := sim.New(sim.Options{
		Version:    simVersion,
		ReplyDelay: simAckDelay,
	})
	if simDropAcks > 0 {
		s.DropReplies(simDropAcks)
	}

	fmt.Printf("Tessera - Deck Simulator\n")
	fmt.Printf("Firmware: %s\n", simVersion)
	if simDropAcks > 0 {
		fmt.Printf("Fault: dropping first %d replies\n", simDropAcks)
	}
	if simAckDelay > 0 {
		fmt.Printf("Fault: delaying every reply by %v\n", simAckDelay)
	}

	go simTriggerLoop(ctx, s)

	if simListenAddr != "" {
		return simulateTCP(ctx, s)
	}
	if portName != "" {
		return simulateSerial(ctx, s)
	}
	return fmt.Errorf("either --listen or --port must be specified")
}

// simulateTCP serves hosts one at a time; the deck keeps its state across
// connections, as powered hardware would.
func simulateTCP(ctx context.Context, s *sim.Simulator) error {
	ln, err := net.Listen("tcp", simListenAddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Listen error: %v\n", err)
		os.Exit(2)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	fmt.Printf("Listening on %s\nPress Ctrl+C to exit\n\n", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				fmt.Printf("\nInterrupted.\n")
				return nil
			}
			fmt.Fprintf(os.Stderr, "Accept error: %v\n", err)
			os.Exit(2)
		}

		fmt.Printf("Host connected: %s\n", conn.RemoteAddr())
		if err := s.Run(ctx, conn); err != nil && ctx.Err() == nil {
			fmt.Printf("Host session error: %v\n", err)
		}
		conn.Close()
		if ctx.Err() != nil {
			fmt.Printf("\nInterrupted.\n")
			return nil
		}
		fmt.Printf("Host disconnected\n")
	}
}

// simulateSerial serves one host over a serial device, typically a pty
// pair during development.
func simulateSerial(ctx context.Context, s *sim.Simulator) error {
	conn, err := OpenSerialConnection(portName, baudRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Port error: %v\n", err)
		os.Exit(2)
	}
	defer conn.Close()

	fmt.Printf("Serving on %s @ %d baud\nPress Ctrl+C to exit\n\n", portName, baudRate)

	err = s.Run(ctx, conn)
	if ctx.Err() != nil {
		fmt.Printf("\nInterrupted.\n")
		return nil
	}
	return err
}

// simTriggerLoop reads device-side input commands from stdin.
func simTriggerLoop(ctx context.Context, s *sim.Simulator) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		if err := simTrigger(s, strings.Fields(scanner.Text())); err != nil {
			if errors.Is(err, sim.ErrNoHost) {
				fmt.Printf("no host attached\n")
			} else {
				fmt.Printf("error: %v\n", err)
			}
		}
	}
}

// simTrigger executes one stdin trigger command.
func simTrigger(s *sim.Simulator, fields []string) error {
	if len(fields) == 0 {
		return nil
	}

	arg := func(i int) (int, error) {
		if i >= len(fields) {
			return 0, fmt.Errorf("missing argument")
		}
		return strconv.Atoi(fields[i])
	}

	switch fields[0] {
	case "press":
		button, err := arg(1)
		if err != nil {
			return fmt.Errorf("usage: press <button>")
		}
		return s.PressButton(button)

	case "slide":
		slider, serr := arg(1)
		value, verr := arg(2)
		if serr != nil || verr != nil {
			return fmt.Errorf("usage: slide <slider> <value>")
		}
		return s.MoveSlider(slider, value)

	case "mode":
		mode, err := arg(1)
		if err != nil {
			return fmt.Errorf("usage: mode <mode>")
		}
		return s.SwitchMode(mode)

	case "reboot":
		return s.Reboot()

	case "drop":
		n, err := arg(1)
		if err != nil {
			return fmt.Errorf("usage: drop <n>")
		}
		s.DropReplies(n)
		fmt.Printf("dropping next %d replies\n", n)
		return nil

	case "state":
		snap := s.Device().Snapshot()
		fmt.Printf("state=%s modes=%d current=%d\n", snap.State, snap.NumModes, snap.CurrentMode)
		for i, m := range snap.Modes {
			configured := 0
			for _, b := range m.Buttons {
				if b.Configured {
					configured++
				}
			}
			fmt.Printf("  mode %d %q: %d buttons\n", i, m.Name, configured)
		}
		for i, app := range snap.Sliders {
			if app != "" {
				fmt.Printf("  slider %d: %s\n", i, app)
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q (press, slide, mode, reboot, drop, state)", fields[0])
	}
}
