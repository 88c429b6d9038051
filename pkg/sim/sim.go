// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package sim runs a software Tessera deck behind any byte channel. It
// drives the same device state machine as the firmware, which makes it
// both the host's test double and the backend of the simulate command.
package sim

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/tessera/pkg/grout"
)

// ErrNoHost indicates a trigger fired while no host connection is attached.
var ErrNoHost = errors.New("no host attached")

// Options tune the simulated device.
type Options struct {
	// Version is the firmware version announced by READY.
	Version string

	// ReplyDelay delays every reply, simulating slow firmware.
	ReplyDelay time.Duration
}

// Simulator is a software deck. Power-up happens on the first Run; later
// Runs model a host reconnecting to a device that kept running, which is
// why they do not repeat the READY announcement.
type Simulator struct {
	dev  *grout.Device
	opts Options

	mu     sync.Mutex
	lc     *grout.LineConn
	booted bool
	drop   int
}

// New creates a powered-off simulator.
func New(opts Options) *Simulator {
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	return &Simulator{dev: grout.NewDevice(opts.Version), opts: opts}
}

// Device exposes the underlying state machine for inspection.
func (s *Simulator) Device() *grout.Device {
	return s.dev
}

// DropReplies makes the simulator swallow the next n replies, as a lossy
// wire would, so hosts can be exercised through their retransmit path.
func (s *Simulator) DropReplies(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drop += n
}

// Run serves one host connection until the peer closes it or the context
// ends. The first Run powers the device up and emits READY into the
// connection; a reconnecting host discovers the running device by PING.
func (s *Simulator) Run(ctx context.Context, rw io.ReadWriter) error {
	lc := grout.NewLineConn(rw)

	s.mu.Lock()
	s.lc = lc
	first := !s.booted
	s.booted = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.lc == lc {
			s.lc = nil
		}
		s.mu.Unlock()
		lc.Close()
	}()

	if first {
		for _, line := range s.dev.Boot() {
			if err := lc.WriteLine(line); err != nil {
				return err
			}
		}
		log.Info().Str("version", s.opts.Version).Msg("simulated deck powered up")
	} else {
		log.Debug().Msg("host reattached to running deck")
	}

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
			lc.Close()
		case <-stopped:
		}
	}()

	for {
		line, err := lc.ReadLine()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				log.Debug().Msg("host detached")
				return nil
			}
			return err
		}

		log.Debug().Str("rx", line).Msg("deck received")
		for _, reply := range s.dev.HandleLine(line) {
			s.mu.Lock()
			dropped := s.drop > 0
			if dropped {
				s.drop--
			}
			s.mu.Unlock()
			if dropped {
				log.Debug().Str("tx", reply).Msg("deck dropping reply")
				continue
			}

			if s.opts.ReplyDelay > 0 {
				timer := time.NewTimer(s.opts.ReplyDelay)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return ctx.Err()
				}
			}
			if err := lc.WriteLine(reply); err != nil {
				return err
			}
			log.Debug().Str("tx", reply).Msg("deck replied")
		}
	}
}

// PressButton injects a physical key press into the current mode.
func (s *Simulator) PressButton(button int) error {
	line, err := s.dev.PressButton(button)
	if err != nil {
		return err
	}
	return s.writeEvent(line)
}

// MoveSlider injects a physical slider movement with a raw 0-1023 value.
func (s *Simulator) MoveSlider(slider, value int) error {
	line, err := s.dev.MoveSlider(slider, value)
	if err != nil {
		return err
	}
	return s.writeEvent(line)
}

// SwitchMode injects a mode switch made on the deck itself.
func (s *Simulator) SwitchMode(mode int) error {
	line, err := s.dev.SwitchMode(mode)
	if err != nil {
		return err
	}
	return s.writeEvent(line)
}

// Reboot power-cycles the deck in place: all state clears and a fresh
// READY goes out on the live connection, as a brownout would look to the
// host.
func (s *Simulator) Reboot() error {
	for _, line := range s.dev.Boot() {
		if err := s.writeEvent(line); err != nil {
			return err
		}
	}
	log.Info().Msg("simulated deck rebooted")
	return nil
}

func (s *Simulator) writeEvent(line string) error {
	s.mu.Lock()
	lc := s.lc
	s.mu.Unlock()
	if lc == nil {
		return ErrNoHost
	}
	return lc.WriteLine(line)
}
