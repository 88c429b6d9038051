// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/tessera/pkg/grout"
	"github.com/Thermoquad/tessera/pkg/layout"
)

// syncLayoutLocked replays the full layout as one transaction. Caller holds
// opMu. The device clears itself at SYNC_START, buffers everything, and
// applies atomically at SYNC_END, so a failure anywhere leaves it needing a
// RESET, never half-configured.
//
// A device ERROR during this phase is fatal to the session: the transaction
// is already poisoned and the only recovery is a full reconnect.
func (s *Session) syncLayoutLocked(ctx context.Context) error {
	s.mu.Lock()
	s.state = Syncing
	lay := s.lay.Clone()
	s.mu.Unlock()

	start := time.Now()
	cmds := syncCommands(lay)
	log.Info().Int("modes", lay.NumModes()).Int("commands", len(cmds)+2).
		Msg("starting full sync")

	if _, err := s.doLocked(ctx, grout.NewSyncStartCommand()); err != nil {
		return fmt.Errorf("%s: %w", grout.VerbSyncStart, err)
	}

	for _, c := range cmds {
		if s.cfg.RelaxedAcks {
			if err := s.sendPaced(ctx, c); err != nil {
				return err
			}
			continue
		}
		if _, err := s.doLocked(ctx, c); err != nil {
			return fmt.Errorf("%s: %w", c.Verb, err)
		}
	}

	reply, err := s.doLocked(ctx, grout.NewSyncEndCommand())
	if err != nil {
		return fmt.Errorf("%s: %w", grout.VerbSyncEnd, err)
	}
	if !reply.Is(grout.VerbAck) || reply.Arg(0) != grout.AckSyncComplete {
		return fmt.Errorf("expected ACK:%s, device sent %s", grout.AckSyncComplete, reply)
	}

	// The device comes out of a sync cleared to mode 0.
	s.mu.Lock()
	s.currentMode = 0
	s.mu.Unlock()

	log.Info().Dur("took", time.Since(start)).Msg("sync complete")
	return nil
}

// sendPaced transmits one relaxed-mode command: no acknowledgment wait,
// just a fixed pace so the device's receive buffer keeps up. Accumulated
// acknowledgments are drained rather than matched.
func (s *Session) sendPaced(ctx context.Context, c *grout.Command) error {
	s.drainPending()
	if err := s.lc.WriteCommand(c); err != nil {
		s.fail(err)
		return err
	}
	timer := time.NewTimer(s.cfg.RelaxedPace)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.failError()
	}
}

// syncCommands flattens a layout into the transaction's command order:
// MODE_COUNT first, then names, then buttons, then sliders, each ascending.
func syncCommands(lay *layout.Layout) []*grout.Command {
	cmds := []*grout.Command{grout.NewModeCountCommand(lay.NumModes())}
	for mi, m := range lay.Modes {
		cmds = append(cmds, grout.NewModeNameCommand(mi, m.Name))
	}
	for mi, m := range lay.Modes {
		for _, b := range m.Buttons {
			cmds = append(cmds, grout.NewBtnCommand(mi, b.Index, b.Hotkey, b.Label))
		}
	}
	for _, sl := range lay.Sliders {
		cmds = append(cmds, grout.NewSliderCommand(sl.Index, sl.App))
	}
	return cmds
}
