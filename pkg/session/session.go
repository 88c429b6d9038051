// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session drives the host side of the Grout protocol: it owns the
// transport, replays a layout onto the device after every READY, keeps the
// wire alive, and turns unsolicited device input into typed events.
//
// A session passes through Disconnected, AwaitingReady, Syncing, and Ready.
// The device holds its configuration in RAM only, so every connection
// replays the full layout; there is no partial resync. One reader goroutine
// owns the receive side; commands and their acknowledgments are matched
// positionally, one in flight at a time, with bounded retransmission.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/Thermoquad/tessera/pkg/grout"
	"github.com/Thermoquad/tessera/pkg/layout"
)

// State is the session's position in its lifecycle.
type State int

const (
	Disconnected State = iota
	AwaitingReady
	Syncing
	Ready
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case AwaitingReady:
		return "awaiting-ready"
	case Syncing:
		return "syncing"
	case Ready:
		return "ready"
	default:
		return "unknown"
	}
}

// Config carries the session tuning knobs. Zero values take the defaults.
type Config struct {
	// ReadyTimeout bounds the wait for READY (or PONG) after connecting.
	ReadyTimeout time.Duration

	// AckTimeout bounds each wait for a command acknowledgment.
	AckTimeout time.Duration

	// MaxRetries is the total number of transmissions per command before
	// the operation fails.
	MaxRetries int

	// PingInterval is the keepalive period in the Ready state; 0 disables
	// the keepalive.
	PingInterval time.Duration

	// RelaxedAcks paces sync commands by a fixed delay instead of
	// awaiting each acknowledgment. SYNC_START and SYNC_END are always
	// acknowledged. For firmware builds that acknowledge lazily.
	RelaxedAcks bool

	// RelaxedPace is the inter-command delay in relaxed mode.
	RelaxedPace time.Duration

	// EventBuffer is the event channel capacity; the oldest event is
	// dropped on overflow.
	EventBuffer int
}

// DefaultConfig returns the standard timing profile.
func DefaultConfig() Config {
	return Config{
		ReadyTimeout: 5 * time.Second,
		AckTimeout:   2 * time.Second,
		MaxRetries:   3,
		PingInterval: 5 * time.Second,
		RelaxedPace:  20 * time.Millisecond,
		EventBuffer:  16,
	}
}

func (c *Config) fillDefaults() {
	d := DefaultConfig()
	if c.ReadyTimeout <= 0 {
		c.ReadyTimeout = d.ReadyTimeout
	}
	if c.AckTimeout <= 0 {
		c.AckTimeout = d.AckTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = d.MaxRetries
	}
	if c.RelaxedPace <= 0 {
		c.RelaxedPace = d.RelaxedPace
	}
	if c.EventBuffer <= 0 {
		c.EventBuffer = d.EventBuffer
	}
}

// Session is a host connection to one Tessera deck.
type Session struct {
	cfg  Config
	lc   *grout.LineConn
	disp *dispatcher

	// opMu serializes command exchanges: at most one command awaits its
	// acknowledgment at any time.
	opMu sync.Mutex

	mu          sync.Mutex
	state       State
	version     string
	currentMode int
	lay         *layout.Layout
	started     bool
	closing     bool
	expectReady bool
	failErr     error

	// pending receives acknowledgment-class replies from the reader.
	// Waiters drain it before transmitting so a late reply to an earlier
	// command cannot be matched to a newer one.
	pending chan *grout.Command

	done       chan struct{}
	failOnce   sync.Once
	readerDone chan struct{}

	onDisconnect func(error)
}

// New wraps an open device channel in a session. The layout is the host
// source of truth replayed on connect; nil takes the factory default.
// Call Start to run the handshake and sync.
func New(rw io.ReadWriter, lay *layout.Layout, cfg Config) *Session {
	cfg.fillDefaults()
	if lay == nil {
		lay = layout.Default()
	}
	return &Session{
		cfg:        cfg,
		lc:         grout.NewLineConn(rw),
		disp:       newDispatcher(cfg.EventBuffer),
		lay:        lay,
		pending:    make(chan *grout.Command, 4),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
}

// OnDisconnect registers a callback invoked once when the session fails.
// It is not invoked for Close. Must be set before Start.
func (s *Session) OnDisconnect(fn func(error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onDisconnect = fn
}

// Start runs the readiness handshake and the full layout sync, then enters
// the Ready state and begins the keepalive. On any failure the session is
// torn down and cannot be restarted.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true
	s.state = AwaitingReady
	s.mu.Unlock()

	go s.readLoop()

	if err := s.awaitReady(ctx); err != nil {
		s.fail(err)
		return err
	}

	s.opMu.Lock()
	err := s.syncLayoutLocked(ctx)
	s.opMu.Unlock()
	if err != nil {
		s.fail(err)
		return err
	}

	s.mu.Lock()
	s.state = Ready
	version := s.version
	s.mu.Unlock()

	if s.cfg.PingInterval > 0 {
		go s.keepalive()
	}
	log.Info().Str("version", version).Msg("session ready")
	return nil
}

// awaitReady waits for the device's READY announcement. A device that
// finished booting before the host attached never repeats its READY, so
// one PING is sent first; its PONG counts as readiness evidence too.
func (s *Session) awaitReady(ctx context.Context) error {
	if err := s.lc.WriteCommand(grout.NewPingCommand()); err != nil {
		return err
	}

	timer := time.NewTimer(s.cfg.ReadyTimeout)
	defer timer.Stop()
	select {
	case reply := <-s.pending:
		if reply.Is(grout.VerbReady) || reply.Is(grout.VerbPong) {
			return nil
		}
		return fmt.Errorf("expected READY, device sent %s", reply)
	case <-timer.C:
		return &TimeoutError{Op: grout.VerbReady, Attempts: 1}
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.failError()
	}
}

// readLoop is the single receive-side owner: it parses each line and
// routes it to the dispatcher or the pending-acknowledgment slot.
func (s *Session) readLoop() {
	defer close(s.readerDone)
	defer s.disp.close()

	for {
		c, err := s.lc.ReadCommand()
		if err != nil {
			var perr *grout.ParseError
			if errors.As(err, &perr) {
				log.Warn().Str("line", perr.Line).Str("reason", perr.Reason).
					Msg("ignoring unparseable line from device")
				continue
			}
			s.fail(err)
			return
		}
		s.route(c)
	}
}

// route classifies one received command.
func (s *Session) route(c *grout.Command) {
	if c.IsEvent() {
		s.mu.Lock()
		mode := s.currentMode
		lay := s.lay.Clone()
		s.mu.Unlock()

		if newMode := s.disp.dispatch(c, mode, lay); newMode != mode {
			s.mu.Lock()
			s.currentMode = newMode
			s.mu.Unlock()
		}
		return
	}

	if c.Is(grout.VerbReady) {
		s.mu.Lock()
		state := s.state
		expected := s.expectReady
		if state == AwaitingReady || expected {
			s.version = c.Arg(0)
		}
		s.mu.Unlock()

		// A READY nobody asked for means the device rebooted and lost
		// everything it was synced; the session cannot limp on.
		if state != AwaitingReady && !expected {
			s.fail(ErrDeviceRebooted)
			return
		}
	}

	switch c.Verb {
	case grout.VerbAck, grout.VerbError, grout.VerbPong, grout.VerbReady:
		select {
		case s.pending <- c:
		default:
			log.Warn().Str("reply", c.String()).Msg("dropping unmatched reply")
		}
	default:
		log.Warn().Str("line", c.String()).Msg("ignoring unexpected line from device")
	}
}

// drainPending discards replies left over from timed-out or relaxed-mode
// commands so the next wait matches positionally.
func (s *Session) drainPending() {
	for {
		select {
		case c := <-s.pending:
			log.Debug().Str("reply", c.String()).Msg("discarding stale reply")
		default:
			return
		}
	}
}

// do transmits one command and waits for its reply under the retry policy.
func (s *Session) do(ctx context.Context, c *grout.Command) (*grout.Command, error) {
	s.opMu.Lock()
	defer s.opMu.Unlock()
	return s.doLocked(ctx, c)
}

// doLocked is do without the in-flight lock, for callers running a
// multi-command exchange. An ERROR reply is returned as *grout.DeviceError.
func (s *Session) doLocked(ctx context.Context, c *grout.Command) (*grout.Command, error) {
	for attempt := 1; attempt <= s.cfg.MaxRetries; attempt++ {
		s.drainPending()
		if err := s.lc.WriteCommand(c); err != nil {
			var terr *grout.TransportError
			if errors.As(err, &terr) {
				s.fail(err)
			}
			return nil, err
		}

		timer := time.NewTimer(s.cfg.AckTimeout)
		select {
		case reply := <-s.pending:
			timer.Stop()
			if derr := grout.AsDeviceError(reply); derr != nil {
				return reply, derr
			}
			return reply, nil
		case <-timer.C:
			log.Debug().Str("command", c.Verb).Int("attempt", attempt).
				Msg("no acknowledgment, retransmitting")
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-s.done:
			timer.Stop()
			return nil, s.failError()
		}
	}
	return nil, &TimeoutError{Op: c.Verb, Attempts: s.cfg.MaxRetries}
}

// keepalive pings the device periodically in the Ready state. A tick that
// finds a command already in flight is skipped; that traffic is liveness
// evidence of its own.
func (s *Session) keepalive() {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
		}

		if !s.opMu.TryLock() {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(),
			s.cfg.AckTimeout*time.Duration(s.cfg.MaxRetries)+time.Second)
		_, err := s.doLocked(ctx, grout.NewPingCommand())
		cancel()
		s.opMu.Unlock()

		if err != nil {
			var terr *TimeoutError
			if errors.As(err, &terr) {
				log.Warn().Msg("keepalive lost, tearing session down")
				s.fail(err)
				return
			}
			select {
			case <-s.done:
				return
			default:
			}
		}
	}
}

// fail tears the session down exactly once: state to Disconnected, the
// transport released, every outstanding wait cancelled.
func (s *Session) fail(err error) {
	s.failOnce.Do(func() {
		s.mu.Lock()
		s.failErr = err
		s.state = Disconnected
		closing := s.closing
		cb := s.onDisconnect
		s.mu.Unlock()

		close(s.done)
		s.lc.Close()

		if closing {
			log.Debug().Msg("session closed")
			return
		}
		log.Warn().Err(err).Msg("session disconnected")
		if cb != nil {
			go cb(err)
		}
	})
}

func (s *Session) failError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return s.failErr
	}
	return ErrClosed
}

// ready gates the public runtime operations.
func (s *Session) ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Ready {
		return ErrNotReady
	}
	return nil
}

// SetMode switches the device to another mode. The tracked current mode
// follows on acknowledgment.
func (s *Session) SetMode(ctx context.Context, mode int) error {
	if err := s.ready(); err != nil {
		return err
	}
	s.mu.Lock()
	numModes := s.lay.NumModes()
	s.mu.Unlock()
	if mode < 0 || mode >= numModes {
		return fmt.Errorf("mode %d out of range (0-%d)", mode, numModes-1)
	}

	if _, err := s.do(ctx, grout.NewModeCommand(mode)); err != nil {
		return err
	}
	s.mu.Lock()
	s.currentMode = mode
	s.mu.Unlock()
	return nil
}

// SetButton assigns a hotkey and label to a button slot on the device and,
// once acknowledged, echoes the edit into the layout.
func (s *Session) SetButton(ctx context.Context, mode, button int, hotkey, label string) error {
	if err := s.ready(); err != nil {
		return err
	}
	c := grout.NewBtnCommand(mode, button, hotkey, label)
	if err := s.checkEdit(c, mode); err != nil {
		return err
	}

	if _, err := s.do(ctx, c); err != nil {
		return err
	}
	s.mu.Lock()
	err := s.lay.SetButton(mode, button, hotkey, label)
	s.mu.Unlock()
	return err
}

// ClearButton empties a button slot on the device and in the layout.
func (s *Session) ClearButton(ctx context.Context, mode, button int) error {
	if err := s.ready(); err != nil {
		return err
	}
	c := grout.NewClearCommand(mode, button)
	if err := s.checkEdit(c, mode); err != nil {
		return err
	}

	if _, err := s.do(ctx, c); err != nil {
		return err
	}
	s.mu.Lock()
	err := s.lay.ClearButton(mode, button)
	s.mu.Unlock()
	return err
}

// SetModeName renames a mode on the device and in the layout.
func (s *Session) SetModeName(ctx context.Context, mode int, name string) error {
	if err := s.ready(); err != nil {
		return err
	}
	c := grout.NewModeNameCommand(mode, name)
	if err := s.checkEdit(c, mode); err != nil {
		return err
	}

	if _, err := s.do(ctx, c); err != nil {
		return err
	}
	s.mu.Lock()
	err := s.lay.SetModeName(mode, name)
	s.mu.Unlock()
	return err
}

// SetSlider assigns an application to a slider on the device and in the
// layout.
func (s *Session) SetSlider(ctx context.Context, slider int, app string) error {
	if err := s.ready(); err != nil {
		return err
	}
	c := grout.NewSliderCommand(slider, app)
	if err := s.checkEdit(c, -1); err != nil {
		return err
	}

	if _, err := s.do(ctx, c); err != nil {
		return err
	}
	s.mu.Lock()
	err := s.lay.SetSlider(slider, app)
	s.mu.Unlock()
	return err
}

// checkEdit validates an edit host-side before it is transmitted: static
// wire bounds, encodability, and the live layout's mode range.
func (s *Session) checkEdit(c *grout.Command, mode int) error {
	if errs := grout.ValidateCommand(c); len(errs) > 0 {
		return &errs[0]
	}
	if _, err := grout.EncodeCommand(c); err != nil {
		return err
	}
	if mode >= 0 {
		s.mu.Lock()
		numModes := s.lay.NumModes()
		s.mu.Unlock()
		if mode >= numModes {
			return fmt.Errorf("mode %d out of range (0-%d)", mode, numModes-1)
		}
	}
	return nil
}

// Ping measures a round trip to the device.
func (s *Session) Ping(ctx context.Context) (time.Duration, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	start := time.Now()
	reply, err := s.do(ctx, grout.NewPingCommand())
	if err != nil {
		return 0, err
	}
	if !reply.Is(grout.VerbPong) {
		return 0, fmt.Errorf("expected PONG, device sent %s", reply)
	}
	return time.Since(start), nil
}

// Reset reboots the device and replays the full layout. The device answers
// ACK:RESET and then a fresh READY; both are awaited before the resync.
func (s *Session) Reset(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	s.opMu.Lock()
	defer s.opMu.Unlock()

	s.mu.Lock()
	s.expectReady = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.expectReady = false
		s.mu.Unlock()
	}()

	reply, err := s.doLocked(ctx, grout.NewResetCommand())
	if err != nil {
		return err
	}
	if !reply.Is(grout.VerbAck) {
		return fmt.Errorf("expected ACK:RESET, device sent %s", reply)
	}

	// The reboot announcement follows the acknowledgment.
	timer := time.NewTimer(s.cfg.ReadyTimeout)
	defer timer.Stop()
	select {
	case reply := <-s.pending:
		if !reply.Is(grout.VerbReady) {
			return fmt.Errorf("expected READY after RESET, device sent %s", reply)
		}
	case <-timer.C:
		return &TimeoutError{Op: grout.VerbReady, Attempts: 1}
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return s.failError()
	}

	if err := s.syncLayoutLocked(ctx); err != nil {
		s.fail(err)
		return err
	}
	s.mu.Lock()
	s.state = Ready
	s.mu.Unlock()
	return nil
}

// Events returns the channel of device input events. It is closed when the
// session ends.
func (s *Session) Events() <-chan Event {
	return s.disp.events
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Version returns the firmware version announced by READY, or "" when the
// device was already booted and never announced one.
func (s *Session) Version() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// CurrentMode returns the host's tracked active mode.
func (s *Session) CurrentMode() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentMode
}

// LayoutSnapshot returns a copy of the layout including confirmed runtime
// edits.
func (s *Session) LayoutSnapshot() *layout.Layout {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lay.Clone()
}

// StaleEvents returns the number of device events discarded as stale.
func (s *Session) StaleEvents() uint64 {
	return s.disp.stale.Load()
}

// DroppedEvents returns the number of events dropped to channel overflow.
func (s *Session) DroppedEvents() uint64 {
	return s.disp.dropped.Load()
}

// Err returns the error that ended the session, once it has ended.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failErr
}

// Done returns a channel closed when the session ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Close tears the session down without invoking the disconnect callback
// and waits for the reader to let go of the transport.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closing = true
	started := s.started
	s.mu.Unlock()

	s.fail(ErrClosed)
	if started {
		<-s.readerDone
	}
	return nil
}
