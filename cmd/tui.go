// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/Thermoquad/tessera/pkg/grout"
	"github.com/Thermoquad/tessera/pkg/layout"
	"github.com/Thermoquad/tessera/pkg/session"
)

var (
	tuiLayoutPath string
	tuiRelaxed    bool
)

var tuiCmd = &cobra.Command{
	Use:   "tui",
	Short: "Full-screen deck dashboard",
	Long: `Run the deck host inside a full-screen dashboard.

The dashboard syncs the layout onto the deck, then shows the live
session: the mode strip with the deck's current mode highlighted, the
button grid for that mode, slider positions as they move, and a
scrolling event log. A periodic PING keeps the link verified.

Keys:
  left/right  switch the deck's mode
  r           factory-reset the deck and resync the layout
  p           measure round-trip time
  up/down     scroll the event log
  q           quit

Examples:
  # Dashboard over serial with a layout file
  tessera tui --port /dev/ttyUSB0 --layout deck.yaml

  # Dashboard against a simulated deck
  tessera tui --url tcp://localhost:7361

Exit codes:
  0 - Quit by the user
  2 - Connection or layout file error`,
	RunE: runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
	tuiCmd.Flags().StringVarP(&tuiLayoutPath, "layout", "l", "", "Layout YAML file")
	tuiCmd.Flags().BoolVar(&tuiRelaxed, "relaxed", false, "Pace sync commands instead of awaiting each ACK")
}

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool // true for errors, false for informational entries
}

// Last seen slider position
type sliderState struct {
	fraction float64
	seen     bool
}

// TUI model
type model struct {
	connInfo string
	sess     *session.Session
	lay      *layout.Layout

	spin spinner.Model
	log  viewport.Model

	eventLog      []eventLogEntry
	maxLogEntries int

	connected   bool
	lostErr     error
	version     string
	readyAt     time.Time
	syncTime    time.Duration
	currentMode int
	sliders     [grout.NumSliders]sliderState
	eventCount  int
	rtt         time.Duration
	hasRTT      bool

	width    int
	height   int
	quitting bool
}

// Messages
type tickMsg time.Time
type deckReadyMsg struct {
	version string
	elapsed time.Duration
}
type deckLostMsg struct {
	err error
}
type deckEventMsg struct {
	event session.Event
}
type modeSetMsg struct {
	mode int
	err  error
}
type resetDoneMsg struct {
	elapsed time.Duration
	err     error
}
type pingDoneMsg struct {
	rtt time.Duration
	err error
}

// Log line styles are shared between View and the viewport refresh.
var (
	logTimeStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	logErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	logInfoStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
)

func initialModel(connInfo string, lay *layout.Layout, sess *session.Session) model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	return model{
		connInfo:      connInfo,
		sess:          sess,
		lay:           lay,
		spin:          sp,
		log:           viewport.New(74, 8),
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 200,
		width:         80,
		height:        24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(),
		m.spin.Tick,
		tea.EnterAltScreen,
	)
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) setModeCmd(mode int) tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		err := sess.SetMode(context.Background(), mode)
		return modeSetMsg{mode: mode, err: err}
	}
}

func (m model) resetCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		start := time.Now()
		err := sess.Reset(context.Background())
		return resetDoneMsg{elapsed: time.Since(start), err: err}
	}
}

func (m model) pingCmd() tea.Cmd {
	sess := m.sess
	return func() tea.Msg {
		rtt, err := sess.Ping(context.Background())
		return pingDoneMsg{rtt: rtt, err: err}
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "left":
			if m.connected && m.currentMode > 0 {
				return m, m.setModeCmd(m.currentMode - 1)
			}

		case "right":
			if m.connected && m.currentMode < m.lay.NumModes()-1 {
				return m, m.setModeCmd(m.currentMode + 1)
			}

		case "r":
			if m.connected {
				m.addLogEntry("RESET sent", false)
				return m, m.resetCmd()
			}

		case "p":
			if m.connected {
				return m, m.pingCmd()
			}

		default:
			// Remaining keys scroll the event log.
			var cmd tea.Cmd
			m.log, cmd = m.log.Update(msg)
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.log.Width = msg.Width - 6
		logHeight := msg.Height - 24
		if logHeight < 4 {
			logHeight = 4
		}
		m.log.Height = logHeight
		m.refreshLog()

	case tickMsg:
		// Re-render for the uptime display.
		return m, tickCmd()

	case spinner.TickMsg:
		if !m.connected && m.lostErr == nil {
			var cmd tea.Cmd
			m.spin, cmd = m.spin.Update(msg)
			return m, cmd
		}

	case deckReadyMsg:
		m.connected = true
		m.lostErr = nil
		m.version = msg.version
		m.syncTime = msg.elapsed
		m.readyAt = time.Now()
		m.currentMode = 0
		if msg.version != "" {
			m.addLogEntry(fmt.Sprintf("Synced %d modes in %v, firmware %s",
				m.lay.NumModes(), msg.elapsed.Round(time.Millisecond), msg.version), false)
		} else {
			m.addLogEntry(fmt.Sprintf("Synced %d modes in %v",
				m.lay.NumModes(), msg.elapsed.Round(time.Millisecond)), false)
		}

	case deckLostMsg:
		if !m.quitting && m.lostErr == nil {
			m.connected = false
			m.lostErr = msg.err
			m.addLogEntry(fmt.Sprintf("LINK LOST: %v", msg.err), true)
		}

	case deckEventMsg:
		m.eventCount++
		switch e := msg.event.(type) {
		case session.HotkeyEvent:
			m.addLogEntry(fmt.Sprintf("HOTKEY  mode %d button %d: %s (%q)",
				e.Mode, e.Button, e.Hotkey, e.Label), false)
		case session.VolumeEvent:
			if e.Slider >= 0 && e.Slider < grout.NumSliders {
				m.sliders[e.Slider] = sliderState{fraction: e.Fraction, seen: true}
			}
			app := e.App
			if app == "" {
				app = "(unassigned)"
			}
			m.addLogEntry(fmt.Sprintf("VOLUME  slider %d -> %3.0f%% %s",
				e.Slider, e.Fraction*100, app), false)
		case session.ModeEvent:
			m.currentMode = e.Mode
			m.addLogEntry(fmt.Sprintf("MODE    deck switched to mode %d", e.Mode), false)
		}

	case modeSetMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("MODE %d failed: %v", msg.mode, msg.err), true)
		} else {
			m.currentMode = msg.mode
		}

	case resetDoneMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("RESET failed: %v", msg.err), true)
		} else {
			// The resync after a reset leaves the deck on mode 0.
			m.currentMode = 0
			m.addLogEntry(fmt.Sprintf("RESET complete, resynced in %v", msg.elapsed.Round(time.Millisecond)), false)
		}

	case pingDoneMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("PING failed: %v", msg.err), true)
		} else {
			m.rtt = msg.rtt
			m.hasRTT = true
		}
	}

	return m, nil
}

func (m *model) addLogEntry(message string, isError bool) {
	entry := eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	}
	m.eventLog = append(m.eventLog, entry)

	// Keep only last N entries
	if len(m.eventLog) > m.maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-m.maxLogEntries:]
	}
	m.refreshLog()
}

// refreshLog rebuilds the viewport content and follows the tail.
func (m *model) refreshLog() {
	var b strings.Builder
	for _, entry := range m.eventLog {
		timestamp := entry.timestamp.Format("15:04:05.000")
		if entry.isError {
			b.WriteString(fmt.Sprintf("%s %s\n",
				logTimeStyle.Render(timestamp),
				logErrorStyle.Render("✗ "+entry.message),
			))
		} else {
			b.WriteString(fmt.Sprintf("%s %s\n",
				logTimeStyle.Render(timestamp),
				logInfoStyle.Render("ℹ "+entry.message),
			))
		}
	}
	m.log.SetContent(b.String())
	m.log.GotoBottom()
}

func (m model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	// Styles
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	statsLabelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	statsValueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	selectedStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("0")).
		Background(lipgloss.Color("12")).
		Padding(0, 1)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	// Header
	var s strings.Builder
	s.WriteString(titleStyle.Render("TESSERA - DECK DASHBOARD"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("%s | Press 'q' to quit", m.connInfo)))
	s.WriteString("\n\n")

	// Link status
	switch {
	case m.lostErr != nil:
		s.WriteString(errorStyle.Render(fmt.Sprintf("✗ Link lost: %v", m.lostErr)))
		s.WriteString("\n\n")
	case !m.connected:
		s.WriteString(m.spin.View())
		s.WriteString(warningStyle.Render("Syncing layout..."))
		s.WriteString("\n\n")
	default:
		s.WriteString(statsValueStyle.Render("✓ Ready"))
		if m.version != "" {
			s.WriteString(headerStyle.Render(fmt.Sprintf(" (firmware %s)", m.version)))
		}
		s.WriteString(headerStyle.Render(fmt.Sprintf("  up %v", time.Since(m.readyAt).Round(time.Second))))
		s.WriteString("\n\n")
	}

	// Mode strip
	modeStrip := strings.Builder{}
	for i := 0; i < m.lay.NumModes(); i++ {
		name := m.lay.Modes[i].Name
		if name == "" {
			name = layout.DefaultModeName(i)
		}
		if i == m.currentMode {
			modeStrip.WriteString(selectedStyle.Render(name))
		} else {
			modeStrip.WriteString(headerStyle.Render(" " + name + " "))
		}
		modeStrip.WriteString(" ")
	}
	s.WriteString(boxStyle.Render(modeStrip.String()))
	s.WriteString("\n\n")

	// Button grid for the current mode
	grid := strings.Builder{}
	for row := 0; row < 3; row++ {
		for col := 0; col < 3; col++ {
			idx := row*3 + col
			if b, ok := m.lay.Button(m.currentMode, idx); ok {
				grid.WriteString(fmt.Sprintf("%s %s  ",
					statsLabelStyle.Render(fmt.Sprintf("%d", idx)),
					statsValueStyle.Render(fmt.Sprintf("%-14s", b.Label)),
				))
			} else {
				grid.WriteString(fmt.Sprintf("%s %s  ",
					headerStyle.Render(fmt.Sprintf("%d", idx)),
					headerStyle.Render(fmt.Sprintf("%-14s", "·")),
				))
			}
		}
		if row < 2 {
			grid.WriteString("\n")
		}
	}
	s.WriteString(boxStyle.Render(grid.String()))
	s.WriteString("\n\n")

	// Sliders
	sliders := strings.Builder{}
	for i := 0; i < grout.NumSliders; i++ {
		app, assigned := m.lay.Slider(i)
		if !assigned {
			app = "(unassigned)"
		}

		bar := strings.Repeat("░", 20)
		percent := "  --"
		if m.sliders[i].seen {
			filled := int(m.sliders[i].fraction * 20)
			if filled > 20 {
				filled = 20
			}
			bar = strings.Repeat("█", filled) + strings.Repeat("░", 20-filled)
			percent = fmt.Sprintf("%3.0f%%", m.sliders[i].fraction*100)
		}

		sliders.WriteString(fmt.Sprintf("%s %s %s %s",
			statsLabelStyle.Render(fmt.Sprintf("%d", i)),
			statsValueStyle.Render(bar),
			statsValueStyle.Render(percent),
			headerStyle.Render(app),
		))
		if i < grout.NumSliders-1 {
			sliders.WriteString("\n")
		}
	}
	s.WriteString(boxStyle.Render(sliders.String()))
	s.WriteString("\n\n")

	// Session counters
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		statsLabelStyle.Render("Events:"), statsValueStyle.Render(fmt.Sprintf("%d", m.eventCount)),
		statsLabelStyle.Render("Stale:"), func() string {
			stale := m.sess.StaleEvents()
			if stale > 0 {
				return warningStyle.Render(fmt.Sprintf("%d", stale))
			}
			return statsValueStyle.Render("0")
		}(),
		statsLabelStyle.Render("Dropped:"), func() string {
			dropped := m.sess.DroppedEvents()
			if dropped > 0 {
				return errorStyle.Render(fmt.Sprintf("%d", dropped))
			}
			return statsValueStyle.Render("0")
		}(),
	))
	if m.hasRTT {
		statsContent.WriteString(fmt.Sprintf("   %s %s",
			statsLabelStyle.Render("RTT:"),
			statsValueStyle.Render(fmt.Sprintf("%v", m.rtt.Round(time.Microsecond))),
		))
	}
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")
	if len(m.eventLog) == 0 {
		s.WriteString(boxStyle.Width(m.width - 4).Render(headerStyle.Render("  (no events yet)")))
	} else {
		s.WriteString(boxStyle.Width(m.width - 4).Render(m.log.View()))
	}

	return s.String()
}

func runTUI(cmd *cobra.Command, args []string) error {
	lay, err := loadLayout(tuiLayoutPath)
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

	cfg := session.DefaultConfig()
	cfg.RelaxedAcks = tuiRelaxed

	sess := session.New(conn, lay, cfg)
	defer sess.Close()

	p := tea.NewProgram(initialModel(connInfo, lay, sess))

	sess.OnDisconnect(func(err error) {
		p.Send(deckLostMsg{err: err})
	})

	// Session pump: sync, then forward events into the TUI.
	go func() {
		start := time.Now()
		if err := sess.Start(context.Background()); err != nil {
			p.Send(deckLostMsg{err: err})
			return
		}
		p.Send(deckReadyMsg{version: sess.Version(), elapsed: time.Since(start)})
		for ev := range sess.Events() {
			p.Send(deckEventMsg{event: ev})
		}
	}()

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %v", err)
	}

	return nil
}
