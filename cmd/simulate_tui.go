// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/potmouse/pkg/bridge"
	"github.com/Thermoquad/potmouse/pkg/c1351"
	"github.com/Thermoquad/potmouse/pkg/mouse"
)

// Real time between simulation steps; the board advances by the same
// amount of virtual time.
const simFrame = 50 * time.Millisecond

type simFrameMsg time.Time

// simModel drives the bench from the terminal. Everything runs inside
// Update, so the bench never sees two goroutines.
type simModel struct {
	bench   *bench
	held    mouse.Buttons
	opts    bridge.Options
	buttons mouse.Buttons
	step    int

	potX progress.Model
	potY progress.Model

	events    []errorLogEntry
	maxEvents int
	width     int
	height    int
	quitting  bool
}

func runSimulateTUI(b *bench, held mouse.Buttons, opts bridge.Options) error {
	m := &simModel{
		bench:     b,
		held:      held,
		opts:      opts,
		step:      simStep,
		potX:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		potY:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(40), progress.WithoutPercentage()),
		maxEvents: 100,
		width:     80,
		height:    24,
	}
	b.bridge.Router.OnPacket = func(f mouse.RawFrame, mv mouse.Movement) {
		if errs := mouse.ValidateFrame(f); len(errs) > 0 {
			m.addEvent(fmt.Sprintf("%s: %s", mouse.FormatFrame(f), errs[0].Message), true)
			return
		}
		m.addEvent(mouse.FormatFrame(f), false)
	}
	// the log is redirected so it does not tear the screen
	log.SetOutput(&tuiLogWriter{m: m})

	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}

type tuiLogWriter struct{ m *simModel }

func (w *tuiLogWriter) Write(p []byte) (int, error) {
	w.m.addEvent(strings.TrimSpace(string(p)), false)
	return len(p), nil
}

func simFrameCmd() tea.Cmd {
	return tea.Tick(simFrame, func(t time.Time) tea.Msg {
		return simFrameMsg(t)
	})
}

func (m *simModel) Init() tea.Cmd {
	return tea.Batch(
		simFrameCmd(),
		tea.EnterAltScreen,
	)
}

func (m *simModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "up":
			m.move(0, m.step)
		case "down":
			m.move(0, -m.step)
		case "left":
			m.move(-m.step, 0)
		case "right":
			m.move(m.step, 0)
		case "1":
			m.toggle(mouse.ButtonLeft)
		case "2":
			m.toggle(mouse.ButtonMiddle)
		case "3":
			m.toggle(mouse.ButtonRight)
		case "+", "=":
			if m.step < 64 {
				m.step++
			}
		case "-":
			if m.step > 1 {
				m.step--
			}
		case "h", "j", "k", "l", " ":
			if m.bench.bridge.Router.HandleKey([]rune(key)[0]) {
				m.addEvent(fmt.Sprintf("console key %q", key), false)
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case simFrameMsg:
		m.bench.run(simFrame)
		return m, simFrameCmd()
	}

	return m, nil
}

func (m *simModel) move(dx, dy int) {
	m.bench.board.Mouse.Move(dx, dy, byte(m.buttons))
}

func (m *simModel) toggle(b mouse.Buttons) {
	m.buttons ^= b
	m.bench.board.Mouse.Move(0, 0, byte(m.buttons))
}

func (m *simModel) addEvent(message string, isError bool) {
	m.events = append(m.events, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.events) > m.maxEvents {
		m.events = m.events[len(m.events)-m.maxEvents:]
	}
}

func (m *simModel) View() string {
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

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	activeStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11")).
		Bold(true)

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	b := m.bench
	var s strings.Builder
	s.WriteString(titleStyle.Render("POTMOUSE - SIMULATION"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Held at boot: %s | Profile: %s | Virtual time: %s | Press 'q' to quit",
		m.held, m.opts.Profile, b.now().Round(time.Millisecond))))
	s.WriteString("\n\n")

	// Control port
	port := strings.Builder{}
	pos := b.bridge.Emulator.Position()
	tx, ty := b.bridge.Emulator.Targets()
	px, py := b.pots()
	port.WriteString(fmt.Sprintf("%s %s   %s %s\n",
		labelStyle.Render("Mode:"), valueStyle.Render(b.bridge.Emulator.Mode().String()),
		labelStyle.Render("Resolution:"), valueStyle.Render(fmt.Sprintf("%d counts/mm", b.bridge.Session.Resolution().CountsPerMM())),
	))
	if b.bridge.Emulator.Mode() == c1351.ModeAnalog {
		port.WriteString(fmt.Sprintf("%s %s %s\n", labelStyle.Render("POTX"), m.potX.ViewAs(float64(px)/255),
			valueStyle.Render(fmt.Sprintf("%3d  counter %2d  %3dus", px, pos.X, tx))))
		port.WriteString(fmt.Sprintf("%s %s %s\n", labelStyle.Render("POTY"), m.potY.ViewAs(float64(py)/255),
			valueStyle.Render(fmt.Sprintf("%3d  counter %2d  %3dus", py, pos.Y, ty))))
	}
	port.WriteString(fmt.Sprintf("%s %s   %s %s",
		labelStyle.Render("Lines:"), activeStyle.Render(b.lines()),
		labelStyle.Render("Mouse buttons:"), valueStyle.Render(m.buttons.String()),
	))
	s.WriteString(boxStyle.Render(port.String()))
	s.WriteString("\n\n")

	// Link and packet statistics
	link := b.bridge.Link.Stats()
	stats := b.bridge.Router.Statistics()
	stats.CalculateRates()
	statsContent := strings.Builder{}
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
		labelStyle.Render("Bytes rx:"), valueStyle.Render(fmt.Sprintf("%d", link.Received)),
		labelStyle.Render("tx:"), valueStyle.Render(fmt.Sprintf("%d", link.Sent)),
		labelStyle.Render("Link errors:"), func() string {
			if link.Errors() > 0 {
				return errorStyle.Render(fmt.Sprintf("%d (recoveries %d)", link.Errors(), link.Recoveries))
			}
			return valueStyle.Render("0")
		}(),
	))
	statsContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
		labelStyle.Render("Packets:"), valueStyle.Render(fmt.Sprintf("%d", stats.TotalPackets)),
		labelStyle.Render("Dropped bytes:"), valueStyle.Render(fmt.Sprintf("%d", stats.DroppedBytes)),
		labelStyle.Render("SID cycles:"), valueStyle.Render(fmt.Sprintf("%d", b.board.SID.Cycles)),
	))
	s.WriteString(boxStyle.Render(statsContent.String()))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("arrows move (step %d, +/- to change) | 1/2/3 toggle left/middle/right | h/j/k/l/space console keys", m.step)))
	s.WriteString("\n\n")

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 18
	if logHeight < 5 {
		logHeight = 5
	}
	logContent := strings.Builder{}
	startIdx := len(m.events) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}
	if len(m.events) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.events[startIdx:] {
			timestamp := entry.timestamp.Format("15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), errorStyle.Render("✗ "+entry.message)))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n", headerStyle.Render(timestamp), valueStyle.Render("ℹ "+entry.message)))
			}
		}
	}
	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}
