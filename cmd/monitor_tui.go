// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/Thermoquad/dslink/pkg/statusfeed"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Event log entry
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// actionSender delivers an operator command to the station
type actionSender func(statusfeed.Action) error

// actionKeys binds keys to operator commands
var actionKeys = map[string]statusfeed.Action{
	"e": statusfeed.ActionEnable,
	"d": statusfeed.ActionDisable,
	" ": statusfeed.ActionEStop,
	"c": statusfeed.ActionClearEStop,
	"r": statusfeed.ActionRestartCode,
	"R": statusfeed.ActionReboot,
}

// TUI model
type monitorModel struct {
	url           string
	send          actionSender // nil when watching only
	snapshot      *statusfeed.Snapshot
	received      time.Time
	robotRate     float64 // packets/s sent to the robot
	eventLog      []eventLogEntry
	maxLogEntries int
	lossBar       progress.Model
	voltageBar    progress.Model
	closed        bool
	width         int
	height        int
	quitting      bool
}

// Messages
type snapshotMsg statusfeed.Snapshot
type feedErrorMsg struct{ err error }
type feedClosedMsg struct{ err error }
type monitorTickMsg time.Time
type actionSentMsg struct{ action statusfeed.Action }
type actionErrorMsg struct {
	action statusfeed.Action
	err    error
}

// staleAfter marks the feed stale when no snapshot arrives
const staleAfter = 2 * time.Second

func initialMonitorModel(url string, send actionSender) monitorModel {
	return monitorModel{
		url:           url,
		send:          send,
		eventLog:      make([]eventLogEntry, 0),
		maxLogEntries: 100,
		lossBar:       progress.New(progress.WithGradient("#04B575", "#FF4672"), progress.WithWidth(30)),
		voltageBar:    progress.New(progress.WithGradient("#FF4672", "#04B575"), progress.WithWidth(30)),
		width:         80,
		height:        24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		if action, ok := actionKeys[msg.String()]; ok && m.send != nil && !m.closed {
			return m, sendActionCmd(m.send, action)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		return m, monitorTickCmd()

	case snapshotMsg:
		snap := statusfeed.Snapshot(msg)
		m.applySnapshot(snap, time.Now())

	case feedErrorMsg:
		m.addLogEntry(fmt.Sprintf("Bad snapshot: %v", msg.err), true)

	case feedClosedMsg:
		m.closed = true
		m.addLogEntry("Feed closed", true)

	case actionSentMsg:
		m.addLogEntry(fmt.Sprintf("Sent %s", msg.action), false)

	case actionErrorMsg:
		m.addLogEntry(fmt.Sprintf("Failed to send %s: %v", msg.action, msg.err), true)
	}

	return m, nil
}

func sendActionCmd(send actionSender, action statusfeed.Action) tea.Cmd {
	return func() tea.Msg {
		if err := send(action); err != nil {
			return actionErrorMsg{action: action, err: err}
		}
		return actionSentMsg{action: action}
	}
}

// applySnapshot stores snap and logs link transitions since the last one
func (m *monitorModel) applySnapshot(snap statusfeed.Snapshot, now time.Time) {
	prev := m.snapshot
	if prev == nil {
		m.addLogEntry(fmt.Sprintf("Connected to team %d (%s)", snap.Team, snap.Protocol), false)
	} else {
		m.logTransition("Robot", prev.RobotConnected, snap.RobotConnected)
		m.logTransition("Radio", prev.RadioConnected, snap.RadioConnected)
		m.logTransition("FMS", prev.FMSConnected, snap.FMSConnected)
		if snap.HasCode != prev.HasCode && snap.RobotConnected {
			if snap.HasCode {
				m.addLogEntry("Robot code running", false)
			} else {
				m.addLogEntry("Robot code stopped", true)
			}
		}
		if snap.EStopped && !prev.EStopped {
			m.addLogEntry("EMERGENCY STOP", true)
		}
		if snap.Brownout && !prev.Brownout {
			m.addLogEntry(fmt.Sprintf("Brownout at %.2f V", snap.Voltage), true)
		}

		elapsed := time.Duration(snap.TimeMs-prev.TimeMs) * time.Millisecond
		if elapsed > 0 && snap.SentRobot >= prev.SentRobot {
			m.robotRate = float64(snap.SentRobot-prev.SentRobot) / elapsed.Seconds()
		}
	}

	m.snapshot = &snap
	m.received = now
}

func (m *monitorModel) logTransition(peer string, was, is bool) {
	switch {
	case is && !was:
		m.addLogEntry(peer+" connected", false)
	case was && !is:
		m.addLogEntry(peer+" lost", true)
	}
}

func (m *monitorModel) addLogEntry(message string, isError bool) {
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
}

// voltageFraction maps voltage onto the gauge, full at nominal
func voltageFraction(voltage, nominal float64) float64 {
	if nominal <= 0 {
		return 0
	}
	f := voltage / nominal
	if f > 1 {
		return 1
	}
	if f < 0 {
		return 0
	}
	return f
}

func (m monitorModel) View() string {
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

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	link := func(ok bool) string {
		if ok {
			return valueStyle.Render("●")
		}
		return errorStyle.Render("○")
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("DSLINK - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(fmt.Sprintf("Feed: %s | Press 'q' to quit", m.url)))
	s.WriteString("\n")
	if m.send != nil {
		s.WriteString(headerStyle.Render("e enable | d disable | space e-stop | c clear e-stop | r restart code | R reboot"))
		s.WriteString("\n")
	}
	s.WriteString("\n")

	switch {
	case m.closed:
		s.WriteString(errorStyle.Render("✗ Feed closed"))
		s.WriteString("\n\n")
	case m.snapshot == nil:
		s.WriteString(warningStyle.Render("⏳ Waiting for first snapshot..."))
		s.WriteString("\n\n")
	case time.Since(m.received) > staleAfter:
		s.WriteString(warningStyle.Render(fmt.Sprintf("⚠ No update for %s", time.Since(m.received).Truncate(time.Second))))
		s.WriteString("\n\n")
	}

	if snap := m.snapshot; snap != nil {
		stationContent := strings.Builder{}
		stationContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s\n",
			labelStyle.Render("Team:"), valueStyle.Render(fmt.Sprintf("%d", snap.Team)),
			labelStyle.Render("Station:"), valueStyle.Render(fmt.Sprintf("%s %d", snap.Alliance, snap.Position)),
			labelStyle.Render("Protocol:"), valueStyle.Render(snap.Protocol),
		))

		state := "Disabled"
		stateStyle := warningStyle
		if snap.Enabled {
			state = "Enabled"
			stateStyle = valueStyle
		}
		if snap.EStopped {
			state = "E-STOPPED"
			stateStyle = errorStyle
		}
		stationContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
			labelStyle.Render("Mode:"), valueStyle.Render(snap.Mode),
			labelStyle.Render("State:"), stateStyle.Render(state),
			labelStyle.Render("FMS Attached:"), valueStyle.Render(fmt.Sprintf("%v", snap.FMSAttached)),
		))
		if snap.MatchNumber > 0 {
			stationContent.WriteString(fmt.Sprintf("\n%s %s   %s %s",
				labelStyle.Render("Match:"), valueStyle.Render(fmt.Sprintf("%d", snap.MatchNumber)),
				labelStyle.Render("Remaining:"), valueStyle.Render(fmt.Sprintf("%ds", snap.MatchRemaining)),
			))
		}
		s.WriteString(boxStyle.Render(stationContent.String()))
		s.WriteString("\n\n")

		linkContent := strings.Builder{}
		linkContent.WriteString(fmt.Sprintf("%s Robot   %s Radio   %s FMS   %s Code\n",
			link(snap.RobotConnected), link(snap.RadioConnected), link(snap.FMSConnected), link(snap.HasCode)))

		voltageStyle := valueStyle
		if snap.Brownout {
			voltageStyle = errorStyle
		}
		linkContent.WriteString(fmt.Sprintf("%s %s %s\n",
			labelStyle.Render("Battery:"),
			m.voltageBar.ViewAs(voltageFraction(snap.Voltage, snap.NominalVoltage)),
			voltageStyle.Render(fmt.Sprintf("%.2f V / %.1f V", snap.Voltage, snap.NominalVoltage)),
		))
		linkContent.WriteString(fmt.Sprintf("%s %s %s\n",
			labelStyle.Render("Loss:   "),
			m.lossBar.ViewAs(snap.PacketLoss),
			valueStyle.Render(fmt.Sprintf("%.1f%%", snap.PacketLoss*100)),
		))
		linkContent.WriteString(fmt.Sprintf("%s %s   %s %s   %s %s",
			labelStyle.Render("Robot:"), valueStyle.Render(fmt.Sprintf("%d sent / %d received", snap.SentRobot, snap.ReceivedRobot)),
			labelStyle.Render("FMS:"), valueStyle.Render(fmt.Sprintf("%d / %d", snap.SentFMS, snap.ReceivedFMS)),
			labelStyle.Render("Rate:"), valueStyle.Render(fmt.Sprintf("%.1f pkts/s", m.robotRate)),
		))
		s.WriteString(boxStyle.Render(linkContent.String()))
		s.WriteString("\n\n")

		if snap.CPUUsage > 0 || snap.RAMFree > 0 || snap.DiskFree > 0 {
			s.WriteString(labelStyle.Render("Robot Diagnostics:"))
			s.WriteString("\n")
			s.WriteString(boxStyle.Render(fmt.Sprintf("%s %s   %s %s   %s %s   %s %s",
				labelStyle.Render("CPU:"), valueStyle.Render(fmt.Sprintf("%.1f%%", snap.CPUUsage)),
				labelStyle.Render("RAM free:"), valueStyle.Render(formatBytes(snap.RAMFree)),
				labelStyle.Render("Disk free:"), valueStyle.Render(formatBytes(snap.DiskFree)),
				labelStyle.Render("CAN:"), valueStyle.Render(fmt.Sprintf("%.1f%%", snap.CANUtilization)),
			)))
			s.WriteString("\n\n")
		}
	}

	// Event log
	s.WriteString(labelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := m.height - 20 // Reserve space for header and panels
	if logHeight < 5 {
		logHeight = 5
	}

	logContent := strings.Builder{}
	startIdx := len(m.eventLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.eventLog) == 0 {
		logContent.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.eventLog); i++ {
			entry := m.eventLog[i]
			timestamp := entry.timestamp.Format("01/02/06 15:04:05.000")
			if entry.isError {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					errorStyle.Render("✗ "+entry.message),
				))
			} else {
				logContent.WriteString(fmt.Sprintf("%s %s\n",
					headerStyle.Render(timestamp),
					warningStyle.Render("ℹ "+entry.message),
				))
			}
		}
	}

	s.WriteString(boxStyle.Width(m.width - 4).Render(logContent.String()))

	return s.String()
}

// formatBytes renders a byte count with a binary unit
func formatBytes(n uint32) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	suffixes := []string{"KiB", "MiB", "GiB"}
	i := -1
	for value >= unit && i < len(suffixes)-1 {
		value /= unit
		i++
	}
	return fmt.Sprintf("%.1f %s", value, suffixes[i])
}
