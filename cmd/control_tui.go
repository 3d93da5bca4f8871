// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 The ha-hottoh-component Authors

package cmd

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/benlbrm/ha-hottoh-component/pkg/hottoh"
	"github.com/benlbrm/ha-hottoh-component/pkg/protocol"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	pingIntervalSeconds = 5 // Send ping requests every N seconds
	maxLogEntries       = 100
)

// Focus states
const (
	focusActionList = iota
	focusSetpointInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// action is one entry of the action list. command builds the command from
// the latest snapshot; a nil command means refresh.
type action struct {
	title       string
	description string
	command     func(hottoh.Snapshot) (protocol.Command, error)
}

// Implement list.Item interface
func (a action) Title() string       { return a.title }
func (a action) Description() string { return a.description }
func (a action) FilterValue() string { return a.title }

type logEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	session  *hottoh.Session
	connInfo string

	// Connection
	state   hottoh.ConnState
	lastErr error

	// Stove
	snap    hottoh.Snapshot
	caps    hottoh.Capabilities
	hasCaps bool
	lastRTT time.Duration

	// Control
	actions       list.Model
	setpointInput textinput.Model
	focusedField  int
	pending       int

	eventLog     []logEntry
	lastPingTime time.Time

	// UI state
	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

type connStateMsg struct {
	state hottoh.ConnState
	err   error
}

type cacheChangedMsg struct{}

type commandDoneMsg struct {
	cmd protocol.Command
	err error
}

type pingDoneMsg struct {
	rtt time.Duration
	err error
}

type refreshDoneMsg struct {
	err error
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(s *hottoh.Session, connInfo string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "20.0"
	ti.CharLimit = 4
	ti.Width = 6

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	actionList := list.New(nil, delegate, 34, 12)
	actionList.Title = "Actions"
	actionList.SetShowStatusBar(false)
	actionList.SetShowHelp(false)
	actionList.SetFilteringEnabled(false)

	m := controlModel{
		session:       s,
		connInfo:      connInfo,
		state:         s.State(),
		snap:          s.Snapshot(),
		actions:       actionList,
		setpointInput: ti,
		focusedField:  focusActionList,
		width:         80,
		height:        24,
	}
	m.updateActions()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return tea.Batch(controlTickCmd(), textinput.Blink)
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case controlTickMsg:
		cmds = append(cmds, controlTickCmd())
		if m.state == hottoh.StateConnected && time.Since(m.lastPingTime) >= pingIntervalSeconds*time.Second {
			m.lastPingTime = time.Now()
			cmds = append(cmds, m.pingCmd())
		}

	case connStateMsg:
		old := m.state
		m.state = msg.state
		m.lastErr = msg.err
		switch {
		case msg.state == hottoh.StateConnected:
			m.addLogEntry(fmt.Sprintf("Connected (%s)", m.connInfo), false)
			m.refreshCaps()
		case old == hottoh.StateConnected:
			m.addLogEntry(fmt.Sprintf("Connection lost: %v - reconnecting...", msg.err), true)
		case msg.err != nil:
			m.addLogEntry(fmt.Sprintf("Connect failed: %v", msg.err), true)
		}

	case cacheChangedMsg:
		m.applySnapshot(m.session.Snapshot())

	case commandDoneMsg:
		m.pending--
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("%s: %v", msg.cmd, msg.err), true)
		} else {
			m.addLogEntry(fmt.Sprintf("%s confirmed", msg.cmd), false)
		}

	case pingDoneMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Ping failed: %v", msg.err), true)
		} else {
			m.lastRTT = msg.rtt
		}

	case refreshDoneMsg:
		if msg.err != nil {
			m.addLogEntry(fmt.Sprintf("Refresh failed: %v", msg.err), true)
		} else {
			m.addLogEntry("Refresh requested", false)
		}
	}

	var cmd tea.Cmd
	if m.focusedField == focusSetpointInput {
		m.setpointInput, cmd = m.setpointInput.Update(msg)
	} else {
		m.actions, cmd = m.actions.Update(msg)
	}
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		m.toggleFocus()
		return m, nil

	case "enter":
		if m.focusedField == focusSetpointInput {
			return m, m.sendSetpoint()
		}
		if a, ok := m.actions.SelectedItem().(action); ok {
			return m, m.runAction(a)
		}
		return m, nil

	case "esc":
		if m.focusedField == focusSetpointInput {
			m.setpointInput.SetValue("")
			m.toggleFocus()
		}
		return m, nil
	}

	if m.focusedField == focusSetpointInput {
		var cmd tea.Cmd
		m.setpointInput, cmd = m.setpointInput.Update(msg)
		return m, cmd
	}

	// Shortcuts, only while the action list has focus
	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "+", "=":
		return m, m.stepSetpoint(protocol.TemperatureStep)
	case "-", "_":
		return m, m.stepSetpoint(-protocol.TemperatureStep)
	case "o":
		on, _ := m.snap.Bool(hottoh.AttrIsOn)
		return m, m.send(protocol.SetPower(!on))
	case "e":
		on, _ := m.snap.Bool(hottoh.AttrEcoMode)
		return m, m.send(protocol.SetEcoMode(!on))
	case "c":
		on, _ := m.snap.Bool(hottoh.AttrChronoMode)
		return m, m.send(protocol.SetChronoMode(!on))
	case "r":
		return m, m.refreshCmd()
	}

	var cmd tea.Cmd
	m.actions, cmd = m.actions.Update(msg)
	return m, cmd
}

func (m *controlModel) toggleFocus() {
	if m.focusedField == focusActionList {
		m.focusedField = focusSetpointInput
		m.setpointInput.Focus()
	} else {
		m.focusedField = focusActionList
		m.setpointInput.Blur()
	}
}

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder

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

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	focusedBoxStyle := boxStyle.
		BorderForeground(lipgloss.Color("12"))

	// Header
	s.WriteString(titleStyle.Render("HOTTOH CONTROL"))
	s.WriteString(" ")
	connStatus := m.connInfo
	switch m.state {
	case hottoh.StateConnected:
	case hottoh.StateConnecting:
		connStatus = warningStyle.Render("CONNECTING...")
	default:
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch +/-=set point o=on/off r=refresh", connStatus)))
	s.WriteString("\n")

	if m.hasCaps {
		s.WriteString(fmt.Sprintf(" %s %s %s",
			statsLabelStyle.Render("Stove:"),
			statsValueStyle.Render(m.caps.Name),
			headerStyle.Render(fmt.Sprintf("(%s %s, firmware %s)", m.caps.Manufacturer, m.caps.Model, m.caps.Firmware))))
	}
	if secs, ok := m.snap.Int(hottoh.AttrUptime); ok {
		s.WriteString(fmt.Sprintf("  %s %s",
			statsLabelStyle.Render("Uptime:"),
			statsValueStyle.Render(formatUptime(uint64(secs)*1000))))
	}
	s.WriteString("\n\n")

	// Layout: left panel (actions) | right panel (stove)
	leftWidth := 36
	rightWidth := m.width - leftWidth - 6

	listStyle := boxStyle.Width(leftWidth)
	if m.focusedField == focusActionList {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	actionPanel := listStyle.Render(m.actions.View())

	stovePanel := boxStyle.Width(rightWidth).Render(m.renderStovePanel(statsLabelStyle, statsValueStyle, headerStyle, warningStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, actionPanel, " ", stovePanel))
	s.WriteString("\n\n")

	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(m.renderTelemetry(statsLabelStyle, statsValueStyle, boxStyle))
	s.WriteString("\n\n")

	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m controlModel) renderStovePanel(statsLabelStyle, statsValueStyle, headerStyle, warningStyle lipgloss.Style) string {
	var s strings.Builder

	if len(m.snap) == 0 {
		s.WriteString(headerStyle.Render("Waiting for telemetry..."))
		return s.String()
	}

	status, _ := m.snap.String(hottoh.AttrStatus)
	mode, _ := m.snap.String(hottoh.AttrMode)
	s.WriteString(fmt.Sprintf("%s %s (%s)\n", statsLabelStyle.Render("Status:"), statsValueStyle.Render(status), mode))

	eco, _ := m.snap.Bool(hottoh.AttrEcoMode)
	chrono, _ := m.snap.Bool(hottoh.AttrChronoMode)
	s.WriteString(fmt.Sprintf("%s %s  %s %s\n",
		statsLabelStyle.Render("Eco:"), statsValueStyle.Render(onOff(eco)),
		statsLabelStyle.Render("Chrono:"), statsValueStyle.Render(onOff(chrono))))

	power, _ := m.snap.Int(hottoh.AttrPowerLevel)
	setPower, _ := m.snap.Int(hottoh.AttrSetPowerLevel)
	s.WriteString(fmt.Sprintf("%s %s / %d set\n\n",
		statsLabelStyle.Render("Power:"), statsValueStyle.Render(strconv.Itoa(power)), setPower))

	s.WriteString(statsLabelStyle.Render("Set point: "))
	if m.focusedField == focusSetpointInput {
		s.WriteString(m.setpointInput.View())
	} else {
		val := m.setpointInput.Value()
		if val == "" {
			val = m.setpointInput.Placeholder
		}
		s.WriteString(fmt.Sprintf("[%s]", val))
	}
	s.WriteString(" C\n")

	if m.pending > 0 {
		s.WriteString(warningStyle.Render(fmt.Sprintf("%d command(s) awaiting confirmation", m.pending)))
	}

	return s.String()
}

func (m controlModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	c := m.session.Stats().Counters()
	var validPercent, errorPercent float64
	if c.TotalFrames > 0 {
		validPercent = float64(c.ValidFrames) * 100.0 / float64(c.TotalFrames)
		totalErrors := c.CRCErrors + c.DecodeErrors + c.MalformedFrames + c.AnomalousValues
		errorPercent = float64(totalErrors) * 100.0 / float64(c.TotalFrames)
	}
	cs := m.session.CommandStats()

	errors := statsValueStyle.Render("0.0%")
	if errorPercent > 0 {
		errors = errorStyle.Render(fmt.Sprintf("%.1f%%", errorPercent))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Total:"), statsValueStyle.Render(fmt.Sprintf("%d", c.TotalFrames)),
		statsLabelStyle.Render("Valid:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", validPercent)),
		statsLabelStyle.Render("Errors:"), errors,
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f frm/s", c.FrameRate)),
		statsLabelStyle.Render("Cmds:"), statsValueStyle.Render(fmt.Sprintf("%d ok/%d sent", cs.Confirmed, cs.Sent)),
		statsLabelStyle.Render("RTT:"), statsValueStyle.Render(m.lastRTT.Round(time.Millisecond).String()),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m controlModel) renderTelemetry(statsLabelStyle, statsValueStyle, boxStyle lipgloss.Style) string {
	var content strings.Builder
	content.WriteString(statsLabelStyle.Render("TELEMETRY"))
	content.WriteString(" | ")

	if len(m.snap) == 0 {
		content.WriteString("No telemetry data")
		return boxStyle.Width(m.width - 4).Render(content.String())
	}

	for n := 1; n <= 3; n++ {
		if t, ok := m.snap.Float(hottoh.RoomTemperature(n)); ok {
			content.WriteString(fmt.Sprintf("%s %s  ",
				statsLabelStyle.Render(fmt.Sprintf("Room %d:", n)),
				statsValueStyle.Render(fmt.Sprintf("%.1fC", t))))
		}
	}
	if t, ok := m.snap.Float(hottoh.AttrWaterTemp); ok {
		content.WriteString(fmt.Sprintf("%s %s  ", statsLabelStyle.Render("Water:"), statsValueStyle.Render(fmt.Sprintf("%.1fC", t))))
	}
	if t, ok := m.snap.Float(hottoh.AttrSmokeTemp); ok {
		content.WriteString(fmt.Sprintf("%s %s  ", statsLabelStyle.Render("Smoke:"), statsValueStyle.Render(fmt.Sprintf("%.0fC", t))))
	}
	for n := 1; n <= m.caps.FanCount; n++ {
		if speed, ok := m.snap.Int(hottoh.FanSpeed(n)); ok {
			content.WriteString(fmt.Sprintf("%s %s  ",
				statsLabelStyle.Render(fmt.Sprintf("Fan %d:", n)),
				statsValueStyle.Render(fanSpeedLabel(speed))))
		}
	}
	if running, ok := m.snap.Bool(hottoh.AttrWaterPump); ok {
		content.WriteString(fmt.Sprintf("%s %s", statsLabelStyle.Render("Pump:"), statsValueStyle.Render(onOff(running))))
	}

	return boxStyle.Width(m.width - 4).Render(content.String())
}

func (m controlModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := min(len(m.eventLog), 8)
	startIdx := len(m.eventLog) - logHeight

	if len(m.eventLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for _, entry := range m.eventLog[startIdx:] {
			icon := "i"
			style := warningStyle
			if entry.isError {
				icon = "x"
				style = errorStyleLocal
			}
			s.WriteString(fmt.Sprintf("%s %s %s\n",
				headerStyle.Render(entry.timestamp.Format("15:04:05.000")),
				style.Render(icon),
				entry.message))
		}
	}

	return boxStyle.Width(m.width - 4).Render(s.String())
}

func onOff(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}

func fanSpeedLabel(speed int) string {
	if speed == protocol.MinFanSpeed {
		return "auto"
	}
	return strconv.Itoa(speed)
}

//////////////////////////////////////////////////////////////
// Data Processing
//////////////////////////////////////////////////////////////

func (m *controlModel) applySnapshot(snap hottoh.Snapshot) {
	if status, ok := snap.String(hottoh.AttrStatus); ok {
		if old, had := m.snap.String(hottoh.AttrStatus); had && old != status {
			m.addLogEntry(fmt.Sprintf("Stove: %s -> %s", old, status), false)
		}
	}
	m.snap = snap
	if set, ok := snap.Float(hottoh.SetRoomTemperature(protocol.SensorRoom1)); ok {
		m.setpointInput.Placeholder = fmt.Sprintf("%.1f", set)
	}
	if !m.hasCaps {
		m.refreshCaps()
	}
}

func (m *controlModel) refreshCaps() {
	caps, ok := m.session.Capabilities()
	if !ok {
		return
	}
	if !m.hasCaps || caps != m.caps {
		m.caps = caps
		m.hasCaps = true
		m.updateActions()
		m.addLogEntry(fmt.Sprintf("Stove %q: %d fan(s)", caps.Name, caps.FanCount), false)
	}
}

func (m *controlModel) updateActions() {
	items := []list.Item{
		action{"Turn on", "Start the stove", func(hottoh.Snapshot) (protocol.Command, error) {
			return protocol.SetPower(true), nil
		}},
		action{"Turn off", "Stop the stove", func(hottoh.Snapshot) (protocol.Command, error) {
			return protocol.SetPower(false), nil
		}},
		action{"Power up", "Raise the power level", func(s hottoh.Snapshot) (protocol.Command, error) {
			return stepPower(s, 1)
		}},
		action{"Power down", "Lower the power level", func(s hottoh.Snapshot) (protocol.Command, error) {
			return stepPower(s, -1)
		}},
		action{"Eco mode", "Toggle eco mode", func(s hottoh.Snapshot) (protocol.Command, error) {
			on, _ := s.Bool(hottoh.AttrEcoMode)
			return protocol.SetEcoMode(!on), nil
		}},
		action{"Chrono mode", "Toggle the chrono schedule", func(s hottoh.Snapshot) (protocol.Command, error) {
			on, _ := s.Bool(hottoh.AttrChronoMode)
			return protocol.SetChronoMode(!on), nil
		}},
	}
	for n := 1; n <= m.caps.FanCount; n++ {
		fan := n
		items = append(items, action{fmt.Sprintf("Fan %d speed", fan), "Cycle auto, 1 .. 6", func(s hottoh.Snapshot) (protocol.Command, error) {
			speed, _ := s.Int(hottoh.SetFanSpeed(fan))
			return protocol.SetFanSpeed(fan, (speed+1)%(protocol.MaxFanSpeed+1)), nil
		}})
	}
	items = append(items, action{"Refresh", "Request all telemetry", nil})
	m.actions.SetItems(items)
}

func stepPower(s hottoh.Snapshot, delta int) (protocol.Command, error) {
	level, ok := s.Int(hottoh.AttrSetPowerLevel)
	if !ok {
		return protocol.Command{}, fmt.Errorf("power level not known yet")
	}
	return protocol.SetPowerLevel(level + delta), nil
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m *controlModel) runAction(a action) tea.Cmd {
	if a.command == nil {
		return m.refreshCmd()
	}
	c, err := a.command(m.snap)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", a.title, err), true)
		return nil
	}
	return m.send(c)
}

func (m *controlModel) sendSetpoint() tea.Cmd {
	val := m.setpointInput.Value()
	if val == "" {
		val = m.setpointInput.Placeholder
	}
	celsius, err := strconv.ParseFloat(val, 64)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("Invalid set point: %s", val), true)
		return nil
	}
	m.setpointInput.SetValue("")
	return m.send(protocol.SetTemperature(protocol.SensorRoom1, celsius))
}

func (m *controlModel) stepSetpoint(delta float64) tea.Cmd {
	set, ok := m.snap.Float(hottoh.SetRoomTemperature(protocol.SensorRoom1))
	if !ok {
		m.addLogEntry("Set point not known yet", true)
		return nil
	}
	return m.send(protocol.SetTemperature(protocol.SensorRoom1, set+delta))
}

// send validates c and dispatches it without blocking the UI
func (m *controlModel) send(c protocol.Command) tea.Cmd {
	if m.state != hottoh.StateConnected {
		m.addLogEntry("Cannot send command: not connected", true)
		return nil
	}
	if err := c.Validate(); err != nil {
		m.addLogEntry(err.Error(), true)
		return nil
	}

	m.pending++
	m.addLogEntry(fmt.Sprintf("Sent %s", c), false)
	s := m.session
	return func() tea.Msg {
		return commandDoneMsg{cmd: c, err: s.Send(context.Background(), c)}
	}
}

func (m *controlModel) pingCmd() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		rtt, err := s.Ping(context.Background())
		return pingDoneMsg{rtt: rtt, err: err}
	}
}

func (m *controlModel) refreshCmd() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		return refreshDoneMsg{err: s.Refresh()}
	}
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.eventLog = append(m.eventLog, logEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.eventLog) > maxLogEntries {
		m.eventLog = m.eventLog[len(m.eventLog)-maxLogEntries:]
	}
}

func (m *controlModel) updateListSize() {
	listHeight := max(m.height/3, 6)
	m.actions.SetSize(34, listHeight)
}
