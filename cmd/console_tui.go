// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 HWHardsoft

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/HWHardsoft/HVAC-car-control/pkg/hvac"
	"github.com/HWHardsoft/HVAC-car-control/pkg/sim"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const (
	maxLogEntries   = 100
	outsideStepSize = 1.0
	minOutsideTemp  = -40.0
	maxOutsideTemp  = 60.0
)

// Focus states
const (
	focusPresets = iota
	focusRawInput
)

// injectableFaults is the fault cycle bound to the 'f' key.
var injectableFaults = []sim.Fault{sim.FaultNone, sim.FaultNoDevice, sim.FaultCRC, sim.FaultUnsupported}

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// errorLogEntry is one line of the event panel
type errorLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// preset is a display command offered in the preset list
type preset struct {
	name  string
	id    uint8
	value byte
}

// Implement list.Item interface
func (p preset) Title() string       { return p.name }
func (p preset) Description() string { return string(hvac.EncodeFrame(p.id, p.value)) }
func (p preset) FilterValue() string { return p.name }

// consoleEvent is one controller event or log line queued for the TUI
type consoleEvent struct {
	message  string
	isError  bool
	status   *hvac.Reading
	snapshot *hvac.Snapshot
}

// consoleModel is the Bubble Tea model for the console TUI
type consoleModel struct {
	session  consoleSession
	connInfo string

	presets  list.Model
	rawInput textinput.Model
	focus    int

	snapshot   hvac.Snapshot
	lastStatus *hvac.Reading
	stats      hvac.Statistics

	outsideTemp float64
	outsideSet  bool
	faultIdx    int

	errorLog []errorLogEntry

	width    int
	height   int
	quitting bool
	linkLost bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type consoleTickMsg time.Time

type consoleBatchMsg struct {
	events []consoleEvent
}

type linkLostMsg struct{}

type linkRestoredMsg struct {
	connInfo string
}

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

// defaultPresets lists the commands the touch display sends
func defaultPresets() []list.Item {
	items := []list.Item{
		preset{"HVAC off", hvac.CmdHVACPower, '0'},
		preset{"HVAC on", hvac.CmdHVACPower, '1'},
		preset{"AC on", hvac.CmdACEnable, '1'},
		preset{"AC off", hvac.CmdACEnable, '0'},
		preset{"Vent front", hvac.CmdVentFront, '1'},
		preset{"Vent front + foot", hvac.CmdVentFrontFoot, '1'},
		preset{"Vent foot", hvac.CmdVentFoot, '1'},
		preset{"Vent foot + window", hvac.CmdVentFootWindow, '1'},
		preset{"Vents closed", hvac.CmdVentFront, '0'},
		preset{"Air circulation on", hvac.CmdAirCirculation, '1'},
		preset{"Air circulation off", hvac.CmdAirCirculation, '0'},
		preset{"Front window heat on", hvac.CmdWindowHeatFront, '1'},
		preset{"Front window heat off", hvac.CmdWindowHeatFront, '0'},
		preset{"Rear window heat on", hvac.CmdWindowHeatRear, '1'},
		preset{"Rear window heat off", hvac.CmdWindowHeatRear, '0'},
		preset{"Fog light on", hvac.CmdFogLight, '1'},
		preset{"Fog light off", hvac.CmdFogLight, '0'},
	}
	for level := 0; level <= hvac.MaxFanLevel; level++ {
		items = append(items, preset{fmt.Sprintf("Fan level %d", level), hvac.CmdFanLevel, byte('0' + level)})
	}
	for sp := 0; sp <= 9; sp++ {
		items = append(items, preset{fmt.Sprintf("Setpoint left %d°C", sp), hvac.CmdSetpointLeft, byte('0' + sp)})
	}
	for sp := 0; sp <= 9; sp++ {
		items = append(items, preset{fmt.Sprintf("Setpoint right %d°C", sp), hvac.CmdSetpointRight, byte('0' + sp)})
	}
	return items
}

func initialConsoleModel(session consoleSession) consoleModel {
	ti := textinput.New()
	ti.Placeholder = "id13=4|"
	ti.CharLimit = hvac.MaxFrameSize + 8
	ti.Width = 24

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	presets := list.New(defaultPresets(), delegate, 30, 10)
	presets.Title = "Display Commands"
	presets.SetShowStatusBar(false)
	presets.SetShowHelp(false)
	presets.SetFilteringEnabled(false)

	return consoleModel{
		session:  session,
		connInfo: session.connInfo,
		presets:  presets,
		rawInput: ti,
		focus:    focusPresets,
		snapshot: session.ctrl.Snapshot(),
		stats:    session.ctrl.Stats(),
		errorLog: make([]errorLogEntry, 0),
		width:    80,
		height:   24,
	}
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m consoleModel) Init() tea.Cmd {
	return consoleTickCmd()
}

func consoleTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return consoleTickMsg(t)
	})
}

func (m consoleModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if msg.Action == tea.MouseActionRelease && msg.Button == tea.MouseButtonLeft {
			m.presets, _ = m.presets.Update(msg)
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateListSize()

	case consoleTickMsg:
		m.stats = m.session.ctrl.Stats()
		m.snapshot = m.session.ctrl.Snapshot()
		return m, consoleTickCmd()

	case consoleBatchMsg:
		for _, ev := range msg.events {
			m.processEvent(ev)
		}

	case linkLostMsg:
		m.linkLost = true
		m.addLogEntry("Display link lost - reconnecting...", true)

	case linkRestoredMsg:
		m.linkLost = false
		m.connInfo = msg.connInfo
		m.addLogEntry("Display link restored", false)
	}

	var cmd tea.Cmd
	if m.focus == focusRawInput {
		m.rawInput, cmd = m.rawInput.Update(msg)
	} else {
		m.presets, cmd = m.presets.Update(msg)
	}
	return m, cmd
}

func (m consoleModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "tab", "shift+tab":
		m.toggleFocus()
		return m, nil

	case "enter":
		if m.focus == focusRawInput {
			m.sendRaw()
		} else {
			m.sendPreset()
		}
		return m, nil
	}

	if m.focus == focusRawInput {
		var cmd tea.Cmd
		m.rawInput, cmd = m.rawInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit
	case "+", "=":
		m.adjustOutside(outsideStepSize)
		return m, nil
	case "-", "_":
		m.adjustOutside(-outsideStepSize)
		return m, nil
	case "f":
		m.cycleFault()
		return m, nil
	}

	var cmd tea.Cmd
	m.presets, cmd = m.presets.Update(msg)
	return m, cmd
}

func (m *consoleModel) toggleFocus() {
	if m.focus == focusPresets {
		m.focus = focusRawInput
		m.rawInput.Focus()
		return
	}
	m.focus = focusPresets
	m.rawInput.Blur()
}

func (m consoleModel) View() string {
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
	s.WriteString(titleStyle.Render("HVAC CONSOLE"))
	s.WriteString(" ")
	connStatus := m.connInfo
	if m.linkLost {
		connStatus = warningStyle.Render("RECONNECTING...")
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s | q=quit Tab=switch +/-=outside f=fault",
		m.session.scenario, connStatus)))
	s.WriteString("\n\n")

	// Layout: left panel (presets) | right panel (state)
	leftWidth := 30
	rightWidth := m.width - leftWidth - 6
	if rightWidth < 40 {
		rightWidth = 40
	}

	listStyle := boxStyle.Width(leftWidth)
	if m.focus == focusPresets {
		listStyle = focusedBoxStyle.Width(leftWidth)
	}
	presetPanel := listStyle.Render(m.presets.View())

	statePanel := boxStyle.Width(rightWidth).Render(
		m.renderStatePanel(statsLabelStyle, statsValueStyle, errorStyle, headerStyle))

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, presetPanel, " ", statePanel))
	s.WriteString("\n")

	// Raw frame input
	inputStyle := boxStyle.Width(m.width - 4)
	if m.focus == focusRawInput {
		inputStyle = focusedBoxStyle.Width(m.width - 4)
	}
	s.WriteString(inputStyle.Render(statsLabelStyle.Render("Raw frame: ") + m.rawInput.View()))
	s.WriteString("\n")

	// Statistics bar
	s.WriteString(m.renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle))
	s.WriteString("\n")

	// Event log
	s.WriteString(m.renderEventLog(statsLabelStyle, warningStyle, boxStyle))

	return s.String()
}

//////////////////////////////////////////////////////////////
// View Helpers
//////////////////////////////////////////////////////////////

func (m consoleModel) renderStatePanel(statsLabelStyle, statsValueStyle, errorStyle, headerStyle lipgloss.Style) string {
	var s strings.Builder
	snap := m.snapshot

	modeStyle := statsValueStyle
	switch snap.Mode {
	case hvac.ModeHeating:
		modeStyle = errorStyle
	case hvac.ModeCooling:
		modeStyle = statsLabelStyle
	}

	s.WriteString(fmt.Sprintf("%s %s  %s %s\n",
		statsLabelStyle.Render("Mode:"), modeStyle.Render(snap.Mode.String()),
		statsLabelStyle.Render("AC:"), statsValueStyle.Render(onOffLabel(snap.ACEnabled))))
	s.WriteString(fmt.Sprintf("%s left=%d°C right=%d°C\n",
		statsLabelStyle.Render("Setpoints:"), snap.SetpointLeft, snap.SetpointRight))
	s.WriteString(fmt.Sprintf("%s outside=%s left=%s right=%s\n",
		statsLabelStyle.Render("Sensors:"),
		m.renderSample(snap.Outside, statsValueStyle, errorStyle),
		m.renderSample(snap.InsideLeft, statsValueStyle, errorStyle),
		m.renderSample(snap.InsideRight, statsValueStyle, errorStyle)))
	s.WriteString(fmt.Sprintf("%s level=%d duty=%d\n",
		statsLabelStyle.Render("Fan:"), snap.FanLevel, snap.FanDuty))

	s.WriteString(statsLabelStyle.Render("Outputs:"))
	for _, o := range hvac.Outputs {
		if snap.Output(o) {
			s.WriteString(" " + statsValueStyle.Render(o.String()))
		} else {
			s.WriteString(" " + headerStyle.Render(strings.ToLower(o.String())))
		}
	}
	s.WriteString("\n\n")

	if m.lastStatus != nil {
		s.WriteString(fmt.Sprintf("%s %s=%d",
			statsLabelStyle.Render("Display:"), hvac.StatusField, m.lastStatus.Legacy()))
	} else {
		s.WriteString(headerStyle.Render("Display: (no status push yet)"))
	}
	s.WriteString("\n")

	outside := "script"
	if m.outsideSet {
		outside = fmt.Sprintf("%.1f°C", m.outsideTemp)
	}
	if fault := injectableFaults[m.faultIdx]; fault != sim.FaultNone {
		outside = errorStyle.Render(string(fault))
	}
	s.WriteString(fmt.Sprintf("%s %s  %s tick=%d phase=%d",
		statsLabelStyle.Render("Outside sim:"), outside,
		statsLabelStyle.Render("Scheduler:"), snap.Tick, snap.Phase))

	return s.String()
}

func (m consoleModel) renderSample(sample hvac.SensorSample, okStyle, faultStyle lipgloss.Style) string {
	if sample.Fault != 0 {
		return faultStyle.Render(fmt.Sprintf("FAULT(%d)", sample.Fault))
	}
	return okStyle.Render(fmt.Sprintf("%d°C", sample.Celsius))
}

func (m consoleModel) renderStatisticsBar(statsLabelStyle, statsValueStyle, errorStyle, boxStyle lipgloss.Style) string {
	st := m.stats
	st.CalculateRates()
	var dispatchedPercent, discardedPercent float64
	if st.TotalFrames > 0 {
		dispatchedPercent = float64(st.Dispatched) * 100.0 / float64(st.TotalFrames)
		discardedPercent = float64(st.Discarded()) * 100.0 / float64(st.TotalFrames)
	}

	discarded := statsValueStyle.Render("0.0%")
	if discardedPercent > 0 {
		discarded = errorStyle.Render(fmt.Sprintf("%.1f%%", discardedPercent))
	}

	content := fmt.Sprintf("%s %s  %s %s  %s %s  %s %s  %s %s",
		statsLabelStyle.Render("Frames:"), statsValueStyle.Render(fmt.Sprintf("%d", st.TotalFrames)),
		statsLabelStyle.Render("Dispatched:"), statsValueStyle.Render(fmt.Sprintf("%.1f%%", dispatchedPercent)),
		statsLabelStyle.Render("Discarded:"), discarded,
		statsLabelStyle.Render("Pushes:"), statsValueStyle.Render(fmt.Sprintf("%d", st.StatusPushes)),
		statsLabelStyle.Render("Sensor errors:"), statsValueStyle.Render(fmt.Sprintf("%d", st.SensorErrors)),
	)

	return boxStyle.Width(m.width - 4).Render(content)
}

func (m consoleModel) renderEventLog(statsLabelStyle, warningStyle, boxStyle lipgloss.Style) string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("EVENTS"))
	s.WriteString("\n")

	headerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyleLocal := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)

	logHeight := m.height - 26
	if logHeight < 4 {
		logHeight = 4
	}
	startIdx := len(m.errorLog) - logHeight
	if startIdx < 0 {
		startIdx = 0
	}

	if len(m.errorLog) == 0 {
		s.WriteString(headerStyle.Render("  (no events yet)"))
	} else {
		for i := startIdx; i < len(m.errorLog); i++ {
			entry := m.errorLog[i]
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

//////////////////////////////////////////////////////////////
// Event Processing
//////////////////////////////////////////////////////////////

func (m *consoleModel) processEvent(ev consoleEvent) {
	switch {
	case ev.snapshot != nil:
		if ev.snapshot.Mode != m.snapshot.Mode {
			m.addLogEntry(fmt.Sprintf("Mode %s -> %s", m.snapshot.Mode, ev.snapshot.Mode), false)
		}
		m.snapshot = *ev.snapshot
		if !m.outsideSet && ev.snapshot.Outside.Fault == 0 {
			m.outsideTemp = float64(ev.snapshot.Outside.Celsius)
		}
	case ev.status != nil:
		m.lastStatus = ev.status
	case ev.message != "":
		m.addLogEntry(ev.message, ev.isError)
	}
}

//////////////////////////////////////////////////////////////
// Commands
//////////////////////////////////////////////////////////////

func (m *consoleModel) sendPreset() {
	item, ok := m.presets.SelectedItem().(preset)
	if !ok {
		return
	}
	m.inject(hvac.EncodeFrame(item.id, item.value), item.name)
}

func (m *consoleModel) sendRaw() {
	raw := m.rawInput.Value()
	if raw == "" {
		raw = m.rawInput.Placeholder
	}
	if !strings.HasSuffix(raw, string(rune(hvac.Terminator))) {
		raw += string(rune(hvac.Terminator))
	}
	m.inject([]byte(raw), fmt.Sprintf("raw %q", raw))
	m.rawInput.SetValue("")
}

func (m *consoleModel) inject(frame []byte, label string) {
	before := m.session.inbox.Dropped()
	m.session.inbox.Write(frame)
	if lost := m.session.inbox.Dropped() - before; lost > 0 {
		m.addLogEntry(fmt.Sprintf("Inbox full: %d of %d bytes of %s dropped", lost, len(frame), label), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("Sent %s", label), false)
}

func (m *consoleModel) adjustOutside(delta float64) {
	next := m.outsideTemp + delta
	if next < minOutsideTemp || next > maxOutsideTemp {
		return
	}
	m.outsideTemp = next
	m.outsideSet = true
	m.faultIdx = 0
	m.session.plant.Outside.SetSteps(sim.Temp(next))
	m.addLogEntry(fmt.Sprintf("Outside sensor set to %.1f°C", next), false)
}

func (m *consoleModel) cycleFault() {
	m.faultIdx = (m.faultIdx + 1) % len(injectableFaults)
	fault := injectableFaults[m.faultIdx]
	if fault == sim.FaultNone {
		m.session.plant.Outside.SetSteps(sim.Temp(m.outsideTemp))
		m.addLogEntry(fmt.Sprintf("Outside sensor fault cleared (%.1f°C)", m.outsideTemp), false)
		return
	}
	m.session.plant.Outside.SetSteps(sim.Fail(fault))
	m.addLogEntry(fmt.Sprintf("Outside sensor fault injected: %s", fault), true)
}

//////////////////////////////////////////////////////////////
// Helpers
//////////////////////////////////////////////////////////////

func (m *consoleModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, errorLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})
	if len(m.errorLog) > maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-maxLogEntries:]
	}
}

func (m *consoleModel) updateListSize() {
	listHeight := m.height / 2
	if listHeight < 6 {
		listHeight = 6
	}
	m.presets.SetSize(28, listHeight)
}

func onOffLabel(on bool) string {
	if on {
		return "ON"
	}
	return "OFF"
}
