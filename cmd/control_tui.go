// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/advcast/pkg/advertiser"
	"github.com/Thermoquad/advcast/pkg/bleadv"
	"github.com/Thermoquad/advcast/pkg/controller"
)

//////////////////////////////////////////////////////////////
// Constants
//////////////////////////////////////////////////////////////

const refreshInterval = 200 * time.Millisecond

// Focus states
const (
	focusControllerList = iota
	focusCommandList
	focusArgsInput
)

//////////////////////////////////////////////////////////////
// Types
//////////////////////////////////////////////////////////////

// eventLogEntry is one line of the event log
type eventLogEntry struct {
	timestamp time.Time
	message   string
	isError   bool
}

// controllerItem wraps a controller for the list
type controllerItem struct {
	c *controller.Controller
}

// Implement list.Item interface
func (i controllerItem) Title() string { return i.c.Name() }
func (i controllerItem) Description() string {
	return fmt.Sprintf("%s  queue %d", i.c.Codec().ID(), i.c.Pending())
}
func (i controllerItem) FilterValue() string { return i.c.Name() }

// commandItem is one command kind offered for the selected controller
type commandItem struct {
	kind bleadv.CommandKind
}

func (i commandItem) Title() string       { return i.kind.String() }
func (i commandItem) Description() string { return commandArgsHelp[i.kind] }
func (i commandItem) FilterValue() string { return i.kind.String() }

var commandArgsHelp = map[bleadv.CommandKind]string{
	bleadv.CmdLightDim:        "brightness 0-255",
	bleadv.CmdLightCCT:        "color temperature 0-255",
	bleadv.CmdLightWhiteColor: "cold warm",
	bleadv.CmdFanSpeed:        "speed max",
	bleadv.CmdFanOnOffSpeed:   "speed max",
	bleadv.CmdFanDirection:    "0 forward, 1 reverse",
	bleadv.CmdFanOscillate:    "0 off, 1 on",
	bleadv.CmdCustom:          "opcode args...",
}

// controlModel is the Bubble Tea model for the control TUI
type controlModel struct {
	driver   *controller.Driver
	connInfo string

	controllerList list.Model
	commandList    list.Model
	argsInput      textinput.Model
	focusedField   int
	selectedName   string

	// Scheduler view, refreshed every tick
	snapshot advertiser.Snapshot
	stats    advertiser.Statistics

	errorLog      []eventLogEntry
	maxLogEntries int

	width    int
	height   int
	quitting bool
}

//////////////////////////////////////////////////////////////
// Messages
//////////////////////////////////////////////////////////////

type controlTickMsg time.Time

//////////////////////////////////////////////////////////////
// Model Initialization
//////////////////////////////////////////////////////////////

func initialControlModel(driver *controller.Driver, connInfo string) controlModel {
	ti := textinput.New()
	ti.Placeholder = "args"
	ti.CharLimit = 32
	ti.Width = 20

	var items []list.Item
	for _, c := range driver.Controllers() {
		items = append(items, controllerItem{c: c})
	}
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	delegate.SetHeight(2)
	controllerList := list.New(items, delegate, 34, 12)
	controllerList.Title = "Controllers"
	controllerList.SetShowStatusBar(false)
	controllerList.SetShowHelp(false)
	controllerList.SetFilteringEnabled(false)

	commandDelegate := list.NewDefaultDelegate()
	commandDelegate.ShowDescription = true
	commandDelegate.SetHeight(2)
	commandList := list.New(nil, commandDelegate, 30, 12)
	commandList.Title = "Commands"
	commandList.SetShowStatusBar(false)
	commandList.SetShowHelp(false)
	commandList.SetFilteringEnabled(false)

	m := controlModel{
		driver:         driver,
		connInfo:       connInfo,
		controllerList: controllerList,
		commandList:    commandList,
		argsInput:      ti,
		focusedField:   focusControllerList,
		maxLogEntries:  100,
		width:          80,
		height:         24,
	}
	m.refreshCommands()
	return m
}

//////////////////////////////////////////////////////////////
// Bubble Tea Interface
//////////////////////////////////////////////////////////////

func (m controlModel) Init() tea.Cmd {
	return controlTickCmd()
}

func controlTickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return controlTickMsg(t)
	})
}

func (m controlModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case controlTickMsg:
		m.snapshot = m.driver.Scheduler().Snapshot()
		m.stats = m.driver.Scheduler().Stats()
		m.stats.CalculateRates()
		// queue depths in the descriptions change between ticks
		m.controllerList.SetItems(m.controllerList.Items())
		return m, controlTickCmd()
	}

	return m, nil
}

func (m controlModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "q":
		if m.focusedField != focusArgsInput {
			m.quitting = true
			return m, tea.Quit
		}

	case "tab":
		m.cycleFocus(1)
		return m, nil

	case "shift+tab":
		m.cycleFocus(-1)
		return m, nil

	case "enter":
		m.sendSelected()
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focusedField {
	case focusControllerList:
		m.controllerList, cmd = m.controllerList.Update(msg)
		m.refreshCommands()
	case focusCommandList:
		m.commandList, cmd = m.commandList.Update(msg)
	case focusArgsInput:
		m.argsInput, cmd = m.argsInput.Update(msg)
	}
	return m, cmd
}

func (m *controlModel) cycleFocus(delta int) {
	m.focusedField = (m.focusedField + delta + 3) % 3
	if m.focusedField == focusArgsInput {
		m.argsInput.Focus()
	} else {
		m.argsInput.Blur()
	}
}

func (m *controlModel) selectedController() *controller.Controller {
	item, ok := m.controllerList.SelectedItem().(controllerItem)
	if !ok {
		return nil
	}
	return item.c
}

// refreshCommands lists the kinds the selected controller's codec supports
func (m *controlModel) refreshCommands() {
	c := m.selectedController()
	if c == nil || c.Name() == m.selectedName {
		return
	}
	m.selectedName = c.Name()

	var items []list.Item
	for _, kind := range bleadv.CommandKinds() {
		cmd := bleadv.NewCommand(kind)
		if kind == bleadv.CmdCustom {
			cmd.Opcode = 1
		}
		if kind != bleadv.CmdNoOp && c.IsSupported(cmd) {
			items = append(items, commandItem{kind: kind})
		}
	}
	m.commandList.SetItems(items)
	m.commandList.Select(0)
}

func (m *controlModel) sendSelected() {
	c := m.selectedController()
	item, ok := m.commandList.SelectedItem().(commandItem)
	if c == nil || !ok {
		return
	}

	args := append([]string{item.kind.String()}, strings.Fields(m.argsInput.Value())...)
	command, err := parseCommand(args)
	if err != nil {
		m.addLogEntry(fmt.Sprintf("%s: %v", c.Name(), err), true)
		return
	}
	if !c.Enqueue(command) {
		m.addLogEntry(fmt.Sprintf("%s: %s not supported by %s", c.Name(), command.Kind, c.Codec().ID()), true)
		return
	}
	m.addLogEntry(fmt.Sprintf("%s: %s", c.Name(), command), false)
}

func (m *controlModel) addLogEntry(message string, isError bool) {
	m.errorLog = append(m.errorLog, eventLogEntry{
		timestamp: time.Now(),
		message:   message,
		isError:   isError,
	})

	// Keep only last N entries
	if len(m.errorLog) > m.maxLogEntries {
		m.errorLog = m.errorLog[len(m.errorLog)-m.maxLogEntries:]
	}
}

//////////////////////////////////////////////////////////////
// View
//////////////////////////////////////////////////////////////

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	statsLabelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("12")).
			Bold(true)

	statsValueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("10"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("11"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	focusedBoxStyle = boxStyle.
			BorderForeground(lipgloss.Color("12"))
)

func (m controlModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("ADVCAST CONTROL"))
	s.WriteString(" ")
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | q=quit Tab=switch Enter=send", m.connInfo)))
	s.WriteString("\n\n")

	panel := func(focus int, width int, content string) string {
		style := boxStyle
		if m.focusedField == focus {
			style = focusedBoxStyle
		}
		return style.Width(width).Render(content)
	}

	argsLabel := statsLabelStyle.Render("Args: ")
	controls := lipgloss.JoinVertical(lipgloss.Left,
		m.commandList.View(),
		argsLabel+m.argsInput.View(),
	)

	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		panel(focusControllerList, 36, m.controllerList.View()),
		" ",
		panel(focusCommandList, 34, controls),
		" ",
		boxStyle.Width(max(m.width-80, 30)).Render(m.renderSelected()),
	))
	s.WriteString("\n\n")

	s.WriteString(m.renderScheduler())
	s.WriteString("\n\n")
	s.WriteString(m.renderEventLog())
	return s.String()
}

func (m controlModel) renderSelected() string {
	c := m.selectedController()
	if c == nil {
		return headerStyle.Render("No controller selected")
	}

	params := c.Params()
	var s strings.Builder
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Codec:"), statsValueStyle.Render(c.Codec().ID()))
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("ID:"), statsValueStyle.Render(fmt.Sprintf("0x%X", params.ID)))
	fmt.Fprintf(&s, "%s %d   %s %d\n",
		statsLabelStyle.Render("Index:"), params.Index,
		statsLabelStyle.Render("Tx:"), params.TxCount)
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("Min tx:"), c.MinTxDuration())
	if uuid := c.DeviceUUID(); uuid != "" {
		fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("UUID:"), headerStyle.Render(uuid))
	}

	status := headerStyle.Render("idle")
	if c.Advertising() {
		status = statsValueStyle.Render("advertising")
	}
	fmt.Fprintf(&s, "%s %s", statsLabelStyle.Render("Status:"), status)
	if kinds := c.PendingKinds(); len(kinds) > 0 {
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = k.String()
		}
		fmt.Fprintf(&s, "\n%s %s", statsLabelStyle.Render("Queue:"), warningStyle.Render(strings.Join(names, ", ")))
	}
	return s.String()
}

func (m controlModel) renderScheduler() string {
	var s strings.Builder

	state := headerStyle.Render(m.snapshot.State.String())
	if m.snapshot.State == advertiser.StateBroadcasting {
		state = statsValueStyle.Render(m.snapshot.State.String())
	}
	fmt.Fprintf(&s, "%s %s   %s %d   %s %s\n",
		statsLabelStyle.Render("Scheduler:"), state,
		statsLabelStyle.Render("Pending:"), len(m.snapshot.Pending),
		statsLabelStyle.Render("Uptime:"), statsValueStyle.Render(formatUptime(uint64(m.stats.LastUpdateTime.Sub(m.stats.StartTime).Milliseconds()))))

	if m.snapshot.State == advertiser.StateBroadcasting && len(m.snapshot.Pending) > 0 {
		front := m.snapshot.Pending[0]
		fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("On air:"), statsValueStyle.Render(bleadv.FormatHex(front.Raw)))
	}

	radioErrs := statsValueStyle.Render(fmt.Sprintf("%d", m.stats.RadioErrors))
	if m.stats.RadioErrors > 0 {
		radioErrs = errorStyle.Render(fmt.Sprintf("%d", m.stats.RadioErrors))
	}
	fmt.Fprintf(&s, "%s %s   %s %s   %s %s   %s %s",
		statsLabelStyle.Render("Starts:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Starts)),
		statsLabelStyle.Render("Rotations:"), statsValueStyle.Render(fmt.Sprintf("%d", m.stats.Rotations)),
		statsLabelStyle.Render("Rate:"), statsValueStyle.Render(fmt.Sprintf("%.1f adv/s", m.stats.StartRate)),
		statsLabelStyle.Render("Radio Errors:"), radioErrs)

	return boxStyle.Render(s.String())
}

func (m controlModel) renderEventLog() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("Recent Events:"))
	s.WriteString("\n")

	logHeight := max(m.height-30, 5)
	startIdx := max(len(m.errorLog)-logHeight, 0)

	var content strings.Builder
	if len(m.errorLog) == 0 {
		content.WriteString(headerStyle.Render("  (no events yet)"))
	}
	for _, entry := range m.errorLog[startIdx:] {
		timestamp := headerStyle.Render(entry.timestamp.Format("15:04:05.000"))
		if entry.isError {
			fmt.Fprintf(&content, "%s %s\n", timestamp, errorStyle.Render("✗ "+entry.message))
		} else {
			fmt.Fprintf(&content, "%s %s\n", timestamp, warningStyle.Render("ℹ "+entry.message))
		}
	}

	s.WriteString(boxStyle.Width(max(m.width-4, 40)).Render(content.String()))
	return s.String()
}
