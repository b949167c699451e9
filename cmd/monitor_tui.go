// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Thermoquad/advcast/pkg/advertiser"
	"github.com/Thermoquad/advcast/pkg/bleadv"
	"github.com/Thermoquad/advcast/pkg/capture"
	"github.com/Thermoquad/advcast/pkg/controller"
)

const maxCaptureEntries = 50

type captureMsg capture.Result

type captureErrMsg struct{ err error }

type monitorTickMsg time.Time

// monitorModel is the Bubble Tea model for the scheduler monitor
type monitorModel struct {
	driver   *controller.Driver
	connInfo string
	capture  bool

	snapshot advertiser.Snapshot
	stats    advertiser.Statistics
	now      time.Time

	captures []capture.Result
	errorLog []eventLogEntry

	width    int
	height   int
	paused   bool
	quitting bool
}

func initialMonitorModel(driver *controller.Driver, connInfo string, captureEnabled bool) monitorModel {
	return monitorModel{
		driver:   driver,
		connInfo: connInfo,
		capture:  captureEnabled,
		width:    80,
		height:   24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return monitorTickCmd()
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
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
		case "p", " ":
			m.paused = !m.paused
		case "c":
			m.captures = nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case monitorTickMsg:
		if !m.paused {
			sched := m.driver.Scheduler()
			m.snapshot = sched.Snapshot()
			m.stats = sched.Stats()
			m.stats.CalculateRates()
			m.now = sched.Now()
		}
		return m, monitorTickCmd()

	case captureMsg:
		m.captures = append(m.captures, capture.Result(msg))
		if len(m.captures) > maxCaptureEntries {
			m.captures = m.captures[len(m.captures)-maxCaptureEntries:]
		}

	case captureErrMsg:
		m.errorLog = append(m.errorLog, eventLogEntry{
			timestamp: time.Now(),
			message:   msg.err.Error(),
			isError:   true,
		})
	}

	return m, nil
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render("ADVCAST MONITOR"))
	s.WriteString(" ")
	help := "q=quit p=pause"
	if m.capture {
		help += " c=clear"
	}
	s.WriteString(headerStyle.Render(fmt.Sprintf("| %s | %s", m.connInfo, help)))
	if m.paused {
		s.WriteString(" ")
		s.WriteString(warningStyle.Render("[PAUSED]"))
	}
	s.WriteString("\n\n")

	left := boxStyle.Width(max(m.width/2-2, 40)).Render(m.renderQueue())
	right := boxStyle.Width(max(m.width/2-4, 30)).Render(m.renderControllers())
	s.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, " ", right))
	s.WriteString("\n")
	s.WriteString(m.renderStats())
	s.WriteString("\n")

	if m.capture {
		s.WriteString("\n")
		s.WriteString(m.renderCaptures())
	}
	for _, entry := range m.errorLog {
		s.WriteString("\n")
		s.WriteString(errorStyle.Render(entry.timestamp.Format("15:04:05") + " " + entry.message))
	}
	return s.String()
}

func (m monitorModel) renderQueue() string {
	var s strings.Builder

	state := headerStyle.Render(m.snapshot.State.String())
	if m.snapshot.State == advertiser.StateBroadcasting {
		state = statsValueStyle.Render(m.snapshot.State.String())
	}
	fmt.Fprintf(&s, "%s %s\n", statsLabelStyle.Render("State:"), state)

	if m.snapshot.State == advertiser.StateBroadcasting && len(m.snapshot.Pending) > 0 {
		front := m.snapshot.Pending[0]
		remaining := m.snapshot.Deadline.Sub(m.now)
		if remaining < 0 {
			remaining = 0
		}
		fmt.Fprintf(&s, "%s token %d, %s left\n",
			statsLabelStyle.Render("On air:"), front.Token, remaining.Round(time.Millisecond))
	}

	fmt.Fprintf(&s, "%s %d\n", statsLabelStyle.Render("FIFO:"), len(m.snapshot.Pending))
	if len(m.snapshot.Pending) == 0 {
		s.WriteString(headerStyle.Render("  (empty)"))
		return s.String()
	}

	limit := max(m.height-16, 4)
	for i, p := range m.snapshot.Pending {
		if i >= limit {
			s.WriteString(headerStyle.Render(fmt.Sprintf("  ... %d more", len(m.snapshot.Pending)-i)))
			break
		}
		mark := " "
		if p.ProcessedOnce {
			mark = "*"
		}
		line := fmt.Sprintf("%s %3d %5s %s", mark, p.Token, p.Duration, bleadv.FormatHex(p.Raw))
		switch {
		case p.ToBeRemoved:
			s.WriteString(headerStyle.Render(line))
		case i == 0 && m.snapshot.State == advertiser.StateBroadcasting:
			s.WriteString(statsValueStyle.Render(line))
		default:
			s.WriteString(line)
		}
		s.WriteString("\n")
	}
	return strings.TrimRight(s.String(), "\n")
}

func (m monitorModel) renderControllers() string {
	var s strings.Builder
	s.WriteString(statsLabelStyle.Render("Controllers"))
	for _, c := range m.driver.Controllers() {
		status := headerStyle.Render("idle")
		if c.Advertising() {
			status = statsValueStyle.Render("adv")
		}
		fmt.Fprintf(&s, "\n%-12s %-22s %s q=%d tx=%d",
			c.Name(), c.Codec().ID(), status, c.Pending(), c.Params().TxCount)
	}
	return s.String()
}

func (m monitorModel) renderStats() string {
	radioErrs := statsValueStyle.Render(fmt.Sprintf("%d", m.stats.RadioErrors))
	if m.stats.RadioErrors > 0 {
		radioErrs = errorStyle.Render(fmt.Sprintf("%d (%.2f/s)", m.stats.RadioErrors, m.stats.ErrorRate))
	}
	return boxStyle.Render(fmt.Sprintf("%s %d/%d   %s %d   %s %d   %s %d   %s %.1f adv/s   %s %s",
		statsLabelStyle.Render("Batches:"), m.stats.BatchesAdded, m.stats.BatchesRemoved,
		statsLabelStyle.Render("Starts:"), m.stats.Starts,
		statsLabelStyle.Render("Rotations:"), m.stats.Rotations,
		statsLabelStyle.Render("Evictions:"), m.stats.Evictions,
		statsLabelStyle.Render("Rate:"), m.stats.StartRate,
		statsLabelStyle.Render("Radio Errors:"), radioErrs))
}

func (m monitorModel) renderCaptures() string {
	var content strings.Builder
	if len(m.captures) == 0 {
		content.WriteString(headerStyle.Render("  (no remotes heard yet)"))
	}

	logHeight := max(m.height-24, 5)
	start := max(len(m.captures)-logHeight, 0)
	for _, res := range m.captures[start:] {
		diff := statsValueStyle.Render("ok")
		if !res.ID.NoDiff {
			diff = warningStyle.Render("diff")
		}
		fmt.Fprintf(&content, "%s %-22s id=0x%-8X idx=%d tx=%-3d %-4s %s rssi=%d\n",
			headerStyle.Render(res.Time.Format("15:04:05.000")),
			res.ID.Codec.ID(), res.ID.Params.ID, res.ID.Params.Index, res.ID.Params.TxCount,
			diff, res.ID.Command.Kind, res.RSSI)
	}

	return statsLabelStyle.Render("Remotes Heard:") + "\n" +
		boxStyle.Width(max(m.width-4, 40)).Render(strings.TrimRight(content.String(), "\n"))
}
