// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/chainrun/internal/progress"
	"github.com/matt-FFFFFF/chainrun/internal/report"
)

const (
	defaultWidth                = 80
	defaultHeight               = 20
	reservedLines               = 9 // title, progress bar, status bar, help, border
	minViewportWidth            = 20
	minStatusBarAvailableHeight = 10
	durationRounding            = 100 * time.Millisecond
	ellipsis                    = "..."
)

// ProgressEventMsg wraps a progress event for the tea framework.
type ProgressEventMsg struct {
	Event progress.Event
}

// RunFinishedMsg indicates that the run has returned.
type RunFinishedMsg struct {
	Summary report.Summary
	Err     error
}

// Init implements bubbletea.Model.Init.
func (m *Model) Init() tea.Cmd {
	return tea.EnterAltScreen
}

// Update implements bubbletea.Model.Update.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	m.viewport, cmd = m.viewport.Update(msg)

	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.mutex.Lock()
		m.width = msg.Width
		m.height = msg.Height
		m.updateViewportSize()
		m.mutex.Unlock()

		return m, cmd

	case ProgressEventMsg:
		m.processProgressEvent(msg.Event)
		return m, cmd

	case RunFinishedMsg:
		m.mutex.Lock()
		m.finished = true
		m.runErr = msg.Err
		m.errorChains = msg.Summary.ErrorChains
		m.mutex.Unlock()

		return m, cmd
	}

	return m, cmd
}

// updateViewportSize fits the viewport and progress bar to the window. The caller holds the lock.
func (m *Model) updateViewportSize() {
	w := max(m.width-4, minViewportWidth) //nolint:mnd
	h := max(m.height-reservedLines, 1)

	m.viewport.Width = w
	m.viewport.Height = h
	m.bar.Width = w
}

// handleKeyPress processes keyboard input.
func (m *Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View implements bubbletea.Model.View.
func (m *Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var content strings.Builder

	m.renderWorkers(&content)
	m.renderRecent(&content)

	if m.finished {
		content.WriteString("\n")

		switch {
		case m.runErr != nil:
			content.WriteString(m.styles.Failed.Render("⚠️  Run stopped: " + m.runErr.Error()))
		case m.errorChains > 0:
			content.WriteString(m.styles.Failed.Render(fmt.Sprintf("⚠️  Finished, %d chains wrote to stderr", m.errorChains)))
		default:
			content.WriteString(m.styles.Success.Render("✅ Finished"))
		}

		content.WriteString("\n")
	}

	m.viewport.SetContent(content.String())

	var view strings.Builder

	view.WriteString(m.styles.Title.Render("⛓️  chainrun"))
	view.WriteString("\n")
	view.WriteString(m.bar.ViewAs(m.percent()))
	view.WriteString("\n")
	view.WriteString(m.styles.Border.Render(m.viewport.View()))

	if m.height > minStatusBarAvailableHeight {
		view.WriteString("\n")
		view.WriteString(m.renderStatusBar())
		view.WriteString("\n")

		helpText := "↑/↓ to scroll, 'q' to quit"
		if m.finished {
			helpText = "'q' to quit and return to terminal"
		}

		view.WriteString(m.styles.Help.Render(helpText))
	}

	return view.String()
}

// renderStatusBar shows the counters. The caller holds the lock.
func (m *Model) renderStatusBar() string {
	parts := []string{
		fmt.Sprintf("%d/%d chains", m.completed, m.total),
		fmt.Sprintf("%d previously done", m.previouslyDone),
		fmt.Sprintf("%d with errors", m.errorChains),
		fmt.Sprintf("elapsed %v", time.Since(m.startTime).Round(time.Second)),
	}

	if m.checkpoint != "" {
		parts = append(parts, "checkpoint "+m.checkpoint)
	}

	return m.styles.Idle.Render(strings.Join(parts, " • "))
}

// renderWorkers writes one line per worker. The caller holds the lock.
func (m *Model) renderWorkers(b *strings.Builder) {
	for _, rank := range m.ranks() {
		status, chain, command, lastLine, startTime, finished := m.workers[rank].GetDisplayInfo()

		var icon, label string

		switch status {
		case StatusBusy:
			icon = "⚡"
			label = m.styles.Busy.Render(fmt.Sprintf("worker %d: chain %d", rank, chain))
		case StatusStopped:
			icon = "⏹"
			label = m.styles.Stopped.Render(fmt.Sprintf("worker %d: stopped", rank))
		default:
			icon = "⏳"
			label = m.styles.Idle.Render(fmt.Sprintf("worker %d: idle", rank))
		}

		left := fmt.Sprintf("%s %s (%d done)", icon, label, finished)

		if startTime != nil {
			left += m.styles.Output.Render(fmt.Sprintf(" %v", time.Since(*startTime).Round(durationRounding)))
		}

		right := lastLine
		if status == StatusBusy && right == "" {
			right = command
		}

		b.WriteString(m.layout(left, m.styles.Output.Render(truncate(right, m.viewport.Width/2)))) //nolint:mnd
		b.WriteString("\n")
	}
}

// renderRecent lists the latest completed chains. The caller holds the lock.
func (m *Model) renderRecent(b *strings.Builder) {
	if len(m.recent) == 0 {
		return
	}

	b.WriteString("\nRecently completed:\n")

	for i := len(m.recent) - 1; i >= 0; i-- {
		r := m.recent[i]

		icon := m.styles.Success.Render("✓")
		if r.hasErrors {
			icon = m.styles.Failed.Render("✗")
		}

		line := fmt.Sprintf("[%d] %s (worker %d)", r.chain, r.command, r.rank)
		b.WriteString(icon + " " + truncate(line, m.viewport.Width-2)) //nolint:mnd
		b.WriteString("\n")
	}
}

// layout pads left so that right starts at half the viewport width.
func (m *Model) layout(left, right string) string {
	half := max(m.viewport.Width/2, minViewportWidth/2) //nolint:mnd

	if w := lipgloss.Width(left); w < half {
		left += strings.Repeat(" ", half-w)
	}

	return left + " " + right
}

// truncate shortens s to at most n runes.
func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}

	if n <= len(ellipsis) {
		return string(r[:n])
	}

	return string(r[:n-len(ellipsis)]) + ellipsis
}
