// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/matt-FFFFFF/chainrun/internal/progress"
)

// maxRecent is the number of completed chains listed below the worker table.
const maxRecent = 8

// WorkerStatus represents what a worker is doing.
type WorkerStatus int

const (
	StatusIdle WorkerStatus = iota
	StatusBusy
	StatusStopped
)

// String returns a string representation of the worker status.
func (s WorkerStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusBusy:
		return "busy"
	case StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// WorkerRow is one line of the worker table.
type WorkerRow struct {
	Rank      int
	Status    WorkerStatus
	Chain     int
	Command   string
	LastLine  string
	StartTime *time.Time
	Finished  int // chains completed by this worker
	mutex     sync.RWMutex
}

// NewWorkerRow creates an idle row.
func NewWorkerRow(rank int) *WorkerRow {
	return &WorkerRow{Rank: rank, Chain: -1}
}

// Assign records the chain the worker started.
func (w *WorkerRow) Assign(chain int, command string, at time.Time) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.Status = StatusBusy
	w.Chain = chain
	w.Command = command
	w.LastLine = ""
	w.StartTime = &at
}

// Complete records the end of the current chain.
func (w *WorkerRow) Complete(lastLine string) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.Status = StatusIdle
	w.Finished++
	w.StartTime = nil

	if lastLine != "" {
		w.LastLine = strings.TrimSpace(lastLine)
	}
}

// Stop marks the worker as stopped.
func (w *WorkerRow) Stop() {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	w.Status = StatusStopped
	w.StartTime = nil
}

// GetDisplayInfo safely retrieves display information.
func (w *WorkerRow) GetDisplayInfo() (WorkerStatus, int, string, string, *time.Time, int) {
	w.mutex.RLock()
	defer w.mutex.RUnlock()

	return w.Status, w.Chain, w.Command, w.LastLine, w.StartTime, w.Finished
}

// recentChain is a completed chain shown in the history list.
type recentChain struct {
	chain     int
	rank      int
	command   string
	hasErrors bool
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	workers map[int]*WorkerRow
	recent  []recentChain

	total          int
	completed      int
	previouslyDone int
	errorChains    int
	checkpoint     string
	startTime      time.Time

	draining bool
	finished bool
	runErr   error

	width    int
	height   int
	quitting bool
	mutex    sync.RWMutex

	bar      bprogress.Model
	viewport viewport.Model
	styles   *Styles
}

// Styles contains all the styling for the TUI.
type Styles struct {
	Title   lipgloss.Style
	Idle    lipgloss.Style
	Busy    lipgloss.Style
	Stopped lipgloss.Style
	Success lipgloss.Style
	Failed  lipgloss.Style
	Output  lipgloss.Style
	Help    lipgloss.Style
	Border  lipgloss.Style
}

// NewStyles creates the default styling for the TUI.
func NewStyles() *Styles {
	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12")).
			MarginBottom(1),
		Idle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")),
		Busy: lipgloss.NewStyle().
			Foreground(lipgloss.Color("11")).
			Bold(true),
		Stopped: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Italic(true),
		Success: lipgloss.NewStyle().
			Foreground(lipgloss.Color("10")),
		Failed: lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")),
		Output: lipgloss.NewStyle().
			Foreground(lipgloss.Color("7")).
			Italic(true),
		Help: lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			MarginTop(1),
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")),
	}
}

// NewModel creates a new TUI model.
func NewModel(ctx context.Context) *Model {
	return &Model{
		ctx:       ctx,
		workers:   make(map[int]*WorkerRow),
		startTime: time.Now(),
		bar:       bprogress.New(bprogress.WithDefaultGradient()),
		viewport:  viewport.New(defaultWidth, defaultHeight),
		styles:    NewStyles(),
	}
}

// worker returns the row for rank, creating it if needed. The caller holds the lock.
func (m *Model) worker(rank int) *WorkerRow {
	if w, ok := m.workers[rank]; ok {
		return w
	}

	w := NewWorkerRow(rank)
	m.workers[rank] = w

	return w
}

// ranks returns the known ranks in order. The caller holds the lock.
func (m *Model) ranks() []int {
	out := make([]int, 0, len(m.workers))
	for r := range m.workers {
		out = append(out, r)
	}

	slices.Sort(out)

	return out
}

// percent returns the completed fraction of the set.
func (m *Model) percent() float64 {
	if m.total == 0 {
		return 1
	}

	return float64(m.completed) / float64(m.total)
}

// processProgressEvent handles incoming progress events.
func (m *Model) processProgressEvent(event progress.Event) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	switch event.Type {
	case progress.EventRunStarted:
		m.total = event.Data.Total
		m.completed = event.Data.Completed
		m.previouslyDone = event.Data.PreviouslyDone

		for rank := 1; rank <= event.Data.Workers; rank++ {
			m.worker(rank)
		}

	case progress.EventAssigned:
		m.worker(event.Rank).Assign(event.Chain, event.Data.Command, event.Timestamp)

	case progress.EventCompleted:
		m.completed = event.Data.Completed
		m.worker(event.Rank).Complete(event.Data.LastLine)

		if event.Data.HasErrors {
			m.errorChains++
		}

		m.recent = append(m.recent, recentChain{
			chain:     event.Chain,
			rank:      event.Rank,
			command:   event.Data.Command,
			hasErrors: event.Data.HasErrors,
		})

		if len(m.recent) > maxRecent {
			m.recent = slices.Clone(m.recent[len(m.recent)-maxRecent:])
		}

	case progress.EventCheckpoint:
		m.checkpoint = event.Data.Path

	case progress.EventDraining:
		m.draining = true

		for _, w := range m.workers {
			w.Stop()
		}

	case progress.EventFinished:
		m.finished = true
		m.runErr = event.Data.Err
		m.completed = event.Data.Completed
	}
}
