// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/matt-FFFFFF/chainrun/internal/progress"
	"github.com/matt-FFFFFF/chainrun/internal/report"
)

var _ progress.Reporter = (*Reporter)(nil)

// RunFunc runs the set, reporting progress to reporter.
type RunFunc func(ctx context.Context, reporter progress.Reporter) (report.Summary, error)

// Runner manages the TUI application and progress event integration.
type Runner struct {
	model    *Model
	program  *tea.Program
	reporter *Reporter
	mutex    sync.Mutex
}

// Reporter implements progress.Reporter and forwards events to the TUI.
type Reporter struct {
	program *tea.Program
	closed  bool
	mutex   sync.RWMutex
}

// NewReporter creates a new TUI progress reporter.
func NewReporter(program *tea.Program) *Reporter {
	return &Reporter{
		program: program,
	}
}

// Report implements progress.Reporter.
func (tr *Reporter) Report(event progress.Event) {
	tr.mutex.RLock()
	defer tr.mutex.RUnlock()

	if tr.closed || tr.program == nil {
		return
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	tr.program.Send(ProgressEventMsg{Event: event})
}

// Close implements progress.Reporter.
func (tr *Reporter) Close() {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()

	tr.closed = true
}

// NewRunner creates a new TUI runner.
func NewRunner(ctx context.Context, opts ...tea.ProgramOption) *Runner {
	model := NewModel(ctx)
	program := tea.NewProgram(model, append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)...)

	return &Runner{
		model:    model,
		program:  program,
		reporter: NewReporter(program),
	}
}

// Reporter returns the progress reporter for this runner.
func (r *Runner) Reporter() progress.Reporter {
	return r.reporter
}

// Run starts the TUI and calls fn with the TUI reporter. When fn returns the
// TUI stays up until the user quits. Quitting early cancels the run.
func (r *Runner) Run(ctx context.Context, fn RunFunc) (report.Summary, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		summary report.Summary
		err     error
	}

	resultChan := make(chan outcome, 1)

	go func() {
		s, err := fn(runCtx, r.reporter)
		resultChan <- outcome{summary: s, err: err}
	}()

	tuiDone := make(chan error, 1)

	go func() {
		_, err := r.program.Run()
		tuiDone <- err
	}()

	var res outcome

	select {
	case res = <-resultChan:
		r.program.Send(RunFinishedMsg{Summary: res.summary, Err: res.err})

		<-tuiDone
		r.reporter.Close()

	case <-tuiDone:
		// The user quit before the run ended.
		r.reporter.Close()
		cancel()

		res = <-resultChan
	}

	return res.summary, res.err
}
