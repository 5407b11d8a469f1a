// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/matt-FFFFFF/chainrun/internal/checkpoint"
	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/progress"
	"github.com/matt-FFFFFF/chainrun/internal/report"
	"github.com/matt-FFFFFF/chainrun/internal/tasks"
)

// Option configures a Scheduler or SerialRunner.
type Option func(*ledger)

// WithStore writes checkpoints and the finish marker through store.
func WithStore(store *checkpoint.Store) Option {
	return func(l *ledger) {
		l.store = store
	}
}

// WithRecorder records each completed chain.
func WithRecorder(rec *report.Recorder) Option {
	return func(l *ledger) {
		l.recorder = rec
	}
}

// WithReporter sends progress events to reporter.
func WithReporter(reporter progress.Reporter) Option {
	return func(l *ledger) {
		l.reporter = reporter
	}
}

// ledger applies chain completions to the set. Only the coordinator owns one.
type ledger struct {
	set      *tasks.Set
	store    *checkpoint.Store
	recorder *report.Recorder
	reporter progress.Reporter
	summary  report.Summary
}

func newLedger(set *tasks.Set, opts []Option) *ledger {
	l := &ledger{
		set:      set,
		reporter: progress.NewNullReporter(),
		summary: report.Summary{
			Total:          set.Total(),
			PreviouslyDone: set.Completed(),
		},
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// start announces the run.
func (l *ledger) start(workers int) {
	l.reporter.Report(progress.Event{
		Type:  progress.EventRunStarted,
		Chain: -1,
		Data: progress.EventData{
			Total:          l.summary.Total,
			Completed:      l.summary.PreviouslyDone,
			PreviouslyDone: l.summary.PreviouslyDone,
			Workers:        workers,
		},
	})
}

func (l *ledger) assigned(i, rank int, c *tasks.Chain) {
	l.reporter.Report(progress.Event{
		Type:  progress.EventAssigned,
		Chain: i,
		Rank:  rank,
		Data:  progress.EventData{Command: c.String()},
	})
}

// complete marks chain i done, saves a checkpoint and records the result.
// The returned error aborts the run.
func (l *ledger) complete(ctx context.Context, i, rank int) error {
	c, err := l.set.Chain(i)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if err := l.set.MarkChainDone(i); err != nil {
		return err //nolint:wrapcheck
	}

	l.summary.Completed++

	hasErrors := c.HasErrors()
	if hasErrors {
		l.summary.ErrorChains++
	}

	completed := l.set.Completed()

	ctxlog.Info(ctx, "chain completed",
		"chain", i, "rank", rank, "errors", hasErrors, "completed", completed, "total", l.summary.Total)

	if l.recorder != nil {
		l.recorder.Record(ctx, i, c, rank)
	}

	l.reporter.Report(progress.Event{
		Type:  progress.EventCompleted,
		Chain: i,
		Rank:  rank,
		Data: progress.EventData{
			Total:     l.summary.Total,
			Completed: completed,
			Command:   c.String(),
			LastLine:  lastLine(c),
			HasErrors: hasErrors,
		},
	})

	return l.save(ctx, i)
}

// interrupted checkpoints the steps of chain i that finished before one was
// cut short by a signal. The chain stays undone.
func (l *ledger) interrupted(ctx context.Context, i, rank int) error {
	c, err := l.set.Chain(i)
	if err != nil {
		return err //nolint:wrapcheck
	}

	ctxlog.Warn(ctx, "chain interrupted, it will run again on resume",
		"chain", i, "rank", rank, "done", c.DoneString())

	if c.DoneString() == tasks.UndoneSentinel {
		return nil
	}

	return l.save(ctx, i)
}

// save writes a checkpoint after chain i changed.
func (l *ledger) save(ctx context.Context, i int) error {
	if l.store == nil {
		return nil
	}

	path, err := l.store.Save(ctx, l.set)
	if err != nil {
		return fmt.Errorf("chain %d: %w", i, err)
	}

	if path != "" {
		l.reporter.Report(progress.Event{
			Type:  progress.EventCheckpoint,
			Chain: -1,
			Data:  progress.EventData{Total: l.summary.Total, Completed: l.set.Completed(), Path: path},
		})
	}

	return nil
}

// finish writes the finish marker when the set is complete and announces the end.
func (l *ledger) finish(ctx context.Context, runErr error) error {
	if runErr == nil && l.store != nil {
		if _, err := l.store.MarkFinished(ctx, l.set); err != nil {
			runErr = err
		}
	}

	l.reporter.Report(progress.Event{
		Type:  progress.EventFinished,
		Chain: -1,
		Data: progress.EventData{
			Total:          l.summary.Total,
			Completed:      l.set.Completed(),
			PreviouslyDone: l.summary.PreviouslyDone,
			Err:            runErr,
		},
	})

	return runErr
}

// lastLine returns the last stdout line of the last step that produced one.
func lastLine(c *tasks.Chain) string {
	ts := c.Tasks()

	for i := len(ts) - 1; i >= 0; i-- {
		if l := ts[i].LastLine(); l != "" {
			return l
		}

		out := strings.TrimRight(ts[i].Stdout(), "\r\n")
		if out == "" {
			continue
		}

		if idx := strings.LastIndexByte(out, '\n'); idx >= 0 {
			out = out[idx+1:]
		}

		return strings.TrimRight(out, "\r")
	}

	return ""
}
