// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"errors"

	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/report"
	"github.com/matt-FFFFFF/chainrun/internal/tasks"
)

// SerialRunner runs every chain in the calling goroutine.
type SerialRunner struct {
	rc     RunContext
	set    *tasks.Set
	exec   tasks.Executor
	ledger *ledger
}

// NewSerialRunner returns a runner for set.
func NewSerialRunner(rc RunContext, set *tasks.Set, exec tasks.Executor, opts ...Option) *SerialRunner {
	return &SerialRunner{
		rc:     rc,
		set:    set,
		exec:   exec,
		ledger: newLedger(set, opts),
	}
}

// Run executes undone chains in definition order. A chain interrupted by
// cancellation is left undone. A step cut short by a signal ends the run with
// ErrChainInterrupted after the steps before it are checkpointed.
func (r *SerialRunner) Run(ctx context.Context) (report.Summary, error) {
	logger := ctxlog.Logger(ctx).With("run", r.rc.RunID)
	ctx = ctxlog.New(ctx, logger)

	r.ledger.start(0)

	logger.Info("serial run started", "total", r.set.Total(), "previouslyDone", r.ledger.summary.PreviouslyDone)

	err := r.run(ctx)

	return r.ledger.summary, r.ledger.finish(ctx, err)
}

func (r *SerialRunner) run(ctx context.Context) error {
	for i, c := range r.set.Undone() {
		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck
		}

		r.ledger.assigned(i, r.rc.Rank, c)

		err := runSteps(ctx, c, r.exec)

		switch {
		case errors.Is(err, ErrChainInterrupted):
			if serr := r.ledger.interrupted(ctx, i, r.rc.Rank); serr != nil {
				return errors.Join(err, serr)
			}

			return err
		case err != nil:
			return err
		}

		if err := r.ledger.complete(ctx, i, r.rc.Rank); err != nil {
			return err
		}
	}

	return nil
}
