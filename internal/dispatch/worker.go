// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/protocol"
	"github.com/matt-FFFFFF/chainrun/internal/tasks"
)

// Worker runs the chains it is assigned, one at a time.
type Worker struct {
	rc   RunContext
	conn protocol.Conn
	exec tasks.Executor
}

// NewWorker returns a worker answering on conn.
func NewWorker(rc RunContext, conn protocol.Conn, exec tasks.Executor) *Worker {
	return &Worker{rc: rc, conn: conn, exec: exec}
}

// Run serves assignments until Stop arrives or the coordinator goes away.
// The connection is closed on return.
func (w *Worker) Run(ctx context.Context) error {
	logger := ctxlog.Logger(ctx).With("rank", w.rc.Rank)
	ctx = ctxlog.New(ctx, logger)

	defer w.conn.Close() //nolint:errcheck

	logger.Debug("worker started", "run", w.rc.RunID)

	for {
		env, err := w.conn.Recv(ctx)

		switch {
		case errors.Is(err, io.EOF):
			logger.Debug("coordinator closed the connection")
			return nil
		case err != nil:
			return fmt.Errorf("rank %d: %w", w.rc.Rank, err)
		}

		switch env.Kind {
		case protocol.KindStop:
			logger.Debug("stop received")
			return nil
		case protocol.KindAssign:
			reply := w.execute(ctx, env.Assignment)

			if err := ctx.Err(); err != nil {
				return err //nolint:wrapcheck
			}

			if err := w.conn.Send(ctx, protocol.Answer(reply)); err != nil {
				return fmt.Errorf("rank %d: sending reply for chain %d: %w", w.rc.Rank, reply.Chain, err)
			}
		default:
			logger.Warn("unexpected message, ignoring", "kind", env.Kind)
		}
	}
}

// execute runs every undone step of the assigned chain in order.
func (w *Worker) execute(ctx context.Context, a *protocol.Assignment) *protocol.Reply {
	reply := &protocol.Reply{
		Chain:     a.Chain,
		Tag:       a.Reply,
		Rank:      w.rc.Rank,
		Outputs:   make([]string, len(a.Commands)),
		Errors:    make([]string, len(a.Commands)),
		ExitCodes: make([]int, len(a.Commands)),
	}

	c, err := tasks.RestoreChain(a.Commands, a.Done)
	if err != nil {
		ctxlog.Error(ctx, "invalid assignment", "chain", a.Chain, "error", err)

		for i, done := range a.Done {
			if !done {
				reply.Errors[i] = "INVALID ASSIGNMENT: " + err.Error()
				reply.ExitCodes[i] = -1
			}
		}

		return reply
	}

	ctxlog.Debug(ctx, "running chain", "chain", a.Chain, "request", a.Request)

	if err := runSteps(ctx, c, w.exec); errors.Is(err, ErrChainInterrupted) {
		ctxlog.Warn(ctx, "chain interrupted, returning it undone", "chain", a.Chain, "error", err)

		reply.Interrupted = true
		reply.Done = c.DoneFlags()
	}

	stdout, stderr := c.Outputs()
	copy(reply.Outputs, stdout)
	copy(reply.Errors, stderr)
	copy(reply.ExitCodes, c.ExitCodes())

	return reply
}

// runSteps executes the undone steps of c in order. When a step is cut short
// by a signal it returns ErrChainInterrupted: that step and the ones after it
// stay undone, the steps that finished before it are marked done. A done
// context is returned as is and marks nothing.
func runSteps(ctx context.Context, c *tasks.Chain, exec tasks.Executor) error {
	var finished []*tasks.Task

	for t := range c.Undone() {
		t.Execute(ctx, exec)

		if err := ctx.Err(); err != nil {
			return err //nolint:wrapcheck
		}

		if t.Interrupted() {
			for _, f := range finished {
				f.MarkDone()
			}

			return fmt.Errorf("%w: %s", ErrChainInterrupted, t.Command())
		}

		finished = append(finished, t)
	}

	return nil
}
