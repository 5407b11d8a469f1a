// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/progress"
	"github.com/matt-FFFFFF/chainrun/internal/protocol"
	"github.com/matt-FFFFFF/chainrun/internal/report"
	"github.com/matt-FFFFFF/chainrun/internal/tasks"
)

var (
	// ErrWorkerLost is returned when a worker connection ends while it holds a chain.
	ErrWorkerLost = errors.New("worker lost")
	// ErrNoWorkers is returned when chains remain but no worker is available.
	ErrNoWorkers = errors.New("no workers available")
	// ErrChainInterrupted is returned when a step was cut short by a signal.
	// The chain stays undone so a resume runs that step again.
	ErrChainInterrupted = errors.New("chain interrupted")
)

type state int

const (
	stateAssigning state = iota
	stateWaiting
	stateDraining
	stateDone
)

// inbound is a message or a terminal error from one worker connection.
type inbound struct {
	rank int
	env  protocol.Envelope
	err  error
}

// assignment is a chain in flight.
type assignment struct {
	chain int
	rank  int
}

// Scheduler is the coordinator: it assigns undone chains to idle workers
// and applies their replies.
type Scheduler struct {
	rc     RunContext
	set    *tasks.Set
	conns  map[int]protocol.Conn // by rank
	ledger *ledger

	queue       []int
	idle        []int
	outstanding map[uint64]assignment // by reply token
	counter     uint64
	gone        map[int]struct{} // ranks whose connection has ended
	live        int              // connections whose reader has not ended
	interrupted int              // chains returned undone after a signal
}

// NewScheduler returns a scheduler for set. conns[k] is the connection to rank k+1.
func NewScheduler(rc RunContext, set *tasks.Set, conns []protocol.Conn, opts ...Option) *Scheduler {
	s := &Scheduler{
		rc:          rc,
		set:         set,
		conns:       make(map[int]protocol.Conn, len(conns)),
		ledger:      newLedger(set, opts),
		outstanding: make(map[uint64]assignment),
		gone:        make(map[int]struct{}),
	}

	for k, c := range conns {
		s.conns[k+1] = c
	}

	return s
}

// Run drives the set to completion. It returns when every chain is done and
// every worker has stopped, or on the first error. Connections are always
// closed before Run returns.
func (s *Scheduler) Run(ctx context.Context) (report.Summary, error) {
	logger := ctxlog.Logger(ctx).With("run", s.rc.RunID)
	ctx = ctxlog.New(ctx, logger)

	for i := range s.set.Undone() {
		s.queue = append(s.queue, i)
	}

	s.idle = slices.Sorted(maps.Keys(s.conns))

	s.ledger.start(len(s.conns))

	logger.Info("scheduler started",
		"workers", len(s.conns), "queued", len(s.queue), "total", s.set.Total(), "previouslyDone", s.ledger.summary.PreviouslyDone)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	replies := make(chan inbound)

	var wg sync.WaitGroup

	for rank, conn := range s.conns {
		wg.Add(1)
		s.live++

		go func() {
			defer wg.Done()
			readLoop(runCtx, rank, conn, replies)
		}()
	}

	err := s.loop(ctx, replies)

	cancel()
	s.closeAll(ctx)
	wg.Wait()

	return s.ledger.summary, s.ledger.finish(ctx, err)
}

func (s *Scheduler) loop(ctx context.Context, replies <-chan inbound) error {
	st := stateAssigning

	for st != stateDone {
		switch st {
		case stateAssigning:
			// Once a chain has been interrupted no new work goes out.
			if s.interrupted == 0 {
				if err := s.assign(ctx); err != nil {
					return err
				}
			}

			switch {
			case len(s.outstanding) > 0:
				st = stateWaiting
			case s.interrupted > 0:
				st = stateDraining
			case len(s.queue) > 0:
				return fmt.Errorf("%w: %d chains left", ErrNoWorkers, len(s.queue))
			default:
				st = stateDraining
			}

		case stateWaiting:
			select {
			case in := <-replies:
				if err := s.handle(ctx, in); err != nil {
					return err
				}
			case <-ctx.Done():
				return ctx.Err() //nolint:wrapcheck
			}

			st = stateAssigning

		case stateDraining:
			if err := s.drain(ctx, replies); err != nil {
				return err
			}

			st = stateDone
		}
	}

	if s.interrupted > 0 {
		return fmt.Errorf("%w: %d chains interrupted, %d of %d done",
			ErrChainInterrupted, s.interrupted, s.set.Completed(), s.set.Total())
	}

	return nil
}

// assign hands queued chains to idle workers.
func (s *Scheduler) assign(ctx context.Context) error {
	for len(s.idle) > 0 && len(s.queue) > 0 {
		rank := s.idle[0]
		i := s.queue[0]

		c, err := s.set.Chain(i)
		if err != nil {
			return err //nolint:wrapcheck
		}

		req, rep := protocol.Tags(s.counter)

		a := &protocol.Assignment{
			Chain:    i,
			Request:  req,
			Reply:    rep,
			Commands: c.Commands(),
			Done:     c.DoneFlags(),
		}

		if err := s.conns[rank].Send(ctx, protocol.Assign(a)); err != nil {
			if ctx.Err() != nil {
				return ctx.Err() //nolint:wrapcheck
			}

			// The chain stays at the head of the queue for the next idle worker.
			// Closing the connection makes its reader report the end.
			ctxlog.Warn(ctx, "could not assign to worker, dropping it", "rank", rank, "chain", i, "error", err)

			s.gone[rank] = struct{}{}
			s.idle = s.idle[1:]
			_ = s.conns[rank].Close()

			continue
		}

		s.counter++
		s.idle = s.idle[1:]
		s.queue = s.queue[1:]
		s.outstanding[rep] = assignment{chain: i, rank: rank}

		ctxlog.Debug(ctx, "chain assigned", "chain", i, "rank", rank, "request", req, "reply", rep)
		s.ledger.assigned(i, rank, c)
	}

	return nil
}

func (s *Scheduler) handle(ctx context.Context, in inbound) error {
	if in.err != nil {
		return s.lost(ctx, in)
	}

	if in.env.Kind != protocol.KindReply {
		ctxlog.Warn(ctx, "unexpected message from worker, ignoring", "rank", in.rank, "kind", in.env.Kind)
		return nil
	}

	r := in.env.Reply

	a, ok := s.outstanding[r.Tag]
	if !ok {
		ctxlog.Warn(ctx, "reply with unknown token, ignoring", "rank", in.rank, "tag", r.Tag, "chain", r.Chain)
		return nil
	}

	if a.rank != in.rank || a.chain != r.Chain {
		ctxlog.Warn(ctx, "reply does not match its assignment, ignoring",
			"rank", in.rank, "tag", r.Tag, "chain", r.Chain, "assignedRank", a.rank, "assignedChain", a.chain)

		return nil
	}

	delete(s.outstanding, r.Tag)
	s.idle = append(s.idle, in.rank)

	c, err := s.set.Chain(a.chain)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if err := c.Record(r.Outputs, r.Errors, r.ExitCodes); err != nil {
		return fmt.Errorf("reply for chain %d from rank %d: %w", a.chain, in.rank, err)
	}

	if r.Interrupted {
		s.interrupted++
		c.Reconcile(donePrefix(c.Commands(), r.Done))

		return s.ledger.interrupted(ctx, a.chain, in.rank)
	}

	return s.ledger.complete(ctx, a.chain, in.rank)
}

// donePrefix returns the commands of the leading done steps.
func donePrefix(commands []string, done []bool) []string {
	n := 0
	for n < len(commands) && n < len(done) && done[n] {
		n++
	}

	return commands[:n]
}

// lost handles a connection that ended outside the drain phase.
func (s *Scheduler) lost(ctx context.Context, in inbound) error {
	s.live--

	if _, dropped := s.gone[in.rank]; dropped {
		return nil
	}

	s.gone[in.rank] = struct{}{}

	if ctx.Err() != nil {
		return ctx.Err() //nolint:wrapcheck
	}

	for tag, a := range s.outstanding {
		if a.rank == in.rank {
			return fmt.Errorf("%w: rank %d holding chain %d (tag %d): %w", ErrWorkerLost, in.rank, a.chain, tag, in.err)
		}
	}

	ctxlog.Warn(ctx, "idle worker disconnected", "rank", in.rank, "error", in.err)

	s.idle = slices.DeleteFunc(s.idle, func(r int) bool { return r == in.rank })

	return nil
}

// drain stops every worker and waits for their connections to end.
func (s *Scheduler) drain(ctx context.Context, replies <-chan inbound) error {
	ctxlog.Debug(ctx, "stopping workers", "workers", s.live)
	s.ledger.reporter.Report(progress.Event{Type: progress.EventDraining, Chain: -1})

	for rank, conn := range s.conns {
		if _, gone := s.gone[rank]; gone {
			continue
		}

		if err := conn.Send(ctx, protocol.Stop()); err != nil {
			ctxlog.Debug(ctx, "could not send stop", "rank", rank, "error", err)
		}
	}

	for s.live > 0 {
		select {
		case in := <-replies:
			if in.err != nil {
				s.live--
				continue
			}

			ctxlog.Warn(ctx, "message after stop, ignoring", "rank", in.rank, "kind", in.env.Kind)
		case <-ctx.Done():
			return ctx.Err() //nolint:wrapcheck
		}
	}

	return nil
}

func (s *Scheduler) closeAll(ctx context.Context) {
	for rank, conn := range s.conns {
		if err := conn.Close(); err != nil {
			ctxlog.Debug(ctx, "error closing connection", "rank", rank, "error", err)
		}
	}
}

// readLoop forwards everything received on conn until the first error, which is forwarded too.
func readLoop(ctx context.Context, rank int, conn protocol.Conn, out chan<- inbound) {
	for {
		env, err := conn.Recv(ctx)

		select {
		case out <- inbound{rank: rank, env: env, err: err}:
		case <-ctx.Done():
			return
		}

		if err != nil {
			return
		}
	}
}
