// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/chainrun/internal/protocol"
	"github.com/matt-FFFFFF/chainrun/internal/tasks"
)

// Pool starts the worker ranks of a run.
type Pool interface {
	// Start launches ranks 1 to rc.Size-1 and returns the coordinator's
	// connection to each, in rank order.
	Start(ctx context.Context, rc RunContext) ([]protocol.Conn, error)
	// Wait blocks until every worker has exited.
	Wait() error
}

var _ Pool = (*LocalPool)(nil)

// LocalPool runs workers as goroutines connected by in-memory pipes.
type LocalPool struct {
	exec tasks.Executor
	wg   sync.WaitGroup
	mu   sync.Mutex
	errs error
}

// NewLocalPool returns a pool whose workers run commands with exec.
func NewLocalPool(exec tasks.Executor) *LocalPool {
	return &LocalPool{exec: exec}
}

// Start implements Pool.
func (p *LocalPool) Start(ctx context.Context, rc RunContext) ([]protocol.Conn, error) {
	conns := make([]protocol.Conn, 0, rc.Workers())

	for rank := 1; rank < rc.Size; rank++ {
		coord, worker := protocol.Pipe()
		conns = append(conns, coord)

		w := NewWorker(rc.WithRank(rank), worker, p.exec)

		p.wg.Add(1)

		go func() {
			defer p.wg.Done()

			if err := w.Run(ctx); err != nil {
				p.mu.Lock()
				p.errs = multierror.Append(p.errs, err)
				p.mu.Unlock()
			}
		}()
	}

	return conns, nil
}

// Wait implements Pool.
func (p *LocalPool) Wait() error {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()

	return p.errs
}
