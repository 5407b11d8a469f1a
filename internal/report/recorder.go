// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package report

import (
	"context"
	"io"
	"sync"

	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/tasks"
)

// Recorder collects chain results as they complete and, when it has a
// writer, prints each one straight away.
type Recorder struct {
	w       io.Writer
	options *OutputOptions
	mu      sync.Mutex
	chains  []ChainResult
}

// NewRecorder returns a Recorder printing to w. A nil w only collects.
func NewRecorder(w io.Writer, options *OutputOptions) *Recorder {
	if options == nil {
		options = DefaultOutputOptions()
	}

	return &Recorder{w: w, options: options}
}

// Record captures chain i, finished by the worker with the given rank.
// Write failures are logged; they never stop the run.
func (r *Recorder) Record(ctx context.Context, i int, c *tasks.Chain, rank int) {
	res := FromChain(i, c, rank)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.chains = append(r.chains, res)

	if r.w == nil {
		return
	}

	if err := WriteChain(r.w, res, r.options); err != nil {
		ctxlog.Warn(ctx, "could not write chain result", "chain", i, "error", err)
	}
}

// Results returns everything recorded, in completion order.
func (r *Recorder) Results(runID string, s Summary) *Results {
	r.mu.Lock()
	defer r.mu.Unlock()

	chains := make([]ChainResult, len(r.chains))
	copy(chains, r.chains)

	return &Results{RunID: runID, Summary: s, Chains: chains}
}
