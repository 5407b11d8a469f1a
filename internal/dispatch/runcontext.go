// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidRunContext is returned for a rank outside the run size.
var ErrInvalidRunContext = errors.New("invalid run context")

// RunContext identifies one process or goroutine within a run.
type RunContext struct {
	RunID string
	Rank  int
	Size  int
}

// NewRunContext returns the coordinator context of a new run of size ranks.
func NewRunContext(size int) RunContext {
	return RunContext{
		RunID: uuid.NewString(),
		Rank:  0,
		Size:  size,
	}
}

// WithRank returns a copy for another member of the same run.
func (rc RunContext) WithRank(rank int) RunContext {
	rc.Rank = rank
	return rc
}

// Coordinator reports whether this is rank 0.
func (rc RunContext) Coordinator() bool {
	return rc.Rank == 0
}

// Workers returns the number of worker ranks.
func (rc RunContext) Workers() int {
	return max(rc.Size-1, 0)
}

// Validate checks that the rank lies within the run.
func (rc RunContext) Validate() error {
	if rc.Size < 1 || rc.Rank < 0 || rc.Rank >= rc.Size {
		return fmt.Errorf("%w: rank %d of size %d", ErrInvalidRunContext, rc.Rank, rc.Size)
	}

	if rc.RunID == "" {
		return fmt.Errorf("%w: empty run id", ErrInvalidRunContext)
	}

	return nil
}

// String implements fmt.Stringer.
func (rc RunContext) String() string {
	return fmt.Sprintf("%s[%d/%d]", rc.RunID, rc.Rank, rc.Size)
}
