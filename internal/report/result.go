// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package report

import (
	"encoding/gob"
	"errors"
	"io"
	"strings"

	"github.com/matt-FFFFFF/chainrun/internal/tasks"
)

var (
	// ErrWriteGob is returned when writing results in binary format fails.
	ErrWriteGob = errors.New("failed to write binary results")
	// ErrReadGob is returned when reading binary results fails.
	ErrReadGob = errors.New("failed to read binary results")
)

// Summary counts the chains of one run.
type Summary struct {
	Total          int
	PreviouslyDone int // Complete before this run started.
	Completed      int // Completed by this run.
	ErrorChains    int // Completed by this run with output on stderr.
}

// Remaining returns the number of chains still undone.
func (s Summary) Remaining() int {
	return s.Total - s.PreviouslyDone - s.Completed
}

// ChainResult is the captured state of one chain.
type ChainResult struct {
	Index     int
	Commands  []string
	Done      []bool
	Stdout    []string
	Stderr    []string
	ExitCodes []int
	Rank      int // Worker that ran the chain.
}

// FromChain captures chain i.
func FromChain(i int, c *tasks.Chain, rank int) ChainResult {
	stdout, stderr := c.Outputs()

	return ChainResult{
		Index:     i,
		Commands:  c.Commands(),
		Done:      c.DoneFlags(),
		Stdout:    stdout,
		Stderr:    stderr,
		ExitCodes: c.ExitCodes(),
		Rank:      rank,
	}
}

// HasErrors reports whether any step wrote to stderr.
func (r ChainResult) HasErrors() bool {
	for _, s := range r.Stderr {
		if s != "" {
			return true
		}
	}

	return false
}

// String joins the commands with the chain delimiter.
func (r ChainResult) String() string {
	return strings.Join(r.Commands, tasks.JoinDelimiter)
}

// Results is everything saved from a run.
type Results struct {
	RunID   string
	Summary Summary
	Chains  []ChainResult
}

// WriteBinary gob-encodes the results.
func (r *Results) WriteBinary(w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(r); err != nil {
		return errors.Join(ErrWriteGob, err)
	}

	return nil
}

// ReadBinary decodes results written by WriteBinary.
func ReadBinary(r io.Reader) (*Results, error) {
	res := new(Results)
	if err := gob.NewDecoder(r).Decode(res); err != nil {
		return nil, errors.Join(ErrReadGob, err)
	}

	return res, nil
}
