// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tasks

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrChainIndex is returned for an index outside the set.
	ErrChainIndex = errors.New("chain index out of range")
	// ErrChainAlreadyDone is returned when a completed chain is completed again.
	ErrChainAlreadyDone = errors.New("chain already done")
)

// Set is the fixed, ordered collection of chains for one run.
type Set struct {
	chains []*Chain
}

// NewSet wraps chains. The slice is copied so membership cannot change.
func NewSet(chains []*Chain) *Set {
	s := &Set{chains: make([]*Chain, len(chains))}
	copy(s.chains, chains)

	return s
}

// ReadSet parses a task file: one chain per line, blank lines and lines
// starting with CommentPrefix ignored. Every malformed line is reported.
func ReadSet(r io.Reader) (*Set, error) {
	var (
		chains []*Chain
		result error
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024) //nolint:mnd

	lineNo := 0

	for sc.Scan() {
		lineNo++

		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, CommentPrefix) {
			continue
		}

		c, err := ParseChain(line)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("line %d: %w", lineNo, err))
			continue
		}

		chains = append(chains, c)
	}

	if err := sc.Err(); err != nil {
		result = multierror.Append(result, fmt.Errorf("reading task file: %w", err))
	}

	if result != nil {
		return nil, result
	}

	return NewSet(chains), nil
}

// Total returns the number of chains.
func (s *Set) Total() int {
	return len(s.chains)
}

// Completed returns the number of chains with every step done.
func (s *Set) Completed() int {
	n := 0

	for _, c := range s.chains {
		if c.Done() {
			n++
		}
	}

	return n
}

// Finished reports whether every chain is done.
func (s *Set) Finished() bool {
	return s.Completed() == s.Total()
}

// Chain returns the chain at index i.
func (s *Set) Chain(i int) (*Chain, error) {
	if i < 0 || i >= len(s.chains) {
		return nil, fmt.Errorf("%w: %d of %d", ErrChainIndex, i, len(s.chains))
	}

	return s.chains[i], nil
}

// All yields every chain with its index in definition order.
func (s *Set) All() iter.Seq2[int, *Chain] {
	return func(yield func(int, *Chain) bool) {
		for i, c := range s.chains {
			if !yield(i, c) {
				return
			}
		}
	}
}

// Undone yields chains with at least one undone step, in definition order.
func (s *Set) Undone() iter.Seq2[int, *Chain] {
	return func(yield func(int, *Chain) bool) {
		for i, c := range s.chains {
			if !c.HasUndoneTask() {
				continue
			}

			if !yield(i, c) {
				return
			}
		}
	}
}

// MarkChainDone marks every remaining step of chain i done.
func (s *Set) MarkChainDone(i int) error {
	c, err := s.Chain(i)
	if err != nil {
		return err
	}

	if c.MarkAllDone() == 0 {
		return fmt.Errorf("%w: %d", ErrChainAlreadyDone, i)
	}

	return nil
}

// Reconcile applies checkpoint prefixes chain by chain. A nil prefix leaves the
// chain untouched. Only the first min(len(prefixes), Total()) chains are
// considered. It returns the number of steps marked done.
func (s *Set) Reconcile(prefixes [][]string) int {
	n := 0

	for i, p := range prefixes {
		if i >= len(s.chains) {
			break
		}

		n += s.chains[i].Reconcile(p)
	}

	return n
}
