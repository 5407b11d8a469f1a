// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package protocol

import (
	"fmt"
	"slices"
)

// Kind identifies the payload of an Envelope.
type Kind int

const (
	// KindAssign carries an Assignment from the coordinator.
	KindAssign Kind = iota + 1
	// KindReply carries a Reply from a worker.
	KindReply
	// KindStop asks a worker to exit.
	KindStop
)

// String implements fmt.Stringer.
func (k Kind) String() string {
	switch k {
	case KindAssign:
		return "assign"
	case KindReply:
		return "reply"
	case KindStop:
		return "stop"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Tags returns the request and reply tokens of assignment n.
func Tags(n uint64) (uint64, uint64) {
	return 2*n + 1, 2*n + 2 //nolint:mnd
}

// Assignment hands one chain to a worker.
type Assignment struct {
	Chain    int
	Request  uint64
	Reply    uint64
	Commands []string
	Done     []bool
}

// Reply returns a worker's result for one chain. Outputs, Errors and
// ExitCodes have one entry per step; steps that were already done are empty.
// An Interrupted reply is not a completion: Done holds the step flags the
// worker reached before a step was cut short by a signal.
type Reply struct {
	Chain       int
	Tag         uint64
	Rank        int
	Outputs     []string
	Errors      []string
	ExitCodes   []int
	Interrupted bool
	Done        []bool
}

// Envelope is the unit sent over a Conn.
type Envelope struct {
	Kind       Kind
	Assignment *Assignment
	Reply      *Reply
}

// Assign wraps a.
func Assign(a *Assignment) Envelope {
	return Envelope{Kind: KindAssign, Assignment: a}
}

// Answer wraps r.
func Answer(r *Reply) Envelope {
	return Envelope{Kind: KindReply, Reply: r}
}

// Stop returns a stop envelope.
func Stop() Envelope {
	return Envelope{Kind: KindStop}
}

// Validate checks that the payload matches the kind.
func (e Envelope) Validate() error {
	switch e.Kind {
	case KindAssign:
		if e.Assignment == nil {
			return fmt.Errorf("%w: %s without assignment", ErrInvalidMessage, e.Kind)
		}

		if len(e.Assignment.Commands) != len(e.Assignment.Done) {
			return fmt.Errorf("%w: %d commands, %d done flags",
				ErrInvalidMessage, len(e.Assignment.Commands), len(e.Assignment.Done))
		}
	case KindReply:
		if e.Reply == nil {
			return fmt.Errorf("%w: %s without reply", ErrInvalidMessage, e.Kind)
		}
	case KindStop:
	default:
		return fmt.Errorf("%w: %s", ErrInvalidMessage, e.Kind)
	}

	return nil
}

// clone deep copies the payload so the two ends never share slices.
func (e Envelope) clone() Envelope {
	out := Envelope{Kind: e.Kind}

	if e.Assignment != nil {
		a := *e.Assignment
		a.Commands = slices.Clone(a.Commands)
		a.Done = slices.Clone(a.Done)
		out.Assignment = &a
	}

	if e.Reply != nil {
		r := *e.Reply
		r.Outputs = slices.Clone(r.Outputs)
		r.Errors = slices.Clone(r.Errors)
		r.ExitCodes = slices.Clone(r.ExitCodes)
		r.Done = slices.Clone(r.Done)
		out.Reply = &r
	}

	return out
}
