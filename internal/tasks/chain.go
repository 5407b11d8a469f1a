// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tasks

import (
	"errors"
	"fmt"
	"iter"
	"strings"
)

const (
	// Delimiter separates the steps of a chain definition.
	Delimiter = "&&&"
	// JoinDelimiter is the delimiter as written back out.
	JoinDelimiter = " " + Delimiter + " "
	// UndoneSentinel stands for a chain with no completed steps.
	UndoneSentinel = "#undone"
	// CommentPrefix starts an ignored line in a task file.
	CommentPrefix = "#"
)

var (
	// ErrEmptyChain is returned when a chain has no steps.
	ErrEmptyChain = errors.New("chain has no steps")
	// ErrEmptyStep is returned when a step between delimiters is blank.
	ErrEmptyStep = errors.New("chain contains an empty step")
	// ErrLengthMismatch is returned when parallel slices describing a chain differ in length.
	ErrLengthMismatch = errors.New("length mismatch")
)

// Chain is an ordered sequence of tasks run one after the other.
type Chain struct {
	tasks []*Task
}

// ParseChain splits a definition line on the delimiter.
func ParseChain(line string) (*Chain, error) {
	return NewChain(strings.Split(line, Delimiter)...)
}

// NewChain builds an undone chain from commands.
func NewChain(commands ...string) (*Chain, error) {
	if len(commands) == 0 {
		return nil, ErrEmptyChain
	}

	c := &Chain{tasks: make([]*Task, len(commands))}

	for i, cmd := range commands {
		t := NewTask(cmd)
		if t.Command() == "" {
			return nil, fmt.Errorf("%w: step %d", ErrEmptyStep, i+1)
		}

		c.tasks[i] = t
	}

	return c, nil
}

// RestoreChain rebuilds a chain from commands and their done flags.
func RestoreChain(commands []string, done []bool) (*Chain, error) {
	if len(commands) != len(done) {
		return nil, fmt.Errorf("%w: %d commands, %d done flags", ErrLengthMismatch, len(commands), len(done))
	}

	c, err := NewChain(commands...)
	if err != nil {
		return nil, err
	}

	for i, d := range done {
		if d {
			c.tasks[i].MarkDone()
		}
	}

	return c, nil
}

// Len returns the number of steps.
func (c *Chain) Len() int {
	return len(c.tasks)
}

// Tasks returns the steps in order. The slice is a copy; the tasks are shared.
func (c *Chain) Tasks() []*Task {
	out := make([]*Task, len(c.tasks))
	copy(out, c.tasks)

	return out
}

// Commands returns a fresh slice of the step commands.
func (c *Chain) Commands() []string {
	out := make([]string, len(c.tasks))
	for i, t := range c.tasks {
		out[i] = t.Command()
	}

	return out
}

// DoneFlags returns a fresh slice of the step done flags.
func (c *Chain) DoneFlags() []bool {
	out := make([]bool, len(c.tasks))
	for i, t := range c.tasks {
		out[i] = t.Done()
	}

	return out
}

// Done reports whether every step is done.
func (c *Chain) Done() bool {
	return !c.HasUndoneTask()
}

// HasUndoneTask reports whether any step is undone.
func (c *Chain) HasUndoneTask() bool {
	for _, t := range c.tasks {
		if !t.Done() {
			return true
		}
	}

	return false
}

// Undone yields the undone steps in order. Each range re-evaluates the flags.
func (c *Chain) Undone() iter.Seq[*Task] {
	return func(yield func(*Task) bool) {
		for _, t := range c.tasks {
			if t.Done() {
				continue
			}

			if !yield(t) {
				return
			}
		}
	}
}

// MarkAllDone marks every undone step done and returns how many changed.
func (c *Chain) MarkAllDone() int {
	n := 0

	for _, t := range c.tasks {
		if t.MarkDone() {
			n++
		}
	}

	return n
}

// DoneString joins the completed steps, or returns UndoneSentinel when there are none.
func (c *Chain) DoneString() string {
	done := make([]string, 0, len(c.tasks))

	for _, t := range c.tasks {
		if t.Done() {
			done = append(done, t.Command())
		}
	}

	if len(done) == 0 {
		return UndoneSentinel
	}

	return strings.Join(done, JoinDelimiter)
}

// String joins every step.
func (c *Chain) String() string {
	return strings.Join(c.Commands(), JoinDelimiter)
}

// Reconcile marks steps done from a recorded completed prefix. Matching is
// positional and stops at the first step whose command differs. A prefix
// longer than the chain is only matched up to the chain length.
// It returns the number of steps that changed to done.
func (c *Chain) Reconcile(prefix []string) int {
	n := 0

	for i, cmd := range prefix {
		if i >= len(c.tasks) {
			break
		}

		if !c.tasks[i].Equal(NewTask(cmd)) {
			break
		}

		if c.tasks[i].MarkDone() {
			n++
		}
	}

	return n
}

// Record stores per-step output for the steps that are still undone.
// stdout and stderr must match the chain length; exitCodes may be nil.
func (c *Chain) Record(stdout, stderr []string, exitCodes []int) error {
	if len(stdout) != len(c.tasks) || len(stderr) != len(c.tasks) ||
		(exitCodes != nil && len(exitCodes) != len(c.tasks)) {
		return fmt.Errorf("%w: chain has %d steps, got %d outputs, %d errors and %d exit codes",
			ErrLengthMismatch, len(c.tasks), len(stdout), len(stderr), len(exitCodes))
	}

	for i, t := range c.tasks {
		if t.Done() {
			continue
		}

		t.Record(stdout[i], stderr[i])

		if exitCodes != nil {
			t.exitCode = exitCodes[i]
		}
	}

	return nil
}

// ExitCodes returns the exit status of every step.
func (c *Chain) ExitCodes() []int {
	out := make([]int, len(c.tasks))
	for i, t := range c.tasks {
		out[i] = t.ExitCode()
	}

	return out
}

// Outputs returns the captured stdout and stderr of every step.
func (c *Chain) Outputs() ([]string, []string) {
	stdout := make([]string, len(c.tasks))
	stderr := make([]string, len(c.tasks))

	for i, t := range c.tasks {
		stdout[i] = t.Stdout()
		stderr[i] = t.Stderr()
	}

	return stdout, stderr
}

// HasErrors reports whether any step wrote to stderr.
func (c *Chain) HasErrors() bool {
	for _, t := range c.tasks {
		if t.Stderr() != "" {
			return true
		}
	}

	return false
}
