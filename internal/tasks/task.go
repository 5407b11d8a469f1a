// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tasks

import (
	"context"
	"strings"

	"github.com/matt-FFFFFF/chainrun/internal/shellexec"
)

// Executor runs a single command line.
type Executor interface {
	Execute(ctx context.Context, command string) shellexec.Outcome
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, command string) shellexec.Outcome

// Execute implements Executor.
func (f ExecutorFunc) Execute(ctx context.Context, command string) shellexec.Outcome {
	return f(ctx, command)
}

// Task is a single command with its completion state and captured output.
type Task struct {
	command     string
	done        bool
	attempted   bool
	stdout      string
	stderr      string
	exitCode    int
	lastLine    string
	interrupted bool
}

// NewTask returns an undone task. Surrounding whitespace is trimmed from command.
func NewTask(command string) *Task {
	return &Task{command: strings.TrimSpace(command)}
}

// Command returns the command line.
func (t *Task) Command() string {
	return t.command
}

// Done reports whether the task is complete.
func (t *Task) Done() bool {
	return t.done
}

// MarkDone marks the task complete and reports whether it was undone before.
func (t *Task) MarkDone() bool {
	if t.done {
		return false
	}

	t.done = true

	return true
}

// Attempted reports whether the task has been executed or had output recorded.
func (t *Task) Attempted() bool {
	return t.attempted
}

// Stdout returns the captured standard output.
func (t *Task) Stdout() string {
	return t.stdout
}

// Stderr returns the captured standard error, including fault diagnostics.
func (t *Task) Stderr() string {
	return t.stderr
}

// ExitCode returns the exit status of the last execution, -1 if it did not exit normally.
func (t *Task) ExitCode() int {
	return t.exitCode
}

// LastLine returns the last complete line the command wrote to stdout.
func (t *Task) LastLine() string {
	return t.lastLine
}

// Interrupted reports whether the last execution was cut short by a signal or
// cancellation. Such a step must run again.
func (t *Task) Interrupted() bool {
	return t.interrupted
}

// Equal compares command strings only.
func (t *Task) Equal(other *Task) bool {
	if t == nil || other == nil {
		return t == other
	}

	return t.command == other.command
}

// Execute runs the command and stores its output. It does not mark the task done.
func (t *Task) Execute(ctx context.Context, ex Executor) {
	out := ex.Execute(ctx, t.command)
	stdout, stderr := out.Text()

	t.Record(stdout, stderr)
	t.exitCode = out.ExitCode
	t.lastLine = out.LastLine
	t.interrupted = out.Interrupted()
}

// Record stores output captured elsewhere, such as on a remote worker.
func (t *Task) Record(stdout, stderr string) {
	t.stdout = stdout
	t.stderr = stderr
	t.attempted = true
}
