// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/matt-FFFFFF/chainrun/internal/shellexec"
	"github.com/stretchr/testify/assert"
)

func TestNewTask_Trims(t *testing.T) {
	task := NewTask("  echo a \t")
	assert.Equal(t, "echo a", task.Command())
	assert.False(t, task.Done())
	assert.False(t, task.Attempted())
}

func TestTask_MarkDoneOnce(t *testing.T) {
	task := NewTask("true")
	assert.True(t, task.MarkDone())
	assert.False(t, task.MarkDone())
	assert.True(t, task.Done())
}

func TestTask_Equal(t *testing.T) {
	a := NewTask("echo a")
	b := NewTask(" echo a ")
	b.MarkDone()

	assert.True(t, a.Equal(b), "done state must not affect equality")
	assert.False(t, a.Equal(NewTask("echo b")))
	assert.False(t, a.Equal(nil))
}

func TestTask_Execute(t *testing.T) {
	var got string

	ex := ExecutorFunc(func(_ context.Context, command string) shellexec.Outcome {
		got = command

		return shellexec.Outcome{
			Command:  command,
			Stdout:   []byte("hi\n"),
			ExitCode: 2,
			LastLine: "hi",
		}
	})

	task := NewTask("echo hi")
	task.Execute(t.Context(), ex)

	assert.Equal(t, "echo hi", got)
	assert.Equal(t, "hi\n", task.Stdout())
	assert.Empty(t, task.Stderr())
	assert.Equal(t, 2, task.ExitCode())
	assert.Equal(t, "hi", task.LastLine())
	assert.True(t, task.Attempted())
	assert.False(t, task.Done(), "execution must not mark the task done")
	assert.False(t, task.Interrupted())
}

func TestTask_ExecuteFaultBecomesStderr(t *testing.T) {
	ex := ExecutorFunc(func(_ context.Context, command string) shellexec.Outcome {
		return shellexec.Outcome{
			Command:  command,
			ExitCode: -1,
			Faults:   []*shellexec.Fault{{Kind: shellexec.FaultLaunch, Err: errors.New("no shell")}},
		}
	})

	task := NewTask("boom")
	task.Execute(t.Context(), ex)

	assert.Empty(t, task.Stdout())
	assert.Contains(t, task.Stderr(), "UNKNOWN ERROR EXECUTING CMD: boom")
	assert.False(t, task.Interrupted(), "a launch failure is not an interruption")
}

func TestTask_ExecuteInterrupted(t *testing.T) {
	ex := ExecutorFunc(func(_ context.Context, command string) shellexec.Outcome {
		return shellexec.Outcome{
			Command:  command,
			ExitCode: -1,
			Faults:   []*shellexec.Fault{{Kind: shellexec.FaultInterrupted, Err: shellexec.ErrSignalReceived}},
		}
	})

	task := NewTask("sleep 3")
	task.Execute(t.Context(), ex)

	assert.True(t, task.Interrupted())
	assert.Contains(t, task.Stderr(), "COMMAND INTERRUPTED: sleep 3")
	assert.False(t, task.Done())
}
