// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"testing"

	"github.com/matt-FFFFFF/chainrun/internal/checkpoint"
	"github.com/matt-FFFFFF/chainrun/internal/report"
	"github.com/matt-FFFFFF/chainrun/internal/shellexec"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerialRunner_RunsInOrder(t *testing.T) {
	ex := newFakeExec(0)
	set := newSet(t, "echo a &&& echo b\nfail c\necho d\n")
	fs, store := newStore(t, checkpoint.WithRetain(1))
	rec := report.NewRecorder(nil, nil)

	summary, err := NewSerialRunner(testRunContext(1), set, ex, WithStore(store), WithRecorder(rec)).Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"echo a", "echo b", "fail c", "echo d"}, ex.commands())
	assert.Equal(t, report.Summary{Total: 3, Completed: 3, ErrorChains: 1}, summary)

	res := rec.Results("run", summary)
	require.Len(t, res.Chains, 3)

	for i, c := range res.Chains {
		assert.Equal(t, i, c.Index)
		assert.Zero(t, c.Rank)
	}

	files, err := afero.ReadDir(fs, testDir)
	require.NoError(t, err)

	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name())
	}

	assert.ElementsMatch(t, []string{"run_chk000003", "run_finished"}, names)
}

func TestSerialRunner_Resume(t *testing.T) {
	ex := newFakeExec(0)
	set := newSet(t, "echo a &&& echo b\necho c\n")
	set.Reconcile([][]string{{"echo a"}, nil})

	summary, err := NewSerialRunner(testRunContext(1), set, ex).Run(t.Context())
	require.NoError(t, err)

	assert.Equal(t, []string{"echo b", "echo c"}, ex.commands())
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 0, summary.PreviouslyDone)
}

func TestSerialRunner_CancelLeavesChainUndone(t *testing.T) {
	ex := newFakeExec(0)
	set := newSet(t, "echo a\nblock b &&& echo c\necho d\n")
	fs, store := newStore(t)

	ctx, cancel := context.WithCancel(t.Context())

	wrapped := &cancelOnExec{fakeExec: ex, hook: func(_ context.Context, cmd string) {
		if cmd == "block b" {
			cancel()
		}
	}}

	_, err := NewSerialRunner(testRunContext(1), set, wrapped, WithStore(store)).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, set.Completed())
	assert.Equal(t, []string{"echo a", "block b"}, ex.commands())

	ok, err := afero.Exists(fs, store.FinishPath())
	require.NoError(t, err)
	assert.False(t, ok)

	snap, err := checkpoint.Load(fs, checkpoint.Path(testBase, 1))
	require.NoError(t, err)
	assert.Equal(t, []string{"echo a", "#undone", "#undone"}, snap.Lines)
}

// cancelOnExec calls hook before delegating each command.
type cancelOnExec struct {
	*fakeExec
	hook func(ctx context.Context, cmd string)
}

func (c *cancelOnExec) Execute(ctx context.Context, cmd string) shellexec.Outcome {
	c.hook(ctx, cmd)
	return c.fakeExec.Execute(ctx, cmd)
}

func TestSerialRunner_SignalledStepStaysUndone(t *testing.T) {
	ex := newFakeExec(0)
	set := newSet(t, "echo a &&& interrupt b &&& echo c\necho d\n")
	fs, store := newStore(t)

	summary, err := NewSerialRunner(testRunContext(1), set, ex, WithStore(store)).Run(t.Context())
	require.ErrorIs(t, err, ErrChainInterrupted)

	assert.Equal(t, []string{"echo a", "interrupt b"}, ex.commands(), "nothing runs after the interrupted step")
	assert.Zero(t, summary.Completed)
	assert.False(t, set.Finished())

	c, err := set.Chain(0)
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, c.DoneFlags())

	snap, err := checkpoint.Load(fs, checkpoint.Path(testBase, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, snap.Completed)
	assert.Equal(t, []string{"echo a", "#undone"}, snap.Lines)

	ok, err := afero.Exists(fs, store.FinishPath())
	require.NoError(t, err)
	assert.False(t, ok)

	// Resuming from the snapshot runs the step again; this time it succeeds.
	resumed := newSet(t, "echo a &&& echo b &&& echo c\necho d\n")
	resumed.Reconcile(snap.Prefixes())

	again := newFakeExec(0)
	summary, err = NewSerialRunner(testRunContext(1), resumed, again).Run(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{"echo b", "echo c", "echo d"}, again.commands())
	assert.Equal(t, 2, summary.Completed)
}
