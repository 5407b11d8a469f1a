// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"testing"

	"github.com/matt-FFFFFF/chainrun/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startWorker runs a worker on one end of a pipe and returns the other end.
func startWorker(t *testing.T, ex *fakeExec) (protocol.Conn, <-chan error) {
	t.Helper()

	coord, conn := protocol.Pipe()
	errCh := make(chan error, 1)

	go func() {
		errCh <- NewWorker(testRunContext(2).WithRank(1), conn, ex).Run(t.Context())
	}()

	return coord, errCh
}

func TestWorker_RunsUndoneSteps(t *testing.T) {
	ex := newFakeExec(0)
	coord, errCh := startWorker(t, ex)

	a := &protocol.Assignment{
		Chain:    4,
		Request:  9,
		Reply:    10,
		Commands: []string{"echo a", "echo b", "fail c"},
		Done:     []bool{true, false, false},
	}

	require.NoError(t, coord.Send(t.Context(), protocol.Assign(a)))

	env, err := coord.Recv(t.Context())
	require.NoError(t, err)
	require.Equal(t, protocol.KindReply, env.Kind)

	r := env.Reply
	assert.Equal(t, 4, r.Chain)
	assert.Equal(t, uint64(10), r.Tag)
	assert.Equal(t, 1, r.Rank)
	assert.Equal(t, []string{"", "ran: echo b\n", "ran: fail c\n"}, r.Outputs)
	assert.Equal(t, []string{"", "", "failed: fail c\n"}, r.Errors)
	assert.Equal(t, []int{0, 0, 1}, r.ExitCodes)
	assert.Equal(t, []string{"echo b", "fail c"}, ex.commands())
	assert.False(t, r.Interrupted)
	assert.Nil(t, r.Done)

	require.NoError(t, coord.Send(t.Context(), protocol.Stop()))
	require.NoError(t, <-errCh)
	require.NoError(t, coord.Close())
}

func TestWorker_InvalidAssignment(t *testing.T) {
	ex := newFakeExec(0)
	coord, errCh := startWorker(t, ex)

	a := &protocol.Assignment{
		Chain:    0,
		Reply:    2,
		Commands: []string{"echo a", ""},
		Done:     []bool{false, false},
	}

	require.NoError(t, coord.Send(t.Context(), protocol.Assign(a)))

	env, err := coord.Recv(t.Context())
	require.NoError(t, err)

	for i := range a.Commands {
		assert.Contains(t, env.Reply.Errors[i], "INVALID ASSIGNMENT")
		assert.Equal(t, -1, env.Reply.ExitCodes[i])
	}

	assert.Empty(t, ex.commands())

	require.NoError(t, coord.Close())
	require.NoError(t, <-errCh, "coordinator going away ends the worker cleanly")
}

func TestWorker_CancelledWhileRunning(t *testing.T) {
	ex := newFakeExec(0)
	coord, conn := protocol.Pipe()

	ctx, cancel := context.WithCancel(t.Context())
	errCh := make(chan error, 1)

	go func() {
		errCh <- NewWorker(testRunContext(2).WithRank(1), conn, ex).Run(ctx)
	}()

	a := &protocol.Assignment{Reply: 2, Commands: []string{"block", "echo after"}, Done: []bool{false, false}}
	require.NoError(t, coord.Send(t.Context(), protocol.Assign(a)))

	cancel()

	require.ErrorIs(t, <-errCh, context.Canceled)
	assert.Equal(t, []string{"block"}, ex.commands(), "no step starts after cancellation")
	require.NoError(t, coord.Close())
}

func TestWorker_SignalledStepEndsChain(t *testing.T) {
	ex := newFakeExec(0)
	coord, errCh := startWorker(t, ex)

	a := &protocol.Assignment{
		Chain:    1,
		Reply:    2,
		Commands: []string{"echo a", "echo b", "interrupt c", "echo d"},
		Done:     []bool{true, false, false, false},
	}

	require.NoError(t, coord.Send(t.Context(), protocol.Assign(a)))

	env, err := coord.Recv(t.Context())
	require.NoError(t, err)

	r := env.Reply
	assert.True(t, r.Interrupted)
	assert.Equal(t, []bool{true, true, false, false}, r.Done)
	assert.Contains(t, r.Errors[2], "COMMAND INTERRUPTED: interrupt c")
	assert.Equal(t, []string{"echo b", "interrupt c"}, ex.commands())

	require.NoError(t, coord.Send(t.Context(), protocol.Stop()))
	require.NoError(t, <-errCh)
	require.NoError(t, coord.Close())
}
