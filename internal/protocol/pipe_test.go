// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package protocol

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPipe_RoundTrip(t *testing.T) {
	a, b := Pipe()

	defer a.Close() //nolint:errcheck
	defer b.Close() //nolint:errcheck

	cmds := []string{"echo a"}
	errCh := make(chan error, 1)

	go func() {
		errCh <- a.Send(t.Context(), Assign(&Assignment{Chain: 1, Request: 1, Reply: 2, Commands: cmds, Done: []bool{false}}))
	}()

	got, err := b.Recv(t.Context())
	require.NoError(t, err)
	require.NoError(t, <-errCh)

	assert.Equal(t, KindAssign, got.Kind)
	assert.Equal(t, uint64(2), got.Assignment.Reply)

	got.Assignment.Commands[0] = "mutated"
	assert.Equal(t, "echo a", cmds[0], "receiver must not share the sender's slices")
}

func TestPipe_RecvAfterPeerClose(t *testing.T) {
	a, b := Pipe()
	require.NoError(t, a.Close())

	_, err := b.Recv(t.Context())
	require.ErrorIs(t, err, io.EOF)

	err = b.Send(t.Context(), Stop())
	require.ErrorIs(t, err, io.ErrClosedPipe)

	require.NoError(t, b.Close())
	require.NoError(t, b.Close(), "close is idempotent")
}

func TestPipe_SendAfterOwnClose(t *testing.T) {
	a, b := Pipe()
	defer b.Close() //nolint:errcheck

	require.NoError(t, a.Close())
	require.ErrorIs(t, a.Send(t.Context(), Stop()), ErrClosed)
}

func TestPipe_ContextCancel(t *testing.T) {
	a, b := Pipe()

	defer a.Close() //nolint:errcheck
	defer b.Close() //nolint:errcheck

	ctx, cancel := context.WithTimeout(t.Context(), 50*time.Millisecond)
	defer cancel()

	_, err := b.Recv(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.ErrorIs(t, a.Send(ctx, Stop()), context.DeadlineExceeded)
}

func TestPipe_CloseUnblocksPendingRecv(t *testing.T) {
	a, b := Pipe()
	defer b.Close() //nolint:errcheck

	errCh := make(chan error, 1)

	go func() {
		_, err := b.Recv(context.Background())
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	require.NoError(t, a.Close())

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, io.EOF)
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after peer close")
	}
}

func TestPipe_RejectsInvalid(t *testing.T) {
	a, b := Pipe()

	defer a.Close() //nolint:errcheck
	defer b.Close() //nolint:errcheck

	require.ErrorIs(t, a.Send(t.Context(), Envelope{}), ErrInvalidMessage)
}
