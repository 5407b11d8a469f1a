// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tasks

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, line string) *Chain {
	t.Helper()

	c, err := ParseChain(line)
	require.NoError(t, err)

	return c
}

func TestParseChain(t *testing.T) {
	testCases := []struct {
		name    string
		line    string
		want    []string
		wantErr error
	}{
		{name: "single", line: "echo a", want: []string{"echo a"}},
		{name: "two steps", line: "echo a &&& echo b", want: []string{"echo a", "echo b"}},
		{name: "tight delimiter", line: "echo a&&&echo b&&&echo c", want: []string{"echo a", "echo b", "echo c"}},
		{name: "shell and-and kept", line: "make && make test &&& echo ok", want: []string{"make && make test", "echo ok"}},
		{name: "empty step", line: "echo a &&& &&& echo b", wantErr: ErrEmptyStep},
		{name: "trailing delimiter", line: "echo a &&&", wantErr: ErrEmptyStep},
		{name: "blank", line: "   ", wantErr: ErrEmptyStep},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := ParseChain(tc.line)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, c.Commands())
			assert.Equal(t, len(tc.want), c.Len())
		})
	}
}

func TestNewChain_Empty(t *testing.T) {
	_, err := NewChain()
	require.ErrorIs(t, err, ErrEmptyChain)
}

func TestRestoreChain(t *testing.T) {
	c, err := RestoreChain([]string{"a", "b", "c"}, []bool{true, false, false})
	require.NoError(t, err)
	assert.Equal(t, []bool{true, false, false}, c.DoneFlags())

	_, err = RestoreChain([]string{"a"}, []bool{true, false})
	require.ErrorIs(t, err, ErrLengthMismatch)
}

func TestChain_DoneAndHasUndoneAreExclusive(t *testing.T) {
	c := mustParse(t, "a &&& b &&& c")

	for i := range c.Len() + 1 {
		assert.NotEqual(t, c.Done(), c.HasUndoneTask(), "after %d steps", i)

		if i < c.Len() {
			c.tasks[i].MarkDone()
		}
	}

	assert.True(t, c.Done())
}

func TestChain_UndoneIsRestartable(t *testing.T) {
	c := mustParse(t, "a &&& b &&& c")

	first := slices.Collect(c.Undone())
	require.Len(t, first, 3)

	first[0].MarkDone()

	second := slices.Collect(c.Undone())
	require.Len(t, second, 2)
	assert.Equal(t, "b", second[0].Command())

	for task := range c.Undone() {
		task.MarkDone()
		break
	}

	assert.Equal(t, []string{"c"}, commandsOf(slices.Collect(c.Undone())))
}

func commandsOf(ts []*Task) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Command()
	}

	return out
}

func TestChain_MarkAllDone(t *testing.T) {
	c := mustParse(t, "a &&& b &&& c")
	c.tasks[0].MarkDone()

	assert.Equal(t, 2, c.MarkAllDone())
	assert.Equal(t, 0, c.MarkAllDone())
	assert.True(t, c.Done())
}

func TestChain_Strings(t *testing.T) {
	c := mustParse(t, "echo a&&&echo b")

	assert.Equal(t, "echo a &&& echo b", c.String())
	assert.Equal(t, UndoneSentinel, c.DoneString())

	c.tasks[0].MarkDone()
	assert.Equal(t, "echo a", c.DoneString())

	c.MarkAllDone()
	assert.Equal(t, c.String(), c.DoneString())
}

func TestChain_Reconcile(t *testing.T) {
	testCases := []struct {
		name     string
		prefix   []string
		wantDone []bool
		wantN    int
	}{
		{name: "nil prefix", prefix: nil, wantDone: []bool{false, false, false}},
		{name: "first step", prefix: []string{"a"}, wantDone: []bool{true, false, false}, wantN: 1},
		{name: "two steps", prefix: []string{"a", "b"}, wantDone: []bool{true, true, false}, wantN: 2},
		{name: "whitespace ignored", prefix: []string{" a ", "b "}, wantDone: []bool{true, true, false}, wantN: 2},
		{name: "full", prefix: []string{"a", "b", "c"}, wantDone: []bool{true, true, true}, wantN: 3},
		{name: "divergent first", prefix: []string{"x", "b"}, wantDone: []bool{false, false, false}},
		{name: "divergent stops", prefix: []string{"a", "x", "c"}, wantDone: []bool{true, false, false}, wantN: 1},
		{name: "longer than chain", prefix: []string{"a", "b", "c", "d"}, wantDone: []bool{true, true, true}, wantN: 3},
		{name: "out of order", prefix: []string{"b", "a"}, wantDone: []bool{false, false, false}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := mustParse(t, "a &&& b &&& c")
			assert.Equal(t, tc.wantN, c.Reconcile(tc.prefix))
			assert.Equal(t, tc.wantDone, c.DoneFlags())
		})
	}
}

func TestChain_ReconcileDoesNotCountAlreadyDone(t *testing.T) {
	c := mustParse(t, "a &&& b")
	c.tasks[0].MarkDone()

	assert.Equal(t, 1, c.Reconcile([]string{"a", "b"}))
}

func TestChain_Record(t *testing.T) {
	c := mustParse(t, "a &&& b")
	c.tasks[0].MarkDone()

	require.NoError(t, c.Record([]string{"ignored", "out-b"}, []string{"", "err-b"}, []int{9, 2}))

	stdout, stderr := c.Outputs()
	assert.Equal(t, []string{"", "out-b"}, stdout)
	assert.Equal(t, []string{"", "err-b"}, stderr)
	assert.False(t, c.tasks[0].Attempted())
	assert.True(t, c.HasErrors())
	assert.Equal(t, []int{0, 2}, c.ExitCodes())

	require.ErrorIs(t, c.Record([]string{"x"}, []string{"y"}, nil), ErrLengthMismatch)
	require.ErrorIs(t, c.Record([]string{"x", "y"}, []string{"", ""}, []int{1}), ErrLengthMismatch)
}

func TestChain_HasErrors(t *testing.T) {
	c := mustParse(t, "a")
	assert.False(t, c.HasErrors())

	c.tasks[0].Record("out", "")
	assert.False(t, c.HasErrors())

	c.tasks[0].Record("out", "warning\n")
	assert.True(t, c.HasErrors())
}
