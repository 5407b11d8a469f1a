// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package tasks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const taskFile = `# build and check
echo a &&& echo b

echo c
  # indented comment
`

func TestReadSet(t *testing.T) {
	s, err := ReadSet(strings.NewReader(taskFile))
	require.NoError(t, err)

	require.Equal(t, 2, s.Total())
	assert.Equal(t, 0, s.Completed())

	c0, err := s.Chain(0)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo a", "echo b"}, c0.Commands())

	c1, err := s.Chain(1)
	require.NoError(t, err)
	assert.Equal(t, []string{"echo c"}, c1.Commands())
}

func TestReadSet_ReportsEveryBadLine(t *testing.T) {
	_, err := ReadSet(strings.NewReader("echo a &&&\necho ok\n&&& echo b\n"))
	require.ErrorIs(t, err, ErrEmptyStep)
	assert.Contains(t, err.Error(), "line 1")
	assert.Contains(t, err.Error(), "line 3")
}

func TestReadSet_Empty(t *testing.T) {
	s, err := ReadSet(strings.NewReader("# nothing\n\n"))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Total())
	assert.True(t, s.Finished())
}

func TestSet_UndoneAndMarkChainDone(t *testing.T) {
	s, err := ReadSet(strings.NewReader("a &&& b\nc\nd\n"))
	require.NoError(t, err)

	require.NoError(t, s.MarkChainDone(1))
	assert.Equal(t, 1, s.Completed())

	var idx []int
	for i := range s.Undone() {
		idx = append(idx, i)
	}

	assert.Equal(t, []int{0, 2}, idx)

	require.ErrorIs(t, s.MarkChainDone(1), ErrChainAlreadyDone)
	require.ErrorIs(t, s.MarkChainDone(3), ErrChainIndex)
	require.ErrorIs(t, s.MarkChainDone(-1), ErrChainIndex)

	require.NoError(t, s.MarkChainDone(0))
	require.NoError(t, s.MarkChainDone(2))
	assert.True(t, s.Finished())
}

func TestSet_NewSetCopies(t *testing.T) {
	c, err := NewChain("a")
	require.NoError(t, err)

	chains := []*Chain{c}
	s := NewSet(chains)
	chains[0] = nil

	got, err := s.Chain(0)
	require.NoError(t, err)
	assert.Same(t, c, got)
}

func TestSet_Reconcile(t *testing.T) {
	s, err := ReadSet(strings.NewReader("echo a &&& echo b\necho c\necho d\n"))
	require.NoError(t, err)

	n := s.Reconcile([][]string{{"echo a"}, nil, {"echo x"}, {"extra"}})
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, s.Completed())

	c0, _ := s.Chain(0)
	assert.Equal(t, []bool{true, false}, c0.DoneFlags())

	n = s.Reconcile([][]string{{"echo a", "echo b"}, {"echo c"}})
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, s.Completed())
}
