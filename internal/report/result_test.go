// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package report

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/matt-FFFFFF/chainrun/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromChain(t *testing.T) {
	c, err := tasks.RestoreChain([]string{"echo a", "echo b"}, []bool{true, false})
	require.NoError(t, err)
	require.NoError(t, c.Record([]string{"", "b\n"}, []string{"", "oops\n"}, nil))

	r := FromChain(4, c, 1)
	assert.Equal(t, 4, r.Index)
	assert.Equal(t, []string{"echo a", "echo b"}, r.Commands)
	assert.Equal(t, []bool{true, false}, r.Done)
	assert.Equal(t, []string{"", "b\n"}, r.Stdout)
	assert.True(t, r.HasErrors())
	assert.Equal(t, "echo a &&& echo b", r.String())
}

func TestResultsBinary(t *testing.T) {
	in := &Results{
		RunID:   "abc",
		Summary: Summary{Total: 2, Completed: 1, ErrorChains: 1},
		Chains:  []ChainResult{sample()},
	}

	var buf bytes.Buffer
	require.NoError(t, in.WriteBinary(&buf))

	out, err := ReadBinary(&buf)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestReadBinary_Garbage(t *testing.T) {
	_, err := ReadBinary(strings.NewReader("nope"))
	require.ErrorIs(t, err, ErrReadGob)
}

func TestResultsWriteText(t *testing.T) {
	r := &Results{
		Summary: Summary{Total: 1, Completed: 1},
		Chains:  []ChainResult{{Index: 0, Commands: []string{"echo c"}, Stdout: []string{"c\n"}, Stderr: []string{""}}},
	}

	var buf bytes.Buffer
	require.NoError(t, r.WriteText(&buf, &OutputOptions{IncludeStdOut: true}))
	assert.Equal(t, "✓ [0] echo c\n  $ echo c\n    ➜ Output:\n       c\n"+
		"Chains: 1 total, 0 previously done, 1 completed this run, 0 with errors\n", buf.String())
}

func TestRecorder(t *testing.T) {
	var buf bytes.Buffer

	rec := NewRecorder(&buf, nil)

	c, err := tasks.NewChain("echo a")
	require.NoError(t, err)
	require.NoError(t, c.Record([]string{"a\n"}, []string{""}, nil))

	rec.Record(context.Background(), 0, c, 0)

	res := rec.Results("run", Summary{Total: 1, Completed: 1})
	require.Len(t, res.Chains, 1)
	assert.Equal(t, "run", res.RunID)
	assert.Equal(t, "✓ [0] echo a\n", buf.String())

	silent := NewRecorder(nil, nil)
	silent.Record(context.Background(), 0, c, 0)
	assert.Len(t, silent.Results("", Summary{}).Chains, 1)
}
