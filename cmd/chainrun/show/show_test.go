// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package show

import (
	"bytes"
	"io"
	"testing"

	"github.com/matt-FFFFFF/chainrun/internal/checkpoint"
	"github.com/matt-FFFFFF/chainrun/internal/report"
	"github.com/prashantv/gostub"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"
)

func TestShow(t *testing.T) {
	fs := afero.NewMemMapFs()

	stubs := gostub.Stub(&checkpoint.FsFactory, func() afero.Fs { return fs })
	defer stubs.Reset()

	res := &report.Results{
		RunID:   "run-1",
		Summary: report.Summary{Total: 1, Completed: 1, ErrorChains: 1},
		Chains: []report.ChainResult{{
			Index:     0,
			Commands:  []string{"echo a", "false"},
			Done:      []bool{true, true},
			Stdout:    []string{"a\n", ""},
			Stderr:    []string{"", "went wrong\n"},
			ExitCodes: []int{0, 1},
			Rank:      2,
		}},
	}

	f, err := fs.Create("/results.bin")
	require.NoError(t, err)
	require.NoError(t, res.WriteBinary(f))
	require.NoError(t, f.Close())

	var out bytes.Buffer

	root := &cli.Command{Name: "chainrun", Commands: []*cli.Command{ShowCmd}, Writer: &out, ErrWriter: io.Discard}
	require.NoError(t, root.Run(t.Context(), []string{"chainrun", "show", "/results.bin"}))

	assert.Contains(t, out.String(), "echo a &&& false")
	assert.Contains(t, out.String(), "went wrong")
	assert.Contains(t, out.String(), "(exit code: 1)")
	assert.Contains(t, out.String(), "➜ Output:", "stdout is shown by default")
	assert.Contains(t, out.String(), "1 with errors")

	out.Reset()
	require.NoError(t, root.Run(t.Context(), []string{"chainrun", "show", "--no-output-stdout", "/results.bin"}))
	assert.NotContains(t, out.String(), "➜ Output:")
	assert.Contains(t, out.String(), "went wrong")
}
