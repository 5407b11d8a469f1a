// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package status

import (
	"bytes"
	"strings"
	"testing"

	"github.com/matt-FFFFFF/chainrun/internal/checkpoint"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrite(t *testing.T) {
	snap, err := checkpoint.Parse(strings.NewReader(
		"# CHECKPOINT STATUS\n# TOTAL CHAINS: 3\n# COMPLETED CHAINS: 1\n" +
			"echo a &&& echo b\necho c\n#undone\n"))
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, write(&out, "run_chk000001", snap, false))
	assert.Equal(t, "run_chk000001: 1 of 3 chains complete, 1 partially done, 1 not started\n", out.String())

	out.Reset()
	require.NoError(t, write(&out, "run_chk000001", snap, true))
	assert.Contains(t, out.String(), "  [0] echo a &&& echo b\n")
	assert.Contains(t, out.String(), "  [2] (not started)\n")
}
