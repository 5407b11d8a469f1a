// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	testCases := []struct {
		name      string
		url       string
		wantErr   error
		wantBytes []byte
	}{
		{
			name:    "empty url returns error",
			url:     "",
			wantErr: ErrGetTaskFile,
		},
		{
			name:    "unreachable remote",
			url:     "git::http://notexist//tasks.txt",
			wantErr: ErrGetTaskFile,
		},
		{
			name:    "missing local file",
			url:     "./testdata/no-such-tasks.txt",
			wantErr: ErrTaskFileNotFound,
		},
		{
			name:    "local directory",
			url:     "./testdata",
			wantErr: ErrTaskFileNotFound,
		},
		{
			name:      "local file",
			url:       "./testdata/tasks.txt",
			wantBytes: []byte("echo one &&& echo two\necho three\n"),
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			data, err := Fetch(t.Context(), tc.url)
			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				assert.Nil(t, data)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantBytes, data)
		})
	}
}

func TestSplitFileNameFromGetterURL(t *testing.T) {
	testCases := []struct {
		url      string
		wantURL  string
		wantFile string
	}{
		{
			url:      "git::https://github.com/org/repo.git//tasks/list.txt",
			wantURL:  "git::https://github.com/org/repo.git//tasks",
			wantFile: "list.txt",
		},
		{
			url:      "git::https://github.com/org/repo.git//list.txt?ref=v1.0.0",
			wantURL:  "git::https://github.com/org/repo.git?ref=v1.0.0",
			wantFile: "list.txt",
		},
		{
			url: "https://example.com/list.txt",
		},
		{
			url: "git::https://github.com/org/repo.git//dir/",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.url, func(t *testing.T) {
			gotURL, gotFile := splitFileNameFromGetterURL(tc.url)
			assert.Equal(t, tc.wantURL, gotURL)
			assert.Equal(t, tc.wantFile, gotFile)
		})
	}
}
