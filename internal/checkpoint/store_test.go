// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package checkpoint

import (
	"errors"
	"os"
	"sort"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	fiveChains = "c0\nc1\nc2\nc3\nc4\n"
	testDir    = "/ck"
	testBase   = testDir + "/run"
)

func listFiles(t *testing.T, fs afero.Fs) []string {
	t.Helper()

	infos, err := afero.ReadDir(fs, testDir)
	require.NoError(t, err)

	names := make([]string, 0, len(infos))
	for _, fi := range infos {
		names = append(names, fi.Name())
	}

	sort.Strings(names)

	return names
}

// saveAll completes every chain in turn, saving after each one.
func saveAll(t *testing.T, store *Store) {
	t.Helper()

	set := newSet(t, fiveChains)

	for i := range set.Total() {
		require.NoError(t, set.MarkChainDone(i))

		_, err := store.Save(t.Context(), set)
		require.NoError(t, err)
	}
}

func TestStore_Retention(t *testing.T) {
	testCases := []struct {
		name   string
		retain int
		want   []string
	}{
		{name: "keep two", retain: 2, want: []string{"run_chk000004", "run_chk000005"}},
		{name: "keep all", retain: RetainAll, want: []string{
			"run_chk000001", "run_chk000002", "run_chk000003", "run_chk000004", "run_chk000005",
		}},
		{name: "keep none", retain: 0, want: []string{}},
		{name: "keep one", retain: 1, want: []string{"run_chk000005"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			require.NoError(t, fs.MkdirAll(testDir, 0o755))

			store := NewStore(fs, testBase, WithRetain(tc.retain))

			saveAll(t, store)

			assert.Equal(t, tc.want, listFiles(t, fs))
		})
	}
}

func TestStore_SaveReturnsPath(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "run")
	set := newSet(t, "a\nb\n")

	p, err := store.Save(t.Context(), set)
	require.NoError(t, err)
	assert.Equal(t, "run_chk000000", p)

	s, err := Load(fs, p)
	require.NoError(t, err)
	assert.Equal(t, 2, s.Total)
	assert.Equal(t, []string{"#undone", "#undone"}, s.Lines)

	p, err = NewStore(fs, "run", WithRetain(0)).Save(t.Context(), set)
	require.NoError(t, err)
	assert.Empty(t, p)
}

func TestStore_SaveSameCountTwice(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, testBase, WithRetain(1))
	set := newSet(t, "a\n")

	for range 2 {
		_, err := store.Save(t.Context(), set)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"run_chk000000"}, listFiles(t, fs))
}

func TestStore_OnlyCullsOwnFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, testBase+"_chk000000", []byte("old"), 0o644))

	store := NewStore(fs, testBase, WithRetain(1))
	saveAll(t, store)

	assert.Equal(t, []string{"run_chk000000", "run_chk000005"}, listFiles(t, fs))
}

func TestStore_WriteFailure(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	store := NewStore(fs, "run")

	_, err := store.Save(t.Context(), newSet(t, "a\n"))
	require.ErrorIs(t, err, ErrWriteSnapshot)
}

type failingRemoveFs struct {
	afero.Fs
	err error
}

func (f *failingRemoveFs) Remove(string) error {
	return f.err
}

func TestStore_RemoveFailuresAreSwallowed(t *testing.T) {
	for _, removeErr := range []error{os.ErrNotExist, os.ErrPermission, errors.New("disk on fire")} {
		t.Run(removeErr.Error(), func(t *testing.T) {
			mem := afero.NewMemMapFs()
			fs := &failingRemoveFs{Fs: mem, err: removeErr}
			store := NewStore(fs, testBase, WithRetain(2))

			saveAll(t, store)

			assert.Len(t, listFiles(t, mem), 5)
		})
	}
}

func TestStore_MarkFinished(t *testing.T) {
	fs := afero.NewMemMapFs()
	store := NewStore(fs, "run", WithRetain(0), WithFinishBase("job"))
	set := newSet(t, "a\nb\n")

	ok, err := store.MarkFinished(t.Context(), set)
	require.NoError(t, err)
	assert.False(t, ok)

	exists, err := afero.Exists(fs, "job_finished")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, set.MarkChainDone(0))
	require.NoError(t, set.MarkChainDone(1))

	ok, err = store.MarkFinished(t.Context(), set)
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := afero.ReadFile(fs, "job_finished")
	require.NoError(t, err)
	assert.Equal(t, FinishedLine+"\n", string(data))
}

func TestStore_Defaults(t *testing.T) {
	store := NewStore(afero.NewMemMapFs(), "x")
	assert.Equal(t, DefaultRetain, store.Retain())
	assert.Equal(t, "chainrun_finished", store.FinishPath())
}

func TestStore_MarkFinishedWriteFailure(t *testing.T) {
	store := NewStore(afero.NewReadOnlyFs(afero.NewMemMapFs()), "run")
	set := newSet(t, "a\n")
	require.NoError(t, set.MarkChainDone(0))

	_, err := store.MarkFinished(t.Context(), set)
	require.ErrorIs(t, err, ErrWriteFinishMarker)
}
