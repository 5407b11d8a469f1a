// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/tasks"
	"github.com/spf13/afero"
)

const (
	// DefaultRetain is the number of snapshots kept when not configured.
	DefaultRetain = 2
	// RetainAll keeps every snapshot.
	RetainAll = -1
	// DefaultFinishBase is the finish marker base name when not configured.
	DefaultFinishBase = "chainrun"
	// FinishedLine is the content of the finish marker.
	FinishedLine = "# FINISHED WITH ALL CHAINS"

	finishedSuffix = "_finished"
	filePerm       = 0o644
)

var (
	// ErrWriteSnapshot is returned when a snapshot could not be written. It aborts the run.
	ErrWriteSnapshot = errors.New("could not write checkpoint")
	// ErrWriteFinishMarker is returned when the finish marker could not be written.
	ErrWriteFinishMarker = errors.New("could not write finish marker")
)

// FsFactory returns the filesystem used by the command line. Tests swap it out.
var FsFactory = func() afero.Fs {
	return afero.NewOsFs()
}

// Store writes snapshots and applies the retention policy.
type Store struct {
	fs         afero.Fs
	base       string
	finishBase string
	retain     int
	written    []string
}

// Option configures a Store.
type Option func(*Store)

// WithRetain sets how many snapshots to keep: RetainAll, 0 for none, or N.
func WithRetain(n int) Option {
	return func(s *Store) {
		s.retain = n
	}
}

// WithFinishBase sets the base name of the finish marker.
func WithFinishBase(base string) Option {
	return func(s *Store) {
		s.finishBase = base
	}
}

// NewStore returns a Store writing <base>_chkNNNNNN files to fs.
func NewStore(fs afero.Fs, base string, opts ...Option) *Store {
	s := &Store{
		fs:         fs,
		base:       base,
		finishBase: DefaultFinishBase,
		retain:     DefaultRetain,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Path returns the snapshot name for a completed count.
func Path(base string, completed int) string {
	return fmt.Sprintf("%s_chk%06d", base, completed)
}

// FinishPath returns the finish marker name.
func (s *Store) FinishPath() string {
	return s.finishBase + finishedSuffix
}

// Retain returns the retention setting.
func (s *Store) Retain() int {
	return s.retain
}

// Save writes a snapshot of set and culls older snapshots written by this store.
// It returns the written path, or "" when retention is zero.
func (s *Store) Save(ctx context.Context, set *tasks.Set) (string, error) {
	if s.retain == 0 {
		return "", nil
	}

	snap := FromSet(set)
	path := Path(s.base, snap.Completed)

	if err := writeAtomic(s.fs, path, snap); err != nil {
		return "", errors.Join(ErrWriteSnapshot, err)
	}

	ctxlog.Debug(ctx, "checkpoint written", "path", path, "completed", snap.Completed, "total", snap.Total)

	s.written = slices.DeleteFunc(s.written, func(p string) bool { return p == path })
	s.written = append(s.written, path)

	s.cull(ctx)

	return path, nil
}

// cull removes the oldest snapshots beyond the retention count. Failures are logged.
func (s *Store) cull(ctx context.Context) {
	if s.retain < 0 || len(s.written) <= s.retain {
		return
	}

	excess := len(s.written) - s.retain
	stale := s.written[:excess]
	s.written = slices.Clone(s.written[excess:])

	var result error

	for _, p := range stale {
		err := s.fs.Remove(p)

		switch {
		case err == nil:
			ctxlog.Debug(ctx, "checkpoint removed", "path", p)
		case errors.Is(err, os.ErrNotExist):
			ctxlog.Debug(ctx, "checkpoint already gone", "path", p)
		default:
			result = multierror.Append(result, err)
		}
	}

	if result != nil {
		ctxlog.Warn(ctx, "could not remove old checkpoints", "error", result)
	}
}

// MarkFinished writes the finish marker when every chain in set is done.
// It reports whether the marker was written.
func (s *Store) MarkFinished(ctx context.Context, set *tasks.Set) (bool, error) {
	if !set.Finished() {
		return false, nil
	}

	if err := afero.WriteFile(s.fs, s.FinishPath(), []byte(FinishedLine+"\n"), filePerm); err != nil {
		return false, errors.Join(ErrWriteFinishMarker, err)
	}

	ctxlog.Info(ctx, "all chains finished", "marker", s.FinishPath())

	return true, nil
}

// writeAtomic writes to a temporary sibling and renames it over path.
func writeAtomic(fs afero.Fs, path string, w io.WriterTo) error {
	dir := filepath.Dir(path)

	f, err := afero.TempFile(fs, dir, filepath.Base(path)+".tmp*")
	if err != nil {
		return err //nolint:wrapcheck
	}

	tmp := f.Name()

	if _, err := w.WriteTo(f); err != nil {
		_ = f.Close()
		_ = fs.Remove(tmp)

		return err //nolint:wrapcheck
	}

	if err := f.Close(); err != nil {
		_ = fs.Remove(tmp)

		return err //nolint:wrapcheck
	}

	if err := fs.Rename(tmp, path); err != nil {
		_ = fs.Remove(tmp)

		return err //nolint:wrapcheck
	}

	return nil
}
