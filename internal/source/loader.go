// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package source

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/chainrun/internal/checkpoint"
	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/tasks"
	"github.com/spf13/afero"
)

// SkipSuffix marks a directory entry to leave out of template expansion.
const SkipSuffix = ".skip"

// ErrListDir is returned when the template directory cannot be read.
var ErrListDir = errors.New("could not list directory")

// Loader builds task sets.
type Loader struct {
	fs    afero.Fs
	fetch FetchFunc
}

// Option configures a Loader.
type Option func(*Loader)

// WithFetcher replaces the go-getter fetch used for task files not found on the filesystem.
func WithFetcher(f FetchFunc) Option {
	return func(l *Loader) {
		l.fetch = f
	}
}

// NewLoader returns a Loader reading from fsys.
func NewLoader(fsys afero.Fs, opts ...Option) *Loader {
	l := &Loader{
		fs:    fsys,
		fetch: Fetch,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Load validates cfg and builds the set it describes. When a checkpoint is
// configured, recorded progress is applied to the fresh definition.
func (l *Loader) Load(ctx context.Context, cfg Config) (*tasks.Set, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	set, err := l.definition(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.Checkpoint == "" {
		return set, nil
	}

	if err := l.resume(ctx, set, cfg.Checkpoint); err != nil {
		return nil, err
	}

	return set, nil
}

func (l *Loader) definition(ctx context.Context, cfg Config) (*tasks.Set, error) {
	if cfg.TaskFile != "" {
		if cfg.Template != "" {
			ctxlog.Warn(ctx, "task file takes priority, ignoring template", "taskfile", cfg.TaskFile)
		}

		return l.fromTaskFile(ctx, cfg.TaskFile)
	}

	return l.fromTemplate(ctx, cfg)
}

func (l *Loader) fromTaskFile(ctx context.Context, path string) (*tasks.Set, error) {
	data, err := l.readTaskFile(ctx, path)
	if err != nil {
		return nil, err
	}

	set, err := tasks.ReadSet(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	ctxlog.Info(ctx, "loaded task file", "path", path, "chains", set.Total())

	return set, nil
}

// readTaskFile reads local paths through the filesystem and anything else through the fetcher.
func (l *Loader) readTaskFile(ctx context.Context, path string) ([]byte, error) {
	if ok, _ := afero.Exists(l.fs, path); ok {
		data, err := afero.ReadFile(l.fs, path)
		if err != nil {
			return nil, errors.Join(ErrGetTaskFile, err)
		}

		return data, nil
	}

	ctxlog.Debug(ctx, "task file not on filesystem, fetching", "url", path)

	return l.fetch(ctx, path)
}

func (l *Loader) fromTemplate(ctx context.Context, cfg Config) (*tasks.Set, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "."
	}

	var (
		names []string
		err   error
	)

	switch {
	case cfg.Glob != "":
		names, err = l.globNames(dir, cfg.Glob)
	default:
		var re *regexp.Regexp

		re, err = compilePattern(cfg.Pattern)
		if err == nil {
			names, err = l.patternNames(dir, re)
		}
	}

	if err != nil {
		return nil, err
	}

	var (
		chains []*tasks.Chain
		result error
	)

	for _, name := range names {
		c, err := tasks.ParseChain(strings.ReplaceAll(cfg.Template, Placeholder, name))
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("%s: %w", name, err))
			continue
		}

		chains = append(chains, c)
	}

	if result != nil {
		return nil, result
	}

	ctxlog.Info(ctx, "expanded template", "dir", dir, "matches", len(chains))

	return tasks.NewSet(chains), nil
}

// patternNames lists dir and keeps entries that fully match re and have no skip marker.
func (l *Loader) patternNames(dir string, re *regexp.Regexp) ([]string, error) {
	infos, err := afero.ReadDir(l.fs, dir)
	if err != nil {
		return nil, errors.Join(ErrListDir, err)
	}

	present := make(map[string]struct{}, len(infos))
	for _, fi := range infos {
		present[fi.Name()] = struct{}{}
	}

	var names []string

	for _, fi := range infos {
		name := fi.Name()
		if !re.MatchString(name) {
			continue
		}

		if _, skip := present[name+SkipSuffix]; skip {
			continue
		}

		names = append(names, name)
	}

	slices.Sort(names)

	return names, nil
}

// globNames matches files below dir with a doublestar pattern. Results are
// slash-separated paths relative to dir.
func (l *Loader) globNames(dir, pattern string) ([]string, error) {
	fsys := l.dirFs(dir)

	matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, errors.Join(ErrListDir, err)
	}

	names := make([]string, 0, len(matches))

	for _, m := range matches {
		if _, err := fs.Stat(fsys, m+SkipSuffix); err == nil {
			continue
		}

		names = append(names, m)
	}

	slices.Sort(names)

	return names, nil
}

func (l *Loader) dirFs(dir string) fs.FS {
	if dir == "." {
		return afero.NewIOFS(l.fs)
	}

	return afero.NewIOFS(afero.NewBasePathFs(l.fs, dir))
}

func (l *Loader) resume(ctx context.Context, set *tasks.Set, path string) error {
	snap, err := checkpoint.Load(l.fs, path)
	if err != nil {
		return err //nolint:wrapcheck
	}

	if snap.Total != set.Total() {
		ctxlog.Warn(ctx, "checkpoint chain count differs from definition, reconciling the common prefix",
			"checkpoint", snap.Total, "definition", set.Total())
	}

	marked := set.Reconcile(snap.Prefixes())

	if snap.Completed != set.Completed() {
		ctxlog.Warn(ctx, "checkpoint completed count differs after reconciliation",
			"recorded", snap.Completed, "reconciled", set.Completed())
	}

	ctxlog.Info(ctx, "resumed from checkpoint",
		"path", path, "stepsDone", marked, "completed", set.Completed(), "total", set.Total())

	return nil
}
