// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package run

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/chainrun/internal/checkpoint"
	"github.com/matt-FFFFFF/chainrun/internal/config"
	"github.com/matt-FFFFFF/chainrun/internal/report"
	"github.com/matt-FFFFFF/chainrun/internal/source"
	"github.com/urfave/cli/v3"
)

var (
	// ErrInvalidSetting is returned when a flag value is out of range.
	ErrInvalidSetting = errors.New("invalid setting")
	// ErrInvalidEnv is returned for an --env value that is not KEY=VALUE.
	ErrInvalidEnv = errors.New("environment entries must be KEY=VALUE")
)

// settings is the resolved configuration of a run: flags layered over the run file.
type settings struct {
	source         source.Config
	checkpointBase string
	retain         int
	finishBase     string
	workers        int
	isolate        bool
	shell          string
	env            map[string]string
	out            string
	tui            bool
	output         *report.OutputOptions
}

// resolve merges the command line with the optional run file. A flag set on
// the command line always wins; otherwise a value from the file wins over the
// flag default.
func resolve(cmd *cli.Command) (*settings, error) {
	rf := &config.RunFile{}

	if path := cmd.String(configFlag); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}

		rf = loaded
	}

	s := &settings{
		source: source.Config{
			TaskFile:   stringSetting(cmd, taskFileFlag, rf.TaskFile),
			Template:   stringSetting(cmd, templateFlag, rf.Template),
			Pattern:    stringSetting(cmd, patternFlag, rf.Pattern),
			Glob:       stringSetting(cmd, globFlag, rf.Glob),
			Checkpoint: stringSetting(cmd, checkpointFlag, rf.Checkpoint),
			Dir:        stringSetting(cmd, dirFlag, rf.Dir),
		},
		checkpointBase: stringSetting(cmd, checkpointBaseFlag, rf.CheckpointBase),
		retain:         intSetting(cmd, numCheckpointsFlag, rf.NumCheckpoints),
		finishBase:     stringSetting(cmd, finishBaseFlag, rf.FinishBase),
		workers:        intSetting(cmd, workersFlag, rf.Workers),
		isolate:        boolSetting(cmd, isolateFlag, rf.Isolate),
		shell:          stringSetting(cmd, shellFlag, rf.Shell),
		out:            cmd.String(outFlag),
		tui:            cmd.Bool(tuiFlag),
		output: &report.OutputOptions{
			IncludeStdErr: !cmd.Bool(noOutputStdErrFlag),
			IncludeStdOut: !cmd.Bool(noOutputStdOutFlag),
		},
	}

	var result error

	env, err := parseEnv(cmd.StringSlice(envFlag))
	if err != nil {
		result = multierror.Append(result, err)
	}

	s.env = maps.Clone(rf.Env)
	if s.env == nil {
		s.env = make(map[string]string, len(env))
	}

	maps.Copy(s.env, env)

	if s.workers < 1 {
		result = multierror.Append(result, fmt.Errorf("%w: --%s must be at least 1, got %d", ErrInvalidSetting, workersFlag, s.workers))
	}

	if s.retain < checkpoint.RetainAll {
		result = multierror.Append(result,
			fmt.Errorf("%w: --%s must be -1 or more, got %d", ErrInvalidSetting, numCheckpointsFlag, s.retain))
	}

	if s.finishBase == "" {
		result = multierror.Append(result, fmt.Errorf("%w: --%s must not be empty", ErrInvalidSetting, finishBaseFlag))
	}

	if err := s.source.Validate(); err != nil {
		result = multierror.Append(result, err)
	}

	if result != nil {
		return nil, result
	}

	// No base means no snapshots; the finish marker is still written.
	if s.checkpointBase == "" {
		s.retain = 0
	}

	return s, nil
}

// size returns the number of ranks: the coordinator alone runs the chains
// when there is one worker.
func (s *settings) size() int {
	if s.workers == 1 {
		return 1
	}

	return s.workers + 1
}

// envList returns the extra environment as sorted KEY=VALUE entries.
func (s *settings) envList() []string {
	out := make([]string, 0, len(s.env))
	for _, k := range slices.Sorted(maps.Keys(s.env)) {
		out = append(out, k+"="+s.env[k])
	}

	return out
}

func parseEnv(entries []string) (map[string]string, error) {
	env := make(map[string]string, len(entries))

	var result error

	for _, e := range entries {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			result = multierror.Append(result, fmt.Errorf("%w: %q", ErrInvalidEnv, e))
			continue
		}

		env[k] = v
	}

	return env, result
}

func stringSetting(cmd *cli.Command, flag, fromFile string) string {
	if fromFile != "" && !cmd.IsSet(flag) {
		return fromFile
	}

	return cmd.String(flag)
}

func intSetting(cmd *cli.Command, flag string, fromFile *int) int {
	if fromFile != nil && !cmd.IsSet(flag) {
		return *fromFile
	}

	return cmd.Int(flag)
}

func boolSetting(cmd *cli.Command, flag string, fromFile *bool) bool {
	if fromFile != nil && !cmd.IsSet(flag) {
		return *fromFile
	}

	return cmd.Bool(flag)
}
