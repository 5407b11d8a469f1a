// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

var (
	// ErrReadRunFile is returned when the run file cannot be read.
	ErrReadRunFile = errors.New("could not read run file")
	// ErrUnknownFormat is returned for a file that is neither YAML nor HCL.
	ErrUnknownFormat = errors.New("unknown run file format, expected .yaml, .yml or .hcl")
	// ErrInvalidYaml is returned when a YAML run file cannot be decoded.
	ErrInvalidYaml = errors.New("invalid YAML")
	// ErrInvalidHcl is returned when an HCL run file cannot be decoded.
	ErrInvalidHcl = errors.New("invalid HCL")
	// ErrInvalidValue is returned when a setting is out of range.
	ErrInvalidValue = errors.New("invalid run file value")
)

// RunFile holds the settings of a run. Nil pointers and empty strings mean
// the setting was not given.
type RunFile struct {
	TaskFile       string            `yaml:"taskfile"        hcl:"taskfile,optional"`
	Template       string            `yaml:"template"        hcl:"template,optional"`
	Pattern        string            `yaml:"pattern"         hcl:"pattern,optional"`
	Glob           string            `yaml:"glob"            hcl:"glob,optional"`
	Dir            string            `yaml:"dir"             hcl:"dir,optional"`
	Checkpoint     string            `yaml:"checkpoint"      hcl:"checkpoint,optional"`
	CheckpointBase string            `yaml:"checkpoint_base" hcl:"checkpoint_base,optional"`
	NumCheckpoints *int              `yaml:"num_checkpoints" hcl:"num_checkpoints,optional"`
	FinishBase     string            `yaml:"finish_base"     hcl:"finish_base,optional"`
	Workers        *int              `yaml:"workers"         hcl:"workers,optional"`
	Isolate        *bool             `yaml:"isolate"         hcl:"isolate,optional"`
	Shell          string            `yaml:"shell"           hcl:"shell,optional"`
	Env            map[string]string `yaml:"env"             hcl:"env,optional"`
}

// Load reads and validates the run file at path. The format is chosen by extension.
func Load(path string) (*RunFile, error) {
	data, err := afero.ReadFile(FsFactory(), path)
	if err != nil {
		return nil, errors.Join(ErrReadRunFile, err)
	}

	var rf *RunFile

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		rf, err = decodeYaml(data)
	case ".hcl":
		rf, err = decodeHcl(data, path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}

	if err != nil {
		return nil, err
	}

	if err := rf.Validate(); err != nil {
		return nil, err
	}

	return rf, nil
}

// Validate checks numeric settings.
func (rf *RunFile) Validate() error {
	var result error

	if rf.NumCheckpoints != nil && *rf.NumCheckpoints < -1 {
		result = multierror.Append(result,
			fmt.Errorf("%w: num_checkpoints must be -1 or more, got %d", ErrInvalidValue, *rf.NumCheckpoints))
	}

	if rf.Workers != nil && *rf.Workers < 1 {
		result = multierror.Append(result,
			fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidValue, *rf.Workers))
	}

	return result
}
