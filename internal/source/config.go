// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package source

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/hashicorp/go-multierror"
)

// Placeholder is replaced by each matching name in a template.
const Placeholder = "{file}"

var (
	// ErrNoTaskSource is returned when no task file, template or checkpoint is configured.
	ErrNoTaskSource = errors.New("no task source: set a task file, a template with a pattern, or a checkpoint")
	// ErrIncompleteTemplate is returned when only one of template and pattern is set.
	ErrIncompleteTemplate = errors.New("a template needs a pattern or glob, and a pattern or glob needs a template")
	// ErrMissingPlaceholder is returned when the template lacks the placeholder.
	ErrMissingPlaceholder = fmt.Errorf("template does not contain %s", Placeholder)
	// ErrPatternConflict is returned when both a regular expression and a glob are set.
	ErrPatternConflict = errors.New("pattern and glob are mutually exclusive")
	// ErrInvalidPattern is returned for a regular expression or glob that does not compile.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrResumeWithoutDefinition is returned when a checkpoint is given without a task file or template.
	ErrResumeWithoutDefinition = errors.New("resuming needs the original task file or template")
)

// Config selects where chains come from.
type Config struct {
	TaskFile   string // Local path or go-getter URL.
	Template   string // Command containing Placeholder.
	Pattern    string // Regular expression matched against whole directory entry names.
	Glob       string // Doublestar pattern, an alternative to Pattern.
	Checkpoint string // Snapshot to resume from.
	Dir        string // Directory searched by Pattern or Glob, default ".".
}

// Validate reports every configuration problem at once.
func (c Config) Validate() error {
	var result error

	hasTemplate := c.Template != ""
	hasPattern := c.Pattern != "" || c.Glob != ""

	if c.TaskFile == "" && !hasTemplate && !hasPattern && c.Checkpoint == "" {
		return ErrNoTaskSource
	}

	if hasTemplate != hasPattern {
		result = multierror.Append(result, ErrIncompleteTemplate)
	}

	if hasTemplate && !strings.Contains(c.Template, Placeholder) {
		result = multierror.Append(result, ErrMissingPlaceholder)
	}

	if c.Pattern != "" && c.Glob != "" {
		result = multierror.Append(result, ErrPatternConflict)
	}

	if c.Pattern != "" {
		if _, err := compilePattern(c.Pattern); err != nil {
			result = multierror.Append(result, err)
		}
	}

	if c.Glob != "" && !doublestar.ValidatePattern(c.Glob) {
		result = multierror.Append(result, fmt.Errorf("%w: glob %q", ErrInvalidPattern, c.Glob))
	}

	if c.Checkpoint != "" && c.TaskFile == "" && !hasTemplate {
		result = multierror.Append(result, ErrResumeWithoutDefinition)
	}

	return result
}

// compilePattern anchors p so it must match a whole name.
func compilePattern(p string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`^(?:` + p + `)$`)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPattern, err)
	}

	return re, nil
}
