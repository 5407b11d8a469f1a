// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/matt-FFFFFF/chainrun/internal/color"
)

// OutputOptions controls what is included in the text output.
type OutputOptions struct {
	IncludeStdOut bool // Include each step's stdout.
	IncludeStdErr bool // Include each step's stderr.
}

// DefaultOutputOptions shows both streams.
func DefaultOutputOptions() *OutputOptions {
	return &OutputOptions{
		IncludeStdOut: true,
		IncludeStdErr: true,
	}
}

// WriteText writes every chain followed by the summary.
func (r *Results) WriteText(w io.Writer, options *OutputOptions) error {
	for _, c := range r.Chains {
		if err := WriteChain(w, c, options); err != nil {
			return err
		}
	}

	return WriteSummary(w, r.Summary)
}

// WriteChain writes one chain: a status line, then the output of each step
// that has any to show.
func WriteChain(w io.Writer, c ChainResult, options *OutputOptions) error {
	if options == nil {
		options = DefaultOutputOptions()
	}

	var statusStr, labelPrefix string

	switch {
	case c.HasErrors():
		statusStr = color.Colorize("✗", color.FgRed)
		labelPrefix = color.ControlString(color.Bold, color.FgRed)
	default:
		statusStr = color.Colorize("✓", color.FgGreen)
		labelPrefix = color.ControlString(color.Bold, color.FgGreen)
	}

	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s[%d] %s%s", statusStr, labelPrefix, c.Index, c.String(), color.ControlString(color.Reset))

	if c.Rank > 0 {
		sb.WriteString(color.Colorize(fmt.Sprintf(" (worker %d)", c.Rank), color.Faint))
	}

	sb.WriteString("\n")

	for i, cmd := range c.Commands {
		var stdout, stderr string

		if options.IncludeStdOut && i < len(c.Stdout) {
			stdout = c.Stdout[i]
		}

		if options.IncludeStdErr && i < len(c.Stderr) {
			stderr = c.Stderr[i]
		}

		if stdout == "" && stderr == "" {
			continue
		}

		fmt.Fprintf(&sb, "  %s %s", color.Colorize("$", color.FgCyan), cmd)

		if i < len(c.ExitCodes) && c.ExitCodes[i] != 0 {
			fmt.Fprintf(&sb, " (exit code: %d)", c.ExitCodes[i])
		}

		sb.WriteString("\n")

		if stdout != "" {
			sb.WriteString("    ➜ Output:\n")
			sb.WriteString(formatOutput(stdout, "       "))
		}

		if stderr != "" {
			sb.WriteString("    " + color.Colorize("➜ Error Output:", color.FgHiRed) + "\n")
			sb.WriteString(formatOutput(stderr, "       "))
		}
	}

	_, err := io.WriteString(w, sb.String())

	return err //nolint:wrapcheck
}

// WriteSummary writes the chain counts on one line.
func WriteSummary(w io.Writer, s Summary) error {
	errPart := fmt.Sprintf("%d with errors", s.ErrorChains)
	if s.ErrorChains > 0 {
		errPart = color.Colorize(errPart, color.FgRed)
	}

	_, err := fmt.Fprintf(w, "%s %d total, %d previously done, %d completed this run, %s\n",
		color.Colorize("Chains:", color.Bold), s.Total, s.PreviouslyDone, s.Completed, errPart)

	return err //nolint:wrapcheck
}

// formatOutput indents every line of output. A missing trailing newline is added.
func formatOutput(output string, indent string) string {
	sb := strings.Builder{}
	lines := strings.Split(strings.TrimSuffix(output, "\n"), "\n")
	sb.Grow(len(output) + len(lines)*(len(indent)+1))

	for _, line := range lines {
		if line == "" {
			sb.WriteString("\n")
			continue
		}

		sb.WriteString(indent)
		sb.WriteString(line)
		sb.WriteString("\n")
	}

	return sb.String()
}
