// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package color

import (
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// Code is an SGR parameter of an ANSI escape sequence.
type Code int

const (
	// NoColor is the environment variable that disables color output.
	NoColor = "NO_COLOR"
	// ForceColor is the environment variable that forces color output.
	ForceColor = "FORCE_COLOR"

	prefix    = "\033["
	suffix    = "m"
	resetSeq  = "\033[0m"
	sbPadding = 16
)

// Attributes.
const (
	Reset Code = 0
	Bold  Code = 1
	Faint Code = 2
)

// Foreground colors.
const (
	FgBlack Code = iota + 30
	FgRed
	FgGreen
	FgYellow
	FgBlue
	FgMagenta
	FgCyan
	FgWhite
)

// Foreground hi-intensity colors.
const (
	FgHiBlack Code = iota + 90
	FgHiRed
	FgHiGreen
	FgHiYellow
	FgHiBlue
	FgHiMagenta
	FgHiCyan
	FgHiWhite
)

var enabled = isColorCapable()

// ControlString returns the escape sequence for the codes, or "" when color is disabled.
func ControlString(codes ...Code) string {
	if !enabled || len(codes) == 0 {
		return ""
	}

	return sequence(codes)
}

// Colorize wraps str in the escape sequence for the codes followed by a reset.
func Colorize(str string, codes ...Code) string {
	if !enabled || len(codes) == 0 {
		return str
	}

	sb := strings.Builder{}
	sb.Grow(len(str) + len(resetSeq) + sbPadding)
	sb.WriteString(sequence(codes))
	sb.WriteString(str)
	sb.WriteString(resetSeq)

	return sb.String()
}

// Enabled reports whether color output was detected at startup.
// NO_COLOR wins over FORCE_COLOR; otherwise stdout must be a terminal.
func Enabled() bool {
	return enabled
}

func sequence(codes []Code) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(int(c))
	}

	return prefix + strings.Join(parts, ";") + suffix
}

func isColorCapable() bool {
	if os.Getenv(NoColor) != "" {
		return false
	}

	if os.Getenv(ForceColor) != "" {
		return true
	}

	return term.IsTerminal(int(os.Stdout.Fd()))
}
