// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shellexec

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// FaultKind classifies why a command did not produce clean output.
type FaultKind int

const (
	// FaultLaunch means the process could not be started.
	FaultLaunch FaultKind = iota
	// FaultRead means an output stream could not be read completely.
	FaultRead
	// FaultDecode means an output stream was not valid UTF-8.
	FaultDecode
	// FaultInterrupted means the process was killed or signalled before it finished.
	FaultInterrupted
)

// String implements fmt.Stringer.
func (k FaultKind) String() string {
	switch k {
	case FaultLaunch:
		return "launch"
	case FaultRead:
		return "read"
	case FaultDecode:
		return "decode"
	case FaultInterrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Stream names an output stream of a process.
type Stream string

// Output streams.
const (
	StreamNone   Stream = ""
	StreamStdout Stream = "stdout"
	StreamStderr Stream = "stderr"
)

// Fault is a structured execution failure.
type Fault struct {
	Kind   FaultKind
	Stream Stream
	Err    error
}

// Error implements error.
func (f *Fault) Error() string {
	msg := f.Kind.String() + " fault"
	if f.Stream != StreamNone {
		msg += " on " + string(f.Stream)
	}

	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}

	return msg
}

// Unwrap returns the underlying error.
func (f *Fault) Unwrap() error {
	return f.Err
}

// Outcome is the captured result of one command.
type Outcome struct {
	Command  string
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	LastLine string
	Faults   []*Fault
}

// Err joins the faults into one error, or returns nil for a clean run.
func (o Outcome) Err() error {
	errs := make([]error, len(o.Faults))
	for i, f := range o.Faults {
		errs[i] = f
	}

	return errors.Join(errs...)
}

// Faulted reports whether any fault was recorded.
func (o Outcome) Faulted() bool {
	return len(o.Faults) > 0
}

// Interrupted reports whether the process was signalled or killed before it finished.
func (o Outcome) Interrupted() bool {
	for _, f := range o.Faults {
		if f.Kind == FaultInterrupted {
			return true
		}
	}

	return false
}

func (o *Outcome) addFault(kind FaultKind, stream Stream, err error) {
	o.Faults = append(o.Faults, &Fault{Kind: kind, Stream: stream, Err: err})
}

// checkEncoding records a decode fault for each stream that is not valid UTF-8.
func (o *Outcome) checkEncoding() {
	if !utf8.Valid(o.Stdout) {
		o.addFault(FaultDecode, StreamStdout, nil)
	}

	if !utf8.Valid(o.Stderr) {
		o.addFault(FaultDecode, StreamStderr, nil)
	}
}

// Text returns stdout and stderr as strings with every fault rendered as a
// diagnostic line appended to stderr. Invalid UTF-8 is replaced by U+FFFD.
func (o Outcome) Text() (string, string) {
	stdout := strings.ToValidUTF8(string(o.Stdout), "�")
	stderr := strings.ToValidUTF8(string(o.Stderr), "�")

	if len(o.Faults) == 0 {
		return stdout, stderr
	}

	var sb strings.Builder

	sb.WriteString(stderr)

	if stderr != "" && !strings.HasSuffix(stderr, "\n") {
		sb.WriteString("\n")
	}

	for _, f := range o.Faults {
		sb.WriteString(o.diagnostic(f))
		sb.WriteString("\n")
	}

	return stdout, sb.String()
}

func (o Outcome) diagnostic(f *Fault) string {
	var msg string

	switch {
	case f.Kind == FaultLaunch:
		msg = "UNKNOWN ERROR EXECUTING CMD: " + o.Command
	case f.Kind == FaultDecode && f.Stream == StreamStdout:
		msg = "OUTPUT DECODE EXCEPTION FOR COMMAND " + o.Command
	case f.Kind == FaultDecode:
		msg = "ERROR DECODE EXCEPTION FOR COMMAND " + o.Command
	case f.Kind == FaultRead && f.Stream == StreamNone:
		msg = "WAIT EXCEPTION FOR COMMAND " + o.Command
	case f.Kind == FaultRead:
		msg = fmt.Sprintf("%s READ EXCEPTION FOR COMMAND %s", strings.ToUpper(string(f.Stream)), o.Command)
	default:
		msg = "COMMAND INTERRUPTED: " + o.Command
	}

	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}

	return msg
}
