// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package shellexec runs one command line through the system shell and
// captures its complete stdout and stderr as text.
//
// Execution never fails with a Go error. Anything that goes wrong (the process
// cannot be started, a pipe cannot be read, output is not valid UTF-8, the
// run is cancelled) is recorded as a Fault on the returned Outcome, and
// Outcome.Text folds those faults into diagnostic stderr text.
package shellexec
