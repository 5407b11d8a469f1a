// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package tui provides a terminal user interface for watching a run. It shows
// an overall progress bar, one row per worker with the chain it is running and
// the last line that chain printed, and the most recently completed chains.
//
// The model is driven entirely by progress events, so the scheduler and the
// serial runner need no knowledge of it.
package tui
