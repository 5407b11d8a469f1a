// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package teereader remembers the last complete line of a stream while it is
// being read, so a long-running task can show its latest output.
package teereader
