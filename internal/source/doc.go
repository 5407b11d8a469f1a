// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package source builds the task set for a run.
//
// A set comes from a task file (one chain per line), or from a command
// template expanded once per matching directory entry. Resuming applies a
// checkpoint on top of either definition.
package source
