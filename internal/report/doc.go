// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package report renders chain results as text and saves them in a binary
// results file that can be displayed again later.
package report
