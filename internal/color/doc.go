// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package color renders ANSI colour sequences when the output supports them.
// NO_COLOR disables colour, FORCE_COLOR enables it, otherwise it follows
// whether stdout is a terminal.
package color
