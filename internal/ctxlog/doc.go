// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package ctxlog carries a slog.Logger on a context.Context.
//
// The default is a pretty console handler writing to stderr. The level is read
// once from the CHAINRUN_LOG_LEVEL environment variable ("DEBUG", "INFO",
// "WARN" or "ERROR"); anything else means INFO.
package ctxlog
