// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package ctxlog

import (
	"context"
	"io"
	"log/slog"
	"os"
)

const logLevelEnvVar = "CHAINRUN_LOG_LEVEL"

type loggerKey struct{}

// LevelVar holds the level shared by every logger created in this package.
var LevelVar = &slog.LevelVar{}

// DefaultLogger is a pretty console logger writing to stderr.
// Stdout is reserved: subprocess workers use it as their message channel.
var DefaultLogger = slog.New(NewPrettyHandler(&slog.HandlerOptions{
	Level: LevelVar,
},
	WithAutoColour(),
	WithDestinationWriter(os.Stderr),
))

// JSONLogger is a structured logger writing JSON lines to stderr.
var JSONLogger = slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
	Level: LevelVar,
}))

func init() {
	LevelVar.Set(logLevelFromEnv())
}

// New returns a copy of ctx carrying logger.
// If logger is nil, DefaultLogger is used.
func New(ctx context.Context, logger *slog.Logger) context.Context {
	if logger == nil {
		logger = DefaultLogger
	}

	return context.WithValue(ctx, loggerKey{}, logger)
}

// NewForTUI returns a copy of ctx whose logger writes plain text to w,
// so log lines do not corrupt the terminal user interface.
func NewForTUI(ctx context.Context, w io.Writer) context.Context {
	return New(ctx, slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: LevelVar,
	})))
}

// Logger returns the logger from the context, or the default logger if not found.
func Logger(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return DefaultLogger
	}

	return logger
}

// Info logs an info message with the given context.
func Info(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Info(msg, args...)
}

// Debug logs a debug message with the given context.
func Debug(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Debug(msg, args...)
}

// Warn logs a warning message with the given context.
func Warn(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Warn(msg, args...)
}

// Error logs an error message with the given context.
func Error(ctx context.Context, msg string, args ...any) {
	Logger(ctx).Error(msg, args...)
}

func logLevelFromEnv() slog.Level {
	switch os.Getenv(logLevelEnvVar) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
