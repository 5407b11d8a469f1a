// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package signalbroker subscribes to the OS signals that should end a run.
// By default it listens for SIGINT, SIGTERM and SIGQUIT.
//
// Watch cancels a context once the same signal arrives twice, which lets the
// first interrupt reach running commands while the second one stops the run.
package signalbroker

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
)

var termSignals = []os.Signal{
	syscall.SIGINT,
	syscall.SIGTERM,
	syscall.SIGQUIT,
}

// New returns a channel notified of sigs, or of the termination signals when sigs is empty.
func New(ctx context.Context, sigs ...os.Signal) chan os.Signal {
	ch := make(chan os.Signal, 1)

	if len(sigs) == 0 {
		sigs = termSignals
	}

	ctxlog.Debug(ctx, "subscribing to signals", "signals", sigs)
	signal.Notify(ch, sigs...)

	return ch
}

// Stop unsubscribes ch from further signal delivery.
func Stop(ch chan os.Signal) {
	signal.Stop(ch)
}
