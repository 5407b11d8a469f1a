// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package signalbroker

import (
	"context"
	"os"

	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
)

// Watch reads sigCh until it is closed or ctx is done.
// The second delivery of any one signal cancels the run and closes sigCh.
func Watch(ctx context.Context, sigCh chan os.Signal, cancel context.CancelFunc) {
	seen := make(map[os.Signal]struct{})

	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-sigCh:
			if !ok {
				return
			}

			if _, dup := seen[sig]; dup {
				ctxlog.Warn(ctx, "second signal received, cancelling run", "signal", sig.String())
				Stop(sigCh)
				close(sigCh)
				cancel()

				return
			}

			ctxlog.Info(ctx, "signal received, press again to cancel the run", "signal", sig.String())

			seen[sig] = struct{}{}
		}
	}
}
