// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package worker implements the hidden worker command started by run --isolate.
package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/dispatch"
	"github.com/matt-FFFFFF/chainrun/internal/protocol"
	"github.com/matt-FFFFFF/chainrun/internal/shellexec"
	"github.com/urfave/cli/v3"
)

const (
	shellFlag = "shell"
	envFlag   = "env"
)

// ErrInvalidEnv is returned for an --env value that is not KEY=VALUE.
var ErrInvalidEnv = errors.New("environment entries must be KEY=VALUE")

// WorkerCmd serves chains to a coordinator over stdin and stdout.
var WorkerCmd = &cli.Command{
	Name:   "worker",
	Usage:  "Run one worker process (started by run --isolate)",
	Hidden: true,
	Flags: []cli.Flag{
		&cli.StringFlag{Name: dispatch.RunIDFlag, Required: true},
		&cli.IntFlag{Name: dispatch.RankFlag, Required: true},
		&cli.IntFlag{Name: dispatch.SizeFlag, Required: true},
		&cli.StringFlag{Name: shellFlag},
		&cli.StringSliceFlag{Name: envFlag},
	},
	Action: actionFunc,
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	rc := dispatch.RunContext{
		RunID: cmd.String(dispatch.RunIDFlag),
		Rank:  cmd.Int(dispatch.RankFlag),
		Size:  cmd.Int(dispatch.SizeFlag),
	}

	if err := rc.Validate(); err != nil {
		return err //nolint:wrapcheck
	}

	if rc.Coordinator() {
		return fmt.Errorf("%w: rank 0 is the coordinator", dispatch.ErrInvalidRunContext)
	}

	env := make(map[string]string)

	for _, e := range cmd.StringSlice(envFlag) {
		k, v, ok := strings.Cut(e, "=")
		if !ok || k == "" {
			return fmt.Errorf("%w: %q", ErrInvalidEnv, e)
		}

		env[k] = v
	}

	opts := []shellexec.Option{shellexec.WithSignalForwarding(), shellexec.WithEnv(env)}
	if p := cmd.String(shellFlag); p != "" {
		opts = append(opts, shellexec.WithPath(p))
	}

	ctx = ctxlog.New(ctx, ctxlog.Logger(ctx).With("run", rc.RunID))

	conn := protocol.NewStreamConn(os.Stdin, os.Stdout, os.Stdin)

	return dispatch.NewWorker(rc, conn, shellexec.New(ctx, opts...)).Run(ctx) //nolint:wrapcheck
}
