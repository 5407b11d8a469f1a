// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package main contains the chainrun command-line interface (CLI).
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/matt-FFFFFF/chainrun"
	"github.com/matt-FFFFFF/chainrun/cmd/chainrun/run"
	"github.com/matt-FFFFFF/chainrun/cmd/chainrun/show"
	"github.com/matt-FFFFFF/chainrun/cmd/chainrun/status"
	"github.com/matt-FFFFFF/chainrun/cmd/chainrun/worker"
	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/signalbroker"
	"github.com/urfave/cli/v3"
)

// rootCmd is the root command for the CLI.
var rootCmd = &cli.Command{
	Commands: []*cli.Command{
		run.RunCmd,
		show.ShowCmd,
		status.StatusCmd,
		worker.WorkerCmd,
	},
	Writer:    os.Stdout,
	ErrWriter: os.Stderr,
	Name:      "chainrun",
	Description: `chainrun runs many independent chains of shell commands across a pool of
workers. The steps of a chain run in order on one worker. Progress is saved to
checkpoint files after every completed chain so that an interrupted run can be
resumed without repeating finished steps.`,
	Usage:     "chainrun run --taskfile tasks.txt --checkpoint-base ck",
	Copyright: "Copyright (c) matt-FFFFFF 2025. All rights reserved.",
	Authors: []any{
		"Matt White (matt-FFFFFF)",
	},
	EnableShellCompletion: true,
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.New(ctx, ctxlog.DefaultLogger)
	defer cancel()

	sigCh := signalbroker.New(ctx)

	go signalbroker.Watch(ctx, sigCh, cancel)

	rootCmd.Version = fmt.Sprintf("%s (commit: %s)", chainrun.Version, chainrun.Commit)

	err := rootCmd.Run(ctx, os.Args) // Err is handled by cli framework

	if ctx.Err() != nil {
		ctxlog.Logger(ctx).Error("command terminated due to cancellation", "error", ctx.Err())
		os.Exit(1)
	}

	if err != nil {
		ctxlog.Logger(ctx).Error("command execution failed", "error", err)
		os.Exit(1)
	}

	ctxlog.Logger(ctx).Debug("command completed successfully")
}
