// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package status implements the status command.
package status

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/matt-FFFFFF/chainrun/internal/checkpoint"
	"github.com/matt-FFFFFF/chainrun/internal/tasks"
	"github.com/urfave/cli/v3"
)

const (
	fileArg  = "checkpoint"
	listFlag = "list"
)

// ErrNoFile is returned when no checkpoint argument is given.
var ErrNoFile = errors.New("specify a checkpoint file")

// StatusCmd prints the progress recorded in a checkpoint.
var StatusCmd = &cli.Command{
	Name:        "status",
	Usage:       "Show the progress recorded in a checkpoint",
	Description: "Read a checkpoint written by run and print how many chains are complete.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name: fileArg,
		},
	},
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    listFlag,
			Aliases: []string{"l"},
			Usage:   "List the recorded line of every chain",
		},
	},
	Action: func(_ context.Context, cmd *cli.Command) error {
		path := cmd.StringArg(fileArg)
		if path == "" {
			return ErrNoFile
		}

		snap, err := checkpoint.Load(checkpoint.FsFactory(), path)
		if err != nil {
			return err //nolint:wrapcheck
		}

		return write(cmd.Writer, path, snap, cmd.Bool(listFlag))
	},
}

func write(w io.Writer, path string, snap *checkpoint.Snapshot, list bool) error {
	started := snap.Started()
	partial := max(started-snap.Completed, 0)

	_, err := fmt.Fprintf(w, "%s: %d of %d chains complete, %d partially done, %d not started\n",
		path, snap.Completed, snap.Total, partial, snap.Total-started)
	if err != nil || !list {
		return err //nolint:wrapcheck
	}

	for i, l := range snap.Lines {
		if l == tasks.UndoneSentinel {
			l = "(not started)"
		}

		if _, err := fmt.Fprintf(w, "  [%d] %s\n", i, l); err != nil {
			return err //nolint:wrapcheck
		}
	}

	return nil
}
