// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package show implements the show command.
package show

import (
	"context"
	"errors"

	"github.com/matt-FFFFFF/chainrun/internal/checkpoint"
	"github.com/matt-FFFFFF/chainrun/internal/report"
	"github.com/urfave/cli/v3"
)

const (
	fileArg            = "file"
	noOutputStdErrFlag = "no-output-stderr"
	noOutputStdOutFlag = "no-output-stdout"
)

var (
	// ErrReadFile is returned when the file cannot be read.
	ErrReadFile = errors.New("failed to read file")
	// ErrWriteResults is returned when the results cannot be written to stdout.
	ErrWriteResults = errors.New("failed to write results to stdout")
	// ErrNoFile is returned when no file argument is given.
	ErrNoFile = errors.New("specify the results file written by run --out")
)

// ShowCmd is the command that shows the results saved by run --out.
var ShowCmd = &cli.Command{
	Name:        "show",
	Usage:       "Show previously saved results",
	Description: "Show the results saved by run --out.",
	Arguments: []cli.Argument{
		&cli.StringArg{
			Name: fileArg,
		},
	},
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:    noOutputStdErrFlag,
			Aliases: []string{"no-stderr"},
			Usage:   "Exclude stderr from the per-chain output",
		},
		&cli.BoolFlag{
			Name:    noOutputStdOutFlag,
			Aliases: []string{"no-stdout"},
			Usage:   "Exclude stdout from the per-chain output",
		},
	},
	Action: func(_ context.Context, cmd *cli.Command) error {
		path := cmd.StringArg(fileArg)
		if path == "" {
			return ErrNoFile
		}

		file, err := checkpoint.FsFactory().Open(path)
		if err != nil {
			return errors.Join(ErrReadFile, err)
		}
		defer file.Close() //nolint:errcheck

		results, err := report.ReadBinary(file)
		if err != nil {
			return err //nolint:wrapcheck
		}

		opts := &report.OutputOptions{
			IncludeStdErr: !cmd.Bool(noOutputStdErrFlag),
			IncludeStdOut: !cmd.Bool(noOutputStdOutFlag),
		}

		if err := results.WriteText(cmd.Writer, opts); err != nil {
			return errors.Join(ErrWriteResults, err)
		}

		return nil
	},
}
