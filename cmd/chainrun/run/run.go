// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

// Package run implements the run command.
package run

import (
	"bytes"
	"context"
	"errors"
	"os"
	"runtime"

	"github.com/matt-FFFFFF/chainrun/internal/checkpoint"
	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/dispatch"
	"github.com/matt-FFFFFF/chainrun/internal/progress"
	"github.com/matt-FFFFFF/chainrun/internal/report"
	"github.com/matt-FFFFFF/chainrun/internal/shellexec"
	"github.com/matt-FFFFFF/chainrun/internal/source"
	"github.com/matt-FFFFFF/chainrun/internal/tasks"
	"github.com/matt-FFFFFF/chainrun/internal/tui"
	"github.com/spf13/afero"
	"github.com/urfave/cli/v3"
)

const (
	taskFileFlag       = "taskfile"
	templateFlag       = "template"
	patternFlag        = "pattern"
	globFlag           = "glob"
	checkpointFlag     = "checkpoint"
	checkpointBaseFlag = "checkpoint-base"
	numCheckpointsFlag = "num-checkpoints"
	finishBaseFlag     = "finish-base"
	workersFlag        = "workers"
	isolateFlag        = "isolate"
	configFlag         = "config"
	outFlag            = "out"
	tuiFlag            = "tui"
	noOutputStdErrFlag = "no-output-stderr"
	noOutputStdOutFlag = "no-output-stdout"
	dirFlag            = "dir"
	shellFlag          = "shell"
	envFlag            = "env"
	cliExitStr         = ""
	eventBufferSize    = 256
)

var (
	// ErrWriteResults is returned when the --out file cannot be written.
	ErrWriteResults = errors.New("failed to write results file")
	// ErrWorkerExecutable is returned when the path of the running binary is unknown.
	ErrWorkerExecutable = errors.New("cannot locate executable for worker processes")
)

// RunCmd is the command that runs a set of command chains.
var RunCmd = newCommand()

func newCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "Run command chains across workers, with checkpoints",
		Description: `Run every chain of a task set, spreading whole chains across workers.

A task file holds one chain per line. The steps of a chain are separated by &&&
and run in order on the same worker; a step runs even if the previous one wrote
to stderr. Blank lines and lines starting with # are ignored. Task files may be
local paths or go-getter URLs.

Alternatively give a template containing {file} and a --pattern (regular
expression matched against whole names) or --glob. One chain is made per
matching entry of --dir, skipping entries that have a sibling <name>.skip.

With --checkpoint-base, a checkpoint is written after every completed chain.
Pass one back with --checkpoint, together with the original definition, to
resume: completed steps are not run again. When every chain is done a
<finish-base>_finished marker file is written.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:      taskFileFlag,
				Aliases:   []string{"f"},
				Usage:     "Task file, one chain per line. Local path or go-getter URL",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.StringFlag{
				Name:     templateFlag,
				Aliases:  []string{"t"},
				Usage:    "Chain template containing {file}",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     patternFlag,
				Aliases:  []string{"r"},
				Usage:    "Regular expression selecting names for the template",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     globFlag,
				Usage:    "Glob selecting names for the template, an alternative to --pattern",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     dirFlag,
				Usage:    "Directory searched by --pattern or --glob",
				Value:    ".",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:      checkpointFlag,
				Aliases:   []string{"c"},
				Usage:     "Checkpoint to resume from",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.StringFlag{
				Name:     checkpointBaseFlag,
				Aliases:  []string{"b"},
				Usage:    "Base name for checkpoints. No checkpoints are written without it",
				OnlyOnce: true,
			},
			&cli.IntFlag{
				Name:     numCheckpointsFlag,
				Aliases:  []string{"n"},
				Usage:    "Number of checkpoints to keep, -1 for all, 0 for none",
				Value:    checkpoint.DefaultRetain,
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     finishBaseFlag,
				Usage:    "Base name of the finish marker file",
				Value:    checkpoint.DefaultFinishBase,
				OnlyOnce: true,
			},
			&cli.IntFlag{
				Name:     workersFlag,
				Aliases:  []string{"w"},
				Usage:    "Number of chains to run at once. 1 runs every chain in order",
				Value:    runtime.NumCPU(),
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     isolateFlag,
				Usage:    "Run each worker in its own process",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     shellFlag,
				Usage:    "Shell used to run each step. Defaults to $SHELL or /bin/sh",
				OnlyOnce: true,
			},
			&cli.StringSliceFlag{
				Name:  envFlag,
				Usage: "Extra KEY=VALUE environment for every step. May be repeated",
			},
			&cli.StringFlag{
				Name:      configFlag,
				Usage:     "YAML or HCL run file holding any of these settings. Flags win over the file",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.StringFlag{
				Name:      outFlag,
				Usage:     "Write the results to this file, for use with show",
				TakesFile: true,
				OnlyOnce:  true,
			},
			&cli.BoolFlag{
				Name:     tuiFlag,
				Usage:    "Show an interactive progress view",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     noOutputStdErrFlag,
				Aliases:  []string{"no-stderr"},
				Usage:    "Exclude stderr from the per-chain output",
				OnlyOnce: true,
			},
			&cli.BoolFlag{
				Name:     noOutputStdOutFlag,
				Aliases:  []string{"no-stdout"},
				Usage:    "Exclude stdout from the per-chain output",
				OnlyOnce: true,
			},
		},
		Action: actionFunc,
	}
}

func actionFunc(ctx context.Context, cmd *cli.Command) error {
	logger := ctxlog.Logger(ctx).With("command", cmd.Name)
	logger.Debug("Running run command")

	s, err := resolve(cmd)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return cli.Exit(cliExitStr, 1)
	}

	fs := checkpoint.FsFactory()

	set, err := source.NewLoader(fs).Load(ctx, s.source)
	if err != nil {
		logger.Error("could not load chains", "error", err)
		return cli.Exit(cliExitStr, 1)
	}

	store := checkpoint.NewStore(fs, s.checkpointBase,
		checkpoint.WithRetain(s.retain),
		checkpoint.WithFinishBase(s.finishBase),
	)

	rc := dispatch.NewRunContext(s.size())
	rec := report.NewRecorder(cmd.Writer, s.output)

	var (
		summary report.Summary
		runErr  error
	)

	switch s.tui {
	case true:
		logger.Info("Starting interactive TUI mode...")

		buf := new(bytes.Buffer)
		tuiCtx := ctxlog.NewForTUI(ctx, buf)

		// Chains are printed once the TUI has exited.
		rec = report.NewRecorder(nil, s.output)

		summary, runErr = tui.NewRunner(tuiCtx).Run(tuiCtx, func(ctx context.Context, reporter progress.Reporter) (report.Summary, error) {
			return execute(ctx, rc, s, set, dispatch.WithStore(store), dispatch.WithRecorder(rec), dispatch.WithReporter(reporter))
		})

		buf.WriteTo(cmd.ErrWriter) //nolint:errcheck

		for _, c := range rec.Results(rc.RunID, summary).Chains {
			if err := report.WriteChain(cmd.Writer, c, s.output); err != nil {
				logger.Warn("could not write chain result", "chain", c.Index, "error", err)
			}
		}
	default:
		reporter := progress.NewChannelReporter(ctx, eventBufferSize)
		reporter.Listen(&eventLogger{ctx: ctx})

		summary, runErr = execute(ctx, rc, s, set, dispatch.WithStore(store), dispatch.WithRecorder(rec), dispatch.WithReporter(reporter))

		reporter.Close()
	}

	if err := report.WriteSummary(cmd.Writer, summary); err != nil {
		logger.Warn("could not write summary", "error", err)
	}

	if s.out != "" {
		if err := writeResults(fs, s.out, rec.Results(rc.RunID, summary)); err != nil {
			logger.Error("could not save results", "file", s.out, "error", err)
			return cli.Exit(cliExitStr, 1)
		}

		logger.Info("results written", "file", s.out)
	}

	if runErr != nil {
		logger.Error("run stopped before all chains completed", "error", runErr, "remaining", summary.Remaining())
		return cli.Exit(cliExitStr, 1)
	}

	if summary.ErrorChains > 0 {
		logger.Warn("some chains wrote to stderr, see above for details", "chains", summary.ErrorChains)
	}

	return nil
}

// execute runs set in the calling goroutine when rc has a single rank,
// otherwise through a scheduler and a pool of rc.Size-1 workers.
func execute(ctx context.Context, rc dispatch.RunContext, s *settings, set *tasks.Set, opts ...dispatch.Option) (report.Summary, error) {
	shell := newShell(ctx, s)

	if rc.Size == 1 {
		return dispatch.NewSerialRunner(rc, set, shell, opts...).Run(ctx)
	}

	pool, err := newPool(s, shell)
	if err != nil {
		return report.Summary{Total: set.Total(), PreviouslyDone: set.Completed()}, err
	}

	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conns, err := pool.Start(poolCtx, rc)
	if err != nil {
		return report.Summary{Total: set.Total(), PreviouslyDone: set.Completed()}, err //nolint:wrapcheck
	}

	summary, runErr := dispatch.NewScheduler(rc, set, conns, opts...).Run(ctx)
	if runErr != nil {
		cancel()
	}

	if err := pool.Wait(); err != nil {
		ctxlog.Debug(ctx, "workers exited with errors", "error", err)
	}

	return summary, runErr
}

func newShell(ctx context.Context, s *settings) *shellexec.Shell {
	opts := []shellexec.Option{
		shellexec.WithSignalForwarding(),
		shellexec.WithEnv(s.env),
	}

	if s.shell != "" {
		opts = append(opts, shellexec.WithPath(s.shell))
	}

	return shellexec.New(ctx, opts...)
}

func newPool(s *settings, shell *shellexec.Shell) (dispatch.Pool, error) {
	if !s.isolate {
		return dispatch.NewLocalPool(shell), nil
	}

	exe, err := os.Executable()
	if err != nil {
		return nil, errors.Join(ErrWorkerExecutable, err)
	}

	args := []string{"worker", "--" + shellFlag, shell.Path}
	for _, e := range s.envList() {
		args = append(args, "--"+envFlag, e)
	}

	return dispatch.NewProcessPool(exe, args), nil
}

func writeResults(fs afero.Fs, path string, res *report.Results) error {
	f, err := fs.Create(path)
	if err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	if err := res.WriteBinary(f); err != nil {
		_ = f.Close()
		return errors.Join(ErrWriteResults, err)
	}

	if err := f.Close(); err != nil {
		return errors.Join(ErrWriteResults, err)
	}

	return nil
}

// eventLogger logs the progress events the ledger does not already log.
type eventLogger struct {
	ctx context.Context //nolint:containedctx
}

// OnEvent implements progress.Listener.
func (l *eventLogger) OnEvent(e progress.Event) {
	switch e.Type {
	case progress.EventRunStarted:
		ctxlog.Info(l.ctx, "run started",
			"total", e.Data.Total, "previouslyDone", e.Data.PreviouslyDone, "workers", e.Data.Workers)
	case progress.EventCheckpoint:
		ctxlog.Debug(l.ctx, "checkpoint saved", "path", e.Data.Path, "completed", e.Data.Completed)
	case progress.EventDraining:
		ctxlog.Debug(l.ctx, "all chains assigned, stopping workers")
	}
}
