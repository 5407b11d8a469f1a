// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"slices"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/protocol"
)

// Flags passed to every worker subprocess.
const (
	RunIDFlag = "run-id"
	RankFlag  = "rank"
	SizeFlag  = "size"
)

const workerWaitDelay = 5 * time.Second

// ErrStartWorker is returned when a worker subprocess cannot be started.
var ErrStartWorker = errors.New("could not start worker process")

var _ Pool = (*ProcessPool)(nil)

// ProcessPool runs each worker in a subprocess that speaks the stream
// protocol on its stdin and stdout. Worker stderr is passed through.
type ProcessPool struct {
	executable string
	args       []string
	env        []string
	stderr     io.Writer
	cmds       []*exec.Cmd
}

// ProcessOption configures a ProcessPool.
type ProcessOption func(*ProcessPool)

// WithProcessEnv adds KEY=VALUE entries to the inherited environment.
func WithProcessEnv(env ...string) ProcessOption {
	return func(p *ProcessPool) {
		p.env = append(p.env, env...)
	}
}

// WithProcessStderr sends worker stderr to w instead of os.Stderr.
func WithProcessStderr(w io.Writer) ProcessOption {
	return func(p *ProcessPool) {
		p.stderr = w
	}
}

// NewProcessPool runs executable with args followed by the run context flags.
func NewProcessPool(executable string, args []string, opts ...ProcessOption) *ProcessPool {
	p := &ProcessPool{
		executable: executable,
		args:       slices.Clone(args),
		stderr:     os.Stderr,
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Start implements Pool. The subprocesses are killed if ctx is cancelled.
func (p *ProcessPool) Start(ctx context.Context, rc RunContext) ([]protocol.Conn, error) {
	conns := make([]protocol.Conn, 0, rc.Workers())

	for rank := 1; rank < rc.Size; rank++ {
		conn, err := p.start(ctx, rc.WithRank(rank))
		if err != nil {
			for _, c := range conns {
				_ = c.Close()
			}

			return nil, err
		}

		conns = append(conns, conn)
	}

	return conns, nil
}

func (p *ProcessPool) start(ctx context.Context, rc RunContext) (protocol.Conn, error) {
	args := slices.Concat(p.args, []string{
		"--" + RunIDFlag, rc.RunID,
		"--" + RankFlag, strconv.Itoa(rc.Rank),
		"--" + SizeFlag, strconv.Itoa(rc.Size),
	})

	cmd := exec.CommandContext(ctx, p.executable, args...)
	cmd.Stderr = p.stderr
	cmd.WaitDelay = workerWaitDelay

	if len(p.env) > 0 {
		cmd.Env = append(os.Environ(), p.env...)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: rank %d: %w", ErrStartWorker, rc.Rank, err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: rank %d: %w", ErrStartWorker, rc.Rank, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: rank %d: %w", ErrStartWorker, rc.Rank, err)
	}

	ctxlog.Debug(ctx, "worker process started", "rank", rc.Rank, "pid", cmd.Process.Pid)

	p.cmds = append(p.cmds, cmd)

	return protocol.NewStreamConn(stdout, stdin, stdin, stdout), nil
}

// Wait implements Pool.
func (p *ProcessPool) Wait() error {
	var result error

	for i, cmd := range p.cmds {
		if err := cmd.Wait(); err != nil {
			result = multierror.Append(result, fmt.Errorf("worker rank %d: %w", i+1, err))
		}
	}

	return result
}
