// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shellexec

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
	"github.com/matt-FFFFFF/chainrun/internal/signalbroker"
	"github.com/matt-FFFFFF/chainrun/internal/teereader"
)

const (
	maxBufferSize  = 64 * 1024 * 1024 // 64MB per stream
	tickerInterval = 30 * time.Second
	lastLineLength = 120
	drainGrace     = 2 * time.Second
)

var (
	// ErrBufferOverflow is returned when a stream exceeds the max size.
	ErrBufferOverflow = fmt.Errorf("output exceeds max size of %d bytes", maxBufferSize)
	// ErrCouldNotStartProcess is returned when the process could not be started.
	ErrCouldNotStartProcess = errors.New("could not start process")
	// ErrFailedToReadBuffer is returned when an operating system pipe could not be read.
	ErrFailedToReadBuffer = errors.New("failed to read buffer")
	// ErrFailedToCreatePipe is returned when an operating system pipe could not be created.
	ErrFailedToCreatePipe = errors.New("failed to create pipe")
	// ErrContextDone is recorded when the context ends while the process is running.
	ErrContextDone = errors.New("context done, process killed")
	// ErrSignalReceived is recorded when a signal was forwarded to the process.
	ErrSignalReceived = errors.New("signal received")
	// ErrDuplicateSignalReceived is recorded when a second signal forced the process to terminate.
	ErrDuplicateSignalReceived = errors.New("duplicate signal received, process forcefully terminated")
)

// Command is a single operating system process.
type Command struct {
	Path  string            // Full path of the executable.
	Args  []string          // Arguments, excluding the executable name.
	Cwd   string            // Working directory, empty for the current one.
	Env   map[string]string // Added to the inherited environment.
	sigCh chan os.Signal    // Signals forwarded to the process, nil disables forwarding.
}

// Run starts the process, waits for it and returns everything it wrote.
// Stdin is connected to the null device.
func (c *Command) Run(ctx context.Context) Outcome {
	logger := ctxlog.Logger(ctx).With("path", c.Path)
	logger.Debug("command info", "cwd", c.Cwd, "args", c.Args)

	out := Outcome{ExitCode: -1}

	env := os.Environ()
	for k, v := range c.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	devNull, err := os.Open(os.DevNull)
	if err != nil {
		out.addFault(FaultLaunch, StreamNone, err)
		return out
	}
	defer devNull.Close() //nolint:errcheck

	rOut, wOut, err := os.Pipe()
	if err != nil {
		out.addFault(FaultLaunch, StreamNone, errors.Join(ErrFailedToCreatePipe, err))
		return out
	}
	defer rOut.Close() //nolint:errcheck

	rErr, wErr, err := os.Pipe()
	if err != nil {
		_ = wOut.Close()

		out.addFault(FaultLaunch, StreamNone, errors.Join(ErrFailedToCreatePipe, err))

		return out
	}
	defer rErr.Close() //nolint:errcheck

	args := slices.Concat([]string{filepath.Base(c.Path)}, c.Args)

	ps, err := os.StartProcess(c.Path, args, &os.ProcAttr{
		Dir:   c.Cwd,
		Env:   env,
		Files: []*os.File{devNull, wOut, wErr},
	})

	// The child holds its own copies; ours must go so the readers see EOF.
	_ = wOut.Close()
	_ = wErr.Close()

	if err != nil {
		out.addFault(FaultLaunch, StreamNone, errors.Join(ErrCouldNotStartProcess, err))
		return out
	}

	startTime := time.Now()

	logger = logger.With("pid", ps.Pid)
	logger.Debug("process started")

	stdoutTee := teereader.New(rOut)

	var (
		wg                 sync.WaitGroup
		stdout, stderr     []byte
		stdoutErr, errsErr error
	)

	wg.Add(2) //nolint:mnd

	go func() {
		defer wg.Done()

		stdout, stdoutErr = readAllUpToMax(ctx, stdoutTee, maxBufferSize)
	}()

	go func() {
		defer wg.Done()

		stderr, errsErr = readAllUpToMax(ctx, rErr, maxBufferSize)
	}()

	done := make(chan struct{})
	killed := make(chan error, 1)

	go c.watchdog(ctx, ps, startTime, done, killed)

	state, psErr := ps.Wait()

	close(done)

	readersDone := make(chan struct{})

	go func() {
		wg.Wait()
		close(readersDone)
	}()

	select {
	case <-readersDone:
	case <-ctx.Done():
		// Orphaned grandchildren can keep the pipes open after a kill.
		select {
		case <-readersDone:
		case <-time.After(drainGrace):
			logger.Debug("closing pipes held open by descendants")

			_ = rOut.Close()
			_ = rErr.Close()

			<-readersDone
		}
	}

	out.Stdout = stdout
	out.Stderr = stderr
	out.LastLine = stdoutTee.LastLine(lastLineLength)

	if state != nil {
		out.ExitCode = state.ExitCode()
	}

	logger.Debug("process finished", "exitCode", out.ExitCode, "elapsed", time.Since(startTime).Round(time.Millisecond))

	if psErr != nil {
		out.addFault(FaultRead, StreamNone, psErr)
	}

	select {
	case e := <-killed:
		out.addFault(FaultInterrupted, StreamNone, e)
	default:
	}

	if stdoutErr != nil {
		out.addFault(FaultRead, StreamStdout, stdoutErr)
	}

	if errsErr != nil {
		out.addFault(FaultRead, StreamStderr, errsErr)
	}

	out.checkEncoding()

	return out
}

// watchdog forwards signals to the process and kills it when ctx is done
// or when the same signal arrives twice.
func (c *Command) watchdog(ctx context.Context, ps *os.Process, startTime time.Time, done <-chan struct{}, killed chan<- error) {
	logger := ctxlog.Logger(ctx).With("pid", ps.Pid)
	signalCount := make(map[os.Signal]struct{})
	sigCh := c.sigCh

	ticker := time.NewTicker(tickerInterval)
	defer ticker.Stop()

	// report keeps only the first reason; killed has room for exactly one.
	report := func(err error) {
		select {
		case killed <- err:
		default:
		}
	}

	for {
		select {
		case <-ticker.C:
			logger.Debug("process still running", "elapsed", time.Since(startTime).Round(time.Second))

		case s, ok := <-sigCh:
			if !ok {
				sigCh = nil
				continue
			}

			if _, dup := signalCount[s]; dup {
				logger.Info("received duplicate signal, killing process", "signal", s.String())
				killPs(ctx, ps)
				report(ErrDuplicateSignalReceived)

				return
			}

			signalCount[s] = struct{}{}

			logger.Info("forwarding signal", "signal", s.String())

			if err := ps.Signal(s); err != nil {
				logger.Debug("failed to send signal", "signal", s.String(), "error", err)
			}

			report(ErrSignalReceived)

		case <-ctx.Done():
			logger.Info("context done, killing process")
			killPs(ctx, ps)
			report(errors.Join(ErrContextDone, ctx.Err()))

			return

		case <-done:
			return
		}
	}
}

func readAllUpToMax(ctx context.Context, r io.Reader, maxBufferSize int64) ([]byte, error) {
	var buf bytes.Buffer

	n, err := io.CopyN(&buf, r, maxBufferSize+1)
	if err != nil && !errors.Is(err, io.EOF) {
		return buf.Bytes(), errors.Join(ErrFailedToReadBuffer, err)
	}

	if n > maxBufferSize {
		ctxlog.Debug(ctx, "buffer overflow", "bytesRead", n, "maxBytes", maxBufferSize)

		// Drain the rest so the child never blocks on a full pipe.
		_, _ = io.Copy(io.Discard, r)

		return buf.Bytes()[:maxBufferSize], ErrBufferOverflow
	}

	return buf.Bytes(), nil
}

func killPs(ctx context.Context, ps *os.Process) {
	if err := ps.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			ctxlog.Debug(ctx, "process already done", "pid", ps.Pid)
			return
		}

		ctxlog.Error(ctx, "process kill error", "pid", ps.Pid, "error", err)

		return
	}

	ctxlog.Info(ctx, "process killed", "pid", ps.Pid)
}

// subscribe returns a channel of forwarded signals and a function releasing it.
func subscribe(ctx context.Context) (chan os.Signal, func()) {
	ch := signalbroker.New(ctx)

	return ch, func() { signalbroker.Stop(ch) }
}
