// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package shellexec

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/matt-FFFFFF/chainrun/internal/ctxlog"
)

const (
	goosWindows          = "windows"
	commandSwitchWindows = "/C"
	commandSwitchUnix    = "-c"
	winSystem32          = "System32"
	cmdExe               = "cmd.exe"
	binSh                = "/bin/sh"
	winSystemRootEnv     = "SystemRoot"
	shellEnv             = "SHELL"
)

// Shell executes command lines through a shell interpreter.
type Shell struct {
	Path           string            // Interpreter path; see DefaultShell.
	Cwd            string            // Working directory for every command.
	Env            map[string]string // Extra environment variables.
	ForwardSignals bool              // Relay termination signals to the running command.
}

// Option configures a Shell.
type Option func(*Shell)

// WithPath overrides the interpreter.
func WithPath(path string) Option {
	return func(s *Shell) {
		s.Path = path
	}
}

// WithCwd sets the working directory.
func WithCwd(dir string) Option {
	return func(s *Shell) {
		s.Cwd = dir
	}
}

// WithEnv adds environment variables.
func WithEnv(env map[string]string) Option {
	return func(s *Shell) {
		s.Env = env
	}
}

// WithSignalForwarding relays SIGINT, SIGTERM and SIGQUIT to running commands.
func WithSignalForwarding() Option {
	return func(s *Shell) {
		s.ForwardSignals = true
	}
}

// New returns a Shell using DefaultShell unless overridden.
func New(ctx context.Context, opts ...Option) *Shell {
	s := &Shell{Path: DefaultShell(ctx)}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Execute runs command and captures its output. It never returns an error;
// failures are recorded as faults on the Outcome.
func (s *Shell) Execute(ctx context.Context, command string) Outcome {
	c := &Command{
		Path: s.Path,
		Args: shellArgs(command),
		Cwd:  s.Cwd,
		Env:  s.Env,
	}

	if s.ForwardSignals {
		ch, release := subscribe(ctx)
		defer release()

		c.sigCh = ch
	}

	out := c.Run(ctx)
	out.Command = command

	if out.Faulted() {
		ctxlog.Debug(ctx, "command faulted", "command", command, "error", out.Err())
	}

	return out
}

func shellArgs(command string) []string {
	if runtime.GOOS == goosWindows {
		return []string{commandSwitchWindows, command}
	}

	return []string{commandSwitchUnix, command}
}

// DefaultShell returns cmd.exe on Windows, otherwise $SHELL or /bin/sh.
func DefaultShell(ctx context.Context) string {
	if runtime.GOOS == goosWindows {
		systemRoot := os.Getenv(winSystemRootEnv)
		if systemRoot == "" {
			systemRoot = `C:\Windows`
		}

		return fmt.Sprintf(`%s\%s\%s`, systemRoot, winSystem32, cmdExe)
	}

	if shell := os.Getenv(shellEnv); shell != "" {
		ctxlog.Debug(ctx, "using SHELL environment variable", "shell", shell)
		return shell
	}

	return binSh
}
