// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package dispatch

import (
	"context"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matt-FFFFFF/chainrun/internal/protocol"
	"github.com/matt-FFFFFF/chainrun/internal/shellexec"
	"github.com/matt-FFFFFF/chainrun/internal/tasks"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const helperEnv = "CHAINRUN_DISPATCH_HELPER"

func TestMain(m *testing.M) {
	if os.Getenv(helperEnv) == "1" {
		os.Exit(runHelperWorker())
	}

	goleak.VerifyTestMain(m)
}

// runHelperWorker lets the test binary act as a worker subprocess.
func runHelperWorker() int {
	rc := RunContext{}

	args := os.Args[1:]
	for i := 0; i+1 < len(args); i++ {
		switch args[i] {
		case "--" + RunIDFlag:
			rc.RunID = args[i+1]
		case "--" + RankFlag:
			rc.Rank, _ = strconv.Atoi(args[i+1])
		case "--" + SizeFlag:
			rc.Size, _ = strconv.Atoi(args[i+1])
		}
	}

	if err := rc.Validate(); err != nil {
		return 2
	}

	conn := protocol.NewStreamConn(os.Stdin, os.Stdout, os.Stdin)

	if err := NewWorker(rc, conn, newFakeExec(0)).Run(context.Background()); err != nil {
		return 1
	}

	return 0
}

// fakeExec echoes each command and tracks how many run at once.
// Commands containing "fail" also write to stderr; "block" waits for ctx;
// "interrupt" ends as if a forwarded signal had killed it.
type fakeExec struct {
	delay    time.Duration
	inFlight atomic.Int32
	maxSeen  atomic.Int32
	mu       sync.Mutex
	ran      []string
}

func newFakeExec(delay time.Duration) *fakeExec {
	return &fakeExec{delay: delay}
}

func (f *fakeExec) Execute(ctx context.Context, command string) shellexec.Outcome {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)

	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}

	f.mu.Lock()
	f.ran = append(f.ran, command)
	f.mu.Unlock()

	out := shellexec.Outcome{
		Command:  command,
		Stdout:   []byte("ran: " + command + "\n"),
		LastLine: "ran: " + command,
	}

	if strings.Contains(command, "block") {
		<-ctx.Done()

		out.ExitCode = -1
		out.Faults = []*shellexec.Fault{{Kind: shellexec.FaultInterrupted, Err: ctx.Err()}}

		return out
	}

	if strings.Contains(command, "interrupt") {
		out.ExitCode = -1
		out.Faults = []*shellexec.Fault{{Kind: shellexec.FaultInterrupted, Err: shellexec.ErrSignalReceived}}

		return out
	}

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
		}
	}

	if strings.Contains(command, "fail") {
		out.Stderr = []byte("failed: " + command + "\n")
		out.ExitCode = 1
	}

	return out
}

func (f *fakeExec) commands() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]string(nil), f.ran...)
}

func newSet(t *testing.T, def string) *tasks.Set {
	t.Helper()

	s, err := tasks.ReadSet(strings.NewReader(def))
	require.NoError(t, err)

	return s
}

func testRunContext(size int) RunContext {
	return NewRunContext(size)
}
