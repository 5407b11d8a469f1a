// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package checkpoint

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/matt-FFFFFF/chainrun/internal/tasks"
	"github.com/spf13/afero"
)

const (
	statusHeader    = "# CHECKPOINT STATUS"
	totalPrefix     = "# TOTAL CHAINS: "
	completedPrefix = "# COMPLETED CHAINS: "
)

var (
	// ErrMalformed is returned when a checkpoint cannot be parsed.
	ErrMalformed = errors.New("malformed checkpoint")
	// ErrReadSnapshot is returned when a checkpoint file cannot be read.
	ErrReadSnapshot = errors.New("could not read checkpoint")
)

// Snapshot is the parsed content of a checkpoint file.
type Snapshot struct {
	Total     int
	Completed int
	Lines     []string // One per chain, as written.
}

// FromSet captures the current state of set.
func FromSet(set *tasks.Set) *Snapshot {
	s := &Snapshot{
		Total:     set.Total(),
		Completed: set.Completed(),
		Lines:     make([]string, 0, set.Total()),
	}

	for _, c := range set.All() {
		s.Lines = append(s.Lines, c.DoneString())
	}

	return s
}

// WriteTo renders the snapshot in checkpoint file format.
func (s *Snapshot) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder

	sb.WriteString(statusHeader + "\n")
	sb.WriteString(totalPrefix + strconv.Itoa(s.Total) + "\n")
	sb.WriteString(completedPrefix + strconv.Itoa(s.Completed) + "\n")

	for _, l := range s.Lines {
		sb.WriteString(l)
		sb.WriteString("\n")
	}

	n, err := io.WriteString(w, sb.String())

	return int64(n), err //nolint:wrapcheck
}

// Prefixes returns the completed steps recorded for each chain, nil for the
// undone sentinel.
func (s *Snapshot) Prefixes() [][]string {
	out := make([][]string, len(s.Lines))

	for i, l := range s.Lines {
		if l == tasks.UndoneSentinel {
			continue
		}

		steps := strings.Split(l, tasks.Delimiter)
		for j := range steps {
			steps[j] = strings.TrimSpace(steps[j])
		}

		out[i] = steps
	}

	return out
}

// Started returns how many chains have at least one completed step.
func (s *Snapshot) Started() int {
	n := 0

	for _, l := range s.Lines {
		if l != tasks.UndoneSentinel {
			n++
		}
	}

	return n
}

// Parse reads a checkpoint. Blank lines are ignored; the number of chain lines
// must equal the recorded total.
func Parse(r io.Reader) (*Snapshot, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024) //nolint:mnd

	var lines []string

	for sc.Scan() {
		l := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}

		lines = append(lines, l)
	}

	if err := sc.Err(); err != nil {
		return nil, errors.Join(ErrReadSnapshot, err)
	}

	if len(lines) < 3 || strings.TrimSpace(lines[0]) != statusHeader { //nolint:mnd
		return nil, fmt.Errorf("%w: missing %q header", ErrMalformed, statusHeader)
	}

	total, err := headerInt(lines[1])
	if err != nil {
		return nil, fmt.Errorf("%w: total chains: %w", ErrMalformed, err)
	}

	completed, err := headerInt(lines[2])
	if err != nil {
		return nil, fmt.Errorf("%w: completed chains: %w", ErrMalformed, err)
	}

	body := lines[3:]
	if len(body) != total {
		return nil, fmt.Errorf("%w: header says %d chains, found %d lines", ErrMalformed, total, len(body))
	}

	if completed < 0 || completed > total {
		return nil, fmt.Errorf("%w: %d completed of %d", ErrMalformed, completed, total)
	}

	return &Snapshot{Total: total, Completed: completed, Lines: body}, nil
}

// headerInt reads the integer after the last colon.
func headerInt(line string) (int, error) {
	idx := strings.LastIndexByte(line, ':')
	if idx < 0 {
		return 0, fmt.Errorf("no ':' in %q", line)
	}

	n, err := strconv.Atoi(strings.TrimSpace(line[idx+1:]))
	if err != nil {
		return 0, err //nolint:wrapcheck
	}

	if n < 0 {
		return 0, fmt.Errorf("negative count %d", n)
	}

	return n, nil
}

// Load parses the checkpoint at path.
func Load(fs afero.Fs, path string) (*Snapshot, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, errors.Join(ErrReadSnapshot, err)
	}
	defer f.Close() //nolint:errcheck

	s, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return s, nil
}
