// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package teereader

import (
	"bytes"
	"io"
	"strings"
	"sync"
)

// LastLineReader wraps an io.Reader, keeps a copy of everything read through it
// and remembers the last complete line. It is safe for concurrent use.
type LastLineReader struct {
	src     io.Reader
	full    bytes.Buffer
	partial strings.Builder
	last    string
	mu      sync.RWMutex
}

// New wraps r.
func New(r io.Reader) *LastLineReader {
	return &LastLineReader{src: r}
}

// Read implements io.Reader.
func (l *LastLineReader) Read(p []byte) (int, error) {
	n, err := l.src.Read(p)
	if n > 0 {
		l.mu.Lock()
		l.full.Write(p[:n])
		l.track(p[:n])
		l.mu.Unlock()
	}

	return n, err //nolint:wrapcheck
}

// track must be called with the write lock held.
func (l *LastLineReader) track(chunk []byte) {
	l.partial.Write(chunk)

	pending := l.partial.String()

	idx := strings.LastIndexByte(pending, '\n')
	if idx < 0 {
		return
	}

	complete := pending[:idx]
	if prev := strings.LastIndexByte(complete, '\n'); prev >= 0 {
		complete = complete[prev+1:]
	}

	l.last = strings.TrimRight(complete, "\r")

	rest := pending[idx+1:]
	l.partial.Reset()
	l.partial.WriteString(rest)
}

// LastLine returns the last complete line read so far.
// When maxLength > 3 the line is cut to maxLength characters ending in "...".
func (l *LastLineReader) LastLine(maxLength int) string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if maxLength > 3 && len(l.last) > maxLength {
		return l.last[:maxLength-3] + "..."
	}

	return l.last
}

// Partial returns data read after the last newline.
func (l *LastLineReader) Partial() string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.partial.String()
}

// Bytes returns a copy of everything read so far.
func (l *LastLineReader) Bytes() []byte {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return bytes.Clone(l.full.Bytes())
}
