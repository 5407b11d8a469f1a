// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package protocol

import (
	"context"
	"io"
	"sync"
)

var _ Conn = (*pipeEnd)(nil)

type pipeEnd struct {
	in         <-chan Envelope
	out        chan<- Envelope
	closed     chan struct{}
	peerClosed <-chan struct{}
	once       sync.Once
}

// Pipe returns two connected in-memory ends. Envelopes are deep copied on send.
func Pipe() (Conn, Conn) {
	ab := make(chan Envelope)
	ba := make(chan Envelope)
	aClosed := make(chan struct{})
	bClosed := make(chan struct{})

	a := &pipeEnd{in: ba, out: ab, closed: aClosed, peerClosed: bClosed}
	b := &pipeEnd{in: ab, out: ba, closed: bClosed, peerClosed: aClosed}

	return a, b
}

// Send implements Conn.
func (p *pipeEnd) Send(ctx context.Context, e Envelope) error {
	if err := e.Validate(); err != nil {
		return err
	}

	select {
	case <-p.closed:
		return ErrClosed
	case <-p.peerClosed:
		return io.ErrClosedPipe
	default:
	}

	select {
	case p.out <- e.clone():
		return nil
	case <-p.closed:
		return ErrClosed
	case <-p.peerClosed:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv implements Conn.
func (p *pipeEnd) Recv(ctx context.Context) (Envelope, error) {
	select {
	case e := <-p.in:
		return e, nil
	case <-p.peerClosed:
		return Envelope{}, io.EOF
	case <-p.closed:
		return Envelope{}, ErrClosed
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

// Close implements Conn. It is safe to call more than once.
func (p *pipeEnd) Close() error {
	p.once.Do(func() {
		close(p.closed)
	})

	return nil
}
