// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package protocol

import (
	"context"
	"encoding/gob"
	"errors"
	"io"
	"sync"

	"github.com/hashicorp/go-multierror"
)

var _ Conn = (*StreamConn)(nil)

// StreamConn exchanges gob-encoded envelopes over a byte stream.
//
// Recv blocks in the decoder; ctx is only checked before reading. Closing the
// underlying reader is what unblocks a pending Recv.
type StreamConn struct {
	enc     *gob.Encoder
	dec     *gob.Decoder
	closers []io.Closer
	sendMu  sync.Mutex
	recvMu  sync.Mutex
	once    sync.Once
	closed  chan struct{}
	err     error
}

// NewStreamConn reads from r and writes to w. Close closes every closer in order.
func NewStreamConn(r io.Reader, w io.Writer, closers ...io.Closer) *StreamConn {
	return &StreamConn{
		enc:     gob.NewEncoder(w),
		dec:     gob.NewDecoder(r),
		closers: closers,
		closed:  make(chan struct{}),
	}
}

// Send implements Conn.
func (s *StreamConn) Send(ctx context.Context, e Envelope) error {
	if err := e.Validate(); err != nil {
		return err
	}

	if err := ctx.Err(); err != nil {
		return err //nolint:wrapcheck
	}

	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	if err := s.enc.Encode(e); err != nil {
		return errors.Join(ErrEncode, err)
	}

	return nil
}

// Recv implements Conn.
func (s *StreamConn) Recv(ctx context.Context) (Envelope, error) {
	if err := ctx.Err(); err != nil {
		return Envelope{}, err //nolint:wrapcheck
	}

	s.recvMu.Lock()
	defer s.recvMu.Unlock()

	var e Envelope

	if err := s.dec.Decode(&e); err != nil {
		select {
		case <-s.closed:
			return Envelope{}, ErrClosed
		default:
		}

		if errors.Is(err, io.EOF) {
			return Envelope{}, io.EOF
		}

		return Envelope{}, errors.Join(ErrDecode, err)
	}

	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}

	return e, nil
}

// Close implements Conn. Errors from the closers are combined; later calls return the same result.
func (s *StreamConn) Close() error {
	s.once.Do(func() {
		close(s.closed)

		var result error

		for _, c := range s.closers {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}

		s.err = result
	})

	return s.err
}
