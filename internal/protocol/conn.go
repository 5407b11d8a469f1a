// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package protocol

import (
	"context"
	"errors"
)

var (
	// ErrClosed is returned when sending on or receiving from a closed connection.
	ErrClosed = errors.New("connection closed")
	// ErrInvalidMessage is returned for an envelope whose payload does not match its kind.
	ErrInvalidMessage = errors.New("invalid message")
	// ErrEncode is returned when an envelope cannot be encoded.
	ErrEncode = errors.New("failed to encode message")
	// ErrDecode is returned when an envelope cannot be decoded.
	ErrDecode = errors.New("failed to decode message")
)

// Conn is one end of a coordinator to worker link.
//
// Recv returns io.EOF once the peer has closed its end. Send and Recv may be
// called from different goroutines, but each from at most one at a time.
type Conn interface {
	Send(ctx context.Context, e Envelope) error
	Recv(ctx context.Context) (Envelope, error)
	Close() error
}
