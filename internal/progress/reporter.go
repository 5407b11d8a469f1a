// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"context"
	"sync"
	"time"
)

var _ Reporter = (*ChannelReporter)(nil)

// ChannelReporter delivers events over a buffered channel.
type ChannelReporter struct {
	ch     chan Event
	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	once   sync.Once
}

// NewChannelReporter returns a reporter buffering up to bufferSize events.
func NewChannelReporter(ctx context.Context, bufferSize int) *ChannelReporter {
	reporterCtx, cancel := context.WithCancel(ctx)

	return &ChannelReporter{
		ch:     make(chan Event, bufferSize),
		ctx:    reporterCtx,
		cancel: cancel,
	}
}

// Report implements Reporter. The event is dropped when the buffer is full or
// the reporter is closed. A zero Timestamp is set to now.
func (cr *ChannelReporter) Report(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	cr.mu.RLock()
	defer cr.mu.RUnlock()

	if cr.closed {
		return
	}

	select {
	case cr.ch <- event:
	default:
	}
}

// Close implements Reporter. It waits for Listen goroutines to drain the buffer.
func (cr *ChannelReporter) Close() {
	cr.once.Do(func() {
		cr.mu.Lock()
		cr.closed = true
		close(cr.ch)
		cr.mu.Unlock()

		cr.wg.Wait()
		cr.cancel()
	})
}

// Listen forwards events to listener from a new goroutine until Close or
// until the context given to NewChannelReporter is done.
func (cr *ChannelReporter) Listen(listener Listener) {
	cr.wg.Add(1)

	go func() {
		defer cr.wg.Done()

		for {
			select {
			case event, ok := <-cr.ch:
				if !ok {
					return
				}

				listener.OnEvent(event)
			case <-cr.ctx.Done():
				return
			}
		}
	}()
}

// Events returns the channel for manual consumption. It is closed by Close.
func (cr *ChannelReporter) Events() <-chan Event {
	return cr.ch
}
