// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package progress

import (
	"time"
)

// Event is a single update about the run.
type Event struct {
	Type      EventType
	Chain     int // Chain index, -1 for run-level events.
	Rank      int // Worker rank, 0 for the coordinator itself.
	Message   string
	Timestamp time.Time
	Data      EventData
}

// EventType says what happened.
type EventType int

const (
	// EventRunStarted is sent once before any chain is assigned.
	EventRunStarted EventType = iota
	// EventAssigned means a chain was handed to a worker.
	EventAssigned
	// EventCompleted means a chain finished.
	EventCompleted
	// EventCheckpoint means a snapshot was written.
	EventCheckpoint
	// EventDraining means the workers are being stopped.
	EventDraining
	// EventFinished is sent once when the run ends.
	EventFinished
)

// String implements fmt.Stringer.
func (et EventType) String() string {
	switch et {
	case EventRunStarted:
		return "started"
	case EventAssigned:
		return "assigned"
	case EventCompleted:
		return "completed"
	case EventCheckpoint:
		return "checkpoint"
	case EventDraining:
		return "draining"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// EventData holds counters and details. Fields irrelevant to the event type are zero.
type EventData struct {
	Total          int
	Completed      int
	PreviouslyDone int
	Workers        int
	Command        string // Chain definition, for EventAssigned and EventCompleted.
	LastLine       string // Last stdout line of the chain, for EventCompleted.
	HasErrors      bool   // Chain wrote to stderr, for EventCompleted.
	Path           string // Snapshot path, for EventCheckpoint.
	Err            error  // Run error, for EventFinished.
}

// Reporter sends events. Implementations must not block.
type Reporter interface {
	Report(event Event)
	Close()
}

// Listener receives events.
type Listener interface {
	OnEvent(event Event)
}

// NullReporter discards events.
type NullReporter struct{}

// Report implements Reporter.
func (nr *NullReporter) Report(Event) {}

// Close implements Reporter.
func (nr *NullReporter) Close() {}

// NewNullReporter returns a Reporter that discards events.
func NewNullReporter() Reporter {
	return &NullReporter{}
}
