// Package models defines the domain types for Amber.
package models

import "time"

// DateLayout is the calendar-date format that partitions the store.
const DateLayout = "2006-01-02"

// EventKind classifies a raw event.
type EventKind string

// Known event kinds.
const (
	KindCommit  EventKind = "commit"
	KindSession EventKind = "session"
	KindBrowse  EventKind = "browse"
	KindChat    EventKind = "chat"
	KindNote    EventKind = "note"
	KindMemory  EventKind = "memory"
)

// RawEvent is one normalized record of observed activity. Events are
// immutable once appended; their identity is positional (line index within
// a date's log).
type RawEvent struct {
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Kind      EventKind      `json:"kind"`
	Data      map[string]any `json:"data"`
}

// ContextEntry is the read-time projection of a RawEvent with UI-facing
// fields derived from source/kind/data. Pin state is joined at read time
// and never stored.
type ContextEntry struct {
	Source      string         `json:"source"`
	Timestamp   time.Time      `json:"timestamp"`
	Kind        EventKind      `json:"kind"`
	Title       string         `json:"title"`
	Detail      string         `json:"detail,omitempty"`
	ProjectPath string         `json:"projectPath,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Pinned      bool           `json:"pinned"`
	PinID       string         `json:"pinId,omitempty"`
}
