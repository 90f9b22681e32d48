package models

import "time"

// PinRecord marks a context entry as important. Pins are a parallel
// annotation keyed by fingerprint, not a foreign key into the event log;
// they are independently removable and never expire.
type PinRecord struct {
	ID          string         `json:"id"`
	Timestamp   time.Time      `json:"timestamp"`
	Source      string         `json:"source"`
	Kind        EventKind      `json:"kind"`
	Date        string         `json:"date"`
	Title       string         `json:"title"`
	Detail      string         `json:"detail,omitempty"`
	ProjectPath string         `json:"projectPath,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
	Note        string         `json:"note,omitempty"`
}

// Fingerprint identifies the entry a pin annotates. Matching is exact:
// source, timestamp, and kind must all agree.
func (p PinRecord) Fingerprint() string {
	return p.Source + "|" + p.Timestamp.UTC().Format(time.RFC3339) + "|" + string(p.Kind)
}

// EntryFingerprint computes the same fingerprint for a context entry.
func EntryFingerprint(e ContextEntry) string {
	return e.Source + "|" + e.Timestamp.UTC().Format(time.RFC3339) + "|" + string(e.Kind)
}
