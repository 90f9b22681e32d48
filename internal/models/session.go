package models

import "time"

// SessionFile is the unit of work for import: one agent-native session file
// discovered on disk. It is never persisted.
type SessionFile struct {
	Path  string
	MTime time.Time
	Date  string
}

// AgentStatus reports what a scan found for one agent tool.
type AgentStatus struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Found        bool   `json:"found"`
	SessionCount int    `json:"sessionCount"`
	Oldest       string `json:"oldest,omitempty"`
	Newest       string `json:"newest,omitempty"`
	Supported    bool   `json:"supported"`
}

// SessionPreview is a lightweight glimpse of one session for UI browsing.
type SessionPreview struct {
	Date         string `json:"date"`
	Project      string `json:"project,omitempty"`
	FirstMessage string `json:"firstMessage"`
}

// ImportProgress is the cumulative progress record streamed to a caller
// during a batch import. Dates is the sorted, deduplicated list of dates
// that received at least one import so far.
type ImportProgress struct {
	AgentID   string   `json:"agentId"`
	Total     int      `json:"total"`
	Processed int      `json:"processed"`
	Imported  int      `json:"imported"`
	Dates     []string `json:"dates"`
}
