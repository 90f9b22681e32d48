package api

import "github.com/amberlabs/amber/internal/models"

// PutNoteRequest is the request body for writing a daily note.
type PutNoteRequest struct {
	Content string `json:"content"`
}

// CreatePinRequest carries the entry to pin plus an optional user note.
type CreatePinRequest struct {
	Entry models.ContextEntry `json:"entry"`
	Note  string              `json:"note,omitempty"`
}

// ImportRequest is the request body for starting an agent import.
type ImportRequest struct {
	CutoffDays int `json:"cutoffDays"`
}

// NoteResponse wraps a daily note read. Found is false when the date has
// no note yet; that is not an error.
type NoteResponse struct {
	Date    string `json:"date"`
	Content string `json:"content"`
	Found   bool   `json:"found"`
}
