package apperr

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownAgent  = errors.New("unknown agent")
	ErrInvalidCutoff = errors.New("invalid cutoff")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidEntity = errors.New("invalid entity")
)
