package models

import "errors"

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("models: not found")

// ErrLocked is returned when the summarizer advisory lock is held elsewhere.
var ErrLocked = errors.New("models: batch already running")
