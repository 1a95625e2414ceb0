package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound         = errors.New("not found")
	ErrInvalidSelection = errors.New("invalid selection")
	ErrNotEmpty         = errors.New("store is not empty")
)
