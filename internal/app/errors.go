package service

import "errors"

// Sentinel kinds for service errors. Parse, scoring, and store errors keep
// their own package sentinels; callers match with errors.Is.
var (
	ErrNotStarted     = errors.New("service not started")
	ErrDeadlinePassed = errors.New("deadline passed")
	ErrInvalidRole    = errors.New("invalid role")
)
