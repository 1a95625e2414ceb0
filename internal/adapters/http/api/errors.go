package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrServe          = errors.New("swagger serve failed")
	ErrBadRequest     = errors.New("bad request")
	ErrMissingUser    = errors.New("missing X-User-ID header")
	ErrTeacherOnly    = errors.New("teacher role required")
	ErrUnknownView    = errors.New("unknown leaderboard view")
	ErrBodyTooLarge   = errors.New("request body too large")
	ErrMethodMismatch = errors.New("method not allowed")
)

// Wrap tags err with the handler operation that observed it.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// NewKind tags a sentinel kind with the handler operation.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags err with both the handler operation and a sentinel kind.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
