package scoring

import "errors"

// Sentinel kinds for scoring errors.
var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
)
