package parse

import "errors"

// Sentinel kinds for submission parse errors.
var (
	ErrMalformedInput = errors.New("malformed input")
)
