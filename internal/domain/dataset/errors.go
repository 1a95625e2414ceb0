package dataset

import "errors"

// Sentinel kinds for master dataset load errors.
var (
	ErrBadHeader   = errors.New("bad master data header")
	ErrBadRow      = errors.New("bad master data row")
	ErrDuplicateID = errors.New("duplicate master id")
	ErrEmpty       = errors.New("master data is empty")
)
