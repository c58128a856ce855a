package repository

import "errors"

// Sentinel kinds for relay errors.
var (
	ErrNotFound       = errors.New("no data available yet")
	ErrNotEnoughRows  = errors.New("not enough rows")
	ErrInvalidLimit   = errors.New("invalid limit")
	ErrInvalidContest = errors.New("invalid contest time")
)
