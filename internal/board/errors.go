package board

import "errors"

var (
	// ErrStopped is returned when the board no longer accepts the command.
	ErrStopped = errors.New("board stopped")
	// ErrRunning is returned when Run is called twice.
	ErrRunning = errors.New("board already running")
)
