package analysis

import "errors"

var (
	// ErrInvalidWindow is returned when the analysis window is empty or inverted.
	ErrInvalidWindow = errors.New("analysis: invalid window")

	// ErrTimedOut is returned with a default-filled Result when the caller's
	// context ends before every request resolved.
	ErrTimedOut = errors.New("analysis: timed out")
)
