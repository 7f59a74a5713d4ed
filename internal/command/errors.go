package command

import "errors"

var (
	// ErrInvalidValue is returned when a command value has the wrong type or range.
	ErrInvalidValue = errors.New("command: invalid value")

	// ErrUnknownKind is returned for an unsupported command kind.
	ErrUnknownKind = errors.New("command: unknown kind")

	// ErrClosed is returned by Issue after Close.
	ErrClosed = errors.New("command: dispatcher closed")
)
