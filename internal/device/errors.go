package device

import "errors"

// Domain errors for the device package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, device.ErrDeviceNotFound) {
//	    // handle not found case
//	}
var (
	// ErrDeviceNotFound is returned when a device ID does not exist.
	ErrDeviceNotFound = errors.New("device: not found")

	// ErrDeviceExists is returned when loading a unit whose ID is already registered.
	ErrDeviceExists = errors.New("device: already exists")

	// ErrInvalidDevice is returned when a unit definition fails validation.
	ErrInvalidDevice = errors.New("device: invalid")

	// ErrInvalidMode is returned when a mode value is not recognised.
	ErrInvalidMode = errors.New("device: invalid mode")

	// ErrInvalidCommand is returned for a command kind the registry cannot apply.
	ErrInvalidCommand = errors.New("device: invalid command")

	// ErrStaleSequence is returned when an intent's seq is not newer than the
	// unit's pending or confirmed seq.
	ErrStaleSequence = errors.New("device: stale sequence")
)
