package telemetry

import "errors"

var (
	// ErrNoSources is returned when Start is called with an empty source set.
	ErrNoSources = errors.New("telemetry: no sources")

	// ErrDuplicateSource is returned when two sources in a set share an ID.
	ErrDuplicateSource = errors.New("telemetry: duplicate source")

	// ErrInvalidInterval is returned for a non-positive poll interval.
	ErrInvalidInterval = errors.New("telemetry: invalid interval")

	// ErrNotPolling is returned by Status for a device with no active subscription.
	ErrNotPolling = errors.New("telemetry: device not polling")

	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("telemetry: poller closed")
)
