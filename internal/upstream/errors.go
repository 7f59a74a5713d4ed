package upstream

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/nerrad567/gray-logic-climate/internal/device"
)

// Error categories for upstream calls. Every error returned by Client wraps
// exactly one of them.
var (
	// ErrTransport covers network failures, timeouts and 5xx responses.
	ErrTransport = errors.New("upstream: transport error")

	// ErrAuth covers 401 responses and missing or rejected credentials.
	ErrAuth = errors.New("upstream: authentication failed")

	// ErrRejected covers 4xx responses other than 401 and explicit negative acks.
	ErrRejected = errors.New("upstream: request rejected")

	// ErrMalformedResponse covers bodies that do not match the expected schema.
	ErrMalformedResponse = errors.New("upstream: malformed response")
)

// StatusError describes a non-2xx HTTP response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// statusError classifies a non-2xx response.
func statusError(status int, body string) error {
	se := &StatusError{StatusCode: status, Body: body}
	switch {
	case status == http.StatusUnauthorized:
		return fmt.Errorf("%w: %w", ErrAuth, se)
	case status >= 500:
		return fmt.Errorf("%w: %w", ErrTransport, se)
	default:
		return fmt.Errorf("%w: %w", ErrRejected, se)
	}
}

// IsRetryable reports whether err is a transport failure worth one retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransport)
}

// Classify maps a command error to the outcome recorded in the registry.
// Anything other than a transport error means the server (or the
// credential boundary) refused the command.
func Classify(err error) device.CommandOutcome {
	switch {
	case err == nil:
		return device.OutcomeApplied
	case errors.Is(err, ErrTransport), errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return device.OutcomeTransportFailed
	default:
		return device.OutcomeRejected
	}
}

// Category returns a short label for err, used in logs and metrics.
func Category(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrMalformedResponse):
		return "malformed"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, ErrTransport), errors.Is(err, context.Canceled):
		return "transport"
	default:
		return "other"
	}
}
