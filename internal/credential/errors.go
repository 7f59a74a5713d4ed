package credential

import "errors"

var (
	// ErrNoCredential is returned when no token has been set.
	ErrNoCredential = errors.New("credential: no token")

	// ErrCredentialRejected is returned after the current token was invalidated
	// and no replacement has been supplied.
	ErrCredentialRejected = errors.New("credential: token rejected")

	// ErrCredentialExpired is returned when the token's exp claim is in the past.
	ErrCredentialExpired = errors.New("credential: token expired")

	// ErrRefreshFailed is returned when an OAuth2 refresh fails.
	ErrRefreshFailed = errors.New("credential: refresh failed")

	// ErrSessionNotFound is returned by a Store with no saved session.
	ErrSessionNotFound = errors.New("credential: session not found")
)
