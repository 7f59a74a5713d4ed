package credential

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Provider supplies bearer tokens.
type Provider interface {
	// Token returns the token to send on the next request.
	Token(ctx context.Context) (string, error)

	// Invalidate reports that the upstream rejected token. Providers must not
	// return the same token from Token again.
	Invalidate(ctx context.Context, token string)
}

// Logger defines the logging interface used by providers.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// expirySkew is how early a token is treated as expired.
const expirySkew = 30 * time.Second

// TokenExpiry returns the exp claim of token when it is a JWT.
//
// The signature is not checked: the token is opaque to this service and
// only the upstream verifies it. ok is false for non-JWT tokens and tokens
// without an exp claim.
func TokenExpiry(token string) (expiresAt time.Time, ok bool) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// expired reports whether a token with the given expiry should no longer be sent.
func expired(expiresAt time.Time, now time.Time) bool {
	if expiresAt.IsZero() {
		return false
	}
	return !now.Add(expirySkew).Before(expiresAt)
}
