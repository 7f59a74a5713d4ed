// Package credential supplies bearer tokens for upstream calls.
//
// Callers treat tokens as opaque strings and ask a Provider for one before
// every request. When the upstream answers 401 the caller hands the token
// back through Invalidate; a Provider never returns an invalidated token
// again, so a rejected token is never silently retried.
//
// Two providers are available:
//   - SessionProvider holds a token set by the presentation layer after
//     login, optionally persisted in SQLite for the current session.
//   - OAuth2Provider exchanges a refresh token with golang.org/x/oauth2 and
//     refreshes on expiry or invalidation.
package credential
