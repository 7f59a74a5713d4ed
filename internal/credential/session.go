package credential

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Session is a token persisted for the current session.
type Session struct {
	Token     string
	ExpiresAt time.Time // zero when unknown
	UpdatedAt time.Time
}

// Store persists the session token.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// SessionProvider serves a token supplied by the presentation layer.
//
// Thread Safety: all methods are safe for concurrent use.
type SessionProvider struct {
	mu        sync.Mutex
	token     string
	expiresAt time.Time
	rejected  bool
	store     Store // optional
	now       func() time.Time
	logger    Logger
}

// NewSessionProvider creates a provider holding token. token may be empty
// until SetToken is called. store may be nil.
func NewSessionProvider(token string, store Store) *SessionProvider {
	p := &SessionProvider{
		store:  store,
		now:    time.Now,
		logger: noopLogger{},
	}
	p.setLocked(token)
	return p
}

// SetLogger sets the logger for the provider.
func (p *SessionProvider) SetLogger(logger Logger) {
	p.logger = logger
}

// Restore loads a persisted session when no token was configured.
func (p *SessionProvider) Restore(ctx context.Context) error {
	if p.store == nil {
		return nil
	}
	p.mu.Lock()
	hasToken := p.token != ""
	p.mu.Unlock()
	if hasToken {
		return nil
	}

	s, err := p.store.Load(ctx)
	if errors.Is(err, ErrSessionNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if expired(s.ExpiresAt, p.now()) {
		p.logger.Info("persisted session expired, ignoring", "expires_at", s.ExpiresAt)
		return nil
	}

	p.mu.Lock()
	p.setLocked(s.Token)
	p.mu.Unlock()
	p.logger.Info("session restored", "updated_at", s.UpdatedAt)
	return nil
}

// SetToken replaces the current token and persists it when a Store is set.
func (p *SessionProvider) SetToken(ctx context.Context, token string) error {
	p.mu.Lock()
	p.setLocked(token)
	s := Session{Token: p.token, ExpiresAt: p.expiresAt, UpdatedAt: p.now().UTC()}
	p.mu.Unlock()

	if p.store == nil {
		return nil
	}
	if token == "" {
		return p.store.Clear(ctx)
	}
	return p.store.Save(ctx, s)
}

// Token returns the current token.
func (p *SessionProvider) Token(_ context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case p.token == "":
		return "", ErrNoCredential
	case p.rejected:
		return "", ErrCredentialRejected
	case expired(p.expiresAt, p.now()):
		return "", ErrCredentialExpired
	}
	return p.token, nil
}

// Invalidate marks token as rejected. A token that has since been replaced
// is left alone.
func (p *SessionProvider) Invalidate(ctx context.Context, token string) {
	p.mu.Lock()
	if token != p.token || p.rejected {
		p.mu.Unlock()
		return
	}
	p.rejected = true
	p.mu.Unlock()

	p.logger.Warn("session token rejected by upstream")
	if p.store != nil {
		if err := p.store.Clear(ctx); err != nil {
			p.logger.Error("clearing rejected session", "error", err)
		}
	}
}

// setLocked replaces the token. Caller must hold p.mu.
func (p *SessionProvider) setLocked(token string) {
	p.token = token
	p.rejected = false
	p.expiresAt = time.Time{}
	if exp, ok := TokenExpiry(token); ok {
		p.expiresAt = exp
	}
}
