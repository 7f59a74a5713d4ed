package credential

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
)

// OAuth2Config configures an OAuth2Provider.
type OAuth2Config struct {
	ClientID     string
	ClientSecret string
	TokenURL     string
	RefreshToken string
	Scopes       []string
}

// OAuth2Provider obtains access tokens through the refresh-token grant.
//
// Concurrent callers that find no usable token share a single refresh.
type OAuth2Provider struct {
	config     *oauth2.Config
	httpClient *http.Client
	group      singleflight.Group

	mu           sync.Mutex
	refreshToken string
	current      *oauth2.Token

	now    func() time.Time
	logger Logger
}

// NewOAuth2Provider creates a provider. No request is made until Token is called.
func NewOAuth2Provider(cfg OAuth2Config) (*OAuth2Provider, error) {
	if cfg.TokenURL == "" {
		return nil, fmt.Errorf("token url is required")
	}
	if cfg.RefreshToken == "" {
		return nil, fmt.Errorf("refresh token is required")
	}
	return &OAuth2Provider{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.TokenURL},
			Scopes:       cfg.Scopes,
		},
		httpClient:   &http.Client{Timeout: 15 * time.Second},
		refreshToken: cfg.RefreshToken,
		now:          time.Now,
		logger:       noopLogger{},
	}, nil
}

// SetLogger sets the logger for the provider.
func (p *OAuth2Provider) SetLogger(logger Logger) {
	p.logger = logger
}

// SetHTTPClient replaces the client used for token requests.
func (p *OAuth2Provider) SetHTTPClient(c *http.Client) {
	p.httpClient = c
}

// Token returns a cached access token, refreshing it when missing or expired.
func (p *OAuth2Provider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.usableLocked() {
		token := p.current.AccessToken
		p.mu.Unlock()
		return token, nil
	}
	p.mu.Unlock()

	v, err, _ := p.group.Do("refresh", func() (any, error) {
		return p.refresh(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil //nolint:forcetypeassert // refresh only returns strings
}

// Invalidate drops token so the next Token call refreshes.
func (p *OAuth2Provider) Invalidate(_ context.Context, token string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.current != nil && p.current.AccessToken == token {
		p.current = nil
		p.logger.Warn("oauth access token rejected by upstream, refresh scheduled")
	}
}

func (p *OAuth2Provider) usableLocked() bool {
	if p.current == nil || p.current.AccessToken == "" {
		return false
	}
	return !expired(p.current.Expiry, p.now())
}

func (p *OAuth2Provider) refresh(ctx context.Context) (string, error) {
	p.mu.Lock()
	if p.usableLocked() {
		token := p.current.AccessToken
		p.mu.Unlock()
		return token, nil
	}
	refreshToken := p.refreshToken
	p.mu.Unlock()

	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)
	source := p.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		refreshFailure.Inc()
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			body := strings.TrimSpace(string(retrieveErr.Body))
			return "", fmt.Errorf("%w: status %d: %s", ErrRefreshFailed, retrieveErr.Response.StatusCode, body)
		}
		return "", fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	if token.Expiry.IsZero() {
		if exp, ok := TokenExpiry(token.AccessToken); ok {
			token.Expiry = exp
		}
	}

	p.mu.Lock()
	p.current = token
	if token.RefreshToken != "" {
		p.refreshToken = token.RefreshToken
	}
	p.mu.Unlock()

	refreshSuccess.Inc()
	p.logger.Info("oauth access token refreshed", "expires_at", token.Expiry)
	return token.AccessToken, nil
}
