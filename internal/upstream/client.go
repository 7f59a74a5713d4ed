package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nerrad567/gray-logic-climate/internal/credential"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 1 << 20

// Logger defines the logging interface used by the client.
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

// Client talks to the climate control REST API.
//
// A fresh bearer token is taken from the credential provider for every
// request. A 401 hands the token back to the provider and is returned as
// ErrAuth without retrying.
//
// Thread Safety: all methods are safe for concurrent use.
type Client struct {
	baseURL    string
	creds      credential.Provider
	httpClient *http.Client
	logger     Logger
}

// NewClient creates a client for the API at baseURL.
// httpClient may be nil; per-call deadlines come from the context.
func NewClient(baseURL string, creds credential.Provider, httpClient *http.Client) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}
	if creds == nil {
		return nil, fmt.Errorf("credential provider is required")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    baseURL,
		creds:      creds,
		httpClient: httpClient,
		logger:     noopLogger{},
	}, nil
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

func (c *Client) getJSON(ctx context.Context, endpoint, path string, query url.Values, out any) error {
	data, err := c.do(ctx, endpoint, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return decode(endpoint, data, out)
}

func (c *Client) postJSON(ctx context.Context, endpoint, path string, payload, out any) error {
	data, err := c.do(ctx, endpoint, http.MethodPost, path, nil, payload)
	if err != nil {
		return err
	}
	return decode(endpoint, data, out)
}

// do performs one request and returns the 2xx response body.
// endpoint is a fixed label for metrics.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, payload any) (_ []byte, err error) {
	start := time.Now()
	defer func() {
		requestsTotal.WithLabelValues(endpoint, Category(err)).Inc()
		requestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	token, err := c.creds.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	var body io.Reader
	if payload != nil {
		data, marshalErr := json.Marshal(payload)
		if marshalErr != nil {
			return nil, fmt.Errorf("marshalling %s request: %w", endpoint, marshalErr)
		}
		body = bytes.NewReader(data)
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("building %s request: %w", endpoint, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", ErrTransport, method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s response: %w", ErrTransport, endpoint, err)
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.creds.Invalidate(ctx, token)
		c.logger.Warn("upstream rejected credentials", "endpoint", endpoint)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, statusError(resp.StatusCode, string(data))
	}
	return data, nil
}

func decode(endpoint string, data []byte, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: %s: empty body", ErrMalformedResponse, endpoint)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMalformedResponse, endpoint, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
