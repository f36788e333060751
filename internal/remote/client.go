package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/statusdeck/statusdeck"
	"github.com/statusdeck/statusdeck/internal/retry"
)

const maxResponseBodySize = 1 << 20 // 1MB

// connection pooling limits to prevent resource exhaustion when many
// widgets poll the same API host
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
	defaultRequestTimeout      = 10 * time.Second
)

// Client is an HTTP implementation of [statusdeck.RemoteClient].
//
// Connect probes the endpoint base URL; FetchEntityStatus requests the
// entity's status document and extracts a display label from it. Response
// bodies are limited to 1MB. Non-2xx responses become
// [retry.StatusError] values so the caller's classifier can decide
// retryability from the code alone.
type Client struct {
	cfg        statusdeck.ConnectionConfig
	httpClient *http.Client
	extract    LabelExtractor
	timeout    time.Duration
	connected  atomic.Bool
}

// Option configures a [Client].
type Option func(*Client)

// WithTimeout sets the per-request timeout. Defaults to 10 seconds.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLabelExtractor replaces the default label extractor,
// [DefaultExtractor].
func WithLabelExtractor(e LabelExtractor) Option {
	return func(c *Client) {
		if e != nil {
			c.extract = e
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client. Useful for tests and
// custom transports.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// New creates a [Client] for the given connection configuration.
//
// The transport is configured with connection pooling limits; timeouts are
// applied per-request via context, not as a global client timeout.
func New(cfg statusdeck.ConnectionConfig, opts ...Option) *Client {
	c := &Client{
		cfg:     cfg,
		extract: DefaultExtractor,
		timeout: defaultRequestTimeout,
		httpClient: &http.Client{
			// no default timeout, per-request timeouts come from context
			Transport: &http.Transport{
				MaxIdleConns:        defaultMaxIdleConns,
				MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
				MaxConnsPerHost:     defaultMaxConnsPerHost,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Factory returns a [statusdeck.ClientFactory] that builds a [Client] per
// pooled connection, applying the same options to each.
func Factory(opts ...Option) statusdeck.ClientFactory {
	return func(cfg statusdeck.ConnectionConfig) statusdeck.RemoteClient {
		return New(cfg, opts...)
	}
}

// Connect probes the endpoint base URL with a GET request. A 2xx response
// marks the client connected; anything else fails with a classified status
// error.
func (c *Client) Connect(ctx context.Context) error {
	if _, _, err := c.get(ctx, c.cfg.Endpoint); err != nil {
		return err
	}
	c.connected.Store(true)
	return nil
}

// IsConnected reports whether the last Connect succeeded and Disconnect has
// not been called since.
func (c *Client) IsConnected() bool {
	return c.connected.Load()
}

// Disconnect drops idle pooled connections and marks the client
// disconnected. The client remains usable; a later request re-dials.
func (c *Client) Disconnect() error {
	c.connected.Store(false)
	if t, ok := c.httpClient.Transport.(*http.Transport); ok {
		t.CloseIdleConnections()
	}
	return nil
}

// FetchEntityStatus requests the status document for the entity and
// extracts its display label.
func (c *Client) FetchEntityStatus(ctx context.Context, entityID string) (statusdeck.EntityStatus, error) {
	body, fetchedAt, err := c.get(ctx, c.entityURL(entityID))
	if err != nil {
		return statusdeck.EntityStatus{}, err
	}

	return statusdeck.EntityStatus{
		EntityID:  entityID,
		Label:     c.extract(body),
		Raw:       body,
		FetchedAt: fetchedAt,
	}, nil
}

// entityURL builds the status URL for an entity, carrying the configured
// scope as a query parameter when set.
func (c *Client) entityURL(entityID string) string {
	base := strings.TrimRight(c.cfg.Endpoint, "/")
	u := fmt.Sprintf("%s/entities/%s/status", base, url.PathEscape(entityID))
	if c.cfg.Scope != "" {
		u += "?scope=" + url.QueryEscape(c.cfg.Scope)
	}
	return u
}

// get performs one GET request with the per-request timeout, bearer auth
// when a credential is configured, and the body size limit.
func (c *Client) get(ctx context.Context, rawURL string) ([]byte, time.Time, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.cfg.Credential != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.Credential)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, time.Time{}, &retry.StatusError{
			Code:    resp.StatusCode,
			Message: http.StatusText(resp.StatusCode),
		}
	}
	return body, time.Now(), nil
}
