// Package source fetches commodity-rate records from the rates REST endpoint.
package source

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rate-map/internal/model"
)

const defaultTimeout = 30 * time.Second

// Option configures a Client.
type Option func(*Client)

// WithToken sends "Authorization: Bearer <token>" on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client. The caller's client is
// used as is; WithTimeout does not modify it.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTimeout sets the request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// Client reads rate records from {baseURL}{ratesPath}.
type Client struct {
	http    *http.Client
	timeout time.Duration
	url     string
	token   string
}

// NewClient creates a Client for the rates endpoint.
func NewClient(baseURL, ratesPath string, opts ...Option) *Client {
	c := &Client{
		timeout: defaultTimeout,
		url:     strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(ratesPath, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

// URL returns the endpoint the client fetches.
func (c *Client) URL() string { return c.url }

// FetchRecords issues one GET and decodes the response array. A non-200 status
// or a malformed element fails the whole fetch.
func (c *Client) FetchRecords(ctx context.Context) ([]model.Record, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, eris.Wrap(err, "source: create request")
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "source: fetch rates")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, eris.Errorf("source: unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	records, err := ReadRecords(ctx, resp.Body)
	if err != nil {
		return nil, err
	}

	zap.L().Debug("source: fetched rates",
		zap.String("url", c.url),
		zap.Int("records", len(records)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return records, nil
}

// ReadRecords decodes a JSON array of rate records from r.
func ReadRecords(ctx context.Context, r io.Reader) ([]model.Record, error) {
	return collect(DecodeJSONArray[model.Record](ctx, r))
}
