// Package httpclient is the JSON-over-HTTP client shared by the third-party
// API integrations.
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/weastcoast/weastcoastbot/internal/ratelimit"
)

const maxErrorBody = 512

// StatusError is returned for a non-2xx response
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error: status %d from %s, body: %s", e.StatusCode, e.URL, e.Body)
}

// Client performs rate-limited GET requests and decodes JSON responses
type Client struct {
	httpClient *http.Client
	limiter    *ratelimit.RateLimiter
	logger     *zap.Logger
	userAgent  string
}

// New creates a client. A nil limiter disables pacing.
func New(timeout time.Duration, limiter *ratelimit.RateLimiter, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		logger:     logger,
		userAgent:  "weastcoastbot/1.0",
	}
}

// HTTPClient exposes the underlying client, e.g. for oauth2 contexts
func (c *Client) HTTPClient() *http.Client {
	return c.httpClient
}

// GetJSON fetches rawURL with the given query and headers and decodes the
// body into result.
func (c *Client) GetJSON(ctx context.Context, rawURL string, query url.Values, headers http.Header, result interface{}) error {
	body, err := c.Get(ctx, rawURL, query, headers)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// Get fetches rawURL and returns the body of a 2xx response
func (c *Client) Get(ctx context.Context, rawURL string, query url.Values, headers http.Header) ([]byte, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse url: %w", err)
	}
	if len(query) > 0 {
		q := u.Query()
		for k, vs := range query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	for k, vs := range headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet := string(body)
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		return nil, &StatusError{URL: u.Redacted(), StatusCode: resp.StatusCode, Body: snippet}
	}

	return body, nil
}

// do sends req after waiting on the host's bucket, retrying once on 429
func (c *Client) do(ctx context.Context, req *http.Request) (*http.Response, error) {
	host := req.URL.Host

	for attempt := 0; ; attempt++ {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx, host); err != nil {
				return nil, err
			}
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}

		c.logger.Debug("Outbound API request",
			zap.String("host", host),
			zap.String("path", req.URL.Path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
		)

		if c.limiter == nil {
			return resp, nil
		}
		if resp.StatusCode != http.StatusTooManyRequests || attempt > 0 {
			c.limiter.UpdateFromHeaders(host, resp.Header)
			return resp, nil
		}

		c.limiter.HandleTooManyRequests(host, resp.Header)
		remaining, limit, resetAt := c.limiter.GetStatus(host)
		c.logger.Info("Retrying after rate limit",
			zap.String("host", host),
			zap.Int("remaining", remaining),
			zap.Int("limit", limit),
			zap.Time("reset_at", resetAt),
		)
		resp.Body.Close()
	}
}
