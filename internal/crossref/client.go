// Package crossref provides a rate-limited HTTP client for the CrossRef
// REST API (api.crossref.org).
package crossref

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the CrossRef REST API base URL.
	BaseURL = "https://api.crossref.org"

	// DefaultTimeout bounds a single works lookup.
	DefaultTimeout = 30 * time.Second

	// RateLimit is a conservative request rate. CrossRef's polite pool
	// advertises 50 rps; staying well under it avoids 429s on batches.
	RateLimit = 5.0
)

// Client is a rate-limited HTTP client for the CrossRef REST API.
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	mailto     string
	apiKey     string
	userAgent  string
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithMailto sets the mailto contact sent with each request. Supplying
// one routes requests to CrossRef's polite pool.
func WithMailto(mailto string) ClientOption {
	return func(c *Client) {
		c.mailto = mailto
	}
}

// WithAPIKey sets the Crossref-Plus-API-Token for authenticated requests.
func WithAPIKey(key string) ClientOption {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a new CrossRef API client.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(RateLimit), 1),
		baseURL:    BaseURL,
		userAgent:  "workbib (https://github.com/workbib/workbib)",
	}

	// Check for credentials in environment
	if mailto := os.Getenv("CROSSREF_MAILTO"); mailto != "" {
		c.mailto = mailto
	}
	if key := os.Getenv("CROSSREF_API_KEY"); key != "" {
		c.apiKey = key
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// worksEnvelope is the wire shape of /works/{doi}: a status header and
// the hyphen-keyed metadata document under "message".
type worksEnvelope struct {
	Status  string         `json:"status"`
	Message map[string]any `json:"message"`
}

// Works fetches the metadata document for a DOI. The returned map uses
// the API's hyphenated keys; callers normalize before use.
func (c *Client) Works(ctx context.Context, doi string) (map[string]any, error) {
	if doi == "" {
		return nil, fmt.Errorf("%w: empty DOI", ErrNotFound)
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	reqURL := c.baseURL + "/works/" + url.PathEscape(doi)
	if c.mailto != "" {
		reqURL += "?mailto=" + url.QueryEscape(c.mailto)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.apiKey != "" {
		req.Header.Set("Crossref-Plus-API-Token", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	if err := checkHTTPErrors(resp, doi); err != nil {
		return nil, err
	}

	var envelope worksEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("%w: decoding works response: %v", ErrInvalidResponse, err)
	}
	if envelope.Message == nil {
		return nil, fmt.Errorf("%w: empty message for %s", ErrInvalidResponse, doi)
	}

	return envelope.Message, nil
}

// checkHTTPErrors returns an error if the HTTP response indicates a problem.
func checkHTTPErrors(resp *http.Response, doi string) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, doi)
	case resp.StatusCode == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", ErrRateLimited, resp.StatusCode)
	case resp.StatusCode >= 400:
		return &APIError{
			StatusCode: resp.StatusCode,
			DOI:        doi,
			Message:    fmt.Sprintf("HTTP %d", resp.StatusCode),
		}
	}
	return nil
}
