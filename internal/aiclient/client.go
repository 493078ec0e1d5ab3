// Package aiclient – typed HTTP client for the AI content backend.
//
// The backend owns the heavy machinery: mailbox indexing and vectorization,
// retrieval-augmented search with generated answers, chat summarization, and
// LLM-priced vendor quotes. This package is the only place that speaks its
// wire protocol; services consume typed results and never see raw HTTP.
//
// Exposed operations:
//
//   - StartIndexing       – run a full index-and-vectorize pass (blocking)
//   - IndexingStatus      – poll progress for a namespace
//   - CancelIndexing      – request cancellation of a running pass
//   - DeleteNamespace     – drop a namespace's vectors and stored artifacts
//   - Search              – one-shot question answering with ranked sources
//   - SearchStream        – event-stream variant of Search
//   - SummarizeChat       – condense a conversation into a rolling summary
//   - GenerateVendorQuote – price one vendor offering for a project
//
// Error model: transport failures and upstream 5xx/429 responses map to
// ErrUnavailable; any other non-2xx surfaces as *HTTPError carrying the
// parsed upstream message.
package aiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Defaults applied by New when the corresponding duration is zero.
const (
	defaultTimeout      = 30 * time.Second
	defaultIndexTimeout = 10 * time.Minute
	defaultQuoteTimeout = 60 * time.Second
)

// ErrUnavailable marks transport failures and upstream 5xx/429 responses.
var ErrUnavailable = errors.New("ai backend unavailable")

// HTTPError is a non-2xx response that is not an availability problem,
// e.g. 404 for an unknown namespace or 400 for a malformed request.
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("ai backend http %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == http.StatusNotFound
}

// Client talks to the AI backend over HTTP. The zero value is not usable;
// construct with New. Safe for concurrent use.
type Client struct {
	baseURL string
	apiKey  string

	httpClient *http.Client

	timeout      time.Duration
	indexTimeout time.Duration
	quoteTimeout time.Duration
}

// New returns a Client for the backend at baseURL. Zero durations fall back
// to package defaults. The underlying http.Client carries no global timeout:
// per-call deadlines are applied instead so streaming responses stay open as
// long as the caller's context does.
func New(baseURL, apiKey string, timeout, indexTimeout, quoteTimeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if indexTimeout <= 0 {
		indexTimeout = defaultIndexTimeout
	}
	if quoteTimeout <= 0 {
		quoteTimeout = defaultQuoteTimeout
	}
	return &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{},
		timeout:      timeout,
		indexTimeout: indexTimeout,
		quoteTimeout: quoteTimeout,
	}
}

func (c *Client) doOnce(ctx context.Context, method, path string, query url.Values, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}
	return resp, raw, nil
}

// do performs one request under timeout, maps the error taxonomy, and decodes
// a 2xx JSON body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, raw, err := c.doOnce(ctx, method, path, query, body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: http %d: %s", ErrUnavailable, resp.StatusCode, errorMessage(raw))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &HTTPError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode ai backend response: %w", err)
	}
	return nil
}

// errorMessage extracts the backend's {"error": "..."} payload, falling back
// to the raw body text.
func errorMessage(raw []byte) string {
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && strings.TrimSpace(body.Error) != "" {
		return strings.TrimSpace(body.Error)
	}
	if s := strings.TrimSpace(string(raw)); s != "" {
		return s
	}
	return "unknown error"
}
