package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/theduckymomoo/HomeIQ---Smart-Energy-Security-Manager---96-Bulls-sub001/internal/logger"
)

// Defaults for RESTConfig.
const (
	DefaultTimeout     = 30 * time.Second
	DefaultMaxAttempts = 3
	DefaultBackoff     = time.Second
)

// RESTConfig configures a RESTClient.
type RESTConfig struct {
	BaseURL string // e.g. https://xyz.supabase.co
	APIKey  string // sent as apikey and bearer token

	Timeout     time.Duration
	MaxAttempts int
	Backoff     time.Duration // first retry delay, doubled per attempt

	HTTPClient *http.Client
}

// RESTClient is the HTTP wrapper around the BaaS REST API.
//
// Collections map to /rest/v1/{collection}; filters become eq. query
// conditions. Requests are retried on HTTP 5xx and 429 with exponential
// back-off, honoring Retry-After.
type RESTClient struct {
	baseURL     string
	apiKey      string
	maxAttempts int
	backoff     time.Duration
	httpClient  *http.Client
}

// NewRESTClient creates a REST backend.
func NewRESTClient(cfg RESTConfig) *RESTClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &RESTClient{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		maxAttempts: cfg.MaxAttempts,
		backoff:     cfg.Backoff,
		httpClient:  httpClient,
	}
}

// Insert adds record to collection.
func (c *RESTClient) Insert(ctx context.Context, collection string, record map[string]any) error {
	body, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	return c.do(ctx, http.MethodPost, collection, nil, body)
}

// Update sets values on the rows of collection matching filter.
func (c *RESTClient) Update(ctx context.Context, collection string, filter Filter, values map[string]any) error {
	body, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("failed to encode values: %w", err)
	}
	return c.do(ctx, http.MethodPatch, collection, filter, body)
}

// Delete removes the rows of collection matching filter.
func (c *RESTClient) Delete(ctx context.Context, collection string, filter Filter) error {
	return c.do(ctx, http.MethodDelete, collection, filter, nil)
}

// URL returns the request URL for collection and filter.
func (c *RESTClient) URL(collection string, filter Filter) string {
	u := fmt.Sprintf("%s/rest/v1/%s", c.baseURL, url.PathEscape(collection))
	if len(filter) == 0 {
		return u
	}
	q := url.Values{}
	for _, k := range filter.Keys() {
		q.Set(k, "eq."+fmt.Sprint(filter[k]))
	}
	return u + "?" + q.Encode()
}

func (c *RESTClient) do(ctx context.Context, method, collection string, filter Filter, body []byte) error {
	urlStr := c.URL(collection, filter)
	logger.DebugCtx(ctx, "Backend request", logger.KeyMethod, method, logger.KeyURL, urlStr)

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		wait, err := c.attempt(ctx, attempt, method, urlStr, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if wait < 0 || attempt == c.maxAttempts {
			return err
		}

		logger.DebugCtx(ctx, "Backend request failed, retrying",
			logger.KeyMethod, method,
			logger.KeyURL, urlStr,
			logger.KeyAttempt, attempt,
			logger.KeyDurationMs, wait.Milliseconds(),
			logger.KeyError, err)
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

// attempt performs one request. A non-negative wait means the failure is
// retryable after that delay.
func (c *RESTClient) attempt(ctx context.Context, attempt int, method, urlStr string, body []byte) (time.Duration, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, urlStr, reader)
	if err != nil {
		return -1, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Prefer", "return=minimal")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return -1, ctx.Err()
		}
		return c.backoffFor(attempt, nil), fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return -1, fmt.Errorf("failed to read response body: %w", err)
	}

	logger.DebugCtx(ctx, "Backend response",
		logger.KeyMethod, method,
		logger.KeyHTTPStatus, resp.StatusCode,
		logger.KeyBytes, len(respBody))

	if resp.StatusCode < 300 {
		return 0, nil
	}

	apiErr := newAPIError(resp.StatusCode, respBody)
	if !apiErr.Retryable() {
		return -1, apiErr
	}
	return c.backoffFor(attempt, resp), apiErr
}

// backoffFor returns the delay before the attempt after attempt. Retry-After
// wins when the server sent one.
func (c *RESTClient) backoffFor(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
				return time.Duration(secs) * time.Second
			}
		}
	}
	return c.backoff << (attempt - 1)
}

func newAPIError(status int, body []byte) *APIError {
	// PostgREST errors look like {"code":"23505","message":"...","details":...}
	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.Message != "" {
		return &APIError{StatusCode: status, Code: payload.Code, Message: payload.Message}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// IsAPIError reports whether err carries an APIError with the given status.
func IsAPIError(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
