package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Observer receives request telemetry. Implemented by the metrics service.
type Observer interface {
	ObserveDirectoryRequest(op string, duration time.Duration, err error)
}

// Config wires the client to the external tag directory.
type Config struct {
	BaseURL       string
	APIKey        string
	Timeout       time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration
	RatePerSecond int
	HTTPClient    *http.Client
	Logger        *zap.Logger
	Observer      Observer
}

// Client talks to the CRM's tag API. Transient failures (network errors,
// timeouts, 429, 5xx) are retried here with bounded attempts and backoff so
// callers only ever see them once retries are exhausted; other 4xx responses
// are returned immediately as permanent.
type Client struct {
	baseURL  string
	apiKey   string
	client   *http.Client
	retries  int
	backoff  time.Duration
	limiter  *throttle
	logger   *zap.Logger
	observer Observer
}

// NewClient constructs the directory client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("crm base url required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	backoff := cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		client:   httpClient,
		retries:  retries,
		backoff:  backoff,
		limiter:  newThrottle(cfg.RatePerSecond),
		logger:   logger,
		observer: cfg.Observer,
	}, nil
}

// APIError is a non-2xx response from the directory.
type APIError struct {
	StatusCode int
	Op         string
	Body       string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("tag directory %s: status %d: %s", e.Op, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("tag directory %s: status %d", e.Op, e.StatusCode)
}

// Permanent reports whether retrying cannot help (validation-class 4xx).
func (e *APIError) Permanent() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500 && e.StatusCode != http.StatusTooManyRequests
}

// GetTags lists the contact's current tag names. The directory may repeat a
// tag when it holds duplicate internal records; callers de-duplicate.
func (c *Client) GetTags(ctx context.Context, contactEmail string) ([]string, error) {
	var payload struct {
		Tags []string `json:"tags"`
	}
	path := fmt.Sprintf("/contacts/%s/tags", url.PathEscape(contactEmail))
	if err := c.do(ctx, "get_tags", http.MethodGet, path, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Tags, nil
}

// AddTag attaches a tag to the contact. Adding an existing tag is a no-op on
// the directory side.
func (c *Client) AddTag(ctx context.Context, contactEmail, tag string) error {
	body := map[string]string{"tag": tag}
	path := fmt.Sprintf("/contacts/%s/tags", url.PathEscape(contactEmail))
	return c.do(ctx, "add_tag", http.MethodPost, path, body, nil)
}

// RemoveTag detaches a tag from the contact.
func (c *Client) RemoveTag(ctx context.Context, contactEmail, tag string) error {
	path := fmt.Sprintf("/contacts/%s/tags/%s", url.PathEscape(contactEmail), url.PathEscape(tag))
	return c.do(ctx, "remove_tag", http.MethodDelete, path, nil, nil)
}

func (c *Client) do(ctx context.Context, op, method, path string, body interface{}, dest interface{}) error {
	var encoded []byte
	if body != nil {
		var err error
		encoded, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", op, err)
		}
	}

	attempts := c.retries + 1
	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := c.limiter.wait(ctx); err != nil {
			return err
		}

		start := time.Now()
		err := c.send(ctx, op, method, path, encoded, dest)
		if c.observer != nil {
			c.observer.ObserveDirectoryRequest(op, time.Since(start), err)
		}
		if err == nil {
			return nil
		}

		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Permanent() {
			return err
		}
		lastErr = err

		if attempt < attempts-1 {
			c.logger.Warn("tag directory call failed, retrying",
				zap.String("op", op), zap.Int("attempt", attempt+1), zap.Error(err))
			timer := time.NewTimer(c.backoff * time.Duration(attempt+1))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

func (c *Client) send(ctx context.Context, op, method, path string, body []byte, dest interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Op: op, Body: strings.TrimSpace(buf.String())}
	}

	if dest != nil {
		if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

// throttle spaces requests out to at most rate per second across all
// goroutines sharing the client.
type throttle struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func newThrottle(ratePerSecond int) *throttle {
	if ratePerSecond <= 0 {
		return &throttle{}
	}
	return &throttle{interval: time.Second / time.Duration(ratePerSecond)}
}

func (t *throttle) wait(ctx context.Context) error {
	if t.interval <= 0 {
		return ctx.Err()
	}

	t.mu.Lock()
	now := time.Now()
	slot := t.next
	if slot.Before(now) {
		slot = now
	}
	t.next = slot.Add(t.interval)
	t.mu.Unlock()

	delay := time.Until(slot)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
