// Package sinkclient talks to a running capture sink over HTTP. Test runners
// written in any language can drive the sink directly; Go test suites use this.
package sinkclient

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/PratikDhanave/analytics-capture/internal/models"
	"github.com/PratikDhanave/analytics-capture/pkg/capture"
)

const (
	defaultTimeout       = 30 * time.Second
	defaultRetryCount    = 2
	defaultRetryWaitTime = 200 * time.Millisecond
	defaultRetryMaxWait  = 2 * time.Second
	defaultUserAgent     = "analytics-capture-sinkclient"
)

type (
	Session        = models.SessionCreateResponse
	AssertRequest  = models.AssertRequest
	AssertResponse = models.AssertResponse
)

// Assertion kinds.
const (
	KindFired    = models.AssertFired
	KindNotFired = models.AssertNotFired
	KindCount    = models.AssertCount
)

// Config holds the client settings. Timeout must exceed the longest assertion
// timeout the caller uses, since assertions block server side.
type Config struct {
	BaseURL          string
	APIKey           string
	Timeout          time.Duration
	RetryCount       int
	RetryWaitTime    time.Duration
	RetryMaxWaitTime time.Duration
	UserAgent        string
	Debug            bool
}

// NewConfig returns a Config with defaults for baseURL and apiKey.
func NewConfig(baseURL, apiKey string) Config {
	return Config{
		BaseURL:          baseURL,
		APIKey:           apiKey,
		Timeout:          defaultTimeout,
		RetryCount:       defaultRetryCount,
		RetryWaitTime:    defaultRetryWaitTime,
		RetryMaxWaitTime: defaultRetryMaxWait,
		UserAgent:        defaultUserAgent,
	}
}

// APIError is a non-2xx answer from the sink.
type APIError struct {
	StatusCode int                    `json:"-"`
	Message    string                 `json:"error"`
	Category   string                 `json:"category,omitempty"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("sink: %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("sink: %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the sink.
func IsNotFound(err error) bool {
	ae, ok := err.(*APIError)
	return ok && ae.StatusCode == http.StatusNotFound
}

// Client wraps resty.Client with the sink's routes.
type Client struct {
	rc     *resty.Client
	config Config
}

// New creates a client for config.
func New(config Config) *Client {
	rc := resty.New()
	if config.BaseURL != "" {
		rc.SetBaseURL(config.BaseURL)
	}
	if config.Timeout > 0 {
		rc.SetTimeout(config.Timeout)
	}
	if config.RetryCount > 0 {
		rc.SetRetryCount(config.RetryCount)
	}
	if config.RetryWaitTime > 0 {
		rc.SetRetryWaitTime(config.RetryWaitTime)
	}
	if config.RetryMaxWaitTime > 0 {
		rc.SetRetryMaxWaitTime(config.RetryMaxWaitTime)
	}
	if config.UserAgent != "" {
		rc.SetHeader("User-Agent", config.UserAgent)
	}
	if config.APIKey != "" {
		rc.SetHeader("X-API-Key", config.APIKey)
	}
	rc.SetHeader("Accept", "application/json")
	rc.SetDebug(config.Debug)

	return &Client{rc: rc, config: config}
}

// IngestURL returns the absolute URL an analytics SDK should use as its API host.
func (c *Client) IngestURL(s Session) string {
	return c.config.BaseURL + s.IngestURL
}

// Ready checks the sink's readiness endpoint.
func (c *Client) Ready(ctx context.Context) error {
	resp, err := c.rc.R().SetContext(ctx).Get("/ready")
	return check(resp, err, nil)
}

// CreateSession starts a capture session.
func (c *Client) CreateSession(ctx context.Context) (Session, error) {
	var out Session
	apiErr := &APIError{}
	resp, err := c.rc.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(apiErr).
		Post("/sessions")
	return out, check(resp, err, apiErr)
}

// DeleteSession ends a session.
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	apiErr := &APIError{}
	resp, err := c.rc.R().
		SetContext(ctx).
		SetError(apiErr).
		SetPathParam("id", id).
		Delete("/sessions/{id}")
	return check(resp, err, apiErr)
}

// Events returns the session's captured events in interception order.
func (c *Client) Events(ctx context.Context, id string) ([]capture.Event, error) {
	var out models.EventsResponse
	apiErr := &APIError{}
	resp, err := c.rc.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(apiErr).
		SetPathParam("id", id).
		Get("/sessions/{id}/events")
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return out.Events, nil
}

// ClearEvents empties the session's event log.
func (c *Client) ClearEvents(ctx context.Context, id string) error {
	apiErr := &APIError{}
	resp, err := c.rc.R().
		SetContext(ctx).
		SetError(apiErr).
		SetPathParam("id", id).
		Delete("/sessions/{id}/events")
	return check(resp, err, apiErr)
}

// Count returns how many events named eventName were captured, or all events
// when eventName is empty.
func (c *Client) Count(ctx context.Context, id, eventName string) (int, error) {
	var out models.CountResponse
	apiErr := &APIError{}
	req := c.rc.R().
		SetContext(ctx).
		SetResult(&out).
		SetError(apiErr).
		SetPathParam("id", id)
	if eventName != "" {
		req.SetQueryParam("event_name", eventName)
	}
	resp, err := req.Get("/sessions/{id}/count")
	if err := check(resp, err, apiErr); err != nil {
		return 0, err
	}
	return out.Count, nil
}

// Assert runs an assertion server side. A failed assertion is not an error:
// the response has Pass=false and a diagnostic Message.
func (c *Client) Assert(ctx context.Context, id string, req AssertRequest) (AssertResponse, error) {
	var out AssertResponse
	apiErr := &APIError{}
	resp, err := c.rc.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		SetError(apiErr).
		SetPathParam("id", id).
		Post("/sessions/{id}/assert")
	return out, check(resp, err, apiErr)
}

// Fired asserts that a matching event is captured within timeout. A zero
// timeout uses the sink's default; the sink rejects timeouts above five minutes.
func (c *Client) Fired(ctx context.Context, id, eventName string, properties map[string]interface{}, timeout time.Duration) (AssertResponse, error) {
	return c.Assert(ctx, id, AssertRequest{
		Kind:       KindFired,
		EventName:  eventName,
		Properties: properties,
		TimeoutMS:  WaitMS(timeout),
	})
}

// NotFired asserts that no matching event is captured within timeout. A zero
// timeout uses the sink's default; the sink rejects timeouts above five minutes.
func (c *Client) NotFired(ctx context.Context, id, eventName string, properties map[string]interface{}, timeout time.Duration) (AssertResponse, error) {
	return c.Assert(ctx, id, AssertRequest{
		Kind:       KindNotFired,
		EventName:  eventName,
		Properties: properties,
		TimeoutMS:  WaitMS(timeout),
	})
}

// WaitMS converts a wait to the sink's millisecond fields. Positive durations
// round up, so a sub-millisecond wait is not sent as 0 (the sink default).
func WaitMS(d time.Duration) int64 {
	if d <= 0 {
		return d.Milliseconds()
	}
	return int64((d + time.Millisecond - 1) / time.Millisecond)
}

func check(resp *resty.Response, err error, apiErr *APIError) error {
	if err != nil {
		return fmt.Errorf("sink request: %w", err)
	}
	if !resp.IsError() {
		return nil
	}
	if apiErr == nil || apiErr.Message == "" {
		apiErr = &APIError{Message: http.StatusText(resp.StatusCode())}
	}
	apiErr.StatusCode = resp.StatusCode()
	return apiErr
}
