// Package gateway is the single issuer of vendor API requests. Every call
// passes the token check, is counted against the daily quota and is
// journaled before its response is classified.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/j-veylop/tadox-dashboard-tui/internal/logger"
	"github.com/j-veylop/tadox-dashboard-tui/internal/metrics"
	"github.com/j-veylop/tadox-dashboard-tui/internal/models"
	"github.com/j-veylop/tadox-dashboard-tui/internal/services/quota"
)

const userAgent = "tadox-dashboard-tui"

// TokenSource provides and renews the bearer token.
type TokenSource interface {
	EnsureValid(ctx context.Context) error
	Refresh(ctx context.Context) error
	AccessToken() string
}

// CallRecorder journals every request attempt.
type CallRecorder interface {
	RecordAPICall(call models.APICall) error
}

// Config holds the endpoint bases and optional collaborators of a Client.
type Config struct {
	HTTPClient     *http.Client
	QuotaPersister quota.Persister
	Recorder       CallRecorder
	Metrics        *metrics.Metrics
	Now            func() time.Time
	HopsURL        string
	MyURL          string
	MinderURL      string
	EIQURL         string
}

// Client issues vendor API requests one at a time.
type Client struct {
	tokens  TokenSource
	tracker *quota.Tracker
	client  *http.Client
	now     func() time.Time
	sem     chan struct{}
	cfg     Config
	home    models.Home
	homeMu  sync.RWMutex
}

// New creates a gateway client.
func New(cfg Config, tokens TokenSource, tracker *quota.Tracker) *Client {
	c := &Client{
		cfg:     cfg,
		tokens:  tokens,
		tracker: tracker,
		client:  cfg.HTTPClient,
		now:     cfg.Now,
		sem:     make(chan struct{}, 1),
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: 30 * time.Second}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// SetHome binds the client to a home. It must be called before any
// home-scoped operation.
func (c *Client) SetHome(home models.Home) {
	c.homeMu.Lock()
	defer c.homeMu.Unlock()
	c.home = home
}

// Home returns the bound home.
func (c *Client) Home() models.Home {
	c.homeMu.RLock()
	defer c.homeMu.RUnlock()
	return c.home
}

// request describes one vendor call. For home-scoped calls path is relative
// to /homes/{id}.
type request struct {
	body       any
	query      url.Values
	op         string
	method     string
	base       string
	path       string
	homeScoped bool
}

func (r request) url(homeID int64) string {
	path := r.path
	if r.homeScoped {
		path = "/homes/" + strconv.FormatInt(homeID, 10) + path
	}
	u := r.base + path
	if len(r.query) > 0 {
		u += "?" + r.query.Encode()
	}
	return u
}

// do runs the full call protocol under the client's semaphore and decodes a
// successful body into out when out is non-nil.
func (c *Client) do(ctx context.Context, req request, out any) error {
	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.sem }()

	homeID := c.Home().ID
	if req.homeScoped && homeID == 0 {
		return &ConfigurationError{Err: ErrHomeNotSet}
	}

	if err := c.tokens.EnsureValid(ctx); err != nil {
		return err
	}

	target := req.url(homeID)
	resp, err := c.attempt(ctx, req, target)
	if err != nil {
		return err
	}

	switch {
	case resp.status == http.StatusUnauthorized:
		logger.Warn("vendor rejected access token, refreshing", "op", req.op)
		if err := c.tokens.Refresh(ctx); err != nil {
			return err
		}
		retry, err := c.attempt(ctx, req, target)
		if err != nil {
			return err
		}
		if !isSuccess(retry.status) {
			return &APIError{Method: req.method, Path: req.path, StatusCode: retry.status, Body: string(retry.body)}
		}
		return decode(req, retry.body, out)

	case resp.status == http.StatusTooManyRequests:
		return &RateLimitError{ResetTime: c.tracker.ResetTime()}

	case !isSuccess(resp.status):
		return &APIError{Method: req.method, Path: req.path, StatusCode: resp.status, Body: string(resp.body)}
	}

	return decode(req, resp.body, out)
}

type response struct {
	body   []byte
	status int
}

// attempt sends one HTTP request, counting it against the quota and
// journaling the outcome. Transport failures come back as APIError.
func (c *Client) attempt(ctx context.Context, req request, target string) (*response, error) {
	c.tracker.RecordCall(c.now())
	c.persistQuota()

	requestID := uuid.New().String()
	start := time.Now()
	resp, err := c.send(ctx, req, target, requestID)
	elapsed := time.Since(start)

	call := models.APICall{
		Timestamp:  c.now(),
		RequestID:  requestID,
		Method:     req.method,
		Path:       req.path,
		DurationMs: int(elapsed.Milliseconds()),
	}
	if err != nil {
		call.Error = err.Error()
	} else {
		call.StatusCode = resp.status
		if !isSuccess(resp.status) {
			call.Error = http.StatusText(resp.status)
		}
	}
	c.record(call)
	c.cfg.Metrics.ObserveAPICall(req.op, call.StatusCode, elapsed)

	if err != nil {
		return nil, &APIError{Method: req.method, Path: req.path, Err: err}
	}
	return resp, nil
}

func (c *Client) send(ctx context.Context, req request, target, requestID string) (*response, error) {
	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.tokens.AccessToken())
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	httpReq.Header.Set("X-Request-ID", requestID)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			logger.Error("failed to close response body", "error", err)
		}
	}()

	c.tracker.ObserveHeaders(resp.Header)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	logger.Debug("vendor api call", "op", req.op, "status", resp.StatusCode, "request_id", requestID)
	return &response{status: resp.StatusCode, body: data}, nil
}

func (c *Client) persistQuota() {
	if c.cfg.QuotaPersister == nil {
		return
	}
	if err := c.cfg.QuotaPersister.PersistQuota(c.tracker.State()); err != nil {
		logger.Error("failed to persist quota state", "error", err)
	}
}

func (c *Client) record(call models.APICall) {
	if c.cfg.Recorder == nil {
		return
	}
	if err := c.cfg.Recorder.RecordAPICall(call); err != nil {
		logger.Error("failed to record api call", "error", err)
	}
}

func decode(req request, body []byte, out any) error {
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &APIError{Method: req.method, Path: req.path, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
