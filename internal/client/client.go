// Package client implements the resilient service client used for
// service-to-service calls: auth and integrity header orchestration,
// retry with configurable backoff, and fail-closed response
// verification.
package client

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

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/integrity"
)

// Client issues outbound HTTP calls under a fixed policy. It is
// immutable after construction and safe for concurrent use; each call
// derives its own headers and retry state.
type Client struct {
	cfg    Config
	http   *http.Client
	signer *integrity.Signer
	log    *zap.Logger

	// retryUnit is the base backoff delay; tests shrink it.
	retryUnit time.Duration
}

// Response is the outcome of a completed call. Body holds decoded JSON
// when the content type says JSON, otherwise the raw text.
type Response struct {
	Status  int
	Headers http.Header
	Body    any
	Raw     []byte
}

func New(cfg Config) (*Client, error) {
	cfg.setDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Client{
		cfg:       cfg,
		http:      cfg.HTTPClient,
		log:       cfg.Logger,
		retryUnit: time.Second,
	}
	if cfg.Integrity.Enabled {
		signer, err := integrity.New(cfg.Namespace, cfg.Keyphrase)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuthConfig, err)
		}
		c.signer = signer
	}
	return c, nil
}

type call struct {
	query    url.Values
	headers  http.Header
	body     []byte
	bodyType string
	bearer   string
	buildErr error
}

type CallOption func(*call)

// WithQuery adds a query string parameter.
func WithQuery(key, value string) CallOption {
	return func(c *call) { c.query.Set(key, value) }
}

// WithJSON marshals v as the request body.
func WithJSON(v any) CallOption {
	return func(c *call) {
		b, err := json.Marshal(v)
		if err != nil {
			c.buildErr = err
			return
		}
		c.body = b
		c.bodyType = "application/json"
	}
}

// WithBody sets a raw request body.
func WithBody(b []byte, contentType string) CallOption {
	return func(c *call) {
		c.body = b
		c.bodyType = contentType
	}
}

func WithHeader(key, value string) CallOption {
	return func(c *call) { c.headers.Set(key, value) }
}

// WithBearer sends the given credential as the Authorization bearer for
// this call only, overriding the configured auth mode.
func WithBearer(credential string) CallOption {
	return func(c *call) { c.bearer = credential }
}

// Do runs one logical call: build, send with retries, verify, return.
// Per-attempt timeouts abort only the in-flight attempt; ctx cancels
// the whole call.
func (c *Client) Do(ctx context.Context, method, path string, opts ...CallOption) (*Response, error) {
	cl := &call{query: url.Values{}, headers: http.Header{}}
	for _, opt := range opts {
		opt(cl)
	}
	if cl.buildErr != nil {
		return nil, cl.buildErr
	}

	target := strings.TrimRight(c.cfg.BaseURL, "/") + path
	if len(cl.query) > 0 {
		target += "?" + cl.query.Encode()
	}
	method = strings.ToUpper(method)
	reqID := uuid.NewString()

	var lastRetryable bool
	attempts := 0
	op := func() (*Response, error) {
		attempts++
		resp, retryable, err := c.attempt(ctx, method, target, path, cl, reqID, attempts)
		lastRetryable = retryable
		if err != nil && !retryable {
			return nil, backoff.Permanent(err)
		}
		return resp, err
	}

	resp, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(newPolicyBackOff(c.cfg.Retry.Backoff, c.retryUnit)),
		backoff.WithMaxTries(uint(c.cfg.Retry.MaxAttempts)),
	)
	if err != nil {
		if lastRetryable && attempts >= c.cfg.Retry.MaxAttempts {
			return nil, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, err)
		}
		return nil, err
	}

	if err := c.verifyResponse(resp, reqID); err != nil {
		return nil, err
	}
	return resp, nil
}

// attempt performs one send. The boolean reports whether a failure is
// worth retrying.
func (c *Client) attempt(ctx context.Context, method, target, path string, cl *call, reqID string, n int) (*Response, bool, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var body io.Reader
	if len(cl.body) > 0 {
		body = bytes.NewReader(cl.body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, target, body)
	if err != nil {
		return nil, false, err
	}
	for key, values := range cl.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if cl.bodyType != "" {
		req.Header.Set("Content-Type", cl.bodyType)
	}
	c.setAuthHeader(req, cl)
	if c.signer != nil && c.cfg.Integrity.SignRequests {
		ts := c.signer.Timestamp()
		req.Header.Set(c.signer.TimestampHeader(), ts)
		req.Header.Set(c.signer.RequestHeader(), c.signer.SignRequest(method, path, cl.body, ts))
	}

	c.log.Sugar().Debugw("sending request",
		"requestId", reqID, "method", method, "url", target, "attempt", n)

	resp, err := c.http.Do(req)
	if err != nil {
		if attemptCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return nil, true, fmt.Errorf("%w: %v", ErrNetworkTimeout, err)
		}
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, err
	}

	if c.isRetryable(resp.StatusCode) {
		return nil, true, fmt.Errorf("client: retryable status %d", resp.StatusCode)
	}

	return &Response{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Body:    parseBody(resp.Header.Get("Content-Type"), raw),
		Raw:     raw,
	}, false, nil
}

func (c *Client) setAuthHeader(req *http.Request, cl *call) {
	switch {
	case cl.bearer != "":
		req.Header.Set("Authorization", "Bearer "+cl.bearer)
	case c.cfg.ServiceKey != "":
		req.Header.Set(c.cfg.ServiceKeyHeader, c.cfg.ServiceKey)
	default:
		req.Header.Set("Authorization", "Bearer "+c.cfg.AdminKey)
	}
}

func (c *Client) verifyResponse(resp *Response, reqID string) error {
	if c.signer == nil || !c.cfg.Integrity.VerifyResponses {
		return nil
	}
	sig := resp.Headers.Get(c.signer.ResponseHeader())
	err := c.signer.VerifyResponse(resp.Status, resp.Raw, sig)
	if err == nil {
		return nil
	}
	if c.cfg.Integrity.LogOnly {
		c.log.Sugar().Warnw("response integrity verification failed",
			"requestId", reqID, "status", resp.Status, "error", err)
		return nil
	}
	return err
}

func (c *Client) isRetryable(status int) bool {
	for _, s := range c.cfg.Retry.RetryableStatuses {
		if s == status {
			return true
		}
	}
	return false
}

func parseBody(contentType string, raw []byte) any {
	if strings.Contains(contentType, "application/json") && len(raw) > 0 {
		var v any
		if err := json.Unmarshal(raw, &v); err == nil {
			return v
		}
	}
	return string(raw)
}

// IntegrityError reports whether err is an integrity verification
// failure, including a missing response signature header.
func IntegrityError(err error) bool {
	return errors.Is(err, integrity.ErrVerificationFailed) || errors.Is(err, integrity.ErrMissingHeader)
}
