package client

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/Underwood-Inc/strixun-stream-suite-sub009/internal/integrity"
)

var (
	// ErrAuthConfig covers every construction-time misconfiguration:
	// both or neither auth mode set, or integrity enabled without a
	// keyphrase. These are hard errors, never silent downgrades.
	ErrAuthConfig = errors.New("client: invalid auth configuration")

	ErrNetworkTimeout = errors.New("client: request timed out")
	ErrRetryExhausted = errors.New("client: retry attempts exhausted")
)

// DefaultServiceKeyHeader carries the service key when bearer auth is
// not in use.
const DefaultServiceKeyHeader = "X-Service-Key"

// RetryPolicy controls how failed attempts are repeated.
type RetryPolicy struct {
	MaxAttempts       int
	Backoff           BackoffKind
	RetryableStatuses []int
}

// IntegrityPolicy controls signing of outbound requests and
// verification of inbound responses. LogOnly downgrades a verification
// failure to a warning; the default is to fail the call.
type IntegrityPolicy struct {
	Enabled         bool
	SignRequests    bool
	VerifyResponses bool
	LogOnly         bool
}

// Config describes a service client. Exactly one of ServiceKey or
// AdminKey must be set.
type Config struct {
	BaseURL string

	// ServiceKey is sent in ServiceKeyHeader; AdminKey is sent as a
	// bearer token. The two modes are mutually exclusive.
	ServiceKey       string
	AdminKey         string
	ServiceKeyHeader string

	// Timeout bounds a single attempt, not the whole call.
	Timeout time.Duration

	Retry     RetryPolicy
	Integrity IntegrityPolicy

	// Keyphrase is the shared integrity secret. Required whenever
	// Integrity.Enabled is set.
	Keyphrase string
	Namespace string

	Logger     *zap.Logger
	HTTPClient *http.Client
}

func (c *Config) setDefaults() {
	if c.ServiceKeyHeader == "" {
		c.ServiceKeyHeader = DefaultServiceKeyHeader
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Retry.MaxAttempts <= 0 {
		c.Retry.MaxAttempts = 3
	}
	if c.Retry.RetryableStatuses == nil {
		c.Retry.RetryableStatuses = []int{
			http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
		}
	}
	if c.Namespace == "" {
		c.Namespace = integrity.DefaultNamespace
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{}
	}
}

func (c *Config) validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("%w: base URL required", ErrAuthConfig)
	}
	hasService := c.ServiceKey != ""
	hasAdmin := c.AdminKey != ""
	if hasService == hasAdmin {
		return fmt.Errorf("%w: exactly one of service key or admin key must be set", ErrAuthConfig)
	}
	if c.Integrity.Enabled && c.Keyphrase == "" {
		return fmt.Errorf("%w: integrity keyphrase required", ErrAuthConfig)
	}
	return nil
}
