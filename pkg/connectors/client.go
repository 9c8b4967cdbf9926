// Package connectors provides the rate-limited HTTP client shared by the
// upstream data-source analyzers.
package connectors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/pubguard/engine/pkg/errors"
	"github.com/pubguard/engine/pkg/retry"
)

// Config holds configuration for creating a Client.
type Config struct {
	// Source is the upstream name used in errors and logs ("nvd", "search").
	Source string

	// BaseURL is the API root, without trailing slash.
	BaseURL string

	// APIKey, if set, is sent via the configured header.
	APIKey string

	// APIKeyHeader names the header carrying APIKey (default "Authorization",
	// sent as a Bearer token).
	APIKeyHeader string

	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	// Fractional rates express fixed inter-request delays: 0.2 means one
	// request every five seconds.
	RequestsPerSecond float64

	// Burst is the limiter burst size (default 1, i.e. strictly paced).
	Burst int

	// Timeout bounds each HTTP round trip (default 15s). The per-source
	// scan deadline is enforced separately through the request context.
	Timeout time.Duration

	// Retry overrides the transient-failure policy (default retry.DefaultPolicy).
	Retry *retry.Policy

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Client is a rate-limited, retrying HTTP client bound to one upstream API.
// All analyzer traffic to third-party sources goes through a Client so that
// pacing and deadline behavior is testable in one place.
type Client struct {
	source  string
	baseURL string

	apiKey       string
	apiKeyHeader string

	limiter *rate.Limiter
	policy  *retry.Policy
	http    *http.Client
}

// New creates a Client from the config.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	policy := cfg.Retry
	if policy == nil {
		policy = retry.DefaultPolicy()
	}

	c := &Client{
		source:       cfg.Source,
		baseURL:      cfg.BaseURL,
		apiKey:       cfg.APIKey,
		apiKeyHeader: cfg.APIKeyHeader,
		policy:       policy,
		http:         httpClient,
	}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return c
}

// Source returns the upstream name.
func (c *Client) Source() string {
	return c.source
}

// RateLimited returns true if throttling is enabled.
func (c *Client) RateLimited() bool {
	return c.limiter != nil
}

// wait blocks until the limiter admits the next request or ctx is done.
func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

// GetJSON issues a throttled GET against path (with query values) and decodes
// the JSON response body into out. Transient upstream failures are retried
// per the policy; terminal errors are mapped onto the engine error taxonomy.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out interface{}) error {
	op := c.source + ".GetJSON"

	return c.policy.Do(ctx, func() error {
		if err := c.wait(ctx); err != nil {
			return mapCtxErr(op, err)
		}

		u := c.baseURL + path
		if len(query) > 0 {
			u += "?" + query.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return errors.E(errors.KindInternal, op, "build request", err)
		}
		req.Header.Set("Accept", "application/json")
		c.addAuth(req)

		resp, err := c.http.Do(req)
		if err != nil {
			return mapCtxErr(op, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &errors.UpstreamError{
				Source:     c.source,
				StatusCode: resp.StatusCode,
				Message:    string(body),
			}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.E(errors.KindMalformedResponse, op,
				fmt.Sprintf("decode %s response", c.source), err)
		}
		return nil
	})
}

func (c *Client) addAuth(req *http.Request) {
	if c.apiKey == "" {
		return
	}
	if c.apiKeyHeader != "" {
		req.Header.Set(c.apiKeyHeader, c.apiKey)
		return
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
}

// mapCtxErr folds transport and context errors onto the taxonomy.
func mapCtxErr(op string, err error) error {
	switch {
	case err == context.DeadlineExceeded:
		return errors.E(errors.KindTimeout, op, "deadline exceeded", err)
	case err == context.Canceled:
		return err
	default:
		if ctxErr := contextError(err); ctxErr != nil {
			return ctxErr
		}
		return errors.E(errors.KindNetwork, op, "request failed", err)
	}
}

// contextError unwraps url.Error values carrying a context error so that a
// cancelled scan is not misreported as a network failure.
func contextError(err error) error {
	ue, ok := err.(*url.Error)
	if !ok {
		return nil
	}
	switch ue.Err {
	case context.Canceled:
		return context.Canceled
	case context.DeadlineExceeded:
		return errors.E(errors.KindTimeout, "http", "deadline exceeded", err)
	}
	if ue.Timeout() {
		return errors.E(errors.KindTimeout, "http", "request timed out", err)
	}
	return nil
}
