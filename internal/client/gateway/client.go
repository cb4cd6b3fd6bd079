// Package gateway is the thin request/response client for the authoritative
// server. Every call returns either a decoded response or one of two error
// classes: network-class (wrapped ErrUnavailable) when the server could not
// be reached, or application-class when the server explicitly rejected the
// request.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/avdeyev/catchdex/internal/common"
)

// Client is shared by all entity-family calls. It holds the base URL, the
// timeouts, and the auth-token hooks.
type Client struct {
	baseURL string
	http    *http.Client
	probe   *http.Client

	// token returns the current auth token or "".
	token func() string

	// onUnauthorized is invoked once per 401 so the caller can clear the
	// stored token.
	onUnauthorized func()
}

// Options configures a Client.
type Options struct {
	BaseURL        string
	Timeout        time.Duration
	ProbeTimeout   time.Duration
	Token          func() string
	OnUnauthorized func()
}

// New returns a Client. Zero timeouts fall back to 10s (general) and
// 5s (health probe).
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.ProbeTimeout == 0 {
		opts.ProbeTimeout = 5 * time.Second
	}
	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		http:           &http.Client{Timeout: opts.Timeout},
		probe:          &http.Client{Timeout: opts.ProbeTimeout},
		token:          opts.Token,
		onUnauthorized: opts.OnUnauthorized,
	}
	if c.token == nil {
		c.token = func() string { return "" }
	}
	return c
}

// do executes one JSON request/response cycle and classifies failures.
func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok := c.token(); tok != "" {
		req.Header.Set(common.AuthHeaderName, "Bearer "+tok)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		// Transport failures (refused, reset, DNS, timeout) are all
		// network-class.
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if err := classifyStatus(resp); err != nil {
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return err
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// classifyStatus maps an HTTP response to the two-class error taxonomy.
// Gateway-ish statuses mean the server was not really reached; everything
// else with an error status is a real rejection.
func classifyStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	default:
		return &APIError{Status: resp.StatusCode, Message: decodeErrorBody(resp.Body)}
	}
}

func decodeErrorBody(r io.Reader) string {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return ""
	}
	return payload.Error
}

// Health is the minimal, fast, unauthenticated probe used exclusively by
// the reachability monitor. It deliberately bypasses the general timeout.
func (c *Client) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build probe: %w", err)
	}
	resp, err := c.probe.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}
