// Package etherscan fetches verified contract metadata from an
// Etherscan-family explorer API.
package etherscan

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/verimeta/verimeta/internal/sources"
	"github.com/verimeta/verimeta/internal/validation"
)

// Defaults match the free-tier limits of the public API.
const (
	DefaultTimeout   = 10 * time.Second
	DefaultRateLimit = rate.Limit(5)
	DefaultRateBurst = 5
)

const maxResponseBytes = 16 << 20

// notVerifiedMarker is what the API returns in the ABI field for contracts
// without verified sources.
const notVerifiedMarker = "Contract source code not verified"

// Client reads verified contract metadata from one explorer endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	limiter    *rate.Limiter
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithAPIKey authenticates requests. Anonymous access works but is
// throttled much harder by the API.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithLimiter substitutes the request limiter. Clients for different
// chains under one API account should share a single limiter.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithTimeout sets the per-request timeout used when the client builds its
// own HTTP client. Ignored when WithHTTPClient is given.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient supplies a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a client for the explorer API rooted at baseURL,
// e.g. https://api.etherscan.io.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = rate.NewLimiter(DefaultRateLimit, DefaultRateBurst)
	}
	if c.httpClient == nil {
		c.httpClient = sources.NewHTTPClient(c.timeout)
	}
	return c
}

// Name identifies the source.
func (c *Client) Name() string {
	return "etherscan"
}

type apiResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

type sourceCodeResult struct {
	ABI             string `json:"ABI"`
	ContractName    string `json:"ContractName"`
	CompilerVersion string `json:"CompilerVersion"`
	Proxy           string `json:"Proxy"`
	Implementation  string `json:"Implementation"`
}

// FetchMetadata looks the address up via the getsourcecode action. The
// address must be checksummed. A nil record with a nil error means the
// contract has no verified sources on this explorer.
func (c *Client) FetchMetadata(ctx context.Context, address string) (*sources.ContractMetadata, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrInvalidAddress, err)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.sourceCodeURL(address), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("etherscan request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("etherscan: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("etherscan read: %w", err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrMalformedResponse, err)
	}
	if envelope.Status != "1" {
		// On failure the result field degrades to a plain string.
		var detail string
		_ = json.Unmarshal(envelope.Result, &detail)
		if detail == "" {
			detail = envelope.Message
		}
		return nil, fmt.Errorf("etherscan: %s", detail)
	}

	var results []sourceCodeResult
	if err := json.Unmarshal(envelope.Result, &results); err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrMalformedResponse, err)
	}
	if len(results) == 0 {
		return nil, nil
	}

	first := results[0]
	if first.ABI == "" || first.ABI == notVerifiedMarker {
		return nil, nil
	}
	if !json.Valid([]byte(first.ABI)) {
		return nil, fmt.Errorf("%w: ABI field is not valid JSON", sources.ErrMalformedResponse)
	}

	md := &sources.ContractMetadata{
		Name:            first.ContractName,
		ABI:             json.RawMessage(first.ABI),
		CompilerVersion: first.CompilerVersion,
	}
	if first.Proxy == "1" {
		md.Implementation = first.Implementation
	}
	return md, nil
}

func (c *Client) sourceCodeURL(address string) string {
	q := url.Values{}
	q.Set("module", "contract")
	q.Set("action", "getsourcecode")
	q.Set("address", address)
	if c.apiKey != "" {
		q.Set("apikey", c.apiKey)
	}
	return c.baseURL + "/api?" + q.Encode()
}
