// Package blockscout fetches verified contract metadata from a Blockscout
// instance's REST API.
package blockscout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/verimeta/verimeta/internal/sources"
	"github.com/verimeta/verimeta/internal/validation"
)

// DefaultTimeout bounds each lookup request.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 16 << 20

// Client reads verified contract metadata from one Blockscout instance.
type Client struct {
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

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

// New creates a client for the Blockscout instance rooted at baseURL,
// e.g. https://eth.blockscout.com.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = sources.NewHTTPClient(c.timeout)
	}
	return c
}

// Name identifies the source.
func (c *Client) Name() string {
	return "blockscout"
}

type smartContractResponse struct {
	Name                string          `json:"name"`
	ABI                 json.RawMessage `json:"abi"`
	CompilerVersion     string          `json:"compiler_version"`
	IsVerified          bool            `json:"is_verified"`
	IsPartiallyVerified bool            `json:"is_partially_verified"`
	IsFullyVerified     bool            `json:"is_fully_verified"`
}

// FetchMetadata looks the address up via the smart-contracts endpoint. The
// address must be checksummed. A nil record with a nil error means the
// instance has no verified sources for the contract.
func (c *Client) FetchMetadata(ctx context.Context, address string) (*sources.ContractMetadata, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrInvalidAddress, err)
	}

	url := fmt.Sprintf("%s/api/v2/smart-contracts/%s", c.baseURL, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("blockscout request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blockscout: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("blockscout read: %w", err)
	}

	var sc smartContractResponse
	if err := json.Unmarshal(body, &sc); err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrMalformedResponse, err)
	}
	if !sc.IsVerified || len(sc.ABI) == 0 || string(sc.ABI) == "null" {
		return nil, nil
	}

	return &sources.ContractMetadata{
		Name:            sc.Name,
		ABI:             sc.ABI,
		IsPartialMatch:  sc.IsPartiallyVerified && !sc.IsFullyVerified,
		CompilerVersion: sc.CompilerVersion,
	}, nil
}
