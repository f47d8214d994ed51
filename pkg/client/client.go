// Package client provides a Go client for the Verimeta API.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a Verimeta API client
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithTimeout sets the request timeout on the default HTTP client
func WithTimeout(d time.Duration) Option {
	return func(client *Client) {
		client.httpClient.Timeout = d
	}
}

// New creates a new Verimeta client
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ContractMetadata is the verified metadata for a contract on a chain
type ContractMetadata struct {
	ChainID         uint64          `json:"chainId"`
	Address         string          `json:"address"`
	Name            string          `json:"name,omitempty"`
	ABI             json.RawMessage `json:"abi"`
	IsPartialMatch  bool            `json:"isPartialMatch"`
	Source          string          `json:"source"`
	CompilerVersion string          `json:"compilerVersion,omitempty"`
	Implementation  string          `json:"implementation,omitempty"`
	FetchedAt       time.Time       `json:"fetchedAt"`
}

// Network is a chain known to the server
type Network struct {
	ChainID       uint64 `json:"chainId"`
	Name          string `json:"name"`
	EtherscanURL  string `json:"etherscanUrl,omitempty"`
	BlockscoutURL string `json:"blockscoutUrl,omitempty"`
}

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ContractMetadata fetches the verified metadata for a contract
func (c *Client) ContractMetadata(ctx context.Context, chainID uint64, address string) (*ContractMetadata, error) {
	return c.metadata(ctx, chainID, address, false)
}

// RefreshMetadata fetches the metadata bypassing the server-side cache
func (c *Client) RefreshMetadata(ctx context.Context, chainID uint64, address string) (*ContractMetadata, error) {
	return c.metadata(ctx, chainID, address, true)
}

func (c *Client) metadata(ctx context.Context, chainID uint64, address string, refresh bool) (*ContractMetadata, error) {
	path := fmt.Sprintf("/api/v1/contracts/%d/%s/metadata", chainID, address)
	if refresh {
		path += "?refresh=true"
	}

	var resp ContractMetadata
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ContractABI fetches just the ABI for a contract
func (c *Client) ContractABI(ctx context.Context, chainID uint64, address string) (json.RawMessage, error) {
	path := fmt.Sprintf("/api/v1/contracts/%d/%s/abi", chainID, address)
	return c.getRaw(ctx, path)
}

// Networks lists the chains the server knows about
func (c *Client) Networks(ctx context.Context) ([]Network, error) {
	var resp struct {
		Networks []Network `json:"networks"`
	}
	if err := c.get(ctx, "/api/v1/networks", &resp); err != nil {
		return nil, err
	}
	return resp.Networks, nil
}

// Evict removes a cached record so the next request refetches it
func (c *Client) Evict(ctx context.Context, chainID uint64, address string) error {
	path := fmt.Sprintf("/api/v1/contracts/%d/%s", chainID, address)

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, nil)
}

func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}

	return c.do(req, result)
}

func (c *Client) getRaw(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.parseError(resp)
	}

	return io.ReadAll(resp.Body)
}

func (c *Client) do(req *http.Request, result any) error {
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.parseError(resp)
	}

	if result != nil {
		return json.NewDecoder(resp.Body).Decode(result)
	}

	return nil
}

func (c *Client) parseError(resp *http.Response) error {
	var errResp struct {
		Error APIError `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return &errResp.Error
}
