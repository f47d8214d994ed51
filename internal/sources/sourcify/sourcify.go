// Package sourcify fetches verified contract metadata from a Sourcify
// repository, preferring full matches over partial ones.
package sourcify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/verimeta/verimeta/internal/networks"
	"github.com/verimeta/verimeta/internal/sources"
	"github.com/verimeta/verimeta/internal/validation"
)

// Defaults for the public Sourcify repository.
const (
	DefaultBaseURL = "https://repo.sourcify.dev/"
	DefaultTimeout = 10 * time.Second
)

// maxMetadataBytes caps how much of metadata.json is read; documents carry
// embedded sources and can get large.
const maxMetadataBytes = 16 << 20

// MatchKind is the verification level of a repository entry.
type MatchKind int

const (
	// MatchFull means bytecode and metadata fingerprint both matched.
	MatchFull MatchKind = iota
	// MatchPartial means bytecode matched but source text may differ.
	MatchPartial
)

// matchOrder is the lookup priority. Full matches shadow partial ones.
var matchOrder = [...]MatchKind{MatchFull, MatchPartial}

// String returns the repository path slug for the match kind.
func (k MatchKind) String() string {
	switch k {
	case MatchFull:
		return "full_match"
	case MatchPartial:
		return "partial_match"
	default:
		return "unknown"
	}
}

// Client reads one network's verified contracts from a Sourcify repository.
// It holds only immutable configuration and a pooled HTTP client, so it is
// safe for concurrent use.
type Client struct {
	network    networks.ChainID
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithNetwork selects the chain id to look contracts up on.
func WithNetwork(id networks.ChainID) Option {
	return func(c *Client) {
		c.network = id
	}
}

// WithBaseURL points the client at a different repository.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithTimeout sets the per-request timeout used when the client builds its
// own HTTP client. Ignored when WithHTTPClient is given.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithHTTPClient supplies a custom HTTP client, usually one shared with
// the other source clients.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// New creates a Sourcify client for mainnet and the public repository
// unless configured otherwise.
func New(opts ...Option) *Client {
	c := &Client{
		network: networks.Mainnet,
		baseURL: strings.TrimSuffix(DefaultBaseURL, "/"),
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
	return "sourcify"
}

// metadataDocument is the slice of metadata.json this client interprets.
type metadataDocument struct {
	Output struct {
		ABI json.RawMessage `json:"abi"`
	} `json:"output"`
	Settings struct {
		CompilationTarget json.RawMessage `json:"compilationTarget"`
	} `json:"settings"`
	Compiler struct {
		Version string `json:"version"`
	} `json:"compiler"`
}

// FetchMetadata resolves the address to a metadata record, trying each
// match kind in priority order. The address must already be checksummed;
// a bad checksum fails before any request is issued. A nil record with a
// nil error means the repository has no entry under either match kind.
func (c *Client) FetchMetadata(ctx context.Context, address string) (*sources.ContractMetadata, error) {
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrInvalidAddress, err)
	}

	for _, kind := range matchOrder {
		md, err := c.tryMatch(ctx, kind, address)
		if err != nil {
			return nil, err
		}
		if md != nil {
			return md, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, nil
}

// tryMatch performs one lookup. Transport failures and non-2xx statuses
// count as a miss for this kind; a 2xx reply that cannot be interpreted is
// an error.
func (c *Client) tryMatch(ctx context.Context, kind MatchKind, address string) (*sources.ContractMetadata, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.metadataURL(kind, address), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return nil, nil
	}

	var doc metadataDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", sources.ErrMalformedResponse, err)
	}
	if len(doc.Output.ABI) == 0 || bytes.Equal(doc.Output.ABI, []byte("null")) {
		return nil, fmt.Errorf("%w: metadata missing output.abi", sources.ErrMalformedResponse)
	}

	name, _ := firstCompilationTarget(doc.Settings.CompilationTarget)
	return &sources.ContractMetadata{
		Name:            name,
		ABI:             doc.Output.ABI,
		IsPartialMatch:  kind == MatchPartial,
		CompilerVersion: doc.Compiler.Version,
	}, nil
}

func (c *Client) metadataURL(kind MatchKind, address string) string {
	return fmt.Sprintf("%s/contracts/%s/%s/%s/metadata.json", c.baseURL, kind, c.network, address)
}

// firstCompilationTarget returns the first contract name in the
// compilationTarget mapping. encoding/json maps drop key order, so the
// object is walked with a token decoder to honor document order.
func firstCompilationTarget(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return "", false
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return "", false
	}
	if !dec.More() {
		return "", false
	}
	if _, err := dec.Token(); err != nil {
		return "", false
	}
	var name string
	if err := dec.Decode(&name); err != nil {
		return "", false
	}
	return name, name != ""
}
