// Package sources defines the explorer backends that serve verified
// contract metadata and the normalized record they produce.
package sources

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"
)

// Common source errors
var (
	// ErrInvalidAddress rejects a lookup before any request is made.
	ErrInvalidAddress = errors.New("invalid contract address")
	// ErrMalformedResponse marks a successful reply whose body cannot be used.
	ErrMalformedResponse = errors.New("malformed explorer response")
)

// ContractMetadata is the normalized record for a verified contract as a
// single source knows it.
type ContractMetadata struct {
	// Name is the contract name, empty when the source does not report one.
	Name string `json:"name,omitempty"`
	// ABI is the verified interface, kept as opaque JSON.
	ABI json.RawMessage `json:"abi"`
	// IsPartialMatch is true when the on-chain bytecode matches the
	// published sources but the metadata fingerprint does not.
	IsPartialMatch bool `json:"isPartialMatch"`
	// CompilerVersion and Implementation are optional enrichments.
	// Implementation is the reported proxy target; it is not followed.
	CompilerVersion string `json:"compilerVersion,omitempty"`
	Implementation  string `json:"implementation,omitempty"`
}

// Source serves verified contract metadata from one explorer backend. An
// instance is bound to a single network at construction time.
//
// A nil record with a nil error means the source does not know the
// contract. Errors are reserved for rejected inputs and unusable replies.
type Source interface {
	Name() string
	FetchMetadata(ctx context.Context, address string) (*ContractMetadata, error)
}

// NewHTTPClient builds a pooled HTTP client with the given request timeout.
// Source clients share one of these instead of opening a connection per
// lookup.
func NewHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
