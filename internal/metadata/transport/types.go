// Package transport provides HTTP request/response types for the metadata domain.
package transport

import (
	"encoding/json"
	"time"

	"github.com/verimeta/verimeta/internal/metadata/domain"
	"github.com/verimeta/verimeta/internal/networks"
)

// MetadataResponse is the response for resolving contract metadata.
type MetadataResponse struct {
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

// FromDomain converts a domain record to its wire form.
func FromDomain(r *domain.Record) MetadataResponse {
	return MetadataResponse{
		ChainID:         r.ChainID,
		Address:         r.Address,
		Name:            r.Name,
		ABI:             r.ABI,
		IsPartialMatch:  r.IsPartialMatch,
		Source:          r.Source,
		CompilerVersion: r.CompilerVersion,
		Implementation:  r.Implementation,
		FetchedAt:       r.FetchedAt,
	}
}

// NetworksResponse is the response for listing known networks.
type NetworksResponse struct {
	Networks []networks.Network `json:"networks"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
