// Package domain contains the business logic for contract metadata resolution.
package domain

import (
	"encoding/json"
	"time"
)

// Record is a resolved contract metadata record.
type Record struct {
	ChainID         uint64
	Address         string
	Name            string
	ABI             json.RawMessage
	IsPartialMatch  bool
	Source          string
	CompilerVersion string
	Implementation  string
	FetchedAt       time.Time
}

// ResolveOptions controls how a resolution is served.
type ResolveOptions struct {
	// Refresh bypasses the cache and always queries the upstream sources.
	Refresh bool
}
