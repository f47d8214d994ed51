// Package domain contains the business logic for contract metadata resolution.
package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/verimeta/verimeta/internal/networks"
	"github.com/verimeta/verimeta/internal/observability/metrics"
	"github.com/verimeta/verimeta/internal/sources"
	"github.com/verimeta/verimeta/internal/storage"
	"github.com/verimeta/verimeta/internal/validation"
)

// Common errors returned by the metadata service.
var (
	ErrNotFound       = errors.New("contract metadata not found")
	ErrInvalidAddress = errors.New("invalid contract address")
	ErrInvalidChainID = errors.New("invalid chain id")
)

// ContractStore defines the storage operations needed by the metadata domain.
type ContractStore interface {
	UpsertContract(ctx context.Context, c *storage.Contract) error
	GetContract(ctx context.Context, chainID uint64, address string) (*storage.Contract, error)
	DeleteContract(ctx context.Context, chainID uint64, address string) error
}

// SourceProvider yields the verification sources for a chain, in the order
// they should be queried.
type SourceProvider interface {
	SourcesFor(chainID uint64) []sources.Source
}

type service struct {
	store    ContractStore
	sources  SourceProvider
	networks *networks.Registry
	cacheTTL time.Duration
}

// NewService creates a new metadata service. A positive cacheTTL bounds the
// age of records served from the cache, zero disables cache reads and a
// negative value keeps cached records fresh forever.
func NewService(store ContractStore, provider SourceProvider, nets *networks.Registry, cacheTTL time.Duration) *service {
	return &service{
		store:    store,
		sources:  provider,
		networks: nets,
		cacheTTL: cacheTTL,
	}
}

// Resolve returns the verified metadata record for a contract, serving it
// from the cache when fresh and querying the upstream sources otherwise.
// The address must be EIP-55 checksummed.
func (s *service) Resolve(ctx context.Context, chainID uint64, address string, opts ResolveOptions) (*Record, error) {
	if err := validation.ValidateChainID(chainID); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChainID, err)
	}
	if err := validation.ValidateAddress(address); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	if opts.Refresh {
		metrics.CacheLookup("bypass")
	} else {
		cached, err := s.store.GetContract(ctx, chainID, address)
		switch {
		case err == nil && s.fresh(cached):
			metrics.CacheLookup("hit")
			metrics.MetadataResolve("success")
			return toRecord(cached), nil
		case err == nil:
			metrics.CacheLookup("stale")
		case errors.Is(err, storage.ErrNotFound):
			metrics.CacheLookup("miss")
		default:
			metrics.MetadataResolve("error")
			return nil, fmt.Errorf("reading cache: %w", err)
		}
	}

	md, sourceName, err := s.fetch(ctx, chainID, address)
	if err != nil {
		metrics.MetadataResolve("error")
		return nil, err
	}
	if md == nil {
		metrics.MetadataResolve("not_found")
		return nil, ErrNotFound
	}

	contract := &storage.Contract{
		ID:              generateID(),
		ChainID:         chainID,
		Address:         address,
		Name:            md.Name,
		ABI:             md.ABI,
		IsPartialMatch:  md.IsPartialMatch,
		Source:          sourceName,
		CompilerVersion: md.CompilerVersion,
		Implementation:  md.Implementation,
		FetchedAt:       time.Now().UTC(),
	}
	if err := s.store.UpsertContract(ctx, contract); err != nil {
		metrics.MetadataResolve("error")
		return nil, fmt.Errorf("caching metadata: %w", err)
	}

	metrics.MetadataResolve("success")
	return toRecord(contract), nil
}

// ABI returns just the ABI document for a contract.
func (s *service) ABI(ctx context.Context, chainID uint64, address string, opts ResolveOptions) (json.RawMessage, error) {
	record, err := s.Resolve(ctx, chainID, address, opts)
	if err != nil {
		return nil, err
	}
	return record.ABI, nil
}

// Evict removes a cached record so the next resolution hits the sources.
func (s *service) Evict(ctx context.Context, chainID uint64, address string) error {
	if err := validation.ValidateChainID(chainID); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidChainID, err)
	}
	if err := validation.ValidateAddress(address); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	if err := s.store.DeleteContract(ctx, chainID, address); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.MetadataEvict("not_found")
			return ErrNotFound
		}
		metrics.MetadataEvict("error")
		return fmt.Errorf("deleting cached metadata: %w", err)
	}

	metrics.MetadataEvict("success")
	return nil
}

// Networks lists the known networks.
func (s *service) Networks(ctx context.Context) []networks.Network {
	return s.networks.List()
}

// fetch walks the sources in order and returns the first record found. A
// failing source is skipped so a later one can still answer; the first
// failure is reported when nothing answers at all, so a malformed upstream
// response is never mistaken for an unverified contract.
func (s *service) fetch(ctx context.Context, chainID uint64, address string) (*sources.ContractMetadata, string, error) {
	var firstErr error
	for _, src := range s.sources.SourcesFor(chainID) {
		start := time.Now()
		md, err := src.FetchMetadata(ctx, address)
		switch {
		case err != nil:
			metrics.SourceFetch(src.Name(), "error", time.Since(start))
			if ctx.Err() != nil {
				return nil, "", ctx.Err()
			}
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", src.Name(), err)
			}
		case md != nil:
			metrics.SourceFetch(src.Name(), "hit", time.Since(start))
			return md, src.Name(), nil
		default:
			metrics.SourceFetch(src.Name(), "miss", time.Since(start))
		}
	}
	return nil, "", firstErr
}

func (s *service) fresh(c *storage.Contract) bool {
	if s.cacheTTL < 0 {
		return true
	}
	if s.cacheTTL == 0 {
		return false
	}
	return time.Since(c.FetchedAt) < s.cacheTTL
}

// Helper functions

func toRecord(c *storage.Contract) *Record {
	return &Record{
		ChainID:         c.ChainID,
		Address:         c.Address,
		Name:            c.Name,
		ABI:             c.ABI,
		IsPartialMatch:  c.IsPartialMatch,
		Source:          c.Source,
		CompilerVersion: c.CompilerVersion,
		Implementation:  c.Implementation,
		FetchedAt:       c.FetchedAt,
	}
}
