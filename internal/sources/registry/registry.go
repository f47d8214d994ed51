// Package registry assembles the ordered verification sources for each
// network from configuration. Clients share one pooled HTTP client and,
// for Etherscan-family APIs, one rate limiter across all networks.
package registry

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/verimeta/verimeta/internal/config"
	"github.com/verimeta/verimeta/internal/networks"
	"github.com/verimeta/verimeta/internal/sources"
	"github.com/verimeta/verimeta/internal/sources/blockscout"
	"github.com/verimeta/verimeta/internal/sources/etherscan"
	"github.com/verimeta/verimeta/internal/sources/sourcify"
)

// Registry builds and caches per-network source lists.
type Registry struct {
	cfg      config.SourcesConfig
	networks *networks.Registry
	logger   *slog.Logger
	client   *http.Client
	limiter  *rate.Limiter

	mu    sync.Mutex
	cache map[networks.ChainID][]sources.Source
}

// New creates a registry backed by the given network registry.
func New(cfg config.SourcesConfig, nets *networks.Registry, logger *slog.Logger) *Registry {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = sourcify.DefaultTimeout
	}
	return &Registry{
		cfg:      cfg,
		networks: nets,
		logger:   logger,
		client:   sources.NewHTTPClient(timeout),
		limiter:  rate.NewLimiter(rate.Limit(cfg.Etherscan.RequestsPerSec), cfg.Etherscan.Burst),
		cache:    make(map[networks.ChainID][]sources.Source),
	}
}

// SourcesFor returns the sources to query for a chain, in priority order.
// Sourcify comes first; explorer APIs back it up where the network has one.
func (r *Registry) SourcesFor(chainID uint64) []sources.Source {
	id := networks.ChainID(chainID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if list, ok := r.cache[id]; ok {
		return list
	}

	var list []sources.Source
	if r.cfg.Sourcify.Enabled {
		opts := []sourcify.Option{
			sourcify.WithNetwork(id),
			sourcify.WithHTTPClient(r.client),
		}
		if r.cfg.Sourcify.BaseURL != "" {
			opts = append(opts, sourcify.WithBaseURL(r.cfg.Sourcify.BaseURL))
		}
		list = append(list, sourcify.New(opts...))
	}

	net, known := r.networks.Get(id)
	if known {
		if r.cfg.Etherscan.Enabled && net.EtherscanURL != "" {
			list = append(list, etherscan.New(net.EtherscanURL,
				etherscan.WithAPIKey(r.cfg.Etherscan.APIKey),
				etherscan.WithLimiter(r.limiter),
				etherscan.WithHTTPClient(r.client),
			))
		}
		if r.cfg.Blockscout.Enabled && net.BlockscoutURL != "" {
			list = append(list, blockscout.New(net.BlockscoutURL,
				blockscout.WithHTTPClient(r.client),
			))
		}
	}

	r.logger.Debug("assembled sources", "chainId", chainID, "count", len(list))
	r.cache[id] = list
	return list
}
