// Package networks maps EVM chain ids to the explorer endpoints that serve
// verified contract metadata for them.
package networks

import (
	"sort"
	"strconv"
)

// ChainID identifies an EVM network by its numeric chain id.
type ChainID uint64

// Well-known chain ids.
const (
	Mainnet  ChainID = 1
	Gnosis   ChainID = 100
	Polygon  ChainID = 137
	Base     ChainID = 8453
	Arbitrum ChainID = 42161
	Optimism ChainID = 10
	BSC      ChainID = 56
	Sepolia  ChainID = 11155111
)

// String returns the decimal form used in lookup URLs.
func (c ChainID) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

// Network describes one chain and the explorer endpoints known for it.
// Sourcify addresses chains by numeric id alone, so a chain missing from
// the registry can still be looked up there; Etherscan and Blockscout need
// per-chain base URLs.
type Network struct {
	ChainID       ChainID `json:"chainId"`
	Name          string  `json:"name"`
	EtherscanURL  string  `json:"etherscanUrl,omitempty"`
	BlockscoutURL string  `json:"blockscoutUrl,omitempty"`
}

// Registry holds the known networks.
type Registry struct {
	networks map[ChainID]Network
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		networks: make(map[ChainID]Network),
	}
}

// Register adds or replaces a network.
func (r *Registry) Register(n Network) {
	r.networks[n.ChainID] = n
}

// Get retrieves a network by chain id.
func (r *Registry) Get(id ChainID) (Network, bool) {
	n, ok := r.networks[id]
	return n, ok
}

// List returns all registered networks ordered by chain id.
func (r *Registry) List() []Network {
	out := make([]Network, 0, len(r.networks))
	for _, n := range r.networks {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ChainID < out[j].ChainID })
	return out
}

// DefaultRegistry returns a registry seeded with the built-in networks.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, n := range builtin {
		r.Register(n)
	}
	return r
}

var builtin = []Network{
	{
		ChainID:       Mainnet,
		Name:          "mainnet",
		EtherscanURL:  "https://api.etherscan.io",
		BlockscoutURL: "https://eth.blockscout.com",
	},
	{
		ChainID:       Optimism,
		Name:          "optimism",
		EtherscanURL:  "https://api-optimistic.etherscan.io",
		BlockscoutURL: "https://optimism.blockscout.com",
	},
	{
		ChainID:      BSC,
		Name:         "bsc",
		EtherscanURL: "https://api.bscscan.com",
	},
	{
		ChainID:       Gnosis,
		Name:          "gnosis",
		EtherscanURL:  "https://api.gnosisscan.io",
		BlockscoutURL: "https://gnosis.blockscout.com",
	},
	{
		ChainID:       Polygon,
		Name:          "polygon",
		EtherscanURL:  "https://api.polygonscan.com",
		BlockscoutURL: "https://polygon.blockscout.com",
	},
	{
		ChainID:       Base,
		Name:          "base",
		EtherscanURL:  "https://api.basescan.org",
		BlockscoutURL: "https://base.blockscout.com",
	},
	{
		ChainID:       Arbitrum,
		Name:          "arbitrum",
		EtherscanURL:  "https://api.arbiscan.io",
		BlockscoutURL: "https://arbitrum.blockscout.com",
	},
	{
		ChainID:       Sepolia,
		Name:          "sepolia",
		EtherscanURL:  "https://api-sepolia.etherscan.io",
		BlockscoutURL: "https://eth-sepolia.blockscout.com",
	},
}
