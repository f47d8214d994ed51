package cli

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/verimeta/verimeta/internal/networks"
)

var (
	cfgFile string
	server  string
	chain   string
)

// Execute runs the CLI
func Execute(version string) error {
	rootCmd := &cobra.Command{
		Use:     "verimeta",
		Short:   "Verified contract metadata CLI",
		Long:    `Verimeta is a CLI for fetching verified smart contract metadata (name and ABI) by on-chain address.`,
		Version: version,
	}

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: verimeta.toml)")
	rootCmd.PersistentFlags().StringVar(&server, "server", "", "server URL (default from config)")
	rootCmd.PersistentFlags().StringVar(&chain, "chain", "", "chain id or network name (default: mainnet)")

	// Add subcommands
	rootCmd.AddCommand(createFetchCmd())
	rootCmd.AddCommand(createABICmd())
	rootCmd.AddCommand(createNetworksCmd())
	rootCmd.AddCommand(createEvictCmd())
	rootCmd.AddCommand(createKeysCmd())
	rootCmd.AddCommand(createConfigCmd())

	return rootCmd.Execute()
}

// getServer returns the server URL from flag, env, config file, or default
func getServer() string {
	// 1. Command line flag
	if server != "" {
		return server
	}

	// 2. Environment variable
	if env := os.Getenv("VERIMETA_SERVER"); env != "" {
		return env
	}

	// 3. Project config file (TOML)
	if config := loadProjectConfigSilent(); config != nil && config.Server != "" {
		return config.Server
	}

	// 4. Default
	return "http://localhost:8080"
}

// getChain returns the chain selector from flag, env, config file, or default
func getChain() string {
	if chain != "" {
		return chain
	}

	if env := os.Getenv("VERIMETA_CHAIN"); env != "" {
		return env
	}

	if config := loadProjectConfigSilent(); config != nil && config.Chain != "" {
		return config.Chain
	}

	return "mainnet"
}

// resolveChainID turns a chain selector (decimal id or network name) into a
// chain id. Names are matched against the builtin network registry.
func resolveChainID(selector string) (uint64, error) {
	selector = strings.TrimSpace(selector)
	if selector == "" {
		return 0, fmt.Errorf("chain cannot be empty")
	}

	if id, err := strconv.ParseUint(selector, 10, 64); err == nil {
		if id == 0 {
			return 0, fmt.Errorf("chain id must be positive")
		}
		return id, nil
	}

	nets := networks.DefaultRegistry().List()
	for _, n := range nets {
		if strings.EqualFold(n.Name, selector) {
			return uint64(n.ChainID), nil
		}
	}

	names := make([]string, len(nets))
	for i, n := range nets {
		names[i] = n.Name
	}
	return 0, fmt.Errorf("unknown network %q (use a decimal chain id or one of: %s)", selector, strings.Join(names, ", "))
}
