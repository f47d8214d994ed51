package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/verimeta/verimeta/internal/config"
	"github.com/verimeta/verimeta/internal/metadata/domain"
	"github.com/verimeta/verimeta/internal/networks"
	"github.com/verimeta/verimeta/internal/sources/registry"
	"github.com/verimeta/verimeta/internal/storage"
	"github.com/verimeta/verimeta/internal/validation"
	"github.com/verimeta/verimeta/pkg/client"
)

func createFetchCmd() *cobra.Command {
	var output string
	var refresh bool
	var direct bool
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "fetch <address>",
		Short: "Fetch verified metadata for a contract",
		Long: `Fetch the verified metadata (name and ABI) for a deployed contract.

The address must be EIP-55 checksummed. By default the configured Verimeta
server is queried; --direct queries the verification sources themselves.

EXAMPLES:
  # Fetch metadata for a mainnet contract
  verimeta fetch 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed

  # Fetch on another chain
  verimeta fetch 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed --chain gnosis

  # Write artifacts to a directory
  verimeta fetch 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed --output ./artifacts

  # Bypass the server cache
  verimeta fetch 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed --refresh

  # Query Sourcify and explorer APIs directly (no server)
  verimeta fetch 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed --direct

  # Print the metadata JSON instead of writing files
  verimeta fetch 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed --json
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(args[0], output, refresh, direct, jsonOut)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default from config or current directory)")
	cmd.Flags().BoolVar(&refresh, "refresh", false, "bypass the server-side cache")
	cmd.Flags().BoolVar(&direct, "direct", false, "query verification sources directly instead of the server")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print metadata JSON to stdout instead of writing files")

	return cmd
}

func runFetch(address, output string, refresh, direct, jsonOut bool) error {
	if err := validation.ValidateAddress(address); err != nil {
		return fmt.Errorf("invalid address: %w (addresses must be EIP-55 checksummed)", err)
	}

	chainID, err := resolveChainID(getChain())
	if err != nil {
		return err
	}

	ctx := context.Background()

	if !jsonOut {
		fmt.Printf("📡 Resolving %s on %s\n", address, chainLabel(chainID))
	}

	var md *client.ContractMetadata
	if direct {
		md, err = fetchDirect(ctx, chainID, address)
	} else {
		c := client.New(getServer())
		if refresh {
			md, err = c.RefreshMetadata(ctx, chainID, address)
		} else {
			md, err = c.ContractMetadata(ctx, chainID, address)
		}
	}
	if err != nil {
		return describeFetchError(err, chainID, address)
	}

	if jsonOut {
		data, err := json.MarshalIndent(md, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding metadata: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	name := md.Name
	if name == "" {
		name = "(unnamed contract)"
	}
	fmt.Printf("  ✓ %s via %s (%s)\n", name, md.Source, matchLabel(md.IsPartialMatch))

	outDir := outputDir(output)
	if err := writeArtifacts(outDir, md); err != nil {
		return err
	}

	fmt.Printf("\n✅ Artifacts saved to %s\n", outDir)
	return nil
}

// fetchDirect resolves the metadata against the verification sources without
// a server, backed by an in-memory store.
func fetchDirect(ctx context.Context, chainID uint64, address string) (*client.ContractMetadata, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	etherscanKey := getEtherscanKey()
	srcCfg := config.SourcesConfig{
		TimeoutSeconds: 10,
		Sourcify: config.SourcifyConfig{
			Enabled: true,
		},
		Etherscan: config.EtherscanConfig{
			Enabled:        etherscanKey != "",
			APIKey:         etherscanKey,
			RequestsPerSec: 5,
			Burst:          5,
		},
		Blockscout: config.BlockscoutConfig{
			Enabled: true,
		},
	}

	nets := networks.DefaultRegistry()
	provider := registry.New(srcCfg, nets, logger)
	store := storage.NewMemoryStore(logger)
	svc := domain.NewService(store, provider, nets, 0)

	record, err := svc.Resolve(ctx, chainID, address, domain.ResolveOptions{})
	if err != nil {
		return nil, err
	}

	return &client.ContractMetadata{
		ChainID:         record.ChainID,
		Address:         record.Address,
		Name:            record.Name,
		ABI:             record.ABI,
		IsPartialMatch:  record.IsPartialMatch,
		Source:          record.Source,
		CompilerVersion: record.CompilerVersion,
		Implementation:  record.Implementation,
		FetchedAt:       record.FetchedAt,
	}, nil
}

// describeFetchError turns resolver errors into actionable messages
func describeFetchError(err error, chainID uint64, address string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%s is not verified on any known source for %s", address, chainLabel(chainID))
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) && apiErr.Code == "NOT_FOUND" {
		return fmt.Errorf("%s is not verified on any known source for %s", address, chainLabel(chainID))
	}

	return fmt.Errorf("failed to fetch metadata: %w", err)
}

func outputDir(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if cfg := loadProjectConfigSilent(); cfg != nil && cfg.OutputDir != "" {
		return cfg.OutputDir
	}
	return "."
}

func writeArtifacts(outDir string, md *client.ContractMetadata) error {
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	metadataPath := filepath.Join(outDir, "metadata.json")
	metadataData, err := json.MarshalIndent(md, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	if err := os.WriteFile(metadataPath, append(metadataData, '\n'), 0644); err != nil {
		return fmt.Errorf("writing metadata.json: %w", err)
	}
	fmt.Println("  ✓ metadata.json")

	abiPath := filepath.Join(outDir, "abi.json")
	abiData, err := json.MarshalIndent(md.ABI, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding ABI: %w", err)
	}
	if err := os.WriteFile(abiPath, append(abiData, '\n'), 0644); err != nil {
		return fmt.Errorf("writing abi.json: %w", err)
	}
	fmt.Println("  ✓ abi.json")

	return nil
}

// chainLabel renders a chain id with its network name when known
func chainLabel(chainID uint64) string {
	if n, ok := networks.DefaultRegistry().Get(networks.ChainID(chainID)); ok {
		return fmt.Sprintf("%s (chain %d)", n.Name, chainID)
	}
	return fmt.Sprintf("chain %d", chainID)
}

func matchLabel(partial bool) string {
	if partial {
		return "partial match"
	}
	return "full match"
}
