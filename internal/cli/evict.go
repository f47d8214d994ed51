package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/verimeta/verimeta/internal/validation"
	"github.com/verimeta/verimeta/pkg/client"
)

func createEvictCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evict <address>",
		Short: "Evict a cached record from the server",
		Long: `Remove a contract's cached metadata from the server so the next
request refetches it from the verification sources.

EXAMPLES:
  verimeta evict 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed
  verimeta evict 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed --chain gnosis
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEvict(args[0])
		},
	}

	return cmd
}

func runEvict(address string) error {
	if err := validation.ValidateAddress(address); err != nil {
		return fmt.Errorf("invalid address: %w (addresses must be EIP-55 checksummed)", err)
	}

	chainID, err := resolveChainID(getChain())
	if err != nil {
		return err
	}

	c := client.New(getServer())
	if err := c.Evict(context.Background(), chainID, address); err != nil {
		var apiErr *client.APIError
		if errors.As(err, &apiErr) && apiErr.Code == "NOT_FOUND" {
			fmt.Printf("Nothing cached for %s on %s\n", address, chainLabel(chainID))
			return nil
		}
		return fmt.Errorf("failed to evict: %w", err)
	}

	fmt.Printf("✅ Evicted %s on %s\n", address, chainLabel(chainID))
	return nil
}
