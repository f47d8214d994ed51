package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	gethabi "github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/spf13/cobra"

	"github.com/verimeta/verimeta/internal/validation"
	"github.com/verimeta/verimeta/pkg/client"
)

func createABICmd() *cobra.Command {
	var output string
	var selectors bool

	cmd := &cobra.Command{
		Use:   "abi <address>",
		Short: "Print the ABI for a verified contract",
		Long: `Fetch and print the ABI for a verified contract.

EXAMPLES:
  # Print the ABI
  verimeta abi 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed

  # Write the ABI to a file
  verimeta abi 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed --output abi.json

  # Print function selectors and event topics instead
  verimeta abi 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed --selectors
`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runABI(args[0], output, selectors)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write the ABI to a file instead of stdout")
	cmd.Flags().BoolVar(&selectors, "selectors", false, "print 4-byte selectors and event topics")

	return cmd
}

func runABI(address, output string, selectors bool) error {
	if err := validation.ValidateAddress(address); err != nil {
		return fmt.Errorf("invalid address: %w (addresses must be EIP-55 checksummed)", err)
	}

	chainID, err := resolveChainID(getChain())
	if err != nil {
		return err
	}

	c := client.New(getServer())
	raw, err := c.ContractABI(context.Background(), chainID, address)
	if err != nil {
		return describeFetchError(err, chainID, address)
	}

	if selectors {
		table, err := selectorsTable(raw)
		if err != nil {
			return err
		}
		fmt.Print(table)
		return nil
	}

	pretty, err := json.MarshalIndent(json.RawMessage(raw), "", "  ")
	if err != nil {
		return fmt.Errorf("formatting ABI: %w", err)
	}

	if output != "" {
		if err := os.WriteFile(output, append(pretty, '\n'), 0644); err != nil {
			return fmt.Errorf("writing ABI: %w", err)
		}
		fmt.Printf("✅ ABI written to %s\n", output)
		return nil
	}

	fmt.Println(string(pretty))
	return nil
}

// selectorsTable parses the ABI and renders the 4-byte function selectors
// and event topic hashes as a table.
func selectorsTable(raw []byte) (string, error) {
	parsed, err := gethabi.JSON(bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("parsing ABI: %w", err)
	}

	if len(parsed.Methods) == 0 && len(parsed.Events) == 0 {
		return "ABI declares no functions or events\n", nil
	}

	var buf bytes.Buffer
	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)

	if len(parsed.Methods) > 0 {
		names := make([]string, 0, len(parsed.Methods))
		for name := range parsed.Methods {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "FUNCTION\tSELECTOR")
		for _, name := range names {
			m := parsed.Methods[name]
			fmt.Fprintf(w, "%s\t0x%x\n", m.Sig, m.ID)
		}
	}

	if len(parsed.Events) > 0 {
		if len(parsed.Methods) > 0 {
			fmt.Fprintln(w, "\t")
		}

		names := make([]string, 0, len(parsed.Events))
		for name := range parsed.Events {
			names = append(names, name)
		}
		sort.Strings(names)

		fmt.Fprintln(w, "EVENT\tTOPIC0")
		for _, name := range names {
			e := parsed.Events[name]
			fmt.Fprintf(w, "%s\t%s\n", e.Sig, e.ID.Hex())
		}
	}

	if err := w.Flush(); err != nil {
		return "", err
	}
	return buf.String(), nil
}
