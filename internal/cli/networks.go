package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/verimeta/verimeta/internal/networks"
	"github.com/verimeta/verimeta/pkg/client"
)

func createNetworksCmd() *cobra.Command {
	var builtin bool

	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List known networks",
		Long: `List the networks the server resolves metadata for.

EXAMPLES:
  # List networks from the configured server
  verimeta networks

  # List the builtin networks without contacting a server
  verimeta networks --builtin
`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNetworks(builtin)
		},
	}

	cmd.Flags().BoolVar(&builtin, "builtin", false, "list builtin networks without contacting the server")

	return cmd
}

func runNetworks(builtin bool) error {
	var list []client.Network

	if builtin {
		list = builtinNetworks()
	} else {
		c := client.New(getServer())
		remote, err := c.Networks(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: server unreachable (%v), showing builtin networks\n", err)
			list = builtinNetworks()
		} else {
			list = remote
		}
	}

	if len(list) == 0 {
		fmt.Println("No networks known")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "CHAIN ID\tNAME\tETHERSCAN\tBLOCKSCOUT")
	for _, n := range list {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", n.ChainID, n.Name, orDash(n.EtherscanURL), orDash(n.BlockscoutURL))
	}
	return w.Flush()
}

func builtinNetworks() []client.Network {
	nets := networks.DefaultRegistry().List()
	list := make([]client.Network, len(nets))
	for i, n := range nets {
		list[i] = client.Network{
			ChainID:       uint64(n.ChainID),
			Name:          n.Name,
			EtherscanURL:  n.EtherscanURL,
			BlockscoutURL: n.BlockscoutURL,
		}
	}
	return list
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
