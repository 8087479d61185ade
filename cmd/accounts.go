package cmd

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/filecoin-saturn/contracts/internal/chain"
	"github.com/filecoin-saturn/contracts/internal/signer"
)

func (a *app) accountsCmd() *cobra.Command {
	var balances bool

	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "Show the accounts configured for a network",
		Long: `Show the addresses derived from the configured private keys. The first
account deploys contracts.

Examples:
  evaluatorctl accounts
  evaluatorctl accounts --network goerli --balances`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			network, err := cfg.Network(a.opts.network)
			if err != nil {
				return err
			}

			type accountInfo struct {
				Index   int    `json:"index"`
				Address string `json:"address"`
				Balance string `json:"balance,omitempty"`
			}

			infos := make([]accountInfo, 0, len(network.Accounts))
			addrs := make([]common.Address, 0, len(network.Accounts))
			for i, key := range network.Accounts {
				addr, err := signer.AddressOf(key)
				if err != nil {
					return fmt.Errorf("account %d: %w", i, err)
				}
				addrs = append(addrs, addr)
				infos = append(infos, accountInfo{Index: i, Address: addr.Hex()})
			}

			if balances {
				ctx := cmd.Context()
				client, err := a.dial(ctx, network.URL)
				if err != nil {
					return chain.RedactError(err, network.URL)
				}
				defer client.Close()

				for i := range infos {
					wei, err := client.BalanceAt(ctx, addrs[i], nil)
					if err != nil {
						return fmt.Errorf("balance of %s: %w", infos[i].Address, chain.RedactError(err, network.URL))
					}
					infos[i].Balance = chain.FormatEther(wei)
				}
			}

			if a.opts.jsonOut {
				return a.printJSON(map[string]any{"network": network.Name, "accounts": infos})
			}

			header := []string{"#", "ADDRESS"}
			if balances {
				header = append(header, "BALANCE (ETH)")
			}
			t := newTable(a.stdout, header...)
			for _, info := range infos {
				row := []string{strconv.Itoa(info.Index), info.Address}
				if balances {
					row = append(row, info.Balance)
				}
				t.Append(row)
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().BoolVar(&balances, "balances", false, "query balances from the network")
	return cmd
}
