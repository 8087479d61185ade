package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/filecoin-saturn/contracts/internal/deployments"
)

func (a *app) deploymentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deployments",
		Short: "List recorded deployments for a network",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			network, err := cfg.NetworkName(a.opts.network)
			if err != nil {
				return err
			}

			records, err := deployments.NewStore(cfg.Paths.Deployments).List(network)
			if err != nil {
				return err
			}

			if a.opts.jsonOut {
				if records == nil {
					records = []deployments.Record{}
				}
				return a.printJSON(map[string]any{"network": network, "deployments": records, "count": len(records)})
			}

			if len(records) == 0 {
				a.printf("No deployments on %s\n", network)
				return nil
			}

			t := newTable(a.stdout, "CONTRACT", "ADDRESS", "BLOCK", "TX", "DEPLOYED")
			for _, r := range records {
				t.Append([]string{
					r.Contract,
					r.Address,
					strconv.FormatUint(r.BlockNumber, 10),
					truncate(r.TxHash, 18),
					r.DeployedAt.Format("Jan 2, 2006 15:04"),
				})
			}
			t.Render()
			return nil
		},
	}
}
