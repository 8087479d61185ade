package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/filecoin-saturn/contracts/internal/chain"
)

func (a *app) networksCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "networks",
		Short: "List configured networks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			type networkInfo struct {
				Name     string `json:"name"`
				RPC      string `json:"rpc,omitempty"`
				Accounts int    `json:"accounts"`
				ChainID  uint64 `json:"chainId,omitempty"`
				Default  bool   `json:"default"`
				Error    string `json:"error,omitempty"`
			}

			var infos []networkInfo
			for _, name := range cfg.NetworkNames() {
				info := networkInfo{Name: name, Default: name == cfg.DefaultNetwork}
				network, err := cfg.Network(name)
				if err != nil {
					info.Error = err.Error()
				} else {
					info.RPC = chain.RedactURL(network.URL)
					info.Accounts = len(network.Accounts)
					info.ChainID = network.ChainID
				}
				infos = append(infos, info)
			}

			if a.opts.jsonOut {
				return a.printJSON(map[string]any{"networks": infos, "count": len(infos)})
			}

			t := newTable(a.stdout, "NAME", "RPC", "ACCOUNTS", "CHAIN ID", "STATUS")
			for _, info := range infos {
				name := info.Name
				if info.Default {
					name = colorBold(name + " *")
				}
				chainID := "-"
				if info.ChainID != 0 {
					chainID = strconv.FormatUint(info.ChainID, 10)
				}
				status := colorGreen("ready")
				if info.Error != "" {
					status = colorYellow(info.Error)
				}
				rpc := info.RPC
				if rpc == "" {
					rpc = "-"
				}
				t.Append([]string{name, rpc, strconv.Itoa(info.Accounts), chainID, status})
			}
			t.Render()
			return nil
		},
	}
}
