package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/filecoin-saturn/contracts/internal/chain"
	"github.com/filecoin-saturn/contracts/internal/config"
	"github.com/filecoin-saturn/contracts/internal/signer"
)

func (a *app) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the resolved configuration",
		Long: `Print the configuration after defaults, evaluator.yaml, .env and
EVALUATOR_* overrides are applied. Private keys are replaced by their
addresses and RPC URLs are reduced to scheme and host.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			redacted := redactConfig(cfg)

			if a.opts.jsonOut {
				return a.printJSON(redacted)
			}
			enc := yaml.NewEncoder(a.stdout)
			enc.SetIndent(2)
			if err := enc.Encode(redacted); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

// redactConfig copies cfg with secrets removed. Environment references are
// kept verbatim so the output shows which variable feeds each value.
func redactConfig(cfg *config.Config) config.Config {
	out := *cfg
	out.Networks = make(map[string]config.NetworkConfig, len(cfg.Networks))
	for name, n := range cfg.Networks {
		r := n
		r.URL = redactValue(n.URL, chain.RedactURL)
		r.Accounts = make([]string, 0, len(n.Accounts))
		for _, key := range n.Accounts {
			r.Accounts = append(r.Accounts, redactValue(key, redactKey))
		}
		out.Networks[name] = r
	}
	return out
}

func redactValue(raw string, redact func(string) string) string {
	if strings.Contains(raw, "$") {
		expanded := os.ExpandEnv(raw)
		if strings.TrimSpace(expanded) == "" {
			return raw + " (unset)"
		}
		return raw + " -> " + redact(expanded)
	}
	return redact(raw)
}

func redactKey(key string) string {
	addr, err := signer.AddressOf(key)
	if err != nil {
		return "<invalid key>"
	}
	return "<key for " + addr.Hex() + ">"
}
