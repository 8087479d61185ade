package cmd

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/filecoin-saturn/contracts/internal/compiler"
)

func (a *app) compileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile",
		Short: "Compile contracts with the configured solc version",
		Long: `Compile every .sol file under the sources directory with solc and write
Hardhat-format artifacts to the artifacts directory.

The solc binary must report the configured solidity.version.

Examples:
  evaluatorctl compile
  EVALUATOR_SOLC=/opt/solc-0.8.18 evaluatorctl compile`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}

			solc := &compiler.Solc{
				Path:     cfg.Solidity.Compiler,
				Version:  cfg.Solidity.Version,
				Optimize: cfg.Solidity.Optimizer.Enabled,
				Runs:     cfg.Solidity.Optimizer.Runs,
				Logger:   a.logger,
			}
			compiled, err := solc.Compile(cmd.Context(), cfg.Paths.Sources, cfg.Paths.Artifacts)
			if err != nil {
				return err
			}

			if a.opts.jsonOut {
				out := make([]map[string]string, 0, len(compiled))
				for _, c := range compiled {
					out = append(out, map[string]string{
						"contract": c.ContractName,
						"source":   c.SourceName,
						"artifact": c.Path,
					})
				}
				return a.printJSON(map[string]any{"contracts": out, "count": len(out)})
			}

			t := newTable(a.stdout, "CONTRACT", "SOURCE", "ARTIFACT")
			for _, c := range compiled {
				rel, err := filepath.Rel(a.opts.projectDir, c.Path)
				if err != nil {
					rel = c.Path
				}
				t.Append([]string{c.ContractName, c.SourceName, rel})
			}
			t.Render()
			a.printf("%s Compiled %d contracts with solc %s\n", colorGreen("✓"), len(compiled), cfg.Solidity.Version)
			return nil
		},
	}
}
