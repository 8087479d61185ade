package cmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func (a *app) writeABICmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "write-abi [contract]",
		Short: "Write a contract ABI as JSON",
		Long: `Write the ABI of a compiled contract as indented JSON, to a file with
--path or to stdout.

Examples:
  evaluatorctl write-abi Evaluator --path abi/Evaluator.json
  evaluatorctl write-abi > Evaluator.abi.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			name, err := contractName(cfg, args)
			if err != nil {
				return err
			}
			artifact, err := a.loader(cfg).Find(name)
			if err != nil {
				return err
			}
			if _, err := artifact.ParsedABI(); err != nil {
				return err
			}

			var buf bytes.Buffer
			if err := json.Indent(&buf, artifact.ABI, "", "  "); err != nil {
				return fmt.Errorf("format ABI: %w", err)
			}
			buf.WriteByte('\n')

			if path == "" || path == "-" {
				_, err := a.stdout.Write(buf.Bytes())
				return err
			}

			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("create %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write ABI: %w", err)
			}
			a.logger.Info("wrote ABI", "contract", artifact.ContractName, "path", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "", "output file (default: stdout)")
	return cmd
}
