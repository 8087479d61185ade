// Package cmd implements the evaluatorctl command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/filecoin-saturn/contracts/internal/artifacts"
	"github.com/filecoin-saturn/contracts/internal/chain"
	"github.com/filecoin-saturn/contracts/internal/config"
	"github.com/filecoin-saturn/contracts/internal/logging"
)

// DialFunc opens an RPC client for a network URL.
type DialFunc func(ctx context.Context, url string) (chain.Client, error)

type globalOptions struct {
	configFile string
	projectDir string
	network    string
	jsonOut    bool
	logLevel   string
	logFormat  string
}

type app struct {
	opts   globalOptions
	stdout io.Writer
	stderr io.Writer
	dial   DialFunc
	logger *slog.Logger
}

// Run executes the command line and returns the process exit code: 0 on
// success, 1 on any error. The error is printed to stderr exactly once.
func Run(args []string, stdout, stderr io.Writer) int {
	return newApp(stdout, stderr, chain.Dial).run(context.Background(), args)
}

func newApp(stdout, stderr io.Writer, dial DialFunc) *app {
	return &app{stdout: stdout, stderr: stderr, dial: dial}
}

func (a *app) run(ctx context.Context, args []string) int {
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	if err := root.ExecuteContext(ctx); err != nil {
		printError(a.stderr, err)
		return 1
	}
	return 0
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "evaluatorctl",
		Short: "Compile and deploy the Evaluator contract",
		Long: `Compile and deploy the Evaluator contract to an EVM network.

Networks, compiler version and deployment defaults come from evaluator.yaml
(optional), EVALUATOR_* environment variables and a .env file. Without any
configuration the goerli network is used, reading its RPC endpoint from
GOERLI_URL and the deployer key from PRIVATE_KEY.

Examples:
  # Deploy Evaluator with the configured constructor argument
  evaluatorctl deploy

  # Deploy to another configured network with an explicit owner
  evaluatorctl deploy Evaluator --network sepolia --arg 0xf4728721157A58b0509c8c109Ec2AF726B562D6A`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(a.stderr, logging.Options{Level: a.opts.logLevel, Format: a.opts.logFormat})
			if err != nil {
				return err
			}
			a.logger = logger
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.opts.configFile, "config", "", "config file (default: evaluator.yaml in the project directory)")
	flags.StringVarP(&a.opts.projectDir, "project", "C", ".", "project directory")
	flags.StringVarP(&a.opts.network, "network", "n", "", "network to use (default: defaultNetwork from config)")
	flags.BoolVar(&a.opts.jsonOut, "json", false, "output JSON")
	flags.StringVar(&a.opts.logLevel, "log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.StringVar(&a.opts.logFormat, "log-format", "terminal", "log format (terminal, json)")

	root.AddCommand(
		a.deployCmd(),
		a.compileCmd(),
		a.networksCmd(),
		a.accountsCmd(),
		a.deploymentsCmd(),
		a.writeABICmd(),
		a.configCmd(),
	)
	return root
}

func (a *app) loadConfig() (*config.Config, error) {
	return config.Load(config.LoadOptions{
		ConfigFile: a.opts.configFile,
		Dir:        a.opts.projectDir,
	})
}

func (a *app) loader(cfg *config.Config) *artifacts.Loader {
	return artifacts.NewLoader(cfg.Paths.Artifacts, cfg.Paths.FoundryOut)
}

// contractName picks the positional contract argument or the configured one.
func contractName(cfg *config.Config, args []string) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if cfg.Deploy.Contract == "" {
		return "", errors.New("no contract given and deploy.contract is not configured")
	}
	return cfg.Deploy.Contract, nil
}

func (a *app) printJSON(v any) error {
	return printJSON(a.stdout, v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.stdout, format, args...)
}
