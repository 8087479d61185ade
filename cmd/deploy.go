package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/filecoin-saturn/contracts/internal/artifacts"
	"github.com/filecoin-saturn/contracts/internal/chain"
	"github.com/filecoin-saturn/contracts/internal/config"
	"github.com/filecoin-saturn/contracts/internal/deployer"
	"github.com/filecoin-saturn/contracts/internal/deployments"
	"github.com/filecoin-saturn/contracts/internal/signer"
)

type deployOptions struct {
	args     []string
	gasLimit uint64
	gasPrice string
	timeout  time.Duration
	noSave   bool
}

func (a *app) deployCmd() *cobra.Command {
	var opts deployOptions

	cmd := &cobra.Command{
		Use:   "deploy [contract]",
		Short: "Deploy a compiled contract",
		Long: `Deploy a compiled contract with the first account of the selected network.

The contract defaults to deploy.contract (Evaluator) and its constructor
arguments to deploy.args. Passing --arg replaces the configured arguments.
The command waits for the deployment to be mined, records it under the
deployments directory and prints the contract address.

Examples:
  # Deploy Evaluator to goerli (GOERLI_URL and PRIVATE_KEY from the environment)
  evaluatorctl deploy

  # Explicit contract, network and constructor argument
  evaluatorctl deploy Evaluator -n goerli --arg 0xf4728721157A58b0509c8c109Ec2AF726B562D6A

  # Fixed gas settings and a deadline
  evaluatorctl deploy --gas-limit 3000000 --gas-price 2gwei --timeout 5m`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDeploy(cmd, args, opts)
		},
	}

	cmd.Flags().StringArrayVar(&opts.args, "arg", nil, "constructor argument (repeatable, replaces deploy.args)")
	cmd.Flags().Uint64Var(&opts.gasLimit, "gas-limit", 0, "gas limit (estimated if not set)")
	cmd.Flags().StringVar(&opts.gasPrice, "gas-price", "", "legacy gas price, e.g. 2gwei (EIP-1559 fees if not set)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "give up waiting after this long (default: no timeout)")
	cmd.Flags().BoolVar(&opts.noSave, "no-save", false, "do not write a deployment record")

	return cmd
}

func (a *app) runDeploy(cmd *cobra.Command, args []string, opts deployOptions) (err error) {
	var rpcURL string
	defer func() { err = chain.RedactError(err, rpcURL) }()

	ctx := cmd.Context()
	if opts.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.timeout)
		defer cancel()
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	network, err := cfg.Network(a.opts.network)
	if err != nil {
		return err
	}
	rpcURL = network.URL

	name, err := contractName(cfg, args)
	if err != nil {
		return err
	}
	artifact, err := a.loader(cfg).Find(name)
	if err != nil {
		return err
	}
	if err := artifact.CheckCompiler(cfg.Solidity.Version); err != nil {
		a.logger.Warn("artifact compiler differs from configuration", slog.String("error", err.Error()))
	}

	rawArgs := constructorArgs(cfg, name, artifact, opts.args, cmd.Flags().Changed("arg"))
	inputs, err := artifact.ConstructorInputs()
	if err != nil {
		return err
	}
	values, err := artifacts.CoerceArgs(inputs, rawArgs)
	if err != nil {
		return fmt.Errorf("%s constructor: %w", artifact.ContractName, err)
	}

	gasPrice, err := resolveGasPrice(opts.gasPrice, network)
	if err != nil {
		return err
	}

	client, err := a.dial(ctx, network.URL)
	if err != nil {
		return err
	}
	defer client.Close()

	chainID, err := deployer.VerifyChainID(ctx, client, network.ChainID)
	if err != nil {
		return err
	}
	accounts, err := signer.NewAccounts(network.Accounts, chainID)
	if err != nil {
		return err
	}

	a.logger.Info("using network",
		slog.String("network", network.Name),
		slog.String("rpc", chain.RedactURL(network.URL)),
		slog.String("chain_id", chainID.String()),
	)

	factory, err := deployer.NewFactory(artifact, client, accounts[0], deployer.Options{
		GasLimit:      opts.gasLimit,
		GasPrice:      gasPrice,
		GasMultiplier: network.GasMultiplier,
		Logger:        a.logger,
	})
	if err != nil {
		return err
	}

	result, err := factory.DeployAndWait(ctx, values...)
	if err != nil {
		return err
	}

	record := deployments.Record{
		Contract:        result.Contract,
		Address:         result.Address.Hex(),
		TxHash:          result.TxHash.Hex(),
		BlockNumber:     result.BlockNumber,
		Deployer:        result.Deployer.Hex(),
		ChainID:         result.ChainID.Uint64(),
		ConstructorArgs: rawArgs,
		ABI:             artifact.ABI,
	}
	var recordPath string
	if !opts.noSave {
		// The contract is on chain; a failed record write must not hide that.
		recordPath, err = deployments.NewStore(cfg.Paths.Deployments).Save(network.Name, record)
		if err != nil {
			a.logger.Error("failed to save deployment record", slog.String("error", err.Error()))
		}
	}

	if a.opts.jsonOut {
		return a.printJSON(map[string]any{
			"contract":        record.Contract,
			"address":         record.Address,
			"transactionHash": record.TxHash,
			"blockNumber":     record.BlockNumber,
			"gasUsed":         result.GasUsed,
			"deployer":        record.Deployer,
			"network":         network.Name,
			"chainId":         record.ChainID,
			"args":            record.ConstructorArgs,
			"record":          recordPath,
		})
	}

	a.printf("Deployed to %s\n", result.Address.Hex())
	return nil
}

// constructorArgs chooses --arg values when given, else deploy.args for the
// configured contract. Other contracts default to no arguments.
func constructorArgs(cfg *config.Config, name string, artifact *artifacts.Artifact, flagArgs []string, flagSet bool) []string {
	if flagSet {
		return flagArgs
	}
	if name == cfg.Deploy.Contract || artifact.ContractName == cfg.Deploy.Contract {
		return cfg.Deploy.Args
	}
	return nil
}

func resolveGasPrice(flag string, network *config.Network) (*big.Int, error) {
	value := flag
	if value == "" {
		value = network.GasPrice
	}
	if value == "" {
		return nil, nil
	}
	price, err := chain.ParseValue(value)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	if price.Sign() == 0 {
		return nil, nil
	}
	return price, nil
}
