// Package deployer is a contract factory: it turns an artifact and
// constructor arguments into a signed creation transaction, submits it and
// waits for the contract to land on chain.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/filecoin-saturn/contracts/internal/artifacts"
	"github.com/filecoin-saturn/contracts/internal/chain"
)

// DefaultGasMultiplier pads gas estimates by 30 percent.
const DefaultGasMultiplier = 130

// Signer signs transactions on behalf of the deployer account.
type Signer interface {
	Address() common.Address
	SignTransaction(ctx context.Context, tx *types.Transaction) (*types.Transaction, error)
}

// Options tunes gas handling.
type Options struct {
	// GasLimit skips estimation when non-zero.
	GasLimit uint64
	// GasPrice forces a legacy transaction at this price when set.
	GasPrice *big.Int
	// GasMultiplier is the percentage applied to the gas estimate.
	GasMultiplier uint64

	Logger *slog.Logger
}

// Factory deploys one contract artifact.
type Factory struct {
	artifact *artifacts.Artifact
	client   chain.Backend
	signer   Signer
	opts     Options
	logger   *slog.Logger
}

// NewFactory validates the artifact and returns a factory for it.
func NewFactory(artifact *artifacts.Artifact, client chain.Backend, signer Signer, opts Options) (*Factory, error) {
	if artifact == nil {
		return nil, stageError(StageFactory, "", common.Hash{}, errors.New("artifact is required"))
	}
	name := artifact.ContractName
	if client == nil {
		return nil, stageError(StageFactory, name, common.Hash{}, errors.New("client is required"))
	}
	if signer == nil {
		return nil, stageError(StageFactory, name, common.Hash{}, errors.New("signer is required"))
	}
	if _, err := artifact.ParsedABI(); err != nil {
		return nil, stageError(StageFactory, name, common.Hash{}, err)
	}
	if _, err := artifact.BytecodeBytes(); err != nil {
		return nil, stageError(StageFactory, name, common.Hash{}, err)
	}

	if opts.GasMultiplier == 0 {
		opts.GasMultiplier = DefaultGasMultiplier
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Factory{
		artifact: artifact,
		client:   client,
		signer:   signer,
		opts:     opts,
		logger:   logger.With(slog.String("contract", name)),
	}, nil
}

// Pending is a submitted deployment.
type Pending struct {
	Tx      *types.Transaction
	Address common.Address // predicted from sender and nonce
	ChainID *big.Int
	Args    []any

	factory *Factory
}

// Hash returns the deployment transaction hash.
func (p *Pending) Hash() common.Hash { return p.Tx.Hash() }

// Result describes a confirmed deployment.
type Result struct {
	Contract        string
	Address         common.Address
	TxHash          common.Hash
	BlockNumber     uint64
	GasUsed         uint64
	Deployer        common.Address
	ChainID         *big.Int
	ConstructorArgs []any
}

// Deploy builds, signs and sends the creation transaction for args.
func (f *Factory) Deploy(ctx context.Context, args ...any) (*Pending, error) {
	name := f.artifact.ContractName

	data, err := f.artifact.DeployData(args...)
	if err != nil {
		return nil, stageError(StageFactory, name, common.Hash{}, err)
	}

	submitErr := func(err error) error {
		return stageError(StageSubmit, name, common.Hash{}, err)
	}

	chainID, err := f.client.ChainID(ctx)
	if err != nil {
		return nil, submitErr(fmt.Errorf("get chain id: %w", err))
	}

	from := f.signer.Address()
	nonce, err := f.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, submitErr(fmt.Errorf("get nonce: %w", err))
	}

	fee, err := f.suggestFees(ctx)
	if err != nil {
		return nil, submitErr(err)
	}

	gasLimit, err := f.gasLimit(ctx, from, fee, data)
	if err != nil {
		return nil, submitErr(err)
	}

	f.logger.Info("deploying contract",
		append([]any{
			slog.String("deployer", from.Hex()),
			slog.Uint64("nonce", nonce),
			slog.Uint64("gas_limit", gasLimit),
			slog.String("chain_id", chainID.String()),
		}, fee.attrs()...)...,
	)

	signed, err := f.signer.SignTransaction(ctx, fee.tx(chainID, nonce, gasLimit, data))
	if err != nil {
		return nil, submitErr(err)
	}

	if err := f.client.SendTransaction(ctx, signed); err != nil {
		return nil, stageError(StageSubmit, name, signed.Hash(), fmt.Errorf("send transaction: %w", err))
	}

	pending := &Pending{
		Tx:      signed,
		Address: crypto.CreateAddress(from, nonce),
		ChainID: chainID,
		Args:    args,
		factory: f,
	}
	f.logger.Info("deployment submitted",
		slog.String("tx_hash", signed.Hash().Hex()),
		slog.String("address", pending.Address.Hex()),
	)
	return pending, nil
}

func (f *Factory) gasLimit(ctx context.Context, from common.Address, fee fees, data []byte) (uint64, error) {
	if f.opts.GasLimit > 0 {
		return f.opts.GasLimit, nil
	}

	estimate, err := f.client.EstimateGas(ctx, ethereum.CallMsg{
		From:      from,
		To:        nil, // contract creation
		GasPrice:  fee.gasPrice,
		GasTipCap: fee.gasTipCap,
		GasFeeCap: fee.gasFeeCap,
		Value:     big.NewInt(0),
		Data:      data,
	})
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	return estimate * f.opts.GasMultiplier / 100, nil
}

// Wait blocks until the deployment is mined and the contract code exists.
func (p *Pending) Wait(ctx context.Context) (*Result, error) {
	f := p.factory
	name := f.artifact.ContractName
	hash := p.Tx.Hash()

	start := time.Now()
	receipt, err := bind.WaitMined(ctx, f.client, p.Tx)
	if err != nil {
		return nil, stageError(StageConfirm, name, hash, fmt.Errorf("%w: %w", ErrNoReceipt, err))
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, stageError(StageConfirm, name, hash, fmt.Errorf("%w in block %d", ErrReverted, receipt.BlockNumber.Uint64()))
	}
	if receipt.ContractAddress == (common.Address{}) {
		return nil, stageError(StageConfirm, name, hash, ErrContractNotDeployed)
	}

	code, err := f.client.CodeAt(ctx, receipt.ContractAddress, nil)
	if err != nil {
		return nil, stageError(StageConfirm, name, hash, fmt.Errorf("get code: %w", err))
	}
	if len(code) == 0 {
		return nil, stageError(StageConfirm, name, hash, bind.ErrNoCodeAfterDeploy)
	}

	f.logger.Info("deployment confirmed",
		slog.String("address", receipt.ContractAddress.Hex()),
		slog.Uint64("block", receipt.BlockNumber.Uint64()),
		slog.Uint64("gas_used", receipt.GasUsed),
		slog.Duration("waited", time.Since(start)),
	)

	return &Result{
		Contract:        name,
		Address:         receipt.ContractAddress,
		TxHash:          hash,
		BlockNumber:     receipt.BlockNumber.Uint64(),
		GasUsed:         receipt.GasUsed,
		Deployer:        f.signer.Address(),
		ChainID:         p.ChainID,
		ConstructorArgs: p.Args,
	}, nil
}

// DeployAndWait is Deploy followed by Wait.
func (f *Factory) DeployAndWait(ctx context.Context, args ...any) (*Result, error) {
	pending, err := f.Deploy(ctx, args...)
	if err != nil {
		return nil, err
	}
	return pending.Wait(ctx)
}

// VerifyChainID checks the RPC endpoint serves the expected chain. An
// expected value of zero skips the check. The reported chain ID is returned.
func VerifyChainID(ctx context.Context, client chain.Backend, expected uint64) (*big.Int, error) {
	got, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain id: %w", err)
	}
	if expected != 0 && (!got.IsUint64() || got.Uint64() != expected) {
		return nil, fmt.Errorf("%w: configured %d, endpoint reports %s", ErrChainIDMismatch, expected, got)
	}
	return got, nil
}
