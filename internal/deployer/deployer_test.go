package deployer

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient/simulated"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filecoin-saturn/contracts/internal/artifacts"
	"github.com/filecoin-saturn/contracts/internal/chain"
	"github.com/filecoin-saturn/contracts/internal/signer"
)

const (
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
	// First contract created by devAddress (nonce 0).
	firstDeployment = "0x5FbDB2315678afecb367f032d93F642f64180aa3"

	evaluatorOwner = "0xf4728721157A58b0509c8c109Ec2AF726B562D6A"
	ownerABI       = `[{"inputs":[{"internalType":"address","name":"owner","type":"address"}],"stateMutability":"nonpayable","type":"constructor"}]`

	// Init code returning a runtime that answers every call with 1. It ignores
	// the constructor arguments appended to it.
	returnsOneInit = "0x69600160005260206000f3600052600a6016f3"
	returnsOne     = "0x600160005260206000f3"
	revertsInit    = "0x60006000fd"
	emptyInit      = "0x00"
)

var simulatedChainID = big.NewInt(1337)

func testArtifact(abiJSON, code string) *artifacts.Artifact {
	return &artifacts.Artifact{
		Format:       artifacts.FormatHardhat,
		ContractName: "Evaluator",
		SourceName:   "contracts/Evaluator.sol",
		ABI:          json.RawMessage(abiJSON),
		Bytecode:     artifacts.NewBytecode(code),
	}
}

func newSimulated(t *testing.T) (*simulated.Backend, chain.Client, *signer.Local) {
	t.Helper()

	s, err := signer.NewLocal(devKey, simulatedChainID)
	require.NoError(t, err)

	balance := new(big.Int).Mul(big.NewInt(100), big.NewInt(params.Ether))
	sim := simulated.NewBackend(types.GenesisAlloc{
		s.Address(): {Balance: balance},
	})
	t.Cleanup(func() { sim.Close() })

	return sim, chain.Wrap(sim.Client()), s
}

func TestDeployEvaluator(t *testing.T) {
	sim, client, s := newSimulated(t)
	ctx := context.Background()

	artifact := testArtifact(ownerABI, returnsOneInit)
	factory, err := NewFactory(artifact, client, s, Options{})
	require.NoError(t, err)

	owner := common.HexToAddress(evaluatorOwner)
	pending, err := factory.Deploy(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, firstDeployment, pending.Address.Hex())
	assert.Equal(t, uint8(types.DynamicFeeTxType), pending.Tx.Type())
	assert.Nil(t, pending.Tx.To())

	sim.Commit()

	result, err := pending.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Evaluator", result.Contract)
	assert.Equal(t, pending.Address, result.Address)
	assert.Equal(t, pending.Hash(), result.TxHash)
	assert.Equal(t, common.HexToAddress(devAddress), result.Deployer)
	assert.Equal(t, int64(1337), result.ChainID.Int64())
	assert.NotZero(t, result.BlockNumber)
	assert.NotZero(t, result.GasUsed)
	assert.Equal(t, []any{owner}, result.ConstructorArgs)

	code, err := client.CodeAt(ctx, result.Address, nil)
	require.NoError(t, err)
	assert.Equal(t, returnsOne, "0x"+common.Bytes2Hex(code))
}

func TestDeployEncodesSingleConstructorArgument(t *testing.T) {
	_, client, s := newSimulated(t)
	ctx := context.Background()

	artifact := testArtifact(ownerABI, returnsOneInit)
	factory, err := NewFactory(artifact, client, s, Options{})
	require.NoError(t, err)

	pending, err := factory.Deploy(ctx, common.HexToAddress(evaluatorOwner))
	require.NoError(t, err)

	code, err := artifact.BytecodeBytes()
	require.NoError(t, err)
	data := pending.Tx.Data()
	require.True(t, len(data) > len(code))
	assert.Equal(t, code, data[:len(code)])

	inputs, err := artifact.ConstructorInputs()
	require.NoError(t, err)
	decoded, err := inputs.Unpack(data[len(code):])
	require.NoError(t, err)
	require.Len(t, decoded, 1)
	assert.Equal(t, evaluatorOwner, decoded[0].(common.Address).Hex())
}

func TestDeployLegacyGasPrice(t *testing.T) {
	sim, client, s := newSimulated(t)
	ctx := context.Background()

	price := big.NewInt(10 * params.GWei)
	factory, err := NewFactory(testArtifact(ownerABI, returnsOneInit), client, s, Options{
		GasPrice: price,
		GasLimit: 200_000,
	})
	require.NoError(t, err)

	pending, err := factory.Deploy(ctx, common.HexToAddress(evaluatorOwner))
	require.NoError(t, err)
	assert.Equal(t, uint8(types.LegacyTxType), pending.Tx.Type())
	assert.Equal(t, uint64(200_000), pending.Tx.Gas())
	assert.Equal(t, price, pending.Tx.GasPrice())

	sim.Commit()
	_, err = pending.Wait(ctx)
	require.NoError(t, err)
}

func TestDeployReverted(t *testing.T) {
	sim, client, s := newSimulated(t)
	ctx := context.Background()

	factory, err := NewFactory(testArtifact(`[]`, revertsInit), client, s, Options{GasLimit: 100_000})
	require.NoError(t, err)

	pending, err := factory.Deploy(ctx)
	require.NoError(t, err)
	sim.Commit()

	_, err = pending.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrReverted)
	assert.ErrorIs(t, err, ErrDeploymentFailed)

	var depErr *Error
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, StageConfirm, depErr.Stage)
	assert.Equal(t, pending.Hash(), depErr.TxHash)
	assert.Contains(t, err.Error(), pending.Hash().Hex())
}

func TestDeployEstimateFailure(t *testing.T) {
	_, client, s := newSimulated(t)

	factory, err := NewFactory(testArtifact(`[]`, revertsInit), client, s, Options{})
	require.NoError(t, err)

	_, err = factory.Deploy(context.Background())
	require.Error(t, err)

	var depErr *Error
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, StageSubmit, depErr.Stage)
	assert.Equal(t, common.Hash{}, depErr.TxHash)
}

func TestDeployNoCode(t *testing.T) {
	sim, client, s := newSimulated(t)
	ctx := context.Background()

	factory, err := NewFactory(testArtifact(`[]`, emptyInit), client, s, Options{})
	require.NoError(t, err)

	pending, err := factory.Deploy(ctx)
	require.NoError(t, err)
	sim.Commit()

	_, err = pending.Wait(ctx)
	assert.ErrorIs(t, err, bind.ErrNoCodeAfterDeploy)
	assert.ErrorIs(t, err, ErrDeploymentFailed)
}

func TestNewFactoryValidation(t *testing.T) {
	_, client, s := newSimulated(t)

	_, err := NewFactory(testArtifact(ownerABI, "0x"), client, s, Options{})
	assert.ErrorIs(t, err, artifacts.ErrEmptyBytecode)
	assert.ErrorIs(t, err, ErrDeploymentFailed)

	_, err = NewFactory(testArtifact(`not json`, returnsOneInit), client, s, Options{})
	assert.ErrorIs(t, err, ErrDeploymentFailed)

	_, err = NewFactory(nil, client, s, Options{})
	assert.ErrorIs(t, err, ErrDeploymentFailed)

	_, err = NewFactory(testArtifact(ownerABI, returnsOneInit), client, nil, Options{})
	assert.ErrorIs(t, err, ErrDeploymentFailed)
}

func TestDeployWrongArgumentCount(t *testing.T) {
	_, client, s := newSimulated(t)

	factory, err := NewFactory(testArtifact(ownerABI, returnsOneInit), client, s, Options{})
	require.NoError(t, err)

	_, err = factory.Deploy(context.Background())
	assert.ErrorIs(t, err, artifacts.ErrArgCount)

	var depErr *Error
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, StageFactory, depErr.Stage)
}

// stubBackend is a scripted chain.Backend.
type stubBackend struct {
	chainID  *big.Int
	baseFee  *big.Int
	gasPrice *big.Int
	tip      *big.Int
	estimate uint64
	sendErr  error

	sent []*types.Transaction
}

func (b *stubBackend) ChainID(context.Context) (*big.Int, error) { return b.chainID, nil }
func (b *stubBackend) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return 7, nil
}
func (b *stubBackend) SuggestGasPrice(context.Context) (*big.Int, error)  { return b.gasPrice, nil }
func (b *stubBackend) SuggestGasTipCap(context.Context) (*big.Int, error) { return b.tip, nil }
func (b *stubBackend) HeaderByNumber(context.Context, *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: b.baseFee}, nil
}
func (b *stubBackend) EstimateGas(context.Context, ethereum.CallMsg) (uint64, error) {
	return b.estimate, nil
}
func (b *stubBackend) SendTransaction(_ context.Context, tx *types.Transaction) error {
	if b.sendErr != nil {
		return b.sendErr
	}
	b.sent = append(b.sent, tx)
	return nil
}
func (b *stubBackend) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}
func (b *stubBackend) CodeAt(context.Context, common.Address, *big.Int) ([]byte, error) {
	return nil, nil
}
func (b *stubBackend) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return big.NewInt(0), nil
}

func TestGasLimitMultiplier(t *testing.T) {
	s, err := signer.NewLocal(devKey, simulatedChainID)
	require.NoError(t, err)

	tests := []struct {
		name       string
		multiplier uint64
		want       uint64
	}{
		{"default pads 30 percent", 0, 130_000},
		{"configured", 150, 150_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := &stubBackend{chainID: simulatedChainID, gasPrice: big.NewInt(1), estimate: 100_000}
			factory, err := NewFactory(testArtifact(`[]`, returnsOneInit), backend, s, Options{GasMultiplier: tt.multiplier})
			require.NoError(t, err)

			pending, err := factory.Deploy(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.want, pending.Tx.Gas())
			assert.Equal(t, uint64(7), pending.Tx.Nonce())
		})
	}
}

func TestFeeSelection(t *testing.T) {
	s, err := signer.NewLocal(devKey, simulatedChainID)
	require.NoError(t, err)

	t.Run("legacy chain", func(t *testing.T) {
		backend := &stubBackend{chainID: simulatedChainID, gasPrice: big.NewInt(42), estimate: 50_000}
		factory, err := NewFactory(testArtifact(`[]`, returnsOneInit), backend, s, Options{})
		require.NoError(t, err)

		pending, err := factory.Deploy(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint8(types.LegacyTxType), pending.Tx.Type())
		assert.Equal(t, int64(42), pending.Tx.GasPrice().Int64())
	})

	t.Run("london chain", func(t *testing.T) {
		backend := &stubBackend{chainID: simulatedChainID, baseFee: big.NewInt(10), tip: big.NewInt(2), estimate: 50_000}
		factory, err := NewFactory(testArtifact(`[]`, returnsOneInit), backend, s, Options{})
		require.NoError(t, err)

		pending, err := factory.Deploy(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint8(types.DynamicFeeTxType), pending.Tx.Type())
		assert.Equal(t, int64(2), pending.Tx.GasTipCap().Int64())
		assert.Equal(t, int64(22), pending.Tx.GasFeeCap().Int64())
	})
}

func TestDeploySendFailure(t *testing.T) {
	s, err := signer.NewLocal(devKey, simulatedChainID)
	require.NoError(t, err)

	backend := &stubBackend{chainID: simulatedChainID, gasPrice: big.NewInt(1), estimate: 50_000, sendErr: errors.New("insufficient funds for gas * price + value")}
	factory, err := NewFactory(testArtifact(`[]`, returnsOneInit), backend, s, Options{})
	require.NoError(t, err)

	_, err = factory.Deploy(context.Background())
	require.Error(t, err)

	var depErr *Error
	require.True(t, errors.As(err, &depErr))
	assert.Equal(t, StageSubmit, depErr.Stage)
	assert.NotEqual(t, common.Hash{}, depErr.TxHash)
	assert.True(t, strings.Contains(err.Error(), "insufficient funds"))
}

func TestWaitWithoutReceipt(t *testing.T) {
	s, err := signer.NewLocal(devKey, simulatedChainID)
	require.NoError(t, err)

	backend := &stubBackend{chainID: simulatedChainID, gasPrice: big.NewInt(1), estimate: 50_000}
	factory, err := NewFactory(testArtifact(`[]`, returnsOneInit), backend, s, Options{})
	require.NoError(t, err)

	pending, err := factory.Deploy(context.Background())
	require.NoError(t, err)
	require.Len(t, backend.sent, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = pending.Wait(ctx)
	assert.ErrorIs(t, err, ErrNoReceipt)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), pending.Hash().Hex())
}

func TestVerifyChainID(t *testing.T) {
	backend := &stubBackend{chainID: big.NewInt(5)}

	got, err := VerifyChainID(context.Background(), backend, 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), got.Int64())

	_, err = VerifyChainID(context.Background(), backend, 0)
	assert.NoError(t, err)

	_, err = VerifyChainID(context.Background(), backend, 1)
	assert.ErrorIs(t, err, ErrChainIDMismatch)
}
