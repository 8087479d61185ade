package signer

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Well-known development key (Anvil/Hardhat account #0).
const (
	devKey     = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	devAddress = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

func TestNewLocal(t *testing.T) {
	for _, key := range []string{devKey, "0x" + devKey, "  0x" + devKey + "\n"} {
		s, err := NewLocal(key, big.NewInt(5))
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(devAddress), s.Address())
		assert.Equal(t, int64(5), s.ChainID().Int64())
	}
}

func TestNewLocalInvalidKey(t *testing.T) {
	for _, key := range []string{"", "0x1234", "zz0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"} {
		_, err := NewLocal(key, big.NewInt(1))
		assert.ErrorIs(t, err, ErrInvalidKey, "key %q", key)
	}
}

func TestNewAccounts(t *testing.T) {
	accounts, err := NewAccounts([]string{devKey, "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"}, big.NewInt(1337))
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, common.HexToAddress(devAddress), accounts[0].Address())
	assert.NotEqual(t, accounts[0].Address(), accounts[1].Address())

	_, err = NewAccounts(nil, big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = NewAccounts([]string{devKey, "bad"}, big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestAddressOf(t *testing.T) {
	addr, err := AddressOf("0x" + devKey)
	require.NoError(t, err)
	assert.Equal(t, devAddress, addr.Hex())
}

func TestSignTransaction(t *testing.T) {
	chainID := big.NewInt(1337)
	s, err := NewLocal(devKey, chainID)
	require.NoError(t, err)

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     0,
		GasTipCap: big.NewInt(1),
		GasFeeCap: big.NewInt(2),
		Gas:       100000,
		Data:      []byte{0x60, 0x00},
	})

	signed, err := s.SignTransaction(context.Background(), tx)
	require.NoError(t, err)

	sender, err := types.Sender(types.LatestSignerForChainID(chainID), signed)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), sender)
	assert.Nil(t, signed.To())
}
