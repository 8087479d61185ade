// Package signer signs deployment transactions with locally held keys.
package signer

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

var ErrInvalidKey = errors.New("signer: invalid private key")

// Local signs transactions with an in-memory secp256k1 key.
type Local struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
	chainID    *big.Int
}

// NewLocal creates a signer from a hex-encoded private key, with or without
// the 0x prefix.
func NewLocal(hexKey string, chainID *big.Int) (*Local, error) {
	privateKey, err := parseKey(hexKey)
	if err != nil {
		return nil, err
	}
	return &Local{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		chainID:    new(big.Int).Set(chainID),
	}, nil
}

// NewAccounts builds one signer per configured key. The first account deploys.
func NewAccounts(keys []string, chainID *big.Int) ([]*Local, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: no keys configured", ErrInvalidKey)
	}
	accounts := make([]*Local, 0, len(keys))
	for i, key := range keys {
		s, err := NewLocal(key, chainID)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		accounts = append(accounts, s)
	}
	return accounts, nil
}

// AddressOf derives the address of a hex-encoded private key.
func AddressOf(hexKey string) (common.Address, error) {
	privateKey, err := parseKey(hexKey)
	if err != nil {
		return common.Address{}, err
	}
	return crypto.PubkeyToAddress(privateKey.PublicKey), nil
}

func parseKey(hexKey string) (*ecdsa.PrivateKey, error) {
	hexKey = strings.TrimSpace(hexKey)
	hexKey = strings.TrimPrefix(strings.TrimPrefix(hexKey, "0x"), "0X")
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		// The underlying error never contains key material.
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return privateKey, nil
}

// Address returns the signer's address.
func (s *Local) Address() common.Address {
	return s.address
}

// ChainID returns the chain ID used for replay protection.
func (s *Local) ChainID() *big.Int {
	return s.chainID
}

// SignTransaction signs tx with the latest signer for the chain.
func (s *Local) SignTransaction(_ context.Context, tx *types.Transaction) (*types.Transaction, error) {
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(s.chainID), s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}
