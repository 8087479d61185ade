// Package chain provides the RPC client surface used for deployments.
package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Backend is the subset of the Ethereum JSON-RPC API a deployment needs. It is
// satisfied by *ethclient.Client and by the simulated backend's client.
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, call ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Client is a Backend holding a connection.
type Client interface {
	Backend
	Close()
}

var _ Client = (*ethclient.Client)(nil)

// Dial connects to an Ethereum RPC endpoint.
func Dial(ctx context.Context, rpcURL string) (Client, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", RedactURL(rpcURL), RedactError(err, rpcURL))
	}
	return client, nil
}

// Wrap adapts a Backend without a Close method, such as a simulated chain.
func Wrap(b Backend) Client {
	if c, ok := b.(Client); ok {
		return c
	}
	return nopCloser{b}
}

type nopCloser struct {
	Backend
}

func (nopCloser) Close() {}

// RedactURL strips the path, query and credentials from an RPC URL. Hosted
// providers embed API keys in the path.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "<invalid url>"
	}
	return u.Scheme + "://" + u.Host
}

// RedactError rewrites every occurrence of rpcURL in err's message to its
// redacted form. Transport errors from net/http quote the full request URL.
// The returned error still unwraps to err.
func RedactError(err error, rpcURL string) error {
	if err == nil || rpcURL == "" {
		return err
	}

	secrets := []string{rpcURL}
	var uerr *url.Error
	if errors.As(err, &uerr) && uerr.URL != "" {
		secrets = append(secrets, uerr.URL)
	}

	msg := err.Error()
	redacted := msg
	for _, s := range secrets {
		redacted = strings.ReplaceAll(redacted, s, RedactURL(rpcURL))
	}
	if redacted == msg {
		return err
	}
	return &redactedError{msg: redacted, err: err}
}

type redactedError struct {
	msg string
	err error
}

func (e *redactedError) Error() string { return e.msg }
func (e *redactedError) Unwrap() error { return e.err }
