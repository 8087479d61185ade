package deployer

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/core/types"
)

// fees holds either a legacy gas price or an EIP-1559 tip and fee cap.
type fees struct {
	gasPrice  *big.Int
	gasTipCap *big.Int
	gasFeeCap *big.Int
}

func (f fees) dynamic() bool { return f.gasFeeCap != nil }

// suggestFees prices the deployment. A configured gas price always produces
// a legacy transaction. Otherwise chains reporting a base fee get
// maxFeePerGas = 2*baseFee + tip, the rest the node's suggested gas price.
func (f *Factory) suggestFees(ctx context.Context) (fees, error) {
	if f.opts.GasPrice != nil {
		return fees{gasPrice: new(big.Int).Set(f.opts.GasPrice)}, nil
	}

	head, err := f.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return fees{}, fmt.Errorf("get latest header: %w", err)
	}

	if head.BaseFee == nil {
		price, err := f.client.SuggestGasPrice(ctx)
		if err != nil {
			return fees{}, fmt.Errorf("suggest gas price: %w", err)
		}
		return fees{gasPrice: price}, nil
	}

	tip, err := f.client.SuggestGasTipCap(ctx)
	if err != nil {
		return fees{}, fmt.Errorf("suggest gas tip cap: %w", err)
	}
	feeCap := new(big.Int).Mul(head.BaseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)
	return fees{gasTipCap: tip, gasFeeCap: feeCap}, nil
}

func (f fees) tx(chainID *big.Int, nonce, gas uint64, data []byte) *types.Transaction {
	if f.dynamic() {
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: f.gasTipCap,
			GasFeeCap: f.gasFeeCap,
			Gas:       gas,
			Value:     big.NewInt(0),
			Data:      data,
		})
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: f.gasPrice,
		Gas:      gas,
		Value:    big.NewInt(0),
		Data:     data,
	})
}

func (f fees) attrs() []any {
	if f.dynamic() {
		return []any{"max_fee", f.gasFeeCap.String(), "tip", f.gasTipCap.String()}
	}
	return []any{"gas_price", f.gasPrice.String()}
}
