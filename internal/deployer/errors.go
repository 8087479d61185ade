package deployer

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrDeploymentFailed matches every *Error returned by this package.
	ErrDeploymentFailed = errors.New("deployment failed")

	ErrReverted            = errors.New("deployer: deployment transaction reverted")
	ErrContractNotDeployed = errors.New("deployer: contract failed to deploy (no contract address in receipt)")
	ErrChainIDMismatch     = errors.New("deployer: chain id mismatch")
	ErrNoReceipt           = errors.New("deployer: did not receive receipt")
)

// Stage names the step of a deployment that failed.
type Stage string

const (
	StageFactory Stage = "factory"
	StageSubmit  Stage = "submit"
	StageConfirm Stage = "confirm"
)

// Error is a failed deployment. TxHash is set once the transaction has been
// signed.
type Error struct {
	Stage    Stage
	Contract string
	TxHash   common.Hash
	Err      error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("deployment of %s failed (%s)", e.Contract, e.Stage)
	if e.TxHash != (common.Hash{}) {
		msg += fmt.Sprintf(" tx %s", e.TxHash.Hex())
	}
	return msg + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrDeploymentFailed) hold for every *Error.
func (e *Error) Is(target error) bool {
	return target == ErrDeploymentFailed
}

func stageError(stage Stage, contract string, hash common.Hash, err error) error {
	return &Error{Stage: stage, Contract: contract, TxHash: hash, Err: err}
}
