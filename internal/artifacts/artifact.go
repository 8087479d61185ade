// Package artifacts loads compiled contract artifacts produced by Hardhat,
// Foundry or the built-in solc driver, and encodes deployment data from them.
package artifacts

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Artifact formats.
const (
	FormatHardhat = "hh-sol-artifact-1"
	FormatFoundry = "foundry"
)

var (
	ErrEmptyBytecode     = errors.New("artifacts: contract has no bytecode (abstract contract or interface?)")
	ErrUnlinkedLibraries = errors.New("artifacts: bytecode has unlinked library references")
	ErrCompilerMismatch  = errors.New("artifacts: artifact was built with a different compiler version")
	ErrInvalidBytecode   = errors.New("artifacts: bytecode is neither a hex string nor an {\"object\": ...} value")
)

// Artifact is a compiled Solidity contract with its ABI and bytecode.
type Artifact struct {
	Format           string          `json:"_format,omitempty"`
	ContractName     string          `json:"contractName,omitempty"`
	SourceName       string          `json:"sourceName,omitempty"`
	ABI              json.RawMessage `json:"abi"`
	Bytecode         Bytecode        `json:"bytecode"`
	DeployedBytecode Bytecode        `json:"deployedBytecode,omitempty"`
	LinkReferences   json.RawMessage `json:"linkReferences,omitempty"`

	// CompilerVersion is the solc version recorded alongside the artifact,
	// when one is available (Foundry metadata or Hardhat build-info).
	CompilerVersion string `json:"-"`
	// Path is the file the artifact was read from.
	Path string `json:"-"`
}

// Bytecode holds contract bytecode as a hex string. It decodes both a plain
// string (Hardhat) and an object with an "object" field (Foundry).
type Bytecode struct {
	hex string
}

// NewBytecode wraps a hex string, adding the 0x prefix when missing.
func NewBytecode(s string) Bytecode {
	if s != "" && !strings.HasPrefix(s, "0x") {
		s = "0x" + s
	}
	return Bytecode{hex: s}
}

// UnmarshalJSON accepts "0x..." as well as {"object": "0x...", ...}.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBytecode, err)
	}
	switch v := raw.(type) {
	case string:
		*b = NewBytecode(v)
		return nil
	case map[string]any:
		if object, ok := v["object"].(string); ok {
			*b = NewBytecode(object)
			return nil
		}
	}
	return fmt.Errorf("%w: got %s", ErrInvalidBytecode, data)
}

// MarshalJSON marshals the bytecode as a string.
func (b Bytecode) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.hex)
}

// String returns the bytecode hex string.
func (b Bytecode) String() string {
	return b.hex
}

// Bytes decodes the bytecode. Placeholders left by the compiler for
// libraries that have not been linked are reported as ErrUnlinkedLibraries.
func (b Bytecode) Bytes() ([]byte, error) {
	if b.hex == "" || b.hex == "0x" {
		return nil, ErrEmptyBytecode
	}
	if strings.Contains(b.hex, "__") {
		return nil, ErrUnlinkedLibraries
	}
	code, err := hexutil.Decode(b.hex)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	return code, nil
}

// ParsedABI parses the artifact ABI.
func (a *Artifact) ParsedABI() (abi.ABI, error) {
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse %s ABI: %w", a.ContractName, err)
	}
	return parsed, nil
}

// BytecodeBytes returns the creation bytecode.
func (a *Artifact) BytecodeBytes() ([]byte, error) {
	code, err := a.Bytecode.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", a.ContractName, err)
	}
	return code, nil
}

// ConstructorInputs returns the constructor parameters, which are empty when
// the contract declares no constructor.
func (a *Artifact) ConstructorInputs() (abi.Arguments, error) {
	parsed, err := a.ParsedABI()
	if err != nil {
		return nil, err
	}
	return parsed.Constructor.Inputs, nil
}

// EncodeConstructorArgs ABI-encodes constructor arguments. The result is
// appended to the creation bytecode.
func (a *Artifact) EncodeConstructorArgs(args ...any) ([]byte, error) {
	inputs, err := a.ConstructorInputs()
	if err != nil {
		return nil, err
	}
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("%w: %s constructor takes %d, got %d", ErrArgCount, a.ContractName, len(inputs), len(args))
	}
	if len(args) == 0 {
		return nil, nil
	}

	packed, err := inputs.Pack(args...)
	if err != nil {
		return nil, fmt.Errorf("pack constructor args: %w", err)
	}
	return packed, nil
}

// DeployData returns creation bytecode followed by the encoded constructor
// arguments: the data field of the deployment transaction.
func (a *Artifact) DeployData(args ...any) ([]byte, error) {
	code, err := a.BytecodeBytes()
	if err != nil {
		return nil, err
	}
	packed, err := a.EncodeConstructorArgs(args...)
	if err != nil {
		return nil, err
	}

	data := make([]byte, 0, len(code)+len(packed))
	data = append(data, code...)
	return append(data, packed...), nil
}

// CheckCompiler compares the recorded compiler version with the configured
// one. Artifacts without a recorded version pass.
func (a *Artifact) CheckCompiler(version string) error {
	if a.CompilerVersion == "" || version == "" {
		return nil
	}
	if SameVersion(a.CompilerVersion, version) {
		return nil
	}
	return fmt.Errorf("%w: %s built with %s, configured %s", ErrCompilerMismatch, a.ContractName, a.CompilerVersion, version)
}

// SameVersion matches "0.8.18" against long forms such as
// "0.8.18+commit.87f61d96" or "v0.8.18+commit.87f61d96.Linux.g++".
func SameVersion(recorded, configured string) bool {
	short := func(v string) string {
		v = strings.TrimPrefix(strings.TrimSpace(v), "v")
		if i := strings.IndexAny(v, "+-"); i >= 0 {
			v = v[:i]
		}
		return v
	}
	return short(recorded) == short(configured)
}
