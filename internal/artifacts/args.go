package artifacts

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	ErrArgCount        = errors.New("artifacts: wrong number of constructor arguments")
	ErrInvalidArg      = errors.New("artifacts: invalid constructor argument")
	ErrBadChecksum     = errors.New("artifacts: address has an invalid EIP-55 checksum")
	ErrUnsupportedType = errors.New("artifacts: unsupported constructor argument type")
)

// CoerceArgs converts command-line strings into Go values accepted by
// abi.Arguments.Pack. Integers accept decimal or 0x hex, bytes accept 0x hex,
// and arrays are written as JSON ("[1,2,3]" or "[\"0x..\",\"0x..\"]").
func CoerceArgs(inputs abi.Arguments, raw []string) ([]any, error) {
	if len(raw) != len(inputs) {
		return nil, fmt.Errorf("%w: constructor takes %d, got %d", ErrArgCount, len(inputs), len(raw))
	}

	out := make([]any, len(raw))
	for i, input := range inputs {
		v, err := coerce(input.Type, raw[i])
		if err != nil {
			name := input.Name
			if name == "" {
				name = "#" + strconv.Itoa(i)
			}
			return nil, fmt.Errorf("argument %s (%s): %w", name, input.Type.String(), err)
		}
		out[i] = v
	}
	return out, nil
}

func coerce(t abi.Type, s string) (any, error) {
	switch t.T {
	case abi.AddressTy:
		return parseAddress(s)
	case abi.BoolTy:
		b, err := strconv.ParseBool(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a bool", ErrInvalidArg, s)
		}
		return b, nil
	case abi.StringTy:
		return s, nil
	case abi.IntTy, abi.UintTy:
		return parseInt(t, s)
	case abi.BytesTy:
		b, err := hexutil.Decode(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidArg, s, err)
		}
		return b, nil
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidArg, s, err)
		}
		if len(b) != t.Size {
			return nil, fmt.Errorf("%w: want %d bytes, got %d", ErrInvalidArg, t.Size, len(b))
		}
		arr := reflect.New(t.GetType()).Elem()
		reflect.Copy(arr, reflect.ValueOf(b))
		return arr.Interface(), nil
	case abi.SliceTy, abi.ArrayTy:
		return parseList(t, s)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, t.String())
	}
}

// parseAddress accepts all-lowercase or all-uppercase hex, and mixed case
// only when it is a valid EIP-55 checksum.
func parseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: %q is not an address", ErrInvalidArg, s)
	}
	addr := common.HexToAddress(s)
	body := strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if body != strings.ToLower(body) && body != strings.ToUpper(body) && addr.Hex() != "0x"+body {
		return common.Address{}, fmt.Errorf("%w: %s", ErrBadChecksum, s)
	}
	return addr, nil
}

func parseInt(t abi.Type, s string) (any, error) {
	s = strings.TrimSpace(s)
	n := new(big.Int)
	var ok bool
	switch {
	case strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X"):
		_, ok = n.SetString(s[2:], 16)
	default:
		_, ok = n.SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %q is not an integer", ErrInvalidArg, s)
	}

	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%w: %s out of range for uint%d", ErrInvalidArg, s, t.Size)
		}
	} else {
		limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
		lowest := new(big.Int).Neg(limit)
		if n.Cmp(lowest) < 0 || n.Cmp(limit) >= 0 {
			return nil, fmt.Errorf("%w: %s out of range for int%d", ErrInvalidArg, s, t.Size)
		}
	}

	goType := t.GetType()
	if goType == reflect.TypeOf(n) {
		return n, nil
	}
	// Sizes up to 64 bits pack from native Go integers.
	if t.T == abi.UintTy {
		return reflect.ValueOf(n.Uint64()).Convert(goType).Interface(), nil
	}
	return reflect.ValueOf(n.Int64()).Convert(goType).Interface(), nil
}

func parseList(t abi.Type, s string) (any, error) {
	var items []json.RawMessage
	if err := json.Unmarshal([]byte(s), &items); err != nil {
		return nil, fmt.Errorf("%w: %q is not a JSON array", ErrInvalidArg, s)
	}
	if t.T == abi.ArrayTy && len(items) != t.Size {
		return nil, fmt.Errorf("%w: want %d elements, got %d", ErrInvalidArg, t.Size, len(items))
	}

	var list reflect.Value
	if t.T == abi.ArrayTy {
		list = reflect.New(t.GetType()).Elem()
	} else {
		list = reflect.MakeSlice(t.GetType(), len(items), len(items))
	}

	for i, item := range items {
		elem := string(item)
		var str string
		if err := json.Unmarshal(item, &str); err == nil {
			elem = str
		}
		v, err := coerce(*t.Elem, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		list.Index(i).Set(reflect.ValueOf(v))
	}
	return list.Interface(), nil
}
