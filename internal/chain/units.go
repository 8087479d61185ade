package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/params"
)

// ParseValue parses an amount with an optional unit suffix (wei, gwei, eth,
// ether) into wei. Decimals are allowed as long as they resolve to whole wei.
func ParseValue(s string) (*big.Int, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "0" {
		return big.NewInt(0), nil
	}

	multiplier := big.NewInt(params.Wei)
	decimals := 0
	switch {
	case strings.HasSuffix(s, "ether"):
		multiplier, decimals = big.NewInt(params.Ether), 18
		s = strings.TrimSuffix(s, "ether")
	case strings.HasSuffix(s, "eth"):
		multiplier, decimals = big.NewInt(params.Ether), 18
		s = strings.TrimSuffix(s, "eth")
	case strings.HasSuffix(s, "gwei"):
		multiplier, decimals = big.NewInt(params.GWei), 9
		s = strings.TrimSuffix(s, "gwei")
	case strings.HasSuffix(s, "wei"):
		s = strings.TrimSuffix(s, "wei")
	}
	s = strings.TrimSpace(s)

	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	w, ok := new(big.Int).SetString(whole, 10)
	if !ok || w.Sign() < 0 {
		return nil, fmt.Errorf("invalid amount: %q", s)
	}
	result := new(big.Int).Mul(w, multiplier)
	if !hasFrac {
		return result, nil
	}

	if frac == "" || len(frac) > decimals {
		return nil, fmt.Errorf("invalid amount %q: at most %d decimals for this unit", s, decimals)
	}
	f, ok := new(big.Int).SetString(frac+strings.Repeat("0", decimals-len(frac)), 10)
	if !ok || f.Sign() < 0 {
		return nil, fmt.Errorf("invalid decimal part: %q", frac)
	}
	return result.Add(result, f), nil
}

// FormatEther renders wei as a decimal ether amount without trailing zeros.
func FormatEther(wei *big.Int) string {
	if wei == nil {
		return "0"
	}
	sign := ""
	v := new(big.Int).Set(wei)
	if v.Sign() < 0 {
		sign = "-"
		v.Neg(v)
	}
	whole, frac := new(big.Int).QuoRem(v, big.NewInt(params.Ether), new(big.Int))
	if frac.Sign() == 0 {
		return sign + whole.String()
	}
	fs := fmt.Sprintf("%018s", frac.String())
	return sign + whole.String() + "." + strings.TrimRight(fs, "0")
}
