package mockd

import (
	"fmt"
	"math/big"
	"strings"
)

// CoinDecimals is the number of decimal places of the native coin.
const CoinDecimals = 11

// parseAmount converts a non-negative decimal string into atoms.
func parseAmount(s string, decimals int) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	whole, frac, _ := strings.Cut(s, ".")
	if whole == "" {
		whole = "0"
	}
	if len(frac) > decimals {
		return nil, fmt.Errorf("amount %q has more than %d decimals", s, decimals)
	}
	for _, part := range []string{whole, frac} {
		for _, c := range part {
			if c < '0' || c > '9' {
				return nil, fmt.Errorf("invalid amount %q", s)
			}
		}
	}
	v, ok := new(big.Int).SetString(whole+frac+strings.Repeat("0", decimals-len(frac)), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", s)
	}
	return v, nil
}

// formatAmount renders atoms as a decimal string without trailing zeros.
func formatAmount(v *big.Int, decimals int) string {
	if v == nil {
		return "0"
	}
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	whole, frac := new(big.Int).QuoRem(v, unit, new(big.Int))
	if frac.Sign() == 0 {
		return whole.String()
	}
	fs := frac.String()
	fs = strings.Repeat("0", decimals-len(fs)) + fs
	return whole.String() + "." + strings.TrimRight(fs, "0")
}

func amountResult(v *big.Int, decimals int) AmountResult {
	if v == nil {
		v = new(big.Int)
	}
	return AmountResult{Atoms: v.String(), Decimal: formatAmount(v, decimals)}
}
