package web3

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseUnits converts a decimal amount such as "1.5" into base units.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	text := strings.TrimSpace(amount)
	if text == "" {
		return nil, fmt.Errorf("amount is required")
	}
	value, ok := new(big.Rat).SetString(text)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", amount)
	}
	value.Mul(value, new(big.Rat).SetInt(pow10(decimals)))
	if !value.IsInt() {
		return nil, fmt.Errorf("amount %q has more than %d decimal places", amount, decimals)
	}
	return new(big.Int).Set(value.Num()), nil
}

// FormatUnits renders base units as a decimal string without trailing zeros.
func FormatUnits(value *big.Int, decimals uint8) string {
	if value == nil {
		return "0"
	}
	text := new(big.Rat).SetFrac(value, pow10(decimals)).FloatString(int(decimals))
	if strings.Contains(text, ".") {
		text = strings.TrimRight(strings.TrimRight(text, "0"), ".")
	}
	return text
}

func pow10(decimals uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
}
