package leverage

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// ToBaseUnits converts a human decimal amount ("0.0005") into token base units.
// Amounts with more fractional digits than the token supports are rejected
// instead of being rounded.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %q", amount)
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, fmt.Errorf("amount %q exceeds %d decimals", amount, decimals)
	}
	return shifted.BigInt(), nil
}

// FormatUnits renders v with the given number of implied decimals.
func FormatUnits(v *big.Int, decimals int32) string {
	if v == nil {
		return "0"
	}
	return decimal.NewFromBigInt(v, -decimals).String()
}

// FormatLeverage renders a scaled leverage as "2.50x".
func FormatLeverage(lev *big.Int) string {
	if lev == nil {
		return "0.00x"
	}
	return decimal.NewFromBigInt(lev, -2).StringFixed(2) + "x"
}
