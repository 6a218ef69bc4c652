package leverage

import (
	"errors"
	"fmt"
	"math/big"
)

// DefaultScale is the factor applied to sizeDelta before dividing by collateral.
// With protocol prices at 1e30 and 8-decimal index tokens it leaves two implied
// decimal digits in the result: 250 means 2.50x.
var DefaultScale = big.NewInt(10_000_000_000)

// DisplayDivisor converts a scaled leverage into its "x" multiple.
var DisplayDivisor = big.NewInt(100)

var (
	ErrZeroCollateral = errors.New("leverage: collateral is zero")
	ErrMissingInput   = errors.New("leverage: missing input")
)

// Input carries the tracked trader's fill data and the operator's sizing.
//
//	AmountIn      tracked trader's amount in (amountIn / purchaseTokenAmount)
//	Price         acceptablePrice for market orders, triggerPrice for trigger orders
//	SizeDelta     tracked trader's reported size delta
//	LocalAmountIn operator's target size in token base units
//	Decimals      index token precision
type Input struct {
	AmountIn      *big.Int
	Price         *big.Int
	SizeDelta     *big.Int
	LocalAmountIn *big.Int
	Decimals      uint8
}

// Delta is the locally sized position change derived from one event.
// All values are fixed-point integers in protocol scale.
type Delta struct {
	SizeDelta       *big.Int // operator size delta to submit
	Leverage        *big.Int // scaled leverage, 100 = 1.00x
	CollateralUSD   *big.Int // operator collateral implied by SizeDelta / Leverage
	EventCollateral *big.Int // tracked trader's amountIn * price
}

// Calculator derives leverage and locally sized deltas.
// It holds no state besides the scale and is safe for concurrent use.
type Calculator struct {
	scale *big.Int
}

// NewCalculator creates a calculator with the given leverage scale.
// A nil or non-positive scale falls back to DefaultScale.
func NewCalculator(scale *big.Int) *Calculator {
	if scale == nil || scale.Sign() <= 0 {
		scale = DefaultScale
	}
	return &Calculator{scale: new(big.Int).Set(scale)}
}

// Scale returns a copy of the configured leverage scale
func (c *Calculator) Scale() *big.Int { return new(big.Int).Set(c.scale) }

// Collateral returns amountIn * price
func (c *Calculator) Collateral(amountIn, price *big.Int) *big.Int {
	return new(big.Int).Mul(amountIn, price)
}

// Leverage returns sizeDelta * scale / collateral, truncated toward zero
func (c *Calculator) Leverage(sizeDelta, collateral *big.Int) (*big.Int, error) {
	if sizeDelta == nil || collateral == nil {
		return nil, ErrMissingInput
	}
	if collateral.Sign() == 0 {
		return nil, ErrZeroCollateral
	}
	num := new(big.Int).Mul(sizeDelta, c.scale)
	return num.Quo(num, collateral), nil
}

// LocalSizeDelta returns localAmountIn * leverage * price / 100 / 10^decimals
func (c *Calculator) LocalSizeDelta(localAmountIn, leverage, price *big.Int, decimals uint8) *big.Int {
	out := new(big.Int).Mul(localAmountIn, leverage)
	out.Mul(out, price)
	out.Quo(out, DisplayDivisor)
	return out.Quo(out, pow10(decimals))
}

// Compute runs the full derivation for one increase event.
func (c *Calculator) Compute(in Input) (Delta, error) {
	if in.AmountIn == nil || in.Price == nil || in.SizeDelta == nil || in.LocalAmountIn == nil {
		return Delta{}, ErrMissingInput
	}

	eventCollateral := c.Collateral(in.AmountIn, in.Price)
	lev, err := c.Leverage(in.SizeDelta, eventCollateral)
	if err != nil {
		return Delta{}, fmt.Errorf("amountIn=%s price=%s: %w", in.AmountIn, in.Price, err)
	}

	size := c.LocalSizeDelta(in.LocalAmountIn, lev, in.Price, in.Decimals)

	// Zero leverage reports zero collateral rather than dividing by zero.
	collateral := new(big.Int)
	if lev.Sign() != 0 {
		collateral.Quo(size, lev)
	}

	return Delta{
		SizeDelta:       size,
		Leverage:        lev,
		CollateralUSD:   collateral,
		EventCollateral: eventCollateral,
	}, nil
}

func pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}
