package leverage

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bi(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big int literal: " + s)
	}
	return v
}

func TestComputeBTCMarketFill(t *testing.T) {
	c := NewCalculator(nil)

	in := Input{
		AmountIn:      big.NewInt(100000),
		Price:         bi("41038762950000000000000000000000000"),
		SizeDelta:     bi("324063306240000000000000000000000"),
		LocalAmountIn: bi("500000000000000"), // 0.0005 at 18 decimals
		Decimals:      18,
	}

	d, err := c.Compute(in)
	require.NoError(t, err)

	wantCollateral := new(big.Int).Mul(in.AmountIn, in.Price)
	wantLev := new(big.Int).Mul(in.SizeDelta, big.NewInt(10_000_000_000))
	wantLev.Quo(wantLev, wantCollateral)

	assert.Equal(t, 0, d.EventCollateral.Cmp(wantCollateral))
	assert.Equal(t, 0, d.Leverage.Cmp(wantLev))
	assert.Equal(t, int64(789), d.Leverage.Int64())
	assert.Equal(t, "161897919837750000000000000000000", d.SizeDelta.String())
	assert.Equal(t, "205193814750000000000000000000", d.CollateralUSD.String())
	assert.Equal(t, "7.89x", FormatLeverage(d.Leverage))
}

func TestLeverageTruncatesTowardZero(t *testing.T) {
	c := NewCalculator(big.NewInt(100))

	tests := []struct {
		name       string
		sizeDelta  int64
		collateral int64
		want       int64
	}{
		{name: "exact", sizeDelta: 5, collateral: 2, want: 250},
		{name: "truncates", sizeDelta: 1, collateral: 3, want: 33},
		{name: "below one unit", sizeDelta: 1, collateral: 1000, want: 0},
		{name: "negative truncates toward zero", sizeDelta: -1, collateral: 3, want: -33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.Leverage(big.NewInt(tt.sizeDelta), big.NewInt(tt.collateral))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestLeverageZeroCollateral(t *testing.T) {
	c := NewCalculator(nil)

	_, err := c.Leverage(big.NewInt(10), big.NewInt(0))
	assert.ErrorIs(t, err, ErrZeroCollateral)

	_, err = c.Compute(Input{
		AmountIn:      big.NewInt(0),
		Price:         big.NewInt(123),
		SizeDelta:     big.NewInt(10),
		LocalAmountIn: big.NewInt(1),
		Decimals:      8,
	})
	assert.ErrorIs(t, err, ErrZeroCollateral)
}

func TestComputeMissingInput(t *testing.T) {
	_, err := NewCalculator(nil).Compute(Input{Price: big.NewInt(1)})
	assert.ErrorIs(t, err, ErrMissingInput)
}

// At 1.00x the local size reduces to localAmountIn * price / 10^decimals.
func TestLocalSizeDeltaAtUnitLeverage(t *testing.T) {
	c := NewCalculator(nil)

	tests := []struct {
		local    string
		price    string
		decimals uint8
	}{
		{local: "50000", price: "41038762950000000000000000000000000", decimals: 8},
		{local: "500000000000000", price: "2250000000000000000000000000000000", decimals: 18},
		{local: "1", price: "7", decimals: 0},
		{local: "123456789", price: "1000000000000000000000000000000", decimals: 6},
	}

	for _, tt := range tests {
		local, price := bi(tt.local), bi(tt.price)
		got := c.LocalSizeDelta(local, big.NewInt(100), price, tt.decimals)

		want := new(big.Int).Mul(local, price)
		want.Quo(want, pow10(tt.decimals))
		assert.Equal(t, 0, got.Cmp(want), "local=%s price=%s decimals=%d", tt.local, tt.price, tt.decimals)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	c := NewCalculator(nil)
	in := Input{
		AmountIn:      bi("250000000"),
		Price:         bi("1850000000000000000000000000000000"),
		SizeDelta:     bi("92500000000000000000000000000000000"),
		LocalAmountIn: bi("10000000000000000"),
		Decimals:      18,
	}

	first, err := c.Compute(in)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := c.Compute(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
	// inputs are not mutated
	assert.Equal(t, "250000000", in.AmountIn.String())
}

func TestNewCalculatorScale(t *testing.T) {
	assert.Equal(t, DefaultScale.String(), NewCalculator(nil).Scale().String())
	assert.Equal(t, DefaultScale.String(), NewCalculator(big.NewInt(0)).Scale().String())
	assert.Equal(t, "1000", NewCalculator(big.NewInt(1000)).Scale().String())
}
