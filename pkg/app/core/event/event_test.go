package event

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	btc     = common.HexToAddress("0x062E66477Faf219F25D27dCED647BF57C3107d52")
	account = common.HexToAddress("0xd35200d41217b9549b1a5bd7765409ec3bf480b3")
)

func marketIncreaseRecord() *Record {
	return NewRecord(NameCreateIncreasePosition,
		[]string{"account", "path", "indexToken", "amountIn", "minOut", "sizeDelta", "isLong", "acceptablePrice", "executionFee"},
		[]any{
			account,
			[]common.Address{btc},
			btc,
			big.NewInt(100000),
			big.NewInt(0),
			big.NewInt(324063306),
			true,
			big.NewInt(41038762),
			big.NewInt(4),
		})
}

func TestNormalizeDropsIndexKeys(t *testing.T) {
	raw := RawEvent{
		Log:   types.Log{TxHash: common.HexToHash("0xabc"), Index: 7},
		Parts: []any{account, "ignored", marketIncreaseRecord()},
	}

	n, ok := Normalize(raw)
	require.True(t, ok)
	assert.Equal(t, IncreaseMarket, n.Kind)
	assert.Equal(t, NameCreateIncreasePosition, n.Name)
	assert.Len(t, n.Args, 9)
	for k := range n.Args {
		assert.False(t, isIndexKey(k), "index key %q survived", k)
	}
	assert.Equal(t, raw.Key(), n.Key)
}

func TestNormalizeFailures(t *testing.T) {
	tests := []struct {
		name  string
		parts []any
	}{
		{name: "no parts", parts: nil},
		{name: "trailing element not a record", parts: []any{account, "x"}},
		{name: "nil record", parts: []any{(*Record)(nil)}},
		{name: "missing event name", parts: []any{&Record{Args: map[string]any{"a": 1}}}},
		{name: "missing args", parts: []any{&Record{Event: NameCreateIncreaseOrder}}},
		{name: "event not mirrored", parts: []any{NewRecord("ExecuteIncreasePosition", []string{"account"}, []any{account})}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := Normalize(RawEvent{Parts: tt.parts})
			assert.False(t, ok)
		})
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name     string
		kind     Kind
		increase bool
		market   bool
	}{
		{NameCreateIncreasePosition, IncreaseMarket, true, true},
		{NameCreateIncreaseOrder, IncreaseTrigger, true, false},
		{NameCreateDecreasePosition, DecreaseMarket, false, true},
		{NameCreateDecreaseOrder, DecreaseTrigger, false, false},
		{"Transfer", KindUnknown, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			k := KindOf(tt.name)
			assert.Equal(t, tt.kind, k)
			assert.Equal(t, tt.increase, k.IsIncrease())
			assert.Equal(t, tt.market, k.IsMarket())
		})
	}
}

func TestAccessors(t *testing.T) {
	n, ok := Normalize(RawEvent{Parts: []any{marketIncreaseRecord()}})
	require.True(t, ok)

	idx, err := n.IndexToken()
	require.NoError(t, err)
	assert.Equal(t, btc, idx)

	price, err := n.Price()
	require.NoError(t, err)
	assert.Equal(t, int64(41038762), price.Int64())

	amountIn, err := n.AmountIn()
	require.NoError(t, err)
	assert.Equal(t, int64(100000), amountIn.Int64())

	path, err := n.Path()
	require.NoError(t, err)
	assert.Equal(t, []common.Address{btc}, path)

	assert.True(t, n.IsAccount(common.HexToAddress("0xD35200D41217B9549B1A5BD7765409EC3BF480B3")))
	assert.True(t, n.IsAccount(common.HexToAddress("d35200d41217b9549b1a5bd7765409ec3bf480b3")))
	assert.False(t, n.IsAccount(common.HexToAddress("0x0000000000000000000000000000000000000001")))

	// accessors hand out copies
	amountIn.SetInt64(1)
	again, _ := n.AmountIn()
	assert.Equal(t, int64(100000), again.Int64())
}

func TestTriggerAccessors(t *testing.T) {
	rec := NewRecord(NameCreateIncreaseOrder,
		[]string{"account", "purchaseToken", "purchaseTokenAmount", "indexToken", "sizeDelta", "isLong", "triggerPrice", "triggerAboveThreshold", "executionFee"},
		[]any{account, btc, big.NewInt(5000), btc, big.NewInt(1), false, big.NewInt(99), true, big.NewInt(4)})

	n, ok := Normalize(RawEvent{Parts: []any{rec}})
	require.True(t, ok)

	price, err := n.Price()
	require.NoError(t, err)
	assert.Equal(t, int64(99), price.Int64())

	amountIn, err := n.AmountIn()
	require.NoError(t, err)
	assert.Equal(t, int64(5000), amountIn.Int64())

	path, err := n.Path()
	require.NoError(t, err)
	assert.Equal(t, []common.Address{btc}, path, "trigger events fall back to the index token")

	above, err := n.TriggerAboveThreshold()
	require.NoError(t, err)
	assert.True(t, above)
}

func TestMalformedArgs(t *testing.T) {
	args := Args{
		"account":   "not-an-address",
		"isLong":    "yes",
		"sizeDelta": 12.5,
		"path":      []string{"0xzz"},
	}

	_, err := args.Address("account")
	assert.ErrorIs(t, err, ErrMalformedArg)
	_, err = args.Bool("isLong")
	assert.ErrorIs(t, err, ErrMalformedArg)
	_, err = args.BigInt("sizeDelta")
	assert.ErrorIs(t, err, ErrMalformedArg)
	_, err = args.Addresses("path")
	assert.ErrorIs(t, err, ErrMalformedArg)
	_, err = args.BigInt("missing")
	assert.ErrorIs(t, err, ErrMalformedArg)
}
