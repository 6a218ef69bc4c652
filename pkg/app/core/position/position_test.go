package position

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/market"
	"github.com/uhyunpark/mirrorperp/pkg/chain"
)

var (
	readerAddr = common.HexToAddress("0x0000000000000000000000000000000000000010")
	vaultAddr  = common.HexToAddress("0x0000000000000000000000000000000000000011")
	operator   = common.HexToAddress("0x0000000000000000000000000000000000000012")
	btcToken   = common.HexToAddress("0x062e66477faf219f25d27dced647bf57c3107d52")
)

type fakeCaller struct {
	words []*big.Int
	msg   ethereum.CallMsg
}

func (f *fakeCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.msg = msg
	return chain.ReaderABI.Methods["getPositions"].Outputs.Pack(f.words)
}

func words(vals ...int64) []*big.Int {
	out := make([]*big.Int, len(vals))
	for i, v := range vals {
		out[i] = big.NewInt(v)
	}
	return out
}

func registry(t *testing.T) *market.Registry {
	t.Helper()
	r, err := market.NewRegistryFrom([]market.Instrument{{Symbol: "btc", Address: btcToken, TargetSize: "0.0005", Decimals: 8}})
	require.NoError(t, err)
	return r
}

func TestGetPosition(t *testing.T) {
	tests := []struct {
		name     string
		words    []*big.Int
		wantOpen int
		wantSize string
	}{
		{"no position reports zero slot", words(0, 0, 0, 0, 0, 0, 0, 0, 0), 0, ""},
		{"open long", words(5000, 1000, 30000, 1, 0, 0, 1700000000, 1, 12), 1, "5000"},
		{"empty result", nil, 0, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caller := &fakeCaller{words: tt.words}
			q := NewReaderQuery(caller, readerAddr, vaultAddr, operator, registry(t))

			got, err := q.GetPosition(context.Background(), "btc", true)
			require.NoError(t, err)
			require.Len(t, got, tt.wantOpen)
			if tt.wantOpen > 0 {
				assert.Equal(t, tt.wantSize, got[0].Size.String())
				assert.True(t, got[0].HasProfit)
				assert.False(t, got[0].HasRealisedProfit)
			}
			assert.Equal(t, readerAddr, *caller.msg.To)
		})
	}
}

func TestGetPositionUnknownInstrument(t *testing.T) {
	q := NewReaderQuery(&fakeCaller{}, readerAddr, vaultAddr, operator, registry(t))
	_, err := q.GetPosition(context.Background(), "doge", false)
	assert.Error(t, err)
}

func TestDecodeRejectsRaggedResult(t *testing.T) {
	_, err := Decode(words(1, 2, 3))
	assert.Error(t, err)
}
