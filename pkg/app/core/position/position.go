package position

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/market"
	"github.com/uhyunpark/mirrorperp/pkg/chain"
)

// WordsPerPosition is the stride of Reader.getPositions' flat result.
const WordsPerPosition = 9

// Record is one position as reported by the venue's Reader contract.
type Record struct {
	Size              *big.Int
	Collateral        *big.Int
	AveragePrice      *big.Int
	EntryFundingRate  *big.Int
	HasRealisedProfit bool
	RealisedPnl       *big.Int
	LastIncreasedTime *big.Int
	HasProfit         bool
	Delta             *big.Int
}

// Open reports whether the record holds a non-zero size.
func (r Record) Open() bool { return r.Size != nil && r.Size.Sign() > 0 }

// Querier looks up the operator's open positions.
type Querier interface {
	GetPosition(ctx context.Context, symbol string, isLong bool) ([]Record, error)
}

// ReaderQuery reads positions through the venue's Reader contract.
type ReaderQuery struct {
	caller   chain.Caller
	reader   common.Address
	vault    common.Address
	account  common.Address
	registry *market.Registry
}

func NewReaderQuery(caller chain.Caller, reader, vault, account common.Address, registry *market.Registry) *ReaderQuery {
	return &ReaderQuery{caller: caller, reader: reader, vault: vault, account: account, registry: registry}
}

var _ Querier = (*ReaderQuery)(nil)

// GetPosition returns the open positions for symbol in the given direction;
// empty when none is open. The instrument token is both collateral and index.
func (q *ReaderQuery) GetPosition(ctx context.Context, symbol string, isLong bool) ([]Record, error) {
	inst, ok := q.registry.Instrument(symbol)
	if !ok {
		return nil, fmt.Errorf("unknown instrument %q", symbol)
	}
	tokens := []common.Address{inst.Address}
	out, err := chain.Call(ctx, q.caller, chain.ReaderABI, q.reader, "getPositions",
		q.vault, q.account, tokens, tokens, []bool{isLong})
	if err != nil {
		return nil, err
	}
	words, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getPositions: unexpected result %T", out[0])
	}
	return Decode(words)
}

// Decode splits the flat word list into records and drops empty slots.
func Decode(words []*big.Int) ([]Record, error) {
	if len(words)%WordsPerPosition != 0 {
		return nil, fmt.Errorf("getPositions: %d words is not a multiple of %d", len(words), WordsPerPosition)
	}
	var out []Record
	for i := 0; i < len(words); i += WordsPerPosition {
		w := words[i : i+WordsPerPosition]
		r := Record{
			Size:              w[0],
			Collateral:        w[1],
			AveragePrice:      w[2],
			EntryFundingRate:  w[3],
			HasRealisedProfit: w[4].Sign() != 0,
			RealisedPnl:       w[5],
			LastIncreasedTime: w[6],
			HasProfit:         w[7].Sign() != 0,
			Delta:             w[8],
		}
		if r.Open() {
			out = append(out, r)
		}
	}
	return out, nil
}
