package dispatch

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/event"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/leverage"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/market"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/mempool"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/transaction"
)

// Submitter hands encoded calls to the operator's submission queue.
type Submitter interface {
	Submit(ctx context.Context, req mempool.Request) (*types.Transaction, error)
}

// IncreaseRequest mirrors an increase with an already computed delta.
type IncreaseRequest struct {
	Instrument market.Instrument
	Event      event.Normalized
	AmountIn   *big.Int
	Delta      leverage.Delta
}

// DecreaseRequest closes Size of the operator's open position.
type DecreaseRequest struct {
	Instrument market.Instrument
	Event      event.Normalized
	Size       *big.Int
}

// Result is a submitted mirror order. Sizing fields are nil for decreases.
type Result struct {
	Tx              *types.Transaction
	Venue           transaction.Venue
	Method          string
	SizeDelta       *big.Int
	Leverage        *big.Int
	Collateral      *big.Int
	EventCollateral *big.Int
}

// Dispatcher submits mirror orders to one venue.
type Dispatcher interface {
	Increase(ctx context.Context, req IncreaseRequest) (*Result, error)
	Decrease(ctx context.Context, req DecreaseRequest) (*Result, error)
}

func submit(ctx context.Context, q Submitter, to common.Address, p transaction.Payload) (*types.Transaction, error) {
	data, err := transaction.Encode(p)
	if err != nil {
		return nil, err
	}
	tx, err := q.Submit(ctx, mempool.Request{To: to, Data: data, Value: p.Value(), Label: p.Method()})
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", p.Method(), err)
	}
	return tx, nil
}

func increaseResult(tx *types.Transaction, p transaction.Payload, d leverage.Delta) *Result {
	return &Result{
		Tx:              tx,
		Venue:           p.Venue(),
		Method:          p.Method(),
		SizeDelta:       d.SizeDelta,
		Leverage:        d.Leverage,
		Collateral:      d.CollateralUSD,
		EventCollateral: d.EventCollateral,
	}
}

// eventFields holds the arguments every mirrored kind carries.
type eventFields struct {
	index  common.Address
	isLong bool
	price  *big.Int
	fee    *big.Int
}

func readCommon(ev event.Normalized) (eventFields, error) {
	var f eventFields
	var err error
	if f.index, err = ev.IndexToken(); err != nil {
		return f, err
	}
	if f.isLong, err = ev.IsLong(); err != nil {
		return f, err
	}
	if f.price, err = ev.Price(); err != nil {
		return f, err
	}
	if f.fee, err = ev.ExecutionFee(); err != nil {
		return f, err
	}
	return f, nil
}
