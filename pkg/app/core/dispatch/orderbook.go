package dispatch

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/transaction"
)

// OrderBookClient mirrors trigger orders onto the OrderBook. The instrument
// token is used as path, collateral and index.
type OrderBookClient struct {
	book        common.Address
	decreaseFee *big.Int
	queue       Submitter
}

func NewOrderBookClient(book common.Address, decreaseFee *big.Int, queue Submitter) *OrderBookClient {
	fee := new(big.Int)
	if decreaseFee != nil {
		fee.Set(decreaseFee)
	}
	return &OrderBookClient{book: book, decreaseFee: fee, queue: queue}
}

var _ Dispatcher = (*OrderBookClient)(nil)

func (c *OrderBookClient) Increase(ctx context.Context, req IncreaseRequest) (*Result, error) {
	f, err := readCommon(req.Event)
	if err != nil {
		return nil, err
	}
	above, err := req.Event.TriggerAboveThreshold()
	if err != nil {
		return nil, err
	}
	p := &transaction.IncreaseOrderPayload{
		Path:                  []common.Address{f.index},
		AmountIn:              req.AmountIn,
		IndexToken:            f.index,
		MinOut:                new(big.Int),
		SizeDelta:             req.Delta.SizeDelta,
		CollateralToken:       f.index,
		IsLong:                f.isLong,
		TriggerPrice:          f.price,
		TriggerAboveThreshold: above,
		ExecutionFee:          f.fee,
		Attached:              f.fee,
	}
	tx, err := submit(ctx, c.queue, c.book, p)
	if err != nil {
		return nil, err
	}
	return increaseResult(tx, p, req.Delta), nil
}

func (c *OrderBookClient) Decrease(ctx context.Context, req DecreaseRequest) (*Result, error) {
	index, err := req.Event.IndexToken()
	if err != nil {
		return nil, err
	}
	isLong, err := req.Event.IsLong()
	if err != nil {
		return nil, err
	}
	price, err := req.Event.Price()
	if err != nil {
		return nil, err
	}
	above, err := req.Event.TriggerAboveThreshold()
	if err != nil {
		return nil, err
	}
	p := &transaction.DecreaseOrderPayload{
		IndexToken:            index,
		SizeDelta:             req.Size,
		CollateralToken:       index,
		CollateralDelta:       new(big.Int),
		IsLong:                isLong,
		TriggerPrice:          price,
		TriggerAboveThreshold: above,
		Attached:              c.decreaseFee,
	}
	tx, err := submit(ctx, c.queue, c.book, p)
	if err != nil {
		return nil, err
	}
	return &Result{Tx: tx, Venue: p.Venue(), Method: p.Method(), SizeDelta: req.Size}, nil
}
