package dispatch

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/transaction"
)

// RouterClient mirrors market orders through the PositionRouter.
type RouterClient struct {
	router   common.Address
	receiver common.Address
	deposit  *big.Int
	queue    Submitter
}

// NewRouterClient sends every request with deposit attached; decreases pay
// out to receiver.
func NewRouterClient(router, receiver common.Address, deposit *big.Int, queue Submitter) *RouterClient {
	return &RouterClient{router: router, receiver: receiver, deposit: new(big.Int).Set(deposit), queue: queue}
}

var _ Dispatcher = (*RouterClient)(nil)

func (c *RouterClient) Increase(ctx context.Context, req IncreaseRequest) (*Result, error) {
	f, err := readCommon(req.Event)
	if err != nil {
		return nil, err
	}
	path, err := req.Event.Path()
	if err != nil {
		return nil, err
	}
	p := &transaction.IncreasePositionPayload{
		Params: transaction.IncreasePositionParams{
			Path:            path,
			IndexToken:      f.index,
			SizeDelta:       req.Delta.SizeDelta,
			IsLong:          f.isLong,
			AcceptablePrice: f.price,
			MinOut:          new(big.Int),
			ExecutionFee:    f.fee,
			PriceData:       [][]byte{},
		},
		AmountIn: req.AmountIn,
		Deposit:  c.deposit,
	}
	tx, err := submit(ctx, c.queue, c.router, p)
	if err != nil {
		return nil, err
	}
	return increaseResult(tx, p, req.Delta), nil
}

func (c *RouterClient) Decrease(ctx context.Context, req DecreaseRequest) (*Result, error) {
	f, err := readCommon(req.Event)
	if err != nil {
		return nil, err
	}
	path, err := req.Event.Path()
	if err != nil {
		return nil, err
	}
	p := &transaction.DecreasePositionPayload{
		Params: transaction.DecreasePositionParams{
			Path:            path,
			IndexToken:      f.index,
			CollateralDelta: new(big.Int),
			SizeDelta:       req.Size,
			IsLong:          f.isLong,
			Receiver:        c.receiver,
			AcceptablePrice: f.price,
			MinOut:          new(big.Int),
			ExecutionFee:    f.fee,
			PriceData:       [][]byte{},
		},
		Deposit: c.deposit,
	}
	tx, err := submit(ctx, c.queue, c.router, p)
	if err != nil {
		return nil, err
	}
	return &Result{Tx: tx, Venue: p.Venue(), Method: p.Method(), SizeDelta: req.Size}, nil
}
