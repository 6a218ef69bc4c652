package chain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/uhyunpark/mirrorperp/pkg/util"
)

var ErrReverted = errors.New("transaction reverted")

const DefaultPollInterval = 2 * time.Second

// Confirmer waits until a transaction is buried under the configured number
// of blocks.
type Confirmer struct {
	backend       ReceiptReader
	confirmations uint64
	poll          time.Duration
	clock         util.Clock
}

func NewConfirmer(backend ReceiptReader, confirmations uint64, poll time.Duration, clock util.Clock) *Confirmer {
	if confirmations == 0 {
		confirmations = 1
	}
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Confirmer{backend: backend, confirmations: confirmations, poll: poll, clock: clock}
}

// Wait returns the receipt once the inclusion block has enough confirmations.
// A failed receipt yields ErrReverted.
func (c *Confirmer) Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	hash := tx.Hash()
	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		switch {
		case errors.Is(err, ethereum.NotFound):
		case err != nil:
			return nil, fmt.Errorf("receipt %s: %w", hash.Hex(), err)
		case receipt.Status == types.ReceiptStatusFailed:
			return receipt, fmt.Errorf("%w: %s", ErrReverted, hash.Hex())
		default:
			head, err := c.backend.BlockNumber(ctx)
			if err != nil {
				return nil, fmt.Errorf("block number: %w", err)
			}
			included := receipt.BlockNumber.Uint64()
			if head >= included && head-included+1 >= c.confirmations {
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-c.clock.After(c.poll):
		}
	}
}
