package mempool

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/uhyunpark/mirrorperp/pkg/chain"
	"github.com/uhyunpark/mirrorperp/pkg/crypto"
)

var (
	ErrQueueClosed    = errors.New("submission queue closed")
	ErrSenderMismatch = errors.New("signed sender is not the queue account")
)

// DefaultDepth bounds how many requests may wait for the consumer.
const DefaultDepth = 64

// TxSigner signs on behalf of the single account a Queue serves.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Request is a contract call to be signed and sent.
type Request struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	Label string
}

type result struct {
	tx  *types.Transaction
	err error
}

type pending struct {
	ctx  context.Context
	req  Request
	done chan result
}

// Stats counts queue outcomes since start.
type Stats struct {
	Sent    uint64 `json:"sent"`
	Failed  uint64 `json:"failed"`
	Pending int    `json:"pending"`
}

// Queue serializes submissions for one signing account. A single consumer
// assigns nonces in FIFO order; a failed send resynchronises the nonce from
// the node before the next request.
type Queue struct {
	backend chain.TxSender
	signer  TxSigner
	chainID *big.Int
	log     *zap.SugaredLogger

	reqs   chan *pending
	closed chan struct{}

	// consumer-owned
	nonce  uint64
	synced bool

	sent   atomic.Uint64
	failed atomic.Uint64
}

func NewQueue(backend chain.TxSender, signer TxSigner, chainID *big.Int, log *zap.SugaredLogger, depth int) *Queue {
	if depth <= 0 {
		depth = DefaultDepth
	}
	return &Queue{
		backend: backend,
		signer:  signer,
		chainID: new(big.Int).Set(chainID),
		log:     log,
		reqs:    make(chan *pending, depth),
		closed:  make(chan struct{}),
	}
}

// Run consumes requests until ctx is done. Requests still waiting are
// answered with ErrQueueClosed.
func (q *Queue) Run(ctx context.Context) {
	defer func() {
		close(q.closed)
		for {
			select {
			case p := <-q.reqs:
				p.done <- result{err: ErrQueueClosed}
			default:
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case p := <-q.reqs:
			tx, err := q.process(p)
			if err != nil {
				q.failed.Add(1)
			} else {
				q.sent.Add(1)
			}
			p.done <- result{tx: tx, err: err}
		}
	}
}

// Submit enqueues req and blocks until it is sent or fails. ctx is honoured
// until the consumer picks the request up and bounds the RPC calls after.
func (q *Queue) Submit(ctx context.Context, req Request) (*types.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p := &pending{ctx: ctx, req: req, done: make(chan result, 1)}
	select {
	case q.reqs <- p:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-q.closed:
		return nil, ErrQueueClosed
	}

	select {
	case r := <-p.done:
		return r.tx, r.err
	case <-q.closed:
		// Run may have answered just before closing
		select {
		case r := <-p.done:
			return r.tx, r.err
		default:
			return nil, ErrQueueClosed
		}
	}
}

// Address is the account whose nonces this queue owns.
func (q *Queue) Address() common.Address { return q.signer.Address() }

func (q *Queue) Len() int { return len(q.reqs) }

func (q *Queue) Stats() Stats {
	return Stats{Sent: q.sent.Load(), Failed: q.failed.Load(), Pending: q.Len()}
}

func (q *Queue) process(p *pending) (*types.Transaction, error) {
	ctx := p.ctx
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	from := q.signer.Address()

	if !q.synced {
		n, err := q.backend.PendingNonceAt(ctx, from)
		if err != nil {
			return nil, fmt.Errorf("pending nonce: %w", err)
		}
		q.nonce, q.synced = n, true
	}

	value := p.req.Value
	if value == nil {
		value = new(big.Int)
	}
	gasPrice, err := q.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("gas price: %w", err)
	}
	to := p.req.To
	gas, err := q.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:     from,
		To:       &to,
		GasPrice: gasPrice,
		Value:    value,
		Data:     p.req.Data,
	})
	if err != nil {
		return nil, fmt.Errorf("estimate gas for %s: %w", p.req.Label, err)
	}
	gas += gas / 5

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    q.nonce,
		To:       &to,
		Value:    value,
		Gas:      gas,
		GasPrice: gasPrice,
		Data:     p.req.Data,
	})
	signed, err := q.signer.SignTx(tx, q.chainID)
	if err != nil {
		return nil, err
	}
	// A mismatched key would spend another account's nonce.
	sender, err := crypto.TxSender(signed)
	if err != nil {
		return nil, fmt.Errorf("recover sender of %s: %w", p.req.Label, err)
	}
	if sender != from {
		q.log.Errorw("sender_mismatch", "label", p.req.Label, "want", from.Hex(), "got", sender.Hex())
		return nil, fmt.Errorf("%w: %s", ErrSenderMismatch, sender.Hex())
	}
	if err := q.backend.SendTransaction(ctx, signed); err != nil {
		q.synced = false
		q.log.Warnw("send_failed", "label", p.req.Label, "nonce", q.nonce, "err", err)
		return nil, fmt.Errorf("send %s: %w", p.req.Label, err)
	}
	q.log.Infow("tx_sent", "label", p.req.Label, "nonce", q.nonce, "hash", signed.Hash().Hex(), "gas", gas)
	q.nonce++
	return signed, nil
}
