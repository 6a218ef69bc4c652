package chain

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/event"
	"github.com/uhyunpark/mirrorperp/pkg/util"
)

const DefaultResubscribeBackoff = 3 * time.Second

// Subscriber follows venue logs and forwards decoded events. A failed
// subscription is re-established after a fixed backoff.
type Subscriber struct {
	backend   LogSubscriber
	decoder   *Decoder
	addresses []common.Address
	clock     util.Clock
	backoff   time.Duration
	log       *zap.SugaredLogger
}

func NewSubscriber(backend LogSubscriber, decoder *Decoder, addresses []common.Address, clock util.Clock, log *zap.SugaredLogger) *Subscriber {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Subscriber{
		backend:   backend,
		decoder:   decoder,
		addresses: addresses,
		clock:     clock,
		backoff:   DefaultResubscribeBackoff,
		log:       log,
	}
}

// SetBackoff overrides the delay between resubscription attempts.
func (s *Subscriber) SetBackoff(d time.Duration) { s.backoff = d }

// Run blocks until ctx is done, sending decoded events to out.
func (s *Subscriber) Run(ctx context.Context, out chan<- event.RawEvent) error {
	query := ethereum.FilterQuery{
		Addresses: s.addresses,
		Topics:    s.decoder.Topics(),
	}
	for {
		err := s.follow(ctx, query, out)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.log.Warnw("subscription_lost", "err", err, "retry_in", s.backoff)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clock.After(s.backoff):
		}
	}
}

func (s *Subscriber) follow(ctx context.Context, query ethereum.FilterQuery, out chan<- event.RawEvent) error {
	logs := make(chan types.Log, 64)
	sub, err := s.backend.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()
	s.log.Infow("subscribed", "contracts", len(s.addresses))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-sub.Err():
			return err
		case lg := <-logs:
			if lg.Removed {
				s.log.Infow("log_removed", "tx", lg.TxHash.Hex(), "index", lg.Index)
				continue
			}
			raw, err := s.decoder.Decode(lg)
			if err != nil {
				s.log.Debugw("log_undecodable", "tx", lg.TxHash.Hex(), "err", err)
				continue
			}
			select {
			case out <- raw:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
