package perp

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/dispatch"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/event"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/leverage"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/position"
	"github.com/uhyunpark/mirrorperp/pkg/storage"
	"github.com/uhyunpark/mirrorperp/pkg/util"
)

// State is the handler's progress through one event.
type State int

const (
	StateIdle State = iota
	StateFiltering
	StateComputing
	StateQuerying
	StateDispatching
	StateConfirming
)

func (s State) String() string {
	switch s {
	case StateFiltering:
		return "filtering"
	case StateComputing:
		return "computing"
	case StateQuerying:
		return "querying"
	case StateDispatching:
		return "dispatching"
	case StateConfirming:
		return "confirming"
	default:
		return "idle"
	}
}

// Outcome is how an event left the pipeline.
type Outcome int

const (
	OutcomeDiscarded Outcome = iota // not ours; dropped without notice
	OutcomeSkipped                  // ours but not mirrored; logged
	OutcomeMirrored                 // submitted and confirmed
	OutcomeFailed                   // aborted by an error
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeMirrored:
		return "mirrored"
	case OutcomeFailed:
		return "failed"
	default:
		return "discarded"
	}
}

// Confirmer waits for a submitted transaction to be final.
type Confirmer interface {
	Wait(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)
}

type Options struct {
	MirrorTriggerOrders bool
	SubmitTimeout       time.Duration
	ConfirmTimeout      time.Duration
}

func DefaultOptions() Options {
	return Options{
		MirrorTriggerOrders: true,
		SubmitTimeout:       30 * time.Second,
		ConfirmTimeout:      5 * time.Minute,
	}
}

// Deps are the collaborators an Engine drives.
type Deps struct {
	Calculator *leverage.Calculator
	Positions  position.Querier
	Router     dispatch.Dispatcher // market orders
	OrderBook  dispatch.Dispatcher // trigger orders
	Confirmer  Confirmer
	Journal    storage.Journal
	Reporter   Reporter // optional
	Clock      util.Clock
	Log        *zap.SugaredLogger
}

// Stats counts outcomes since start.
type Stats struct {
	Received  uint64 `json:"received"`
	Discarded uint64 `json:"discarded"`
	Skipped   uint64 `json:"skipped"`
	Mirrored  uint64 `json:"mirrored"`
	Failed    uint64 `json:"failed"`
	InFlight  int64  `json:"in_flight"`
}

// Engine mirrors the tracked trader's position events. Each event is handled
// on its own goroutine; submissions are serialized by the dispatchers' queue.
type Engine struct {
	ectx *EngineContext
	deps Deps
	opts Options
	log  *zap.SugaredLogger

	wg        sync.WaitGroup
	received  atomic.Uint64
	discarded atomic.Uint64
	skipped   atomic.Uint64
	mirrored  atomic.Uint64
	failed    atomic.Uint64
	inFlight  atomic.Int64
}

func NewEngine(ectx *EngineContext, deps Deps, opts Options) *Engine {
	if deps.Calculator == nil {
		deps.Calculator = leverage.NewCalculator(nil)
	}
	if deps.Clock == nil {
		deps.Clock = util.RealClock{}
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	return &Engine{ectx: ectx, deps: deps, opts: opts, log: deps.Log}
}

func (e *Engine) Context() *EngineContext { return e.ectx }

func (e *Engine) Stats() Stats {
	return Stats{
		Received:  e.received.Load(),
		Discarded: e.discarded.Load(),
		Skipped:   e.skipped.Load(),
		Mirrored:  e.mirrored.Load(),
		Failed:    e.failed.Load(),
		InFlight:  e.inFlight.Load(),
	}
}

// Run handles events until ctx is done or events is closed, then waits for
// in-flight handlers.
func (e *Engine) Run(ctx context.Context, events <-chan event.RawEvent) error {
	defer e.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-events:
			if !ok {
				return nil
			}
			e.wg.Add(1)
			go func() {
				defer e.wg.Done()
				e.HandleEvent(ctx, raw)
			}()
		}
	}
}

// HandleEvent runs one event through the pipeline. Errors abort only this event.
func (e *Engine) HandleEvent(ctx context.Context, raw event.RawEvent) (Outcome, error) {
	e.received.Add(1)
	e.inFlight.Add(1)
	defer e.inFlight.Add(-1)
	defer e.transition(e.log.With("event_key", raw.Key()), StateIdle)

	outcome, err := e.handle(ctx, raw)
	switch outcome {
	case OutcomeDiscarded:
		e.discarded.Add(1)
	case OutcomeSkipped:
		e.skipped.Add(1)
	case OutcomeMirrored:
		e.mirrored.Add(1)
	case OutcomeFailed:
		e.failed.Add(1)
		e.log.Errorw("mirror_failed", "event_key", raw.Key(), "err", err)
	}
	return outcome, err
}

func (e *Engine) handle(ctx context.Context, raw event.RawEvent) (Outcome, error) {
	ev, ok := event.Normalize(raw)
	if !ok {
		return OutcomeDiscarded, nil
	}
	log := e.log.With("event_key", ev.Key, "event", ev.Name)
	e.transition(log, StateFiltering)

	if !ev.IsAccount(e.ectx.Tracked) {
		return OutcomeDiscarded, nil
	}
	index, err := ev.IndexToken()
	if err != nil {
		return OutcomeDiscarded, nil
	}
	symbol, ok := e.ectx.Registry.ResolveByAddress(index.Hex())
	if !ok {
		log.Infow("mirror_skipped", "reason", "unknown_instrument", "index_token", index.Hex())
		return OutcomeSkipped, nil
	}
	log = log.With("symbol", symbol)
	if !ev.Kind.IsMarket() && !e.opts.MirrorTriggerOrders {
		log.Infow("mirror_skipped", "reason", "trigger_orders_disabled")
		return OutcomeSkipped, nil
	}
	if ev.Kind.IsIncrease() && !e.ectx.IsTradable(symbol) {
		log.Infow("mirror_skipped", "reason", "insufficient_balance")
		return OutcomeSkipped, nil
	}
	first, err := e.deps.Journal.ClaimEvent(ev.Key, e.deps.Clock.Now())
	if err != nil {
		return OutcomeFailed, fmt.Errorf("journal claim: %w", err)
	}
	if !first {
		log.Infow("mirror_skipped", "reason", "already_handled")
		return OutcomeSkipped, nil
	}

	switch ev.Kind {
	case event.IncreaseMarket, event.IncreaseTrigger:
		return e.mirrorIncrease(ctx, log, ev, symbol)
	case event.DecreaseMarket, event.DecreaseTrigger:
		return e.mirrorDecrease(ctx, log, ev, symbol)
	default:
		return OutcomeDiscarded, nil
	}
}

func (e *Engine) dispatcher(k event.Kind) dispatch.Dispatcher {
	if k.IsMarket() {
		return e.deps.Router
	}
	return e.deps.OrderBook
}

func (e *Engine) mirrorIncrease(ctx context.Context, log *zap.SugaredLogger, ev event.Normalized, symbol string) (Outcome, error) {
	e.transition(log, StateComputing)
	inst, _ := e.ectx.Registry.Instrument(symbol)
	local, ok := e.ectx.LocalAmountIn(symbol)
	if !ok {
		return OutcomeFailed, fmt.Errorf("no order size for %s", symbol)
	}
	amountIn, err := ev.AmountIn()
	if err != nil {
		return OutcomeFailed, err
	}
	price, err := ev.Price()
	if err != nil {
		return OutcomeFailed, err
	}
	eventSize, err := ev.SizeDelta()
	if err != nil {
		return OutcomeFailed, err
	}
	isLong, err := ev.IsLong()
	if err != nil {
		return OutcomeFailed, err
	}
	delta, err := e.deps.Calculator.Compute(leverage.Input{
		AmountIn:      amountIn,
		Price:         price,
		SizeDelta:     eventSize,
		LocalAmountIn: local,
		Decimals:      inst.Decimals,
	})
	if err != nil {
		return OutcomeFailed, fmt.Errorf("compute %s: %w", symbol, err)
	}
	log.Infow("mirror_computed",
		"direction", direction(isLong),
		"order_type", orderType(ev.Kind.IsMarket()),
		"price", price.String(),
		"leverage", leverage.FormatLeverage(delta.Leverage),
		"size_delta", delta.SizeDelta.String())

	e.transition(log, StateDispatching)
	rec := e.newRecord(ev, symbol, isLong)
	rec.EventSizeDelta = eventSize.String()
	rec.EventCollateral = delta.EventCollateral.String()
	rec.Leverage = delta.Leverage.String()
	rec.Collateral = delta.CollateralUSD.String()

	subCtx, cancel := context.WithTimeout(ctx, e.opts.SubmitTimeout)
	res, err := e.dispatcher(ev.Kind).Increase(subCtx, dispatch.IncreaseRequest{
		Instrument: inst,
		Event:      ev,
		AmountIn:   local,
		Delta:      delta,
	})
	cancel()

	fetched, executed := increaseLegs(amountIn, local, price, eventSize, delta, inst.Decimals)
	return e.confirm(ctx, log, rec, res, err, fetched, executed)
}

func (e *Engine) mirrorDecrease(ctx context.Context, log *zap.SugaredLogger, ev event.Normalized, symbol string) (Outcome, error) {
	isLong, err := ev.IsLong()
	if err != nil {
		return OutcomeFailed, err
	}

	e.transition(log, StateQuerying)
	positions, err := e.deps.Positions.GetPosition(ctx, symbol, isLong)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("query position %s: %w", symbol, err)
	}
	if len(positions) == 0 {
		log.Infow("mirror_skipped", "reason", "no_open_position", "direction", direction(isLong))
		return OutcomeSkipped, nil
	}
	size := positions[0].Size

	e.transition(log, StateDispatching)
	inst, _ := e.ectx.Registry.Instrument(symbol)
	rec := e.newRecord(ev, symbol, isLong)
	if eventSize, err := ev.SizeDelta(); err == nil {
		rec.EventSizeDelta = eventSize.String()
	}

	subCtx, cancel := context.WithTimeout(ctx, e.opts.SubmitTimeout)
	res, err := e.dispatcher(ev.Kind).Decrease(subCtx, dispatch.DecreaseRequest{
		Instrument: inst,
		Event:      ev,
		Size:       new(big.Int).Set(size),
	})
	cancel()

	return e.confirm(ctx, log, rec, res, err, nil, Leg{Size: leverage.FormatUnits(size, usdDecimals)})
}

// confirm journals the submission, waits for finality and publishes the report.
// The wait is detached from ctx: a sent transaction is always followed up.
func (e *Engine) confirm(ctx context.Context, log *zap.SugaredLogger, rec *storage.MirrorRecord, res *dispatch.Result, submitErr error, fetched *Leg, executed Leg) (Outcome, error) {
	if submitErr != nil {
		rec.Status = storage.StatusFailed
		rec.Error = submitErr.Error()
		e.save(log, rec)
		e.publish(rec, fetched, executed)
		return OutcomeFailed, submitErr
	}

	rec.Venue = res.Venue.String()
	rec.Method = res.Method
	rec.TxHash = res.Tx.Hash().Hex()
	rec.Nonce = res.Tx.Nonce()
	if res.SizeDelta != nil {
		rec.SizeDelta = res.SizeDelta.String()
	}
	e.save(log, rec)
	log.Infow("tx_submitted", "venue", rec.Venue, "method", rec.Method, "tx", rec.TxHash, "nonce", rec.Nonce)

	e.transition(log, StateConfirming)
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.opts.ConfirmTimeout)
	receipt, err := e.deps.Confirmer.Wait(waitCtx, res.Tx)
	cancel()

	rec.UpdatedAt = e.deps.Clock.Now().UTC()
	if err != nil {
		rec.Status = storage.StatusFailed
		rec.Error = err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			rec.Error = "confirmation timeout"
		}
	} else {
		rec.Status = storage.StatusConfirmed
		rec.Block = receipt.BlockNumber.Uint64()
	}
	e.save(log, rec)
	report := e.publish(rec, fetched, executed)

	if err != nil {
		return OutcomeFailed, fmt.Errorf("confirm %s: %w", rec.TxHash, err)
	}
	log.Infow("mirror_executed",
		"order_type", report.OrderType,
		"direction", report.Direction,
		"tx", report.TxHash,
		"block", report.Block,
		"fetched", report.Fetched,
		"executed", report.Executed)
	return OutcomeMirrored, nil
}

func (e *Engine) newRecord(ev event.Normalized, symbol string, isLong bool) *storage.MirrorRecord {
	rec := storage.NewMirrorRecord(ev.Key, e.deps.Clock.Now())
	rec.Event = ev.Name
	rec.Symbol = symbol
	rec.IsLong = isLong
	rec.Venue = "position_router"
	if !ev.Kind.IsMarket() {
		rec.Venue = "order_book"
	}
	return rec
}

func (e *Engine) save(log *zap.SugaredLogger, rec *storage.MirrorRecord) {
	if err := e.deps.Journal.SaveMirror(rec); err != nil {
		log.Warnw("journal_write_failed", "id", rec.ID, "err", err)
	}
}

func (e *Engine) publish(rec *storage.MirrorRecord, fetched *Leg, executed Leg) Report {
	r := Report{
		ID:        rec.ID,
		EventKey:  rec.EventKey,
		Event:     rec.Event,
		Symbol:    rec.Symbol,
		Direction: direction(rec.IsLong),
		OrderType: orderType(event.KindOf(rec.Event).IsMarket()),
		Venue:     rec.Venue,
		TxHash:    rec.TxHash,
		Status:    rec.Status,
		Block:     rec.Block,
		Fetched:   fetched,
		Executed:  executed,
		Error:     rec.Error,
		At:        rec.UpdatedAt,
	}
	if e.deps.Reporter != nil {
		e.deps.Reporter.Publish(r)
	}
	return r
}

func (e *Engine) transition(log *zap.SugaredLogger, s State) {
	log.Debugw("state", "to", s.String())
}
