package event

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/core/types"
)

// Kind classifies mirrored venue events. It is derived once from the event
// name during normalization and matched exhaustively by the orchestrator.
type Kind int

const (
	KindUnknown Kind = iota
	IncreaseMarket   // PositionRouter.CreateIncreasePosition
	IncreaseTrigger  // OrderBook.CreateIncreaseOrder
	DecreaseMarket   // PositionRouter.CreateDecreasePosition
	DecreaseTrigger  // OrderBook.CreateDecreaseOrder
)

// Venue event names
const (
	NameCreateIncreasePosition = "CreateIncreasePosition"
	NameCreateIncreaseOrder    = "CreateIncreaseOrder"
	NameCreateDecreasePosition = "CreateDecreasePosition"
	NameCreateDecreaseOrder    = "CreateDecreaseOrder"
)

func KindOf(name string) Kind {
	switch name {
	case NameCreateIncreasePosition:
		return IncreaseMarket
	case NameCreateIncreaseOrder:
		return IncreaseTrigger
	case NameCreateDecreasePosition:
		return DecreaseMarket
	case NameCreateDecreaseOrder:
		return DecreaseTrigger
	default:
		return KindUnknown
	}
}

func (k Kind) String() string {
	switch k {
	case IncreaseMarket:
		return "IncreaseMarket"
	case IncreaseTrigger:
		return "IncreaseTrigger"
	case DecreaseMarket:
		return "DecreaseMarket"
	case DecreaseTrigger:
		return "DecreaseTrigger"
	default:
		return "Unknown"
	}
}

func (k Kind) IsIncrease() bool { return k == IncreaseMarket || k == IncreaseTrigger }
func (k Kind) IsMarket() bool   { return k == IncreaseMarket || k == DecreaseMarket }

// Record is the trailing element of a raw notification: the event name and its
// arguments keyed both by position ("0", "1", ...) and by ABI name.
type Record struct {
	Event string
	Args  map[string]any
}

// RawEvent is one notification from the chain subscription.
// Parts mirrors the listener callback arguments; the last element is a *Record.
type RawEvent struct {
	Log   types.Log
	Parts []any
}

// Key identifies the source log; used to journal handled events.
func (r RawEvent) Key() string {
	return fmt.Sprintf("%s:%d", r.Log.TxHash.Hex(), r.Log.Index)
}

// Normalized is a mirrored event with only its named arguments.
type Normalized struct {
	Name string
	Kind Kind
	Args Args
	Key  string
}

// Normalize extracts the event name and named arguments from raw.
// Returns ok=false when the trailing record is missing, unnamed, or names an
// event that is not mirrored; callers skip such events.
func Normalize(raw RawEvent) (Normalized, bool) {
	if len(raw.Parts) == 0 {
		return Normalized{}, false
	}
	rec, ok := raw.Parts[len(raw.Parts)-1].(*Record)
	if !ok || rec == nil || rec.Event == "" || rec.Args == nil {
		return Normalized{}, false
	}

	kind := KindOf(rec.Event)
	if kind == KindUnknown {
		return Normalized{}, false
	}

	args := make(Args, len(rec.Args))
	for k, v := range rec.Args {
		if isIndexKey(k) {
			continue
		}
		args[k] = v
	}

	return Normalized{
		Name: rec.Event,
		Kind: kind,
		Args: args,
		Key:  raw.Key(),
	}, true
}

func isIndexKey(k string) bool {
	_, err := strconv.Atoi(k)
	return err == nil
}

// NewRecord builds a record holding every value under both its position and
// its name, the shape the chain decoder produces.
func NewRecord(name string, argNames []string, values []any) *Record {
	args := make(map[string]any, 2*len(values))
	for i, v := range values {
		args[strconv.Itoa(i)] = v
		if i < len(argNames) && argNames[i] != "" {
			args[argNames[i]] = v
		}
	}
	return &Record{Event: name, Args: args}
}
