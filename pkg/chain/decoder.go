package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/event"
)

var ErrUnknownEvent = errors.New("unknown event signature")

// Decoder turns raw venue logs into RawEvents carrying every argument under
// both its position and its ABI name.
type Decoder struct {
	events map[common.Hash]abi.Event
}

// NewDecoder indexes the mirrored events of the given ABIs by topic id.
func NewDecoder(abis ...abi.ABI) *Decoder {
	d := &Decoder{events: make(map[common.Hash]abi.Event)}
	for _, a := range abis {
		for _, ev := range a.Events {
			if event.KindOf(ev.Name) == event.KindUnknown {
				continue
			}
			d.events[ev.ID] = ev
		}
	}
	return d
}

// DefaultDecoder understands PositionRouter and OrderBook events.
func DefaultDecoder() *Decoder {
	return NewDecoder(PositionRouterABI, OrderBookABI)
}

// Topics returns the topic-0 filter for all known events.
func (d *Decoder) Topics() [][]common.Hash {
	ids := make([]common.Hash, 0, len(d.events))
	for id := range d.events {
		ids = append(ids, id)
	}
	return [][]common.Hash{ids}
}

func (d *Decoder) Decode(lg types.Log) (event.RawEvent, error) {
	if len(lg.Topics) == 0 {
		return event.RawEvent{}, ErrUnknownEvent
	}
	ev, ok := d.events[lg.Topics[0]]
	if !ok {
		return event.RawEvent{}, fmt.Errorf("%w: %s", ErrUnknownEvent, lg.Topics[0].Hex())
	}

	decoded := make(map[string]interface{}, len(ev.Inputs))
	if len(lg.Data) > 0 {
		if err := ev.Inputs.UnpackIntoMap(decoded, lg.Data); err != nil {
			return event.RawEvent{}, fmt.Errorf("unpack %s data: %w", ev.Name, err)
		}
	}
	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(decoded, indexed, lg.Topics[1:]); err != nil {
			return event.RawEvent{}, fmt.Errorf("parse %s topics: %w", ev.Name, err)
		}
	}

	names := make([]string, len(ev.Inputs))
	values := make([]any, len(ev.Inputs))
	for i, in := range ev.Inputs {
		v, ok := decoded[in.Name]
		if !ok {
			return event.RawEvent{}, fmt.Errorf("%s: missing argument %q", ev.Name, in.Name)
		}
		names[i] = in.Name
		values[i] = v
	}

	parts := make([]any, 0, len(values)+1)
	parts = append(parts, values...)
	parts = append(parts, event.NewRecord(ev.Name, names, values))
	return event.RawEvent{Log: lg, Parts: parts}, nil
}
