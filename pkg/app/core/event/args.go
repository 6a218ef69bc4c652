package event

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

var ErrMalformedArg = errors.New("event: malformed argument")

// Args holds named event arguments as decoded from the venue ABI:
// common.Address, []common.Address, bool and *big.Int values.
type Args map[string]any

func (a Args) Address(name string) (common.Address, error) {
	switch v := a[name].(type) {
	case common.Address:
		return v, nil
	case string:
		if common.IsHexAddress(v) {
			return common.HexToAddress(v), nil
		}
	}
	return common.Address{}, fmt.Errorf("%w: %s is not an address", ErrMalformedArg, name)
}

func (a Args) Addresses(name string) ([]common.Address, error) {
	switch v := a[name].(type) {
	case []common.Address:
		out := make([]common.Address, len(v))
		copy(out, v)
		return out, nil
	case []string:
		out := make([]common.Address, 0, len(v))
		for _, s := range v {
			if !common.IsHexAddress(s) {
				return nil, fmt.Errorf("%w: %s contains %q", ErrMalformedArg, name, s)
			}
			out = append(out, common.HexToAddress(s))
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s is not an address list", ErrMalformedArg, name)
}

func (a Args) Bool(name string) (bool, error) {
	v, ok := a[name].(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s is not a bool", ErrMalformedArg, name)
	}
	return v, nil
}

// BigInt returns a copy of the named integer argument.
func (a Args) BigInt(name string) (*big.Int, error) {
	switch v := a[name].(type) {
	case *big.Int:
		if v != nil {
			return new(big.Int).Set(v), nil
		}
	case string:
		if n, ok := new(big.Int).SetString(v, 10); ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s is not an integer", ErrMalformedArg, name)
}

// Account returns the event's account field
func (n Normalized) Account() (common.Address, error) { return n.Args.Address("account") }

// IndexToken returns the instrument address the event trades
func (n Normalized) IndexToken() (common.Address, error) { return n.Args.Address("indexToken") }

// IsLong returns the position direction
func (n Normalized) IsLong() (bool, error) { return n.Args.Bool("isLong") }

// SizeDelta returns the tracked trader's size delta
func (n Normalized) SizeDelta() (*big.Int, error) { return n.Args.BigInt("sizeDelta") }

// ExecutionFee returns the keeper fee reported by the event
func (n Normalized) ExecutionFee() (*big.Int, error) { return n.Args.BigInt("executionFee") }

// Price is the acceptable price for market events and the trigger price for
// trigger events.
func (n Normalized) Price() (*big.Int, error) {
	if n.Kind.IsMarket() {
		return n.Args.BigInt("acceptablePrice")
	}
	return n.Args.BigInt("triggerPrice")
}

// AmountIn is amountIn for market increases and purchaseTokenAmount for
// trigger increases.
func (n Normalized) AmountIn() (*big.Int, error) {
	if n.Kind == IncreaseTrigger {
		return n.Args.BigInt("purchaseTokenAmount")
	}
	return n.Args.BigInt("amountIn")
}

// Path returns the swap path; trigger events carry none, so the index token
// stands in as a single-element path.
func (n Normalized) Path() ([]common.Address, error) {
	if _, ok := n.Args["path"]; ok {
		return n.Args.Addresses("path")
	}
	idx, err := n.IndexToken()
	if err != nil {
		return nil, err
	}
	return []common.Address{idx}, nil
}

// TriggerAboveThreshold is only present on trigger events.
func (n Normalized) TriggerAboveThreshold() (bool, error) {
	return n.Args.Bool("triggerAboveThreshold")
}

// IsAccount reports whether the event was emitted for addr.
func (n Normalized) IsAccount(addr common.Address) bool {
	acc, err := n.Account()
	return err == nil && acc == addr
}
