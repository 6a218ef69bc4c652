package transaction

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/mirrorperp/pkg/chain"
)

var (
	ErrExecutionFeeMismatch = errors.New("attached value must equal execution fee")
	ErrInvalidPayload       = errors.New("invalid payload")
)

// Venue is the contract a payload is sent to.
type Venue int

const (
	VenuePositionRouter Venue = iota
	VenueOrderBook
)

func (v Venue) String() string {
	if v == VenueOrderBook {
		return "order_book"
	}
	return "position_router"
}

// Payload is a venue call with named fields. Args produces the positional
// wire shape expected by the contract ABI.
type Payload interface {
	Venue() Venue
	Method() string
	Args() []interface{}
	Value() *big.Int
	Validate() error
}

// Encode validates p and packs it into calldata.
func Encode(p Payload) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", p.Method(), err)
	}
	parsed := chain.PositionRouterABI
	if p.Venue() == VenueOrderBook {
		parsed = chain.OrderBookABI
	}
	data, err := parsed.Pack(p.Method(), p.Args()...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", p.Method(), err)
	}
	return data, nil
}

// IncreasePositionParams is the router's increase tuple.
type IncreasePositionParams struct {
	Path            []common.Address `abi:"path"`
	IndexToken      common.Address   `abi:"indexToken"`
	SizeDelta       *big.Int         `abi:"sizeDelta"`
	IsLong          bool             `abi:"isLong"`
	AcceptablePrice *big.Int         `abi:"acceptablePrice"`
	MinOut          *big.Int         `abi:"minOut"`
	ExecutionFee    *big.Int         `abi:"executionFee"`
	ReferralCode    [32]byte         `abi:"referralCode"`
	CallbackTarget  common.Address   `abi:"callbackTarget"`
	PriceData       [][]byte         `abi:"priceData"`
}

// IncreasePositionPayload is a market increase sent to the PositionRouter.
type IncreasePositionPayload struct {
	Params   IncreasePositionParams
	AmountIn *big.Int
	Deposit  *big.Int
}

func (p *IncreasePositionPayload) Venue() Venue        { return VenuePositionRouter }
func (p *IncreasePositionPayload) Method() string      { return "createIncreasePosition" }
func (p *IncreasePositionPayload) Value() *big.Int     { return p.Deposit }
func (p *IncreasePositionPayload) Args() []interface{} { return []interface{}{p.Params, p.AmountIn} }

func (p *IncreasePositionPayload) Validate() error {
	if len(p.Params.Path) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPayload)
	}
	if err := positive("sizeDelta", p.Params.SizeDelta); err != nil {
		return err
	}
	if err := positive("amountIn", p.AmountIn); err != nil {
		return err
	}
	return present(map[string]*big.Int{
		"acceptablePrice": p.Params.AcceptablePrice,
		"minOut":          p.Params.MinOut,
		"executionFee":    p.Params.ExecutionFee,
		"value":           p.Deposit,
	})
}

// DecreasePositionParams is the router's decrease tuple.
type DecreasePositionParams struct {
	Path            []common.Address `abi:"path"`
	IndexToken      common.Address   `abi:"indexToken"`
	CollateralDelta *big.Int         `abi:"collateralDelta"`
	SizeDelta       *big.Int         `abi:"sizeDelta"`
	IsLong          bool             `abi:"isLong"`
	Receiver        common.Address   `abi:"receiver"`
	AcceptablePrice *big.Int         `abi:"acceptablePrice"`
	MinOut          *big.Int         `abi:"minOut"`
	ExecutionFee    *big.Int         `abi:"executionFee"`
	WithdrawETH     bool             `abi:"withdrawETH"`
	CallbackTarget  common.Address   `abi:"callbackTarget"`
	PriceData       [][]byte         `abi:"priceData"`
}

// DecreasePositionPayload is a market decrease sent to the PositionRouter.
type DecreasePositionPayload struct {
	Params  DecreasePositionParams
	Deposit *big.Int
}

func (p *DecreasePositionPayload) Venue() Venue        { return VenuePositionRouter }
func (p *DecreasePositionPayload) Method() string      { return "createDecreasePosition" }
func (p *DecreasePositionPayload) Value() *big.Int     { return p.Deposit }
func (p *DecreasePositionPayload) Args() []interface{} { return []interface{}{p.Params} }

func (p *DecreasePositionPayload) Validate() error {
	if len(p.Params.Path) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPayload)
	}
	if p.Params.Receiver == (common.Address{}) {
		return fmt.Errorf("%w: zero receiver", ErrInvalidPayload)
	}
	if err := positive("sizeDelta", p.Params.SizeDelta); err != nil {
		return err
	}
	return present(map[string]*big.Int{
		"collateralDelta": p.Params.CollateralDelta,
		"acceptablePrice": p.Params.AcceptablePrice,
		"minOut":          p.Params.MinOut,
		"executionFee":    p.Params.ExecutionFee,
		"value":           p.Deposit,
	})
}

// IncreaseOrderPayload is a trigger increase resting on the OrderBook.
// The contract requires the attached value to equal ExecutionFee.
type IncreaseOrderPayload struct {
	Path                  []common.Address
	AmountIn              *big.Int
	IndexToken            common.Address
	MinOut                *big.Int
	SizeDelta             *big.Int
	CollateralToken       common.Address
	IsLong                bool
	TriggerPrice          *big.Int
	TriggerAboveThreshold bool
	ExecutionFee          *big.Int
	ShouldWrap            bool
	Attached              *big.Int
}

func (p *IncreaseOrderPayload) Venue() Venue    { return VenueOrderBook }
func (p *IncreaseOrderPayload) Method() string  { return "createIncreaseOrder" }
func (p *IncreaseOrderPayload) Value() *big.Int { return p.Attached }

func (p *IncreaseOrderPayload) Args() []interface{} {
	return []interface{}{
		p.Path, p.AmountIn, p.IndexToken, p.MinOut, p.SizeDelta, p.CollateralToken,
		p.IsLong, p.TriggerPrice, p.TriggerAboveThreshold, p.ExecutionFee, p.ShouldWrap,
	}
}

func (p *IncreaseOrderPayload) Validate() error {
	if len(p.Path) == 0 {
		return fmt.Errorf("%w: empty path", ErrInvalidPayload)
	}
	if err := positive("sizeDelta", p.SizeDelta); err != nil {
		return err
	}
	if err := positive("amountIn", p.AmountIn); err != nil {
		return err
	}
	if err := present(map[string]*big.Int{
		"minOut":       p.MinOut,
		"triggerPrice": p.TriggerPrice,
		"executionFee": p.ExecutionFee,
		"value":        p.Attached,
	}); err != nil {
		return err
	}
	if p.Attached.Cmp(p.ExecutionFee) != 0 {
		return fmt.Errorf("%w: value %s, fee %s", ErrExecutionFeeMismatch, p.Attached, p.ExecutionFee)
	}
	return nil
}

// DecreaseOrderPayload is a trigger decrease resting on the OrderBook.
type DecreaseOrderPayload struct {
	IndexToken            common.Address
	SizeDelta             *big.Int
	CollateralToken       common.Address
	CollateralDelta       *big.Int
	IsLong                bool
	TriggerPrice          *big.Int
	TriggerAboveThreshold bool
	Attached              *big.Int
}

func (p *DecreaseOrderPayload) Venue() Venue    { return VenueOrderBook }
func (p *DecreaseOrderPayload) Method() string  { return "createDecreaseOrder" }
func (p *DecreaseOrderPayload) Value() *big.Int { return p.Attached }

func (p *DecreaseOrderPayload) Args() []interface{} {
	return []interface{}{
		p.IndexToken, p.SizeDelta, p.CollateralToken, p.CollateralDelta,
		p.IsLong, p.TriggerPrice, p.TriggerAboveThreshold,
	}
}

func (p *DecreaseOrderPayload) Validate() error {
	if err := positive("sizeDelta", p.SizeDelta); err != nil {
		return err
	}
	return present(map[string]*big.Int{
		"collateralDelta": p.CollateralDelta,
		"triggerPrice":    p.TriggerPrice,
		"value":           p.Attached,
	})
}

func positive(name string, v *big.Int) error {
	if v == nil || v.Sign() <= 0 {
		return fmt.Errorf("%w: %s must be positive", ErrInvalidPayload, name)
	}
	return nil
}

func present(fields map[string]*big.Int) error {
	for name, v := range fields {
		if v == nil {
			return fmt.Errorf("%w: missing %s", ErrInvalidPayload, name)
		}
		if v.Sign() < 0 {
			return fmt.Errorf("%w: negative %s", ErrInvalidPayload, name)
		}
	}
	return nil
}
