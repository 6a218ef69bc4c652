package perp

import (
	"math/big"
	"time"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/leverage"
)

// usdDecimals is the venue's fixed-point precision for USD amounts.
const usdDecimals = 30

// Leg is one side of a report, as display strings.
type Leg struct {
	Margin   string `json:"margin,omitempty"`
	Size     string `json:"size"`
	Leverage string `json:"leverage,omitempty"`
}

// Report compares what the tracked trader did with what was mirrored.
type Report struct {
	ID        string    `json:"id"`
	EventKey  string    `json:"event_key"`
	Event     string    `json:"event"`
	Symbol    string    `json:"symbol"`
	Direction string    `json:"direction"`
	OrderType string    `json:"order_type"`
	Venue     string    `json:"venue"`
	TxHash    string    `json:"tx_hash,omitempty"`
	Status    string    `json:"status"`
	Block     uint64    `json:"block,omitempty"`
	Fetched   *Leg      `json:"fetched,omitempty"`
	Executed  Leg       `json:"executed"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Reporter receives every finished report.
type Reporter interface {
	Publish(r Report)
}

func direction(isLong bool) string {
	if isLong {
		return "long"
	}
	return "short"
}

func orderType(market bool) string {
	if market {
		return "market"
	}
	return "trigger"
}

// increaseLegs formats fetched and executed sides of an increase. Margins are
// token amount * price, scaled by the token's and the USD precision.
func increaseLegs(eventAmountIn, localAmountIn, price, eventSize *big.Int, d leverage.Delta, decimals uint8) (*Leg, Leg) {
	marginDecimals := int32(usdDecimals) + int32(decimals)
	lev := leverage.FormatLeverage(d.Leverage)
	fetched := &Leg{
		Margin:   leverage.FormatUnits(new(big.Int).Mul(eventAmountIn, price), marginDecimals),
		Size:     leverage.FormatUnits(eventSize, usdDecimals),
		Leverage: lev,
	}
	executed := Leg{
		Margin:   leverage.FormatUnits(new(big.Int).Mul(localAmountIn, price), marginDecimals),
		Size:     leverage.FormatUnits(d.SizeDelta, usdDecimals),
		Leverage: lev,
	}
	return fetched, executed
}
