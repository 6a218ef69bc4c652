package perp

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/mirrorperp/params"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/leverage"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/market"
	"github.com/uhyunpark/mirrorperp/pkg/chain"
)

// EngineContext is the state resolved once at startup and shared read-only
// by every event handler.
type EngineContext struct {
	Operator      common.Address
	Tracked       common.Address // the copied trader
	Registry      *market.Registry
	NativeBalance *big.Int

	tradable  map[string]bool
	localSize map[string]*big.Int
	balances  map[string]*big.Int
}

// InstrumentState is the startup view of one instrument.
type InstrumentState struct {
	market.Instrument
	LocalAmountIn *big.Int `json:"local_amount_in"`
	Balance       *big.Int `json:"balance"`
	Tradable      bool     `json:"tradable"`
}

// NewEngineContext builds a context from already resolved values.
func NewEngineContext(operator, tracked common.Address, registry *market.Registry) *EngineContext {
	return &EngineContext{
		Operator:      operator,
		Tracked:       tracked,
		Registry:      registry,
		NativeBalance: new(big.Int),
		tradable:      make(map[string]bool),
		localSize:     make(map[string]*big.Int),
		balances:      make(map[string]*big.Int),
	}
}

// SetInstrumentState records the operator's size and balance for symbol.
// Only called while bootstrapping.
func (c *EngineContext) SetInstrumentState(symbol string, localAmountIn, balance *big.Int) {
	c.localSize[symbol] = new(big.Int).Set(localAmountIn)
	c.balances[symbol] = new(big.Int).Set(balance)
	c.tradable[symbol] = balance.Cmp(localAmountIn) >= 0
}

func (c *EngineContext) IsTradable(symbol string) bool { return c.tradable[symbol] }

// LocalAmountIn returns the operator's configured order size in base units.
func (c *EngineContext) LocalAmountIn(symbol string) (*big.Int, bool) {
	v, ok := c.localSize[symbol]
	if !ok {
		return nil, false
	}
	return new(big.Int).Set(v), true
}

// Instruments returns every instrument with its startup state, sorted by symbol.
func (c *EngineContext) Instruments() []InstrumentState {
	out := make([]InstrumentState, 0, c.Registry.Count())
	for _, symbol := range c.Registry.AllSymbols() {
		inst, _ := c.Registry.Instrument(symbol)
		st := InstrumentState{Instrument: inst, Tradable: c.tradable[symbol]}
		if v, ok := c.localSize[symbol]; ok {
			st.LocalAmountIn = new(big.Int).Set(v)
		}
		if v, ok := c.balances[symbol]; ok {
			st.Balance = new(big.Int).Set(v)
		}
		out = append(out, st)
	}
	return out
}

// BootstrapBackend is the read-only chain access Bootstrap needs.
type BootstrapBackend interface {
	chain.Caller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Bootstrap loads the operator's balances, resolves token decimals and decides
// which instruments have enough balance to be mirrored.
func Bootstrap(ctx context.Context, backend BootstrapBackend, operator, tracked common.Address, instruments []params.InstrumentConfig, log *zap.SugaredLogger) (*EngineContext, error) {
	native, err := backend.BalanceAt(ctx, operator, nil)
	if err != nil {
		return nil, fmt.Errorf("native balance: %w", err)
	}

	registry := market.NewRegistry()
	ectx := NewEngineContext(operator, tracked, registry)
	ectx.NativeBalance = native
	log.Infow("operator_loaded", "address", operator.Hex(), "native_balance", leverage.FormatUnits(native, 18), "tracked", ectx.Tracked.Hex())

	for _, cfg := range instruments {
		token := common.HexToAddress(cfg.Address)

		var decimals uint8
		if cfg.Decimals != nil {
			decimals = *cfg.Decimals
		} else if decimals, err = chain.TokenDecimals(ctx, backend, token); err != nil {
			return nil, fmt.Errorf("%s decimals: %w", cfg.Symbol, err)
		}

		inst := market.Instrument{Symbol: cfg.Symbol, Address: token, TargetSize: cfg.Size, Decimals: decimals}
		if err := registry.Register(inst); err != nil {
			return nil, err
		}

		target, err := leverage.ToBaseUnits(cfg.Size, decimals)
		if err != nil {
			return nil, fmt.Errorf("%s size: %w", cfg.Symbol, err)
		}
		balance, err := chain.TokenBalance(ctx, backend, token, operator)
		if err != nil {
			return nil, fmt.Errorf("%s balance: %w", cfg.Symbol, err)
		}
		ectx.SetInstrumentState(cfg.Symbol, target, balance)

		if ectx.IsTradable(cfg.Symbol) {
			log.Infow("instrument_ready", "symbol", cfg.Symbol, "balance", leverage.FormatUnits(balance, int32(decimals)), "size", cfg.Size)
		} else {
			log.Warnw("instrument_insufficient_balance", "symbol", cfg.Symbol,
				"balance", leverage.FormatUnits(balance, int32(decimals)), "size", cfg.Size)
		}
	}
	return ectx, nil
}
