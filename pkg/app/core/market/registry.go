package market

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Instrument is a tradable index token mirrored by the engine.
// Instruments are registered at startup and never mutated afterwards.
type Instrument struct {
	Symbol     string         `json:"symbol"`      // e.g., "btc"
	Address    common.Address `json:"address"`     // index token address on the perp venue
	TargetSize string         `json:"target_size"` // operator order size per mirrored increase, decimal string ("0.0005")
	Decimals   uint8          `json:"decimals"`    // token precision used for base-unit conversions
}

// Registry maps instrument addresses to symbols in a thread-safe manner.
// Lookups by address are case-insensitive: the key is the lowercased hex form.
type Registry struct {
	mu        sync.RWMutex
	bySymbol  map[string]*Instrument // symbol -> instrument
	byAddress map[string]string      // lowercase hex address -> symbol
}

// NewRegistry creates an empty instrument registry
func NewRegistry() *Registry {
	return &Registry{
		bySymbol:  make(map[string]*Instrument),
		byAddress: make(map[string]string),
	}
}

// NewRegistryFrom builds a registry from a list of instruments.
// Fails on the first duplicate symbol or address.
func NewRegistryFrom(instruments []Instrument) (*Registry, error) {
	r := NewRegistry()
	for i := range instruments {
		if err := r.Register(instruments[i]); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds an instrument to the registry
// Returns error if the symbol or address is already registered
func (r *Registry) Register(in Instrument) error {
	if in.Symbol == "" {
		return fmt.Errorf("cannot register instrument without symbol")
	}
	if in.Address == (common.Address{}) {
		return fmt.Errorf("instrument %s has zero address", in.Symbol)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.bySymbol[in.Symbol]; exists {
		return fmt.Errorf("instrument %s already registered", in.Symbol)
	}
	key := addressKey(in.Address.Hex())
	if sym, exists := r.byAddress[key]; exists {
		return fmt.Errorf("address %s already registered as %s", in.Address.Hex(), sym)
	}

	cp := in
	r.bySymbol[in.Symbol] = &cp
	r.byAddress[key] = in.Symbol
	return nil
}

// ResolveByAddress returns the symbol registered for addr.
// A miss means the instrument is not tracked and is not an error.
func (r *Registry) ResolveByAddress(addr string) (string, bool) {
	if !common.IsHexAddress(addr) {
		return "", false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	sym, ok := r.byAddress[addressKey(addr)]
	return sym, ok
}

// TargetSize returns the configured order size for symbol as a decimal string
func (r *Registry) TargetSize(symbol string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.bySymbol[symbol]
	if !ok {
		return "", false
	}
	return in.TargetSize, true
}

// Instrument returns a copy of the instrument registered under symbol
func (r *Registry) Instrument(symbol string) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	in, ok := r.bySymbol[symbol]
	if !ok {
		return Instrument{}, false
	}
	return *in, true
}

// AllSymbols returns every registered symbol, sorted
func (r *Registry) AllSymbols() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.bySymbol))
	for sym := range r.bySymbol {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}

// Instruments returns copies of all instruments ordered by symbol
func (r *Registry) Instruments() []Instrument {
	syms := r.AllSymbols()

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Instrument, 0, len(syms))
	for _, s := range syms {
		out = append(out, *r.bySymbol[s])
	}
	return out
}

// Count returns the total number of registered instruments
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySymbol)
}

func addressKey(addr string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(addr, "0x"), "0X"))
}
