package params

import (
	"errors"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Chain holds node connection settings.
type Chain struct {
	RPCURL        string
	WSURL         string // log subscriptions need a websocket endpoint
	ChainID       int64
	Confirmations uint64
	PollInterval  time.Duration

	// ResubscribeBackoff is the pause before re-opening a dropped log subscription.
	ResubscribeBackoff time.Duration
}

// Venue holds the perpetual exchange deployment. Defaults target Fulcrom on Cronos.
type Venue struct {
	PositionRouter common.Address
	OrderBook      common.Address
	Reader         common.Address
	Vault          common.Address
}

// InstrumentConfig is one mirrored token. Decimals may be omitted and are
// then read from the token contract at startup.
type InstrumentConfig struct {
	Symbol   string `yaml:"symbol"`
	Address  string `yaml:"address"`
	Size     string `yaml:"size"`
	Decimals *uint8 `yaml:"decimals,omitempty"`
}

type Mirror struct {
	PrivateKey    string
	AddressToCopy string

	// ExecutionFeeDeposit is attached to every PositionRouter request, in wei.
	ExecutionFeeDeposit *big.Int
	// DecreaseOrderFee is attached to OrderBook decrease orders, in wei.
	DecreaseOrderFee *big.Int
	// LeverageScale multiplies sizeDelta before dividing by collateral.
	LeverageScale *big.Int

	MirrorTriggerOrders bool
	SubmitTimeout       time.Duration
	ConfirmTimeout      time.Duration
	Instruments         []InstrumentConfig
}

type Node struct {
	JournalPath string
	APIAddr     string
	LogFile     string // empty logs to stdout only
}

type Config struct {
	Chain  Chain
	Venue  Venue
	Mirror Mirror
	Node   Node
}

func Default() Config {
	return Config{
		Chain: Chain{
			RPCURL:             "https://evm.cronos.org",
			ChainID:            25,
			Confirmations:      2,
			PollInterval:       2 * time.Second,
			ResubscribeBackoff: 3 * time.Second,
		},
		Venue: Venue{
			PositionRouter: common.HexToAddress("0x27fb69422c457452d8b6fdcb18899d9b53c3f940"),
			OrderBook:      common.HexToAddress("0x1c29aeE30B5B101eDEa936Cd0cAeEc724e3B0045"),
			Reader:         common.HexToAddress("0x3881df9c3115aA4a2E35C080764B5Dd8112dE177"),
			Vault:          common.HexToAddress("0x8C7Ef34aa54210c76D6d5E475f43e0c11f876098"),
		},
		Mirror: Mirror{
			ExecutionFeeDeposit: new(big.Int).Mul(big.NewInt(4), big.NewInt(1e18)),
			DecreaseOrderFee:    new(big.Int),
			LeverageScale:       big.NewInt(10_000_000_000),
			MirrorTriggerOrders: true,
			SubmitTimeout:       30 * time.Second,
			ConfirmTimeout:      5 * time.Minute,
			Instruments: []InstrumentConfig{
				{Symbol: "btc", Address: "0x062e66477faf219f25d27dced647bf57c3107d52", Size: "0.0005"},
				{Symbol: "eth", Address: "0xe44fd7fcb2b1581822d0c862b68222998a0c299a", Size: "0.01"},
			},
		},
		Node: Node{
			JournalPath: "data/journal",
			APIAddr:     ":8080",
		},
	}
}

// LoadFromEnv loads configuration from .env file (if exists) and environment variables
// Priority: ENV > .env file > defaults
func LoadFromEnv(envPath string) (Config, error) {
	cfg := Default()

	// Try to load .env file (optional - won't fail if not exists)
	if envPath != "" {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load() // loads .env from current directory
	}

	cfg.Chain.RPCURL = getEnv("RPC_URL", cfg.Chain.RPCURL)
	cfg.Chain.WSURL = getEnv("WS_URL", cfg.Chain.WSURL)
	cfg.Mirror.PrivateKey = getEnv("PRIVATE_KEY", "")
	cfg.Mirror.AddressToCopy = strings.ToLower(strings.TrimSpace(getEnv("ADDRESS_TO_COPY", "")))
	cfg.Node.JournalPath = getEnv("JOURNAL_PATH", cfg.Node.JournalPath)
	cfg.Node.APIAddr = getEnv("API_ADDR", cfg.Node.APIAddr)
	cfg.Node.LogFile = getEnv("LOG_FILE", cfg.Node.LogFile)

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	if v := os.Getenv("CHAIN_ID"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		collect(wrapKey("CHAIN_ID", err))
		cfg.Chain.ChainID = id
	}
	if v := os.Getenv("CONFIRMATIONS"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		collect(wrapKey("CONFIRMATIONS", err))
		cfg.Chain.Confirmations = n
	}
	collect(durationMS("POLL_INTERVAL_MS", &cfg.Chain.PollInterval))
	collect(durationMS("RESUBSCRIBE_BACKOFF_MS", &cfg.Chain.ResubscribeBackoff))
	collect(durationMS("SUBMIT_TIMEOUT_MS", &cfg.Mirror.SubmitTimeout))
	collect(durationMS("CONFIRM_TIMEOUT_MS", &cfg.Mirror.ConfirmTimeout))

	collect(address("POSITION_ROUTER", &cfg.Venue.PositionRouter))
	collect(address("ORDER_BOOK", &cfg.Venue.OrderBook))
	collect(address("READER", &cfg.Venue.Reader))
	collect(address("VAULT", &cfg.Venue.Vault))

	collect(nativeAmount("EXECUTION_FEE_DEPOSIT", &cfg.Mirror.ExecutionFeeDeposit))
	collect(nativeAmount("DECREASE_ORDER_FEE", &cfg.Mirror.DecreaseOrderFee))
	if v := os.Getenv("LEVERAGE_SCALE"); v != "" {
		scale, ok := new(big.Int).SetString(v, 10)
		if !ok || scale.Sign() <= 0 {
			collect(fmt.Errorf("LEVERAGE_SCALE: %q is not a positive integer", v))
		} else {
			cfg.Mirror.LeverageScale = scale
		}
	}
	if v := os.Getenv("MIRROR_TRIGGER_ORDERS"); v != "" {
		b, err := strconv.ParseBool(v)
		collect(wrapKey("MIRROR_TRIGGER_ORDERS", err))
		cfg.Mirror.MirrorTriggerOrders = b
	}

	if path := os.Getenv("INSTRUMENTS_FILE"); path != "" {
		instruments, err := LoadInstruments(path)
		collect(err)
		if err == nil {
			cfg.Mirror.Instruments = instruments
		}
	}

	return cfg, errors.Join(errs...)
}

type instrumentsFile struct {
	Instruments []InstrumentConfig `yaml:"instruments"`
}

// LoadInstruments reads the instrument list from a YAML file.
func LoadInstruments(path string) ([]InstrumentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read instruments %s: %w", path, err)
	}
	var f instrumentsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse instruments %s: %w", path, err)
	}
	if len(f.Instruments) == 0 {
		return nil, fmt.Errorf("instruments %s: no instruments defined", path)
	}
	return f.Instruments, nil
}

// Tracked parses ADDRESS_TO_COPY; the 0x prefix is optional.
func (m Mirror) Tracked() common.Address {
	return common.HexToAddress(m.AddressToCopy)
}

// Validate reports every missing or inconsistent setting.
func (c Config) Validate() error {
	var errs []error
	if c.Chain.WSURL == "" {
		errs = append(errs, errors.New("WS_URL is required for log subscriptions"))
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, errors.New("CHAIN_ID must be positive"))
	}
	if c.Mirror.PrivateKey == "" {
		errs = append(errs, errors.New("PRIVATE_KEY is required"))
	}
	if !common.IsHexAddress(c.Mirror.AddressToCopy) {
		errs = append(errs, fmt.Errorf("ADDRESS_TO_COPY %q is not an address", c.Mirror.AddressToCopy))
	} else if c.Mirror.Tracked() == (common.Address{}) {
		errs = append(errs, errors.New("ADDRESS_TO_COPY is the zero address"))
	}
	for name, addr := range map[string]common.Address{
		"POSITION_ROUTER": c.Venue.PositionRouter,
		"ORDER_BOOK":      c.Venue.OrderBook,
		"READER":          c.Venue.Reader,
		"VAULT":           c.Venue.Vault,
	} {
		if addr == (common.Address{}) {
			errs = append(errs, fmt.Errorf("%s is not set", name))
		}
	}
	for _, in := range c.Mirror.Instruments {
		if in.Symbol == "" || !common.IsHexAddress(in.Address) {
			errs = append(errs, fmt.Errorf("instrument %q: symbol and address required", in.Symbol))
		}
		if _, err := decimal.NewFromString(in.Size); err != nil {
			errs = append(errs, fmt.Errorf("instrument %q: size %q: %w", in.Symbol, in.Size, err))
		}
	}
	return errors.Join(errs...)
}

// getEnv returns environment variable value or default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func wrapKey(key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", key, err)
}

func durationMS(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return wrapKey(key, err)
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}

func address(key string, dst *common.Address) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	if !common.IsHexAddress(v) {
		return fmt.Errorf("%s: %q is not an address", key, v)
	}
	*dst = common.HexToAddress(v)
	return nil
}

// nativeAmount parses a decimal amount of the native coin ("4", "0.25") into wei.
func nativeAmount(key string, dst **big.Int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return wrapKey(key, err)
	}
	if d.IsNegative() {
		return fmt.Errorf("%s: negative amount", key)
	}
	wei := d.Shift(18)
	if !wei.Equal(wei.Truncate(0)) {
		return fmt.Errorf("%s: more than 18 decimals", key)
	}
	*dst = wei.BigInt()
	return nil
}
