package api

import (
	"math/big"
	"time"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/mempool"
	"github.com/uhyunpark/mirrorperp/pkg/app/perp"
	"github.com/uhyunpark/mirrorperp/pkg/storage"
)

// ==============================
// REST Response Types
// ==============================

// StatusResponse is returned by GET /api/v1/status
type StatusResponse struct {
	ChainID       string        `json:"chainId"`
	Operator      string        `json:"operator"`
	Tracked       string        `json:"tracked"`
	NativeBalance *big.Int      `json:"nativeBalance"`
	Uptime        string        `json:"uptime"`
	StartedAt     time.Time     `json:"startedAt"`
	Engine        perp.Stats    `json:"engine"`
	Queue         mempool.Stats `json:"queue"`
}

// InstrumentInfo is one entry of GET /api/v1/instruments
type InstrumentInfo struct {
	Symbol        string   `json:"symbol"`
	Address       string   `json:"address"`
	TargetSize    string   `json:"targetSize"`
	Decimals      uint8    `json:"decimals"`
	LocalAmountIn *big.Int `json:"localAmountIn"`
	Balance       *big.Int `json:"balance"`
	Tradable      bool     `json:"tradable"`
}

// MirrorsResponse is returned by GET /api/v1/mirrors
type MirrorsResponse struct {
	Count   int                     `json:"count"`
	Mirrors []*storage.MirrorRecord `json:"mirrors"`
}

// ==============================
// WebSocket Message Types
// ==============================

// WSMessage is the envelope for every message pushed to clients
type WSMessage struct {
	Type string      `json:"type"` // "report"
	Data interface{} `json:"data"`
}

// WSSubscribeRequest is sent by client to subscribe to channels
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // e.g., ["mirrors", "mirrors:btc"]
}

// ErrorResponse is returned for all errors
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
