package api

import (
	"context"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/mirrorperp/pkg/app/core/mempool"
	"github.com/uhyunpark/mirrorperp/pkg/app/perp"
	"github.com/uhyunpark/mirrorperp/pkg/storage"
)

const (
	defaultMirrorLimit = 50
	maxMirrorLimit     = 500
)

// EngineStatus is the part of the engine the API reads.
type EngineStatus interface {
	Stats() perp.Stats
	Context() *perp.EngineContext
}

// QueueStatus is the part of the submission queue the API reads.
type QueueStatus interface {
	Stats() mempool.Stats
	Address() common.Address
}

// MirrorLister reads journaled submissions.
type MirrorLister interface {
	GetMirror(id string) (*storage.MirrorRecord, error)
	RecentMirrors(limit int, symbol string) ([]*storage.MirrorRecord, error)
}

// Server handles REST API and WebSocket connections
type Server struct {
	engine  EngineStatus
	queue   QueueStatus
	mirrors MirrorLister
	chainID *big.Int
	started time.Time

	router *mux.Router
	hub    *Hub
	http   *http.Server
	log    *zap.SugaredLogger
}

// NewServer creates a new API server. hub is usually also the engine's Reporter.
func NewServer(hub *Hub, engine EngineStatus, queue QueueStatus, mirrors MirrorLister, chainID *big.Int, log *zap.SugaredLogger) *Server {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if hub == nil {
		hub = NewHub(log)
	}
	s := &Server{
		engine:  engine,
		queue:   queue,
		mirrors: mirrors,
		chainID: chainID,
		started: time.Now(),
		router:  mux.NewRouter(),
		hub:     hub,
		log:     log,
	}
	s.setupRoutes()
	return s
}

// Hub returns the WebSocket hub that broadcasts mirror reports.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the routed handler wrapped with CORS.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
	})
	return c.Handler(s.router)
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/instruments", s.handleInstruments).Methods("GET")
	api.HandleFunc("/instruments/{symbol}", s.handleInstrument).Methods("GET")
	api.HandleFunc("/mirrors", s.handleMirrors).Methods("GET")
	api.HandleFunc("/mirrors/{id}", s.handleMirror).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start runs the hub and serves until Shutdown is called.
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.log.Infow("api_listening", "addr", addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and closes the hub.
func (s *Server) Shutdown(ctx context.Context) error {
	s.hub.Stop()
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	ectx := s.engine.Context()
	resp := StatusResponse{
		Operator:      ectx.Operator.Hex(),
		Tracked:       ectx.Tracked.Hex(),
		NativeBalance: ectx.NativeBalance,
		StartedAt:     s.started.UTC(),
		Uptime:        time.Since(s.started).Truncate(time.Second).String(),
		Engine:        s.engine.Stats(),
	}
	if s.chainID != nil {
		resp.ChainID = s.chainID.String()
	}
	if s.queue != nil {
		resp.Queue = s.queue.Stats()
	}
	respondJSON(w, resp)
}

func (s *Server) handleInstruments(w http.ResponseWriter, r *http.Request) {
	states := s.engine.Context().Instruments()
	out := make([]InstrumentInfo, len(states))
	for i, st := range states {
		out[i] = instrumentInfo(st)
	}
	respondJSON(w, out)
}

func (s *Server) handleInstrument(w http.ResponseWriter, r *http.Request) {
	symbol := mux.Vars(r)["symbol"]
	for _, st := range s.engine.Context().Instruments() {
		if st.Symbol == symbol {
			respondJSON(w, instrumentInfo(st))
			return
		}
	}
	respondError(w, http.StatusNotFound, "instrument not found", symbol)
}

func (s *Server) handleMirrors(w http.ResponseWriter, r *http.Request) {
	limit := defaultMirrorLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "invalid limit", v)
			return
		}
		limit = min(n, maxMirrorLimit)
	}

	recs, err := s.mirrors.RecentMirrors(limit, r.URL.Query().Get("symbol"))
	if err != nil {
		s.log.Errorw("journal_read_failed", "err", err)
		respondError(w, http.StatusInternalServerError, "journal unavailable", err.Error())
		return
	}
	if recs == nil {
		recs = []*storage.MirrorRecord{}
	}
	respondJSON(w, MirrorsResponse{Count: len(recs), Mirrors: recs})
}

func (s *Server) handleMirror(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	rec, err := s.mirrors.GetMirror(id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "mirror not found", id)
		return
	}
	if err != nil {
		s.log.Errorw("journal_read_failed", "id", id, "err", err)
		respondError(w, http.StatusInternalServerError, "journal unavailable", err.Error())
		return
	}
	respondJSON(w, rec)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]string{"status": "ok"})
}

// ==============================
// Helper Functions
// ==============================

func instrumentInfo(st perp.InstrumentState) InstrumentInfo {
	return InstrumentInfo{
		Symbol:        st.Symbol,
		Address:       st.Address.Hex(),
		TargetSize:    st.TargetSize,
		Decimals:      st.Decimals,
		LocalAmountIn: st.LocalAmountIn,
		Balance:       st.Balance,
		Tradable:      st.Tradable,
	}
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}
