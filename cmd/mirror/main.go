package main

import (
	"context"
	"errors"
	"log"
	"math/big"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/mirrorperp/params"
	"github.com/uhyunpark/mirrorperp/pkg/api"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/dispatch"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/event"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/leverage"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/mempool"
	"github.com/uhyunpark/mirrorperp/pkg/app/core/position"
	"github.com/uhyunpark/mirrorperp/pkg/app/perp"
	"github.com/uhyunpark/mirrorperp/pkg/chain"
	"github.com/uhyunpark/mirrorperp/pkg/crypto"
	"github.com/uhyunpark/mirrorperp/pkg/storage"
	"github.com/uhyunpark/mirrorperp/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg, err := params.LoadFromEnv("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	var logger *zap.Logger
	if cfg.Node.LogFile != "" {
		logger, err = util.NewLoggerWithFile(cfg.Node.LogFile)
	} else {
		logger, err = util.NewLogger()
	}
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sugar); err != nil && !errors.Is(err, context.Canceled) {
		sugar.Fatalw("mirror_failed", "err", err)
	}
	sugar.Info("mirror_stopped")
}

func run(ctx context.Context, cfg params.Config, sugar *zap.SugaredLogger) error {
	signer, err := crypto.FromPrivateKeyHex(cfg.Mirror.PrivateKey)
	if err != nil {
		return err
	}
	operator := signer.Address()

	// ---- Chain connections ----
	// Reads and sends go over HTTP; the log subscription needs a websocket.
	rpc, err := chain.Dial(ctx, cfg.Chain.RPCURL)
	if err != nil {
		return err
	}
	defer rpc.Close()
	ws, err := chain.Dial(ctx, cfg.Chain.WSURL)
	if err != nil {
		return err
	}
	defer ws.Close()

	chainID, err := rpc.ChainID(ctx)
	if err != nil {
		return err
	}
	if chainID.Cmp(big.NewInt(cfg.Chain.ChainID)) != 0 {
		sugar.Warnw("chain_id_mismatch", "configured", cfg.Chain.ChainID, "node", chainID)
	}

	sugar.Infow("mirror_starting",
		"operator", operator.Hex(),
		"tracked", cfg.Mirror.Tracked().Hex(),
		"chain_id", chainID,
		"position_router", cfg.Venue.PositionRouter.Hex(),
		"order_book", cfg.Venue.OrderBook.Hex(),
		"mirror_trigger_orders", cfg.Mirror.MirrorTriggerOrders)

	// ---- Startup state ----
	ectx, err := perp.Bootstrap(ctx, rpc, operator, cfg.Mirror.Tracked(), cfg.Mirror.Instruments, sugar)
	if err != nil {
		return err
	}

	journal, err := storage.NewPebbleJournal(cfg.Node.JournalPath)
	if err != nil {
		return err
	}
	defer journal.Close()

	// ---- Submission queue ----
	queue := mempool.NewQueue(rpc, signer, chainID, sugar, mempool.DefaultDepth)
	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		queue.Run(ctx)
	}()

	// ---- Engine ----
	hub := api.NewHub(sugar)
	engine := perp.NewEngine(ectx, perp.Deps{
		Calculator: leverage.NewCalculator(cfg.Mirror.LeverageScale),
		Positions:  position.NewReaderQuery(rpc, cfg.Venue.Reader, cfg.Venue.Vault, operator, ectx.Registry),
		Router:     dispatch.NewRouterClient(cfg.Venue.PositionRouter, operator, cfg.Mirror.ExecutionFeeDeposit, queue),
		OrderBook:  dispatch.NewOrderBookClient(cfg.Venue.OrderBook, cfg.Mirror.DecreaseOrderFee, queue),
		Confirmer:  chain.NewConfirmer(rpc, cfg.Chain.Confirmations, cfg.Chain.PollInterval, util.RealClock{}),
		Journal:    journal,
		Reporter:   hub,
		Clock:      util.RealClock{},
		Log:        sugar,
	}, perp.Options{
		MirrorTriggerOrders: cfg.Mirror.MirrorTriggerOrders,
		SubmitTimeout:       cfg.Mirror.SubmitTimeout,
		ConfirmTimeout:      cfg.Mirror.ConfirmTimeout,
	})

	// ---- API Server ----
	apiServer := api.NewServer(hub, engine, queue, journal, chainID, sugar)
	go func() {
		if err := apiServer.Start(cfg.Node.APIAddr); err != nil {
			sugar.Errorw("api_server_failed", "err", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiServer.Shutdown(shutdownCtx); err != nil {
			sugar.Warnw("api_shutdown_failed", "err", err)
		}
	}()

	// ---- Event stream ----
	events := make(chan event.RawEvent, 64)
	sub := chain.NewSubscriber(ws, chain.DefaultDecoder(),
		[]common.Address{cfg.Venue.PositionRouter, cfg.Venue.OrderBook}, util.RealClock{}, sugar)
	sub.SetBackoff(cfg.Chain.ResubscribeBackoff)
	go func() {
		if err := sub.Run(ctx, events); err != nil && !errors.Is(err, context.Canceled) {
			sugar.Errorw("subscriber_stopped", "err", err)
		}
	}()

	err = engine.Run(ctx, events)
	// In-flight handlers have finished; the queue drains once ctx is done.
	<-queueDone
	st := engine.Stats()
	sugar.Infow("engine_stopped",
		"received", st.Received,
		"mirrored", st.Mirrored,
		"skipped", st.Skipped,
		"failed", st.Failed)
	return err
}
