package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"nftpawn/config"
	"nftpawn/core/events"
	"nftpawn/core/state"
	"nftpawn/native/bank"
	nativecommon "nftpawn/native/common"
	"nftpawn/native/pawn"
	"nftpawn/observability"
	"nftpawn/observability/metrics"
	"nftpawn/rpc"
	"nftpawn/storage"
)

// node bundles the storage, ledger, engine and API built from a config.
type node struct {
	db     storage.Database
	ledger *bank.Ledger
	engine *pawn.Engine
	pauses *nativecommon.PauseSet
	api    *rpc.Server
}

func newNode(cfg *config.Config, logger *slog.Logger) (*node, error) {
	db, err := storage.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	n, err := assemble(cfg, db, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("node assembled", "storage", cfg.Storage, "programid", n.engine.ProgramID().String())
	return n, nil
}

func assemble(cfg *config.Config, db storage.Database, logger *slog.Logger) (*node, error) {
	programID, err := cfg.Program()
	if err != nil {
		return nil, err
	}
	manager := state.NewManager(db)
	emitter := events.Fanout{
		events.LogEmitter{Logger: logger.With("component", "events")},
		observability.Events(),
	}

	ledger, err := bank.NewLedger(manager)
	if err != nil {
		return nil, err
	}
	ledger.SetEmitter(emitter)
	signer, err := ledger.RegisterProgram(programID)
	if err != nil {
		return nil, fmt.Errorf("register program: %w", err)
	}

	engine, err := pawn.NewEngine(manager, ledger, signer)
	if err != nil {
		return nil, err
	}
	pauses := nativecommon.NewPauseSet(cfg.Pauses.Modules()...)
	engine.SetEmitter(emitter)
	engine.SetLogger(logger)
	engine.SetPauses(pauses)
	engine.SetObserver(metrics.Pawn())
	if err := engine.SetDefaultFeeBps(cfg.Pool.FeeBps); err != nil {
		return nil, err
	}

	api, err := rpc.New(rpc.Config{
		Engine: engine,
		Ledger: ledger,
		Logger: logger,
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             cfg.RateLimit.Burst,
		},
		Auth: rpc.Auth{
			ClockSkew:   time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
			MaxTokenAge: time.Duration(cfg.Auth.MaxTokenAgeSeconds) * time.Second,
		},
		Faucet: rpc.Faucet{Enabled: cfg.Faucet.Enabled, Token: cfg.Faucet.Token},
	})
	if err != nil {
		return nil, err
	}
	return &node{db: db, ledger: ledger, engine: engine, pauses: pauses, api: api}, nil
}

func (n *node) Handler() http.Handler {
	return n.api.Handler()
}

func (n *node) Close() {
	if n.db != nil {
		n.db.Close()
	}
}
