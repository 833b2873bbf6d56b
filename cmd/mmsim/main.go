// mmsim — a market-making trading core with a simulated exchange.
//
// Architecture:
//
//	main.go               — entry point: loads config, starts manager + API, waits for SIGINT/SIGTERM
//	session/manager.go    — session registry: start/stop/poll/trade/reset/update_params
//	session/session.go    — per-session driver: tick pipeline, execution model, equity accounting
//	session/analytics.go  — Sharpe, Sortino, Calmar, drawdown, win rate, profit factor
//	strategy/strategy.go  — EKF market maker: ring buffer + diagonal Kalman filter signal
//	sim/simulator.go      — tick engine: fair value walk, participant polling, bar assembly
//	sim/participant.go    — seven synthetic trader behaviors behind one dispatch switch
//	book/book.go          — price-time priority order book with btree level ladders
//	risk/guard.go         — per-session drawdown and loss-floor kill switch
//	api/server.go         — HTTP/JSON control surface + WebSocket snapshot stream + /metrics
//	store/store.go        — atomic JSON persistence of final session reports
//
// How a session runs:
//
//	Each poll advances one simulator tick: participants quote and trade
//	against the owned book, the bar closes, the strategy filters the new
//	close through its Kalman state and emits Buy/Sell/Hold, the driver
//	executes under the transaction-cost model, and equity is marked.
//	Everything is deterministic per seed.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"mmsim/internal/api"
	"mmsim/internal/config"
	"mmsim/internal/metrics"
	"mmsim/internal/risk"
	"mmsim/internal/session"
	"mmsim/internal/sim"
	"mmsim/internal/store"
	"mmsim/pkg/types"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("MMSIM_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Set up logger
	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	execModel, err := session.ParseExecModel(cfg.Execution.Model)
	if err != nil {
		logger.Error("invalid execution model", "error", err)
		os.Exit(1)
	}

	st, err := store.Open(cfg.Store.DataDir)
	if err != nil {
		logger.Error("failed to open report store", "error", err)
		os.Exit(1)
	}

	mets := metrics.New()

	manager := session.NewManager(session.Config{
		Sim: sim.Config{
			Participants: cfg.Sim.Participants,
			TickValue:    cfg.Sim.TickValue,
			InitialFair:  cfg.Sim.InitialFair,
			SigmaFvBps:   cfg.Sim.SigmaFvBps,
			BarWindow:    cfg.Sim.BarWindow,
		},
		Exec: session.ExecConfig{
			Model:          execModel,
			SlippageBps:    cfg.Execution.SlippageBps,
			ImpactFactor:   cfg.Execution.ImpactFactor,
			CommissionRate: cfg.Execution.CommissionRate,
		},
		Risk: risk.Limits{
			MaxDrawdownPct: cfg.Risk.MaxDrawdownPct,
			MaxLossPct:     cfg.Risk.MaxLossPct,
		},
		TicksPerYear: cfg.Execution.TicksPerYear,
		RiskFreeRate: cfg.Execution.RiskFreeRate,
		RecentTrades: cfg.Execution.RecentTrades,
		VolumeWindow: cfg.Execution.VolumeWindow,
	}, st, mets, logger)

	defaults := types.ParamBundle{
		MaxInventory:      cfg.Strategy.MaxInventory,
		EntryThresholdBps: cfg.Strategy.EntryThresholdBps,
		ProcessNoise:      cfg.Strategy.ProcessNoise,
		MeasurementNoise:  cfg.Strategy.MeasurementNoise,
		Lookback:          cfg.Strategy.Lookback,
		AutoTrade:         cfg.Strategy.AutoTrade,
	}

	srv := api.NewServer(cfg.Server, manager, st, defaults, mets, logger)

	logger.Info("mmsim started",
		"port", cfg.Server.Port,
		"participants", cfg.Sim.Participants,
		"execution_model", cfg.Execution.Model,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		return srv.Stop()
	})

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
	logger.Info("shutdown complete")
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
