// Ladder Bot — an automated ladder market maker / mean-reversion bot for
// hourly Polymarket Bitcoin up-or-down markets.
//
// Architecture:
//
//	main.go               — entry point: loads config, starts engine, waits for SIGINT/SIGTERM
//	engine/engine.go      — orchestrator: drives the tick loop, wires scanner/strategy/exchange
//	strategy/engine.go    — per-event ladder Strategy Engine: placement, fills, accumulation, exits
//	strategy/tracker.go   — Order Tracker: monotonic fill accounting per order
//	strategy/accumulator.go — Fill Accumulator: aggregates sub-minimum partial buys into sellable lots
//	strategy/pendingsell.go — Pending-Sell Queue: retries sell placements blocked on balance
//	strategy/stoploss.go  — Stop-Loss Monitor: client-side OCO cancel + market-crossing sell
//	market/scanner.go     — discovers hourly events by deterministic slug against the Gamma API
//	market/book.go        — best-bid lookup via REST order-book polling
//	exchange/client.go    — REST client for the Polymarket CLOB API
//	exchange/auth.go      — L1 (EIP-712) and L2 (HMAC) authentication
//	notify/telegram.go    — best-effort operator notifications over the Telegram Bot API
//
// How it makes money:
//
//	The bot ladders buy orders below the current price on both outcomes of
//	an hourly up-or-down market while it is still PRE_MARKET. As buys fill,
//	it accumulates partial sizes per rung until a sellable lot forms, then
//	posts a take-profit sell at a configured exit price. Once the market
//	goes LIVE, all remaining buys are cancelled and the event enters a
//	pure-exit phase, protected by a client-side stop-loss.
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"ladderbot/internal/api"
	"ladderbot/internal/config"
	"ladderbot/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("POLY_CONFIG"); p != "" {
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

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	healthServer := api.NewServer(cfg.Health, logger)
	go func() {
		if err := healthServer.Start(); err != nil {
			logger.Error("health server failed", "error", err)
		}
	}()

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	if cfg.DryRun {
		logger.Warn("DRY-RUN MODE — no real orders will be placed")
	}

	logger.Info("ladder bot started",
		"ladder_levels", len(cfg.Strategy.LadderLevels),
		"order_size", cfg.Strategy.OrderSize,
		"scanner_prefix", cfg.Scanner.SlugPrefix,
		"dry_run", cfg.DryRun,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	if err := healthServer.Stop(); err != nil {
		logger.Error("failed to stop health server", "error", err)
	}

	eng.Stop()
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
