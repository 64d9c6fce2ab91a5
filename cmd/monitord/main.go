package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/brojonat/walletwatch/service/config"
	"github.com/brojonat/walletwatch/service/metrics"
	"github.com/brojonat/walletwatch/service/monitor"
	"github.com/brojonat/walletwatch/service/notify"
	"github.com/brojonat/walletwatch/service/registry"
	solanapkg "github.com/brojonat/walletwatch/service/solana"
	"github.com/brojonat/walletwatch/service/telegram"
	"github.com/brojonat/walletwatch/service/watch"
)

func main() {
	// Load and validate configuration from environment
	cfg := config.MustLoad()

	// Setup structured logging
	logger := setupLogger(cfg.LogLevel)
	logger.Info("starting wallet monitor daemon",
		"rpc_url", cfg.SolanaRPCURL,
		"state_backend", cfg.StateBackend,
		"poll_interval", cfg.PollInterval,
		"log_level", cfg.LogLevel,
	)

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize the wallet store
	store, cleanup, err := buildStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize wallet store", "error", err)
		os.Exit(1)
	}
	defer cleanup()

	// Initialize Prometheus metrics collector
	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	// Start metrics HTTP server
	metricsServer := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: promhttp.Handler(),
	}
	go func() {
		logger.Info("starting metrics HTTP server", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown metrics server", "error", err)
		}
	}()

	// Initialize the Solana RPC client
	chain := solanapkg.NewClient(
		solanapkg.NewRPCClient(cfg.SolanaRPCURL),
		cfg.RPCTimeout,
		metricsCollector,
		logger,
	)
	logger.Info("initialized solana RPC client", "url", cfg.SolanaRPCURL)

	// Initialize the token registry with the default source chain
	tokens := registry.New(
		registry.DefaultSources(registry.NewHTTPClient(cfg.LookupTimeout)),
		cfg.LookupTimeout,
		metricsCollector,
		logger,
	)

	// Initialize the Telegram bot (command surface + notification channel)
	bot := telegram.NewBot(cfg.TelegramBotToken, cfg.RPCTimeout, logger)

	// Optional NATS fan-out of structured activity events
	var publisher notify.Publisher
	if cfg.NATSURL != "" {
		natsPublisher, err := notify.NewPublisher(cfg.NATSURL, logger)
		if err != nil {
			logger.Error("failed to create NATS publisher", "error", err)
			os.Exit(1)
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
	}

	mon := monitor.New(
		store,
		chain,
		tokens,
		bot,
		publisher,
		cfg.PollInterval,
		cfg.ErrorBackoff,
		metricsCollector,
		logger,
	)

	// Run the command handler and the monitor loop until shutdown
	handler := telegram.NewHandler(store, chain, logger)

	errs := make(chan error, 2)
	go func() { errs <- telegram.RunPolling(ctx, bot, handler, logger) }()
	go func() { errs <- mon.Run(ctx) }()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())
	case err := <-errs:
		if err != nil && err != context.Canceled {
			logger.Error("background loop exited", "error", err)
		}
	}

	cancel()
	logger.Info("shutdown complete")
}

// buildStore selects the persistence backend named by the configuration.
func buildStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (watch.Store, func(), error) {
	switch cfg.StateBackend {
	case config.StateBackendPostgres:
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		store := watch.NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		logger.Info("connected to database")
		return store, pool.Close, nil
	default:
		store, err := watch.NewFileStore(cfg.StateFile, logger)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened state snapshot", "path", cfg.StateFile)
		return store, func() {}, nil
	}
}

// setupLogger creates a structured logger with the given log level.
func setupLogger(levelStr string) *slog.Logger {
	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
