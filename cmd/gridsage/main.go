package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gridsage/gridsage/internal/adapter/csvstore"
	gshttp "github.com/gridsage/gridsage/internal/adapter/http"
	"github.com/gridsage/gridsage/internal/adapter/mcp"
	gsnats "github.com/gridsage/gridsage/internal/adapter/nats"
	"github.com/gridsage/gridsage/internal/adapter/openai"
	"github.com/gridsage/gridsage/internal/adapter/otel"
	"github.com/gridsage/gridsage/internal/adapter/postgres"
	"github.com/gridsage/gridsage/internal/adapter/ristretto"
	"github.com/gridsage/gridsage/internal/adapter/ws"
	"github.com/gridsage/gridsage/internal/config"
	"github.com/gridsage/gridsage/internal/logger"
	"github.com/gridsage/gridsage/internal/port/database"
	"github.com/gridsage/gridsage/internal/resilience"
	"github.com/gridsage/gridsage/internal/service"
)

const version = "0.1.0"

func main() {
	cmd := "serve"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "serve":
		err = runServe()
	case "chat":
		err = runChat()
	default:
		fmt.Fprintf(os.Stderr, "usage: gridsage [serve|chat]\n")
		os.Exit(2)
	}
	if err != nil {
		slog.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logClose := logger.New(cfg.Logging)
	slog.SetDefault(log)
	defer logClose.Close()

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"reasoner_model", cfg.Reasoner.Model,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	otelShutdown, err := otel.Setup(ctx, cfg.Logging.Service, cfg.Telemetry.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = otelShutdown(shutdownCtx)
	}()

	metrics, err := otel.NewMetrics()
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	// --- Energy data ---
	cache, err := ristretto.New(cfg.Cache.MaxSizeMB)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	defer cache.Close()

	loader := csvstore.NewCached(csvstore.New(cfg.Storage), cache, cfg.Storage.CacheTTL)

	// Startup probe only. A failure here is not fatal: queries answer with
	// the data-unavailable apology until the directories appear.
	if _, err := loader.Load(ctx); err != nil {
		slog.Warn("energy data unavailable at startup", "error", err)
	} else {
		slog.Info("energy data loaded",
			"interval_dir", cfg.Storage.IntervalDir,
			"billing_dir", cfg.Storage.BillingDir,
		)
	}

	// --- Optional persistence ---
	var dbStore database.Store
	if cfg.Postgres.DSN != "" {
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("postgres: %w", err)
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrations: %w", err)
		}
		dbStore = postgres.NewStore(pool)
		slog.Info("postgres connected")
	}

	// --- Services ---
	sessions := service.NewSessionManager(dbStore, cfg.Session.TTL)
	sessions.StartSweep(ctx, cfg.Session.SweepInterval)

	tools := service.NewToolRegistry(loader)
	breaker := resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout)
	reasonerClient := openai.NewClient(cfg.Reasoner)

	agent := service.NewAgentService(reasonerClient, tools, loader, sessions, breaker, cfg.Agent)
	agent.SetMetrics(metrics)

	hub := ws.NewHub()
	agent.SetBroadcaster(hub)

	if cfg.NATS.URL != "" {
		queue, err := gsnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() { _ = queue.Close() }()
		agent.SetQueue(queue)
		slog.Info("nats connected")
	}

	// --- MCP ---
	if cfg.MCP.Addr != "" {
		mcpSrv := mcp.NewServer(mcp.ServerConfig{
			Addr:    cfg.MCP.Addr,
			Name:    "gridsage",
			Version: version,
		}, tools)
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mcpSrv.Stop(stopCtx)
		}()
	}

	// --- HTTP ---
	handlers := gshttp.NewHandlers(agent, sessions, loader)
	router := gshttp.NewRouter(handlers, hub, cfg.Server)

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	slog.Info("server stopped")
	return nil
}
