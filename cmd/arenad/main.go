// Command arenad runs the Worldbuild Arena match orchestrator: the HTTP/JSON
// + SSE API (internal/api), the two-team match pipeline (internal/matchrunner),
// and blind judging (internal/judging), backed by a SQLite event log.
//
// Grounded on smilemakc-mbflow's backend/pkg/server.Server lifecycle: build
// dependencies, start the HTTP server in a goroutine, wait for SIGINT/SIGTERM,
// then drain and close dependents in order before exiting.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wbarena/arena/internal/api"
	"github.com/wbarena/arena/internal/config"
	"github.com/wbarena/arena/internal/convstate"
	"github.com/wbarena/arena/internal/eventlog"
	"github.com/wbarena/arena/internal/judging"
	"github.com/wbarena/arena/internal/llm"
	"github.com/wbarena/arena/internal/logger"
	"github.com/wbarena/arena/internal/matchhub"
	"github.com/wbarena/arena/internal/matchrunner"
	prommetrics "github.com/wbarena/arena/internal/metrics/prometheus"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logger.Error("arenad exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("arenad: load config: %w", err)
	}

	db, err := eventlog.NewDB(eventlog.Config{Path: cfg.DBPath})
	if err != nil {
		return fmt.Errorf("arenad: open database: %w", err)
	}
	defer func() {
		if cerr := eventlog.Close(db); cerr != nil {
			logger.Error("arenad: closing database", "error", cerr)
		}
	}()

	repo := eventlog.NewRepository(db)

	convState, closeConvState, err := buildConvState(cfg)
	if err != nil {
		return fmt.Errorf("arenad: build conversation state store: %w", err)
	}
	defer closeConvState()

	adapter, err := llm.NewAdapter(cfg.LLM)
	if err != nil {
		return fmt.Errorf("arenad: build llm adapter: %w", err)
	}

	hub := matchhub.New()
	runner := matchrunner.New(repo, hub, adapter, convState)
	judgingStore := judging.New(repo)
	server := api.New(repo, hub, runner, judgingStore, cfg.LLM.Provider)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	metricsExporter := prommetrics.NewExporter(cfg.MetricsAddr)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("arenad: http server listening", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
			return
		}
		errCh <- nil
	}()
	go func() {
		logger.Info("arenad: metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsExporter.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("metrics server: %w", err)
			return
		}
		errCh <- nil
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("arenad: received signal, shutting down", "signal", sig.String())
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("arenad: http server shutdown", "error", err)
		_ = httpServer.Close()
	}
	if err := metricsExporter.Shutdown(ctx); err != nil {
		logger.Error("arenad: metrics server shutdown", "error", err)
	}

	logger.Info("arenad: shutdown complete")
	return nil
}

// buildConvState wires a Redis-backed conversation state store when
// REDIS_ADDR is configured, falling back to an in-memory store for
// single-instance deployments. The returned close func is always safe to
// call and releases any underlying connection.
func buildConvState(cfg config.Config) (convstate.Store, func(), error) {
	if !cfg.UseRedis() {
		return convstate.NewMemoryStore(), func() {}, nil
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, func() {}, fmt.Errorf("redis ping: %w", err)
	}

	store := convstate.NewRedisStore(client)
	return store, func() {
		if err := client.Close(); err != nil {
			logger.Error("arenad: closing redis client", "error", err)
		}
	}, nil
}
