// Command server runs the external table catalog HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"

	"duck-connect/internal/app"
	"duck-connect/internal/config"
	internaldb "duck-connect/internal/db"
	"duck-connect/internal/middleware"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := config.LoadDotEnv(".env"); err != nil {
		slog.Warn("could not load .env", "error", err)
	}
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := newLogger(cfg, os.Stdout)
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings {
		logger.Warn("config", "warning", w)
	}

	a, handler, cleanup, err := setup(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP API listening", "addr", cfg.ListenAddr, "store", cfg.CatalogStore,
			"connectors", a.Connectors.Types(), "member", cfg.MemberIndex, "members", cfg.MemberCount)
		logger.Info(fmt.Sprintf("Try: curl http://%s/v1/tables", curlHostForListenAddr(cfg.ListenAddr)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return a.Jobs.Shutdown(shutdownCtx)
}

// setup opens and migrates the metastore when the catalog lives in SQLite,
// wires the application and starts the rate limiter sweeper, which stops
// with ctx. cleanup closes the metastore.
func setup(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app.App, http.Handler, func(), error) {
	cleanup := func() {}
	deps := app.Deps{Cfg: cfg, Logger: logger}
	if cfg.CatalogStore == config.StoreSQLite {
		writeDB, readDB, err := internaldb.OpenSQLitePair(cfg.MetaDBPath, 4)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("open metastore: %w", err)
		}
		cleanup = func() {
			_ = writeDB.Close()
			_ = readDB.Close()
		}

		logger.Info("running catalog migrations", "path", cfg.MetaDBPath)
		if err := internaldb.RunMigrations(writeDB); err != nil {
			cleanup()
			return nil, nil, nil, fmt.Errorf("migrate metastore: %w", err)
		}
		deps.WriteDB = writeDB
		deps.ReadDB = readDB
	}

	a, err := app.New(ctx, deps)
	if err != nil {
		cleanup()
		return nil, nil, nil, err
	}

	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
		RequestsPerSecond: cfg.RateLimitRPS,
		Burst:             cfg.RateLimitBurst,
	})
	go limiter.Run(ctx, 5*time.Minute)

	return a, a.Router(cfg, logger, limiter), cleanup, nil
}

// curlHostForListenAddr turns a listen address into a host:port usable in
// an example URL.
func curlHostForListenAddr(listenAddr string) string {
	addr := strings.TrimSpace(listenAddr)
	if addr == "" {
		return "localhost:8080"
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	return net.JoinHostPort(host, port)
}
