// Package main provides the peerchat server executable with the REST API and
// WebSocket live channels.
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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/coregx/peerchat"
	"github.com/coregx/peerchat/adapters/logging"
	"github.com/coregx/peerchat/cmd/peerchat-server/internal/api"
	"github.com/coregx/peerchat/cmd/peerchat-server/internal/config"
	"github.com/coregx/peerchat/cmd/peerchat-server/internal/metrics"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	zl := logging.New(os.Stdout, cfg.IsDevelopment())
	if err := run(cfg, zl); err != nil {
		zl.Fatal().Err(err).Msg("server failed")
	}
}

func run(cfg *config.Config, zl zerolog.Logger) error {
	logger := logging.NewZerolog(zl)

	zl.Info().
		Str("env", cfg.Env).
		Str("driver", cfg.Database.Driver).
		Int("port", cfg.Server.Port).
		Msg("starting peerchat server")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	backend, err := openBackend(connectCtx, cfg.Database)
	cancel()
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := backend.Close(); closeErr != nil {
			zl.Error().Err(closeErr).Msg("failed to close message store")
		}
	}()
	zl.Info().Str("driver", cfg.Database.Driver).Msg("message store ready")

	m := metrics.New(prometheus.DefaultRegisterer)

	store, err := peerchat.NewMessageStore(
		peerchat.WithStoreRepository(backend),
		peerchat.WithStoreLogger(logger),
		peerchat.WithMaxTextLength(cfg.Chat.MaxTextLength),
	)
	if err != nil {
		return err
	}

	gateway, err := peerchat.NewGateway(
		peerchat.WithMessageStore(store),
		peerchat.WithLogger(logger),
		peerchat.WithPushTimeout(cfg.Chat.PushTimeout),
		peerchat.WithNotifications(peerchat.MultiNotificationService{
			m,
			peerchat.NewLoggingNotificationService(logger),
		}),
	)
	if err != nil {
		return err
	}

	history, err := peerchat.NewHistoryService(
		peerchat.WithHistoryStore(store),
		peerchat.WithHistoryLogger(logger),
	)
	if err != nil {
		return err
	}

	router := api.NewRouter(api.RouterConfig{
		Handler: api.NewHandler(gateway, history, backend, m.HistoryRequests, logger),
		WS: api.NewWSHandler(gateway, api.WSConfig{
			PingInterval: cfg.Chat.WSPingInterval,
			WriteTimeout: cfg.Chat.WSWriteTimeout,
			SendBuffer:   cfg.Chat.WSSendBuffer,
		}, logger),
		Auth:     api.NewAuthenticator(cfg.Auth.JWTSecret),
		Metrics:  m,
		Gatherer: prometheus.DefaultGatherer,
		Log:      zl,
	})

	// WriteTimeout is left unset: live channels manage their own write deadlines.
	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           router,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info().Str("addr", server.Addr).Msg("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info().Msg("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Warn().Err(err).Msg("server forced to shutdown")
	}

	zl.Info().Msg("server stopped gracefully")
	return nil
}
