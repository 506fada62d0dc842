package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"uplink/internal/api"
	"uplink/internal/auth"
	"uplink/internal/broker"
	"uplink/internal/config"
	"uplink/internal/history"
	"uplink/internal/ratelimit"
	"uplink/internal/session"
	"uplink/internal/websocket"
)

// Application wires the relay components together and owns their lifecycle.
// Initialization order: registry, limiter, history, authority, broker,
// transport, HTTP. Shutdown runs in reverse.
type Application struct {
	config     *config.Config
	logger     *slog.Logger
	broker     *broker.Broker
	httpServer *http.Server
}

// New builds a fully wired application from validated configuration.
func New(cfg *config.Config) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg.Log)

	registry := session.NewRegistry()
	limiter := ratelimit.NewLimiter(cfg.Relay.RateWindow, cfg.Relay.RateThreshold, cfg.Relay.RatePenalty)
	hist := history.NewBuffer(cfg.Relay.HistoryCapacity)
	authority := auth.NewAuthority(cfg.Relay.AdminKey)

	b := broker.New(registry, limiter, hist, authority, broker.Options{
		MaxMessageLen: cfg.Relay.MaxMessageLength,
		EventBuffer:   cfg.Relay.EventBuffer,
	}, logger)

	wsHandler := websocket.NewHandler(b, websocket.Settings{
		WriteTimeout:   cfg.WebSocket.WriteTimeout,
		PingInterval:   cfg.WebSocket.PingInterval,
		PongWait:       cfg.WebSocket.PongWait,
		SendBufferSize: cfg.WebSocket.SendBufferSize,
		MaxFrameSize:   cfg.WebSocket.MaxFrameSize,
	}, cfg.HTTP.AllowedOrigins, logger)

	apiServer := api.NewServer(b, wsHandler, logger)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		logger:     logger,
		broker:     b,
		httpServer: httpServer,
	}, nil
}

// Logger exposes the application logger for the entrypoint.
func (app *Application) Logger() *slog.Logger { return app.logger }

// Start launches the broker and the HTTP server. It returns once the server
// is accepting connections, or with the startup error.
func (app *Application) Start(ctx context.Context) error {
	app.logger.Info("starting uplink relay", "addr", app.httpServer.Addr)

	if err := app.broker.Start(ctx); err != nil {
		return fmt.Errorf("starting broker: %w", err)
	}

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		_ = app.broker.Stop()
		return err
	case <-time.After(100 * time.Millisecond):
		app.logger.Info("uplink relay ready")
		return nil
	case <-ctx.Done():
		_ = app.broker.Stop()
		return ctx.Err()
	}
}

// Stop shuts the application down: HTTP first so no new events arrive, then
// the broker.
func (app *Application) Stop(ctx context.Context) error {
	app.logger.Info("shutting down uplink relay")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		app.logger.Warn("HTTP server shutdown", "error", err)
	}

	if err := app.broker.Stop(); err != nil {
		return fmt.Errorf("stopping broker: %w", err)
	}

	app.logger.Info("shutdown complete")
	return nil
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
