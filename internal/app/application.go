// Package app assembles the server from its components and owns their
// lifecycle.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"registrar/internal/api"
	"registrar/internal/config"
	"registrar/internal/store"
	"registrar/internal/websocket"
	dbconfig "registrar/pkg/database"
)

// Application wires the store, the websocket surface and the HTTP server.
// Initialization order is store, migrations and admin bootstrap, then the
// connection layer, then HTTP.
type Application struct {
	config     *config.Config
	store      *store.Store
	registry   *websocket.Registry
	wsHandler  *websocket.Handler
	apiServer  *api.Server
	httpServer *http.Server
}

func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbCfg := &dbconfig.Config{
		Path:            cfg.Database.Path,
		MaxConnections:  10,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
	}

	st, err := store.NewStore(dbCfg, cfg.Registrar.MaxCoursesPerStudent)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	if err := dbconfig.NewMigrationManager(st.DB()).ApplyMigrations(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	if err := st.EnsureAdmin(context.Background(), cfg.Registrar.AdminUsername, cfg.Registrar.AdminPassword); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("failed to provision admin account: %w", err)
	}

	registry := websocket.NewRegistry()
	limiter := websocket.NewRateLimiter(cfg.Registrar.RateLimitPerMinute)

	wsHandler := websocket.NewHandler(registry, st, limiter)
	wsHandler.SetTimeouts(cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)

	apiServer := api.NewServer(st, registry)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.HandleWebSocket)
	mux.Handle("/health", apiServer)
	mux.Handle("/api/", apiServer)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		store:      st,
		registry:   registry,
		wsHandler:  wsHandler,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start brings up the HTTP listener and returns once it is accepting
// connections or has failed.
func (app *Application) Start(ctx context.Context) error {
	log.Info().Str("addr", app.httpServer.Addr).Msg("starting registrar server")

	serverErrCh := make(chan error, 1)
	go func() {
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrCh <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	select {
	case err := <-serverErrCh:
		return err
	case <-time.After(100 * time.Millisecond):
		log.Info().Msg("registrar server started")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop shuts components down in reverse order: stop accepting HTTP,
// close live connections, then close the store.
func (app *Application) Stop(ctx context.Context) error {
	log.Info().Msg("shutting down registrar server")

	if err := app.httpServer.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	app.registry.CloseAll()

	if err := app.store.Close(); err != nil {
		log.Error().Err(err).Msg("store shutdown error")
	}

	log.Info().Msg("registrar server shutdown complete")
	return nil
}

// Addr returns the configured listen address.
func (app *Application) Addr() string {
	return app.httpServer.Addr
}
