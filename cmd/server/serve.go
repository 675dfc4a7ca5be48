// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tomtom215/riskguard/internal/alert"
	"github.com/tomtom215/riskguard/internal/api"
	"github.com/tomtom215/riskguard/internal/auth"
	"github.com/tomtom215/riskguard/internal/clock"
	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/engine"
	"github.com/tomtom215/riskguard/internal/escalation"
	"github.com/tomtom215/riskguard/internal/eventprocessor"
	"github.com/tomtom215/riskguard/internal/identity"
	"github.com/tomtom215/riskguard/internal/load"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/supervisor"
	"github.com/tomtom215/riskguard/internal/supervisor/services"
	"github.com/tomtom215/riskguard/internal/websocket"
)

// runServer builds every component, starts the supervisor tree and blocks
// until SIGINT or SIGTERM.
func runServer(parent context.Context, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logging.Info().
		Str("version", version).
		Str("storage", cfg.Storage.Backend).
		Str("review_resolution", cfg.Escalation.ReviewResolution).
		Msg("Starting riskguard")

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	resources := &supervisor.Resources{}
	defer func() {
		if err := resources.Close(); err != nil {
			logging.Error().Err(err).Msg("Failed to release resources")
		}
	}()

	// === STATE ===

	store, closer, err := escalation.OpenStore(cfg.Storage.Backend, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open escalation store: %w", err)
	}
	resources.Add("escalation-store", closer)

	// === COLLABORATORS ===

	provider, err := identity.New(cfg.Identity, cfg.Actions.RateLimit)
	if err != nil {
		return fmt.Errorf("identity provider: %w", err)
	}

	probe, cpu := load.New(cfg.Load)

	hub := websocket.NewHub()
	hub.SetCheckOrigin(checkOrigin(cfg.Server.CORSOrigins))

	dispatcher, dashboard := alert.New(cfg.Alerts, hub, clock.Real{})

	eng, err := engine.New(ctx, cfg, engine.Dependencies{
		Store:    store,
		Identity: provider,
		Load:     probe,
		Alerts:   dispatcher,
		Events:   hub,
		Clock:    clock.Real{},
	})
	if err != nil {
		return fmt.Errorf("engine: %w", err)
	}

	// === SUPERVISOR TREE ===

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		return fmt.Errorf("supervisor tree: %w", err)
	}

	tree.AddEngineService(engine.NewSweeper(eng))
	if cpu != nil {
		tree.AddEngineService(cpu)
		logging.Info().Msg("CPU load probe added to supervisor tree")
	}
	tree.AddMessagingService(hub)

	var ingestor *eventprocessor.Ingestor
	if cfg.Ingest.Enabled {
		ingestor, err = eventprocessor.New(cfg.Ingest, eng, nil)
		if err != nil {
			return fmt.Errorf("signal ingest: %w", err)
		}
		resources.Add("signal-ingest", ingestor)
		tree.AddMessagingService(ingestor)
		logging.Info().
			Str("backend", cfg.Ingest.Backend).
			Str("topic", ingestor.Topic()).
			Msg("Signal ingest added to supervisor tree")
	}

	if cfg.Server.Enabled {
		handler, err := buildHTTPHandler(cfg, eng, hub, dashboard, ingestor)
		if err != nil {
			return err
		}
		addr := cfg.Server.Addr()
		tree.AddAPIService(services.NewHTTPServerService(func() services.HTTPServer {
			return &http.Server{
				Addr:              addr,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
				ReadTimeout:       cfg.Server.Timeout,
				WriteTimeout:      cfg.Server.Timeout,
				IdleTimeout:       2 * cfg.Server.Timeout,
			}
		}, 10*time.Second))
		logging.Info().Str("addr", addr).Msg("HTTP server service added")
	}

	if path := configFilePath(configPath); path != "" {
		watchLogLevel(path)
	}

	// === START ===

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	logging.Info().Msg("Starting supervisor tree...")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	if len(unstopped) > 0 {
		logging.Warn().Int("count", len(unstopped)).Msg("Services failed to stop within timeout")
		for _, svc := range unstopped {
			logging.Warn().Str("service", svc.Name).Msg("Service failed to stop")
		}
	}

	stats := eng.Stats()
	logging.Info().
		Int64("signals_recorded", stats.SignalsRecorded).
		Int64("signals_ignored", stats.SignalsIgnored).
		Msg("Application stopped gracefully")
	return nil
}

// buildHTTPHandler assembles the API handler, auth and chi middleware.
func buildHTTPHandler(cfg *config.Config, eng *engine.Engine, hub *websocket.Hub, dashboard *alert.DashboardChannel, ingestor *eventprocessor.Ingestor) (http.Handler, error) {
	opts := []api.HandlerOption{api.WithWebSocket(hub.ServeWS, hub)}
	if dashboard != nil {
		opts = append(opts, api.WithAlertFeed(dashboard))
	}
	if ingestor != nil {
		opts = append(opts, api.WithPublisher(ingestor))
	}
	handler := api.NewHandler(eng, opts...)

	var authMW *auth.Middleware
	if cfg.Server.JWTSecret != "" {
		jwtManager, err := auth.NewJWTManager(cfg.Server.JWTSecret, cfg.Server.AdminTokenTTL)
		if err != nil {
			return nil, fmt.Errorf("admin auth: %w", err)
		}
		authMW = auth.NewMiddleware(jwtManager)
	} else {
		logging.Warn().Msg("JWT secret not set; admin endpoints will answer 503")
	}

	if len(cfg.Server.CORSOrigins) == 1 && cfg.Server.CORSOrigins[0] == "*" && authMW != nil {
		logging.Warn().Msg("CORS allows every origin while admin endpoints are enabled")
	}

	router := api.NewRouter(handler, api.NewEdge(api.EdgePolicyFromServer(cfg.Server)), authMW)
	return router.SetupChi(), nil
}

// checkOrigin accepts WebSocket upgrades from the configured CORS origins.
// A wildcard or an empty list accepts every origin.
func checkOrigin(allowed []string) func(r *http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(*http.Request) bool { return true }
		}
		set[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	if len(set) == 0 {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := set[strings.TrimRight(strings.ToLower(origin), "/")]
		return ok
	}
}

// watchLogLevel re-reads the config file on change and applies the new log
// level. Everything else needs a restart.
func watchLogLevel(path string) {
	err := config.WatchConfigFile(path, func() {
		reloaded, err := config.LoadFile(path)
		if err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid config change")
			return
		}
		if err := logging.SetLevel(reloaded.Logging.Level); err != nil {
			logging.Warn().Err(err).Str("path", path).Msg("Ignoring invalid log level")
			return
		}
		logging.Info().
			Str("level", reloaded.Logging.Level).
			Msg("Config file changed; log level applied, other settings need a restart")
	})
	if err != nil {
		logging.Warn().Err(err).Str("path", path).Msg("Config hot reload unavailable")
	}
}
