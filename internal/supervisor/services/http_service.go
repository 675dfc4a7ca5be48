// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/tomtom215/riskguard/internal/logging"
)

const defaultGrace = 10 * time.Second

// HTTPServer is the part of *http.Server the service drives.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerFactory returns a new server for every run. An *http.Server
// refuses to listen again after Shutdown.
type HTTPServerFactory func() HTTPServer

// HTTPServerService supervises an HTTP listener. Each Serve call builds a
// server from the factory, listens until ctx ends, then drains in-flight
// requests for up to the grace period.
//
//	svc := services.NewHTTPServerService(func() services.HTTPServer {
//	    return &http.Server{Addr: cfg.Server.Addr(), Handler: router}
//	}, cfg.Server.Timeout)
//	tree.AddAPIService(svc)
type HTTPServerService struct {
	newServer HTTPServerFactory
	grace     time.Duration
	name      string
	runs      atomic.Int64
}

// NewHTTPServerService creates the service. grace <= 0 means ten seconds.
func NewHTTPServerService(factory HTTPServerFactory, grace time.Duration) *HTTPServerService {
	if grace <= 0 {
		grace = defaultGrace
	}
	return &HTTPServerService{newServer: factory, grace: grace, name: "http-server"}
}

// Named sets the supervisor-visible name.
func (s *HTTPServerService) Named(name string) *HTTPServerService {
	s.name = name
	return s
}

// Runs counts the servers built so far.
func (s *HTTPServerService) Runs() int64 { return s.runs.Load() }

// Serve implements suture.Service. A listener that closes on its own yields
// nil; a listen failure is returned so the supervisor restarts the service.
func (s *HTTPServerService) Serve(ctx context.Context) error {
	srv := s.newServer()
	if run := s.runs.Add(1); run > 1 {
		logging.Warn().Str("service", s.name).Int64("run", run).Msg("Restarting HTTP listener")
	}

	listenErr := make(chan error, 1)
	go func() { listenErr <- srv.ListenAndServe() }()

	select {
	case err := <-listenErr:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("%s: listen: %w", s.name, err)
	case <-ctx.Done():
		return s.drain(ctx, srv, listenErr)
	}
}

func (s *HTTPServerService) drain(ctx context.Context, srv HTTPServer, listenErr <-chan error) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("%s: shutdown: %w", s.name, err)
	}
	<-listenErr
	return ctx.Err()
}

func (s *HTTPServerService) String() string { return s.name }
