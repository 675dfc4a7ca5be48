// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

var _ suture.Service = (*HTTPServerService)(nil)

// fakeServer listens until Shutdown unless listenErr is set, in which case
// ListenAndServe returns it straight away.
type fakeServer struct {
	listenErr   error
	shutdownErr error
	exitAtOnce  bool

	listening chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	shutdowns atomic.Int32
}

func newFakeServer() *fakeServer {
	return &fakeServer{listening: make(chan struct{}, 1), closed: make(chan struct{})}
}

func (f *fakeServer) ListenAndServe() error {
	f.listening <- struct{}{}
	switch {
	case f.listenErr != nil:
		return f.listenErr
	case f.exitAtOnce:
		return http.ErrServerClosed
	}
	<-f.closed
	return http.ErrServerClosed
}

func (f *fakeServer) Shutdown(context.Context) error {
	f.shutdowns.Add(1)
	f.closeOnce.Do(func() { close(f.closed) })
	return f.shutdownErr
}

func (f *fakeServer) awaitListen(t *testing.T) {
	t.Helper()
	select {
	case <-f.listening:
	case <-time.After(time.Second):
		t.Fatal("server never started listening")
	}
}

// runUntilCanceled starts svc, waits for srv to listen, cancels and returns
// Serve's result.
func runUntilCanceled(t *testing.T, svc *HTTPServerService, srv *fakeServer) error {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	result := make(chan error, 1)
	go func() { result <- svc.Serve(ctx) }()

	srv.awaitListen(t)
	cancel()
	select {
	case err := <-result:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
		return nil
	}
}

func TestNewHTTPServerService_Grace(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		in, want time.Duration
	}{
		{3 * time.Second, 3 * time.Second},
		{0, defaultGrace},
		{-time.Second, defaultGrace},
	} {
		svc := NewHTTPServerService(nil, tt.in)
		if svc.grace != tt.want {
			t.Errorf("grace(%v) = %v, want %v", tt.in, svc.grace, tt.want)
		}
	}
}

func TestHTTPServerService_Named(t *testing.T) {
	t.Parallel()
	svc := NewHTTPServerService(nil, 0)
	if svc.String() != "http-server" {
		t.Errorf("default name = %q", svc.String())
	}
	if svc.Named("admin-api").String() != "admin-api" {
		t.Errorf("Named did not apply: %q", svc.String())
	}
}

func TestHTTPServerService_CancelDrains(t *testing.T) {
	t.Parallel()

	srv := newFakeServer()
	svc := NewHTTPServerService(func() HTTPServer { return srv }, time.Second)

	if err := runUntilCanceled(t, svc, srv); !errors.Is(err, context.Canceled) {
		t.Errorf("Serve = %v, want context.Canceled", err)
	}
	if srv.shutdowns.Load() != 1 {
		t.Errorf("Shutdown called %d times", srv.shutdowns.Load())
	}
}

func TestHTTPServerService_ShutdownError(t *testing.T) {
	t.Parallel()

	srv := newFakeServer()
	srv.shutdownErr = errors.New("drain deadline exceeded")
	svc := NewHTTPServerService(func() HTTPServer { return srv }, time.Second)

	if err := runUntilCanceled(t, svc, srv); !errors.Is(err, srv.shutdownErr) {
		t.Errorf("Serve = %v, want wrapped shutdown error", err)
	}
}

func TestHTTPServerService_ListenOutcomes(t *testing.T) {
	t.Parallel()

	bind := errors.New("bind: address already in use")
	tests := []struct {
		name    string
		prepare func(*fakeServer)
		want    error
	}{
		{"bind failure", func(f *fakeServer) { f.listenErr = bind }, bind},
		{"closed by itself", func(f *fakeServer) { f.exitAtOnce = true }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			srv := newFakeServer()
			tt.prepare(srv)
			svc := NewHTTPServerService(func() HTTPServer { return srv }, time.Second)

			err := svc.Serve(context.Background())
			if tt.want == nil && err != nil {
				t.Errorf("Serve = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("Serve = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHTTPServerService_EachRunGetsNewServer(t *testing.T) {
	t.Parallel()

	servers := []*fakeServer{newFakeServer(), newFakeServer()}
	var built atomic.Int32
	svc := NewHTTPServerService(func() HTTPServer {
		return servers[built.Add(1)-1]
	}, time.Second)

	for _, srv := range servers {
		if err := runUntilCanceled(t, svc, srv); !errors.Is(err, context.Canceled) {
			t.Fatalf("Serve = %v", err)
		}
	}
	if svc.Runs() != 2 || built.Load() != 2 {
		t.Errorf("runs = %d, built = %d, want 2", svc.Runs(), built.Load())
	}
}

func TestHTTPServerService_UnderSuture(t *testing.T) {
	t.Parallel()

	srv := newFakeServer()
	sup := suture.New("api-layer", suture.Spec{Timeout: 2 * time.Second})
	sup.Add(NewHTTPServerService(func() HTTPServer { return srv }, time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	done := sup.ServeBackground(ctx)
	srv.awaitListen(t)
	cancel()
	<-done

	if srv.shutdowns.Load() == 0 {
		t.Error("supervisor stop did not shut the server down")
	}
}
