// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/engine"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "error", Format: "console", Output: io.Discard})
}

// fakeRecorder records signals and returns queued errors in order.
type fakeRecorder struct {
	mu      sync.Mutex
	signals []models.Signal
	errs    []error
	always  error
	seen    chan struct{}
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{seen: make(chan struct{}, 100)}
}

func (f *fakeRecorder) RecordSignal(_ context.Context, sig models.Signal) (*engine.Outcome, error) {
	f.mu.Lock()
	defer func() {
		f.mu.Unlock()
		f.seen <- struct{}{}
	}()
	if f.always != nil {
		return nil, f.always
	}
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	f.signals = append(f.signals, sig)
	return &engine.Outcome{SubjectID: sig.SubjectID}, nil
}

func (f *fakeRecorder) recorded() []models.Signal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.Signal(nil), f.signals...)
}

func (f *fakeRecorder) wait(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-f.seen:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out waiting for signal %d of %d", i+1, n)
		}
	}
}

func testIngestConfig() config.IngestConfig {
	cfg := config.Defaults().Ingest
	cfg.Enabled = true
	return cfg
}

func fastRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         time.Second,
		RetryMaxRetries:      1,
		RetryInitialInterval: time.Millisecond,
		RetryMaxInterval:     5 * time.Millisecond,
		RetryMultiplier:      1.5,
	}
}

func newTestIngestor(t *testing.T, rec SignalRecorder) *Ingestor {
	t.Helper()
	ing, err := NewWithRouterConfig(testIngestConfig(), fastRouterConfig(), rec, watermill.NopLogger{})
	if err != nil {
		t.Fatalf("NewWithRouterConfig: %v", err)
	}
	t.Cleanup(func() { _ = ing.Close() })
	return ing
}

// serve runs the ingestor until the test ends and waits for its subscription.
func serve(t *testing.T, ing *Ingestor) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("ingestor did not stop")
		}
	})

	select {
	case <-ing.Running():
	case err := <-done:
		t.Fatalf("Serve returned early: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("ingestor did not start")
	}
}

func TestDecodeSignal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		payload string
		wantErr bool
		want    models.Signal
	}{
		{
			name:    "valid with metadata",
			payload: `{"subject_id":"u1","kind":"upload","metadata":{"ip":"203.0.113.7"},"timestamp":"2026-03-02T12:00:00Z"}`,
			want: models.Signal{
				SubjectID: "u1",
				Kind:      models.SignalUpload,
				Metadata:  map[string]string{"ip": "203.0.113.7"},
				Timestamp: time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC),
			},
		},
		{name: "not json", payload: `upload for u1`, wantErr: true},
		{name: "missing subject", payload: `{"kind":"upload"}`, wantErr: true},
		{name: "missing kind", payload: `{"subject_id":"u1"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := DecodeSignal([]byte(tt.payload))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedPayload) {
					t.Fatalf("err = %v, want ErrMalformedPayload", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DecodeSignal: %v", err)
			}
			if got.SubjectID != tt.want.SubjectID || got.Kind != tt.want.Kind ||
				!got.Timestamp.Equal(tt.want.Timestamp) || got.Metadata["ip"] != tt.want.Metadata["ip"] {
				t.Errorf("DecodeSignal = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestNewSignalMessageRoundTrip(t *testing.T) {
	t.Parallel()
	msg, err := NewSignalMessage(models.Signal{SubjectID: "u1", Kind: models.SignalLoginFailure})
	if err != nil {
		t.Fatalf("NewSignalMessage: %v", err)
	}
	if msg.Metadata.Get("kind") != string(models.SignalLoginFailure) {
		t.Errorf("kind metadata = %q", msg.Metadata.Get("kind"))
	}
	sig, err := DecodeSignal(msg.Payload)
	if err != nil || sig.SubjectID != "u1" {
		t.Errorf("decode = %+v, %v", sig, err)
	}
}

func TestIngestor_Handle(t *testing.T) {
	parseFailed := testutil.ToFloat64(metrics.IngestParseFailed)
	processed := testutil.ToFloat64(metrics.IngestProcessed)

	transient := errors.New("state store unavailable")
	rec := newFakeRecorder()
	rec.errs = []error{nil, fmt.Errorf("wrapped: %w", engine.ErrInvalidSignal), transient}
	ing := newTestIngestor(t, rec)

	valid, err := NewSignalMessage(models.Signal{SubjectID: "u1", Kind: models.SignalUpload})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		msg     *message.Message
		wantErr error
	}{
		{"recorded", valid, nil},
		{"rejected by engine", message.NewMessage("m2", valid.Payload), nil},
		{"transient failure", message.NewMessage("m3", valid.Payload), transient},
		{"malformed payload", message.NewMessage("m4", []byte("{")), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ing.Handle(tt.msg)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Handle err = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if got := len(rec.recorded()); got != 1 {
		t.Errorf("recorded %d signals, want 1", got)
	}
	if d := testutil.ToFloat64(metrics.IngestParseFailed) - parseFailed; d != 2 {
		t.Errorf("parse failures delta = %v, want 2", d)
	}
	if d := testutil.ToFloat64(metrics.IngestProcessed) - processed; d != 1 {
		t.Errorf("processed delta = %v, want 1", d)
	}
}

func TestIngestor_ServeDeliversPublishedSignals(t *testing.T) {
	t.Parallel()
	rec := newFakeRecorder()
	ing := newTestIngestor(t, rec)
	serve(t, ing)

	for i := 0; i < 3; i++ {
		if err := ing.Publish(models.Signal{SubjectID: fmt.Sprintf("u%d", i), Kind: models.SignalUpload}); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}
	rec.wait(t, 3)

	got := rec.recorded()
	if len(got) != 3 {
		t.Fatalf("recorded %d signals, want 3", len(got))
	}
}

func TestIngestor_FailingSignalGoesToPoisonTopic(t *testing.T) {
	t.Parallel()
	rec := newFakeRecorder()
	rec.always = errors.New("engine down")
	ing := newTestIngestor(t, rec)

	sub, ok := ing.Publisher().(message.Subscriber)
	if !ok {
		t.Fatal("gochannel publisher should also subscribe")
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	poisoned, err := sub.Subscribe(ctx, ing.PoisonTopic())
	if err != nil {
		t.Fatalf("Subscribe poison topic: %v", err)
	}

	serve(t, ing)
	if err := ing.Publish(models.Signal{SubjectID: "u1", Kind: models.SignalUpload}); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case msg := <-poisoned:
		msg.Ack()
		sig, err := DecodeSignal(msg.Payload)
		if err != nil || sig.SubjectID != "u1" {
			t.Errorf("poisoned payload = %q (%v)", msg.Payload, err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("message never reached the poison topic")
	}
}

func TestIngestor_RestartsAfterServeReturns(t *testing.T) {
	t.Parallel()
	rec := newFakeRecorder()
	ing := newTestIngestor(t, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ing.Serve(ctx) }()
	<-ing.Running()
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("first Serve returned %v, want context.Canceled", err)
	}

	serve(t, ing)
	// the second router subscribes after Running already closed; give it a moment
	time.Sleep(200 * time.Millisecond)
	if err := ing.Publish(models.Signal{SubjectID: "after-restart", Kind: models.SignalUpload}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	rec.wait(t, 1)
	if got := rec.recorded(); len(got) != 1 || got[0].SubjectID != "after-restart" {
		t.Errorf("recorded = %+v", got)
	}
}

func TestIngestor_WithEngine(t *testing.T) {
	t.Parallel()
	cfg := config.Defaults()
	cfg.Escalation.ReviewResolution = config.ReviewAutoReject
	eng, err := engine.New(context.Background(), cfg, engine.Dependencies{})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	ing := newTestIngestor(t, eng)

	msg, err := NewSignalMessage(models.Signal{SubjectID: "u1", Kind: models.SignalUpload})
	if err != nil {
		t.Fatal(err)
	}
	if err := ing.Handle(msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := eng.Stats().SignalsRecorded; got < 1 {
		t.Errorf("SignalsRecorded = %d, want >= 1", got)
	}
}

func TestNew_Errors(t *testing.T) {
	t.Parallel()
	if _, err := New(testIngestConfig(), nil, nil); err == nil {
		t.Error("expected error for nil recorder")
	}
	cfg := testIngestConfig()
	cfg.Backend = "kafka"
	if _, err := New(cfg, newFakeRecorder(), watermill.NopLogger{}); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestIngestor_String(t *testing.T) {
	t.Parallel()
	ing := newTestIngestor(t, newFakeRecorder())
	if ing.String() != "signal-ingest" {
		t.Errorf("String() = %q", ing.String())
	}
	if ing.Topic() != "riskguard.signals" || ing.PoisonTopic() != "riskguard.signals.poison" {
		t.Errorf("topics = %q, %q", ing.Topic(), ing.PoisonTopic())
	}
}
