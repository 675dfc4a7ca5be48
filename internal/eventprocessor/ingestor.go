// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package eventprocessor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/engine"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/models"
)

// Backend names.
const (
	BackendGoChannel = "gochannel"
	BackendNATS      = "nats"
)

// SignalRecorder is the part of the engine the ingestor drives.
type SignalRecorder interface {
	RecordSignal(ctx context.Context, sig models.Signal) (*engine.Outcome, error)
}

// RouterConfig holds the Watermill router settings.
type RouterConfig struct {
	CloseTimeout         time.Duration
	RetryMaxRetries      int
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration
	RetryMultiplier      float64
}

// DefaultRouterConfig returns production defaults for the router.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CloseTimeout:         30 * time.Second,
		RetryMaxRetries:      5,
		RetryInitialInterval: time.Second,
		RetryMaxInterval:     time.Minute,
		RetryMultiplier:      2.0,
	}
}

// Ingestor consumes the signal topic and records each signal with the engine.
type Ingestor struct {
	cfg      config.IngestConfig
	router   RouterConfig
	recorder SignalRecorder
	logger   watermill.LoggerAdapter

	subscriber message.Subscriber
	publisher  message.Publisher

	running     chan struct{}
	runningOnce sync.Once
}

// New builds the ingestor and its queue backend. logger may be nil.
func New(cfg config.IngestConfig, recorder SignalRecorder, logger watermill.LoggerAdapter) (*Ingestor, error) {
	return NewWithRouterConfig(cfg, DefaultRouterConfig(), recorder, logger)
}

// NewWithRouterConfig builds the ingestor with explicit router settings.
func NewWithRouterConfig(cfg config.IngestConfig, rc RouterConfig, recorder SignalRecorder, logger watermill.LoggerAdapter) (*Ingestor, error) {
	if recorder == nil {
		return nil, errors.New("signal recorder is required")
	}
	if logger == nil {
		logger = NewLogger()
	}

	var (
		sub message.Subscriber
		pub message.Publisher
		err error
	)
	switch cfg.Backend {
	case BackendGoChannel, "":
		sub, pub = newGoChannel(logger)
	case BackendNATS:
		sub, pub, err = newNATS(cfg, logger)
	default:
		err = fmt.Errorf("unknown ingest backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	return &Ingestor{
		cfg:        cfg,
		router:     rc,
		recorder:   recorder,
		logger:     logger,
		subscriber: sub,
		publisher:  pub,
		running:    make(chan struct{}),
	}, nil
}

// Topic returns the subscribed topic.
func (i *Ingestor) Topic() string { return i.cfg.Topic }

// PoisonTopic returns the topic that receives messages failing every retry.
func (i *Ingestor) PoisonTopic() string { return i.cfg.Topic + ".poison" }

// Publisher returns the backend publisher. With the gochannel backend this is
// how in-process producers reach the ingestor.
func (i *Ingestor) Publisher() message.Publisher { return i.publisher }

// Publish encodes sig and publishes it on the signal topic.
func (i *Ingestor) Publish(sig models.Signal) error {
	msg, err := NewSignalMessage(sig)
	if err != nil {
		return err
	}
	return i.publisher.Publish(i.cfg.Topic, msg)
}

// Handle processes one message. Only transient engine failures are returned;
// everything else is acknowledged.
func (i *Ingestor) Handle(msg *message.Message) error {
	metrics.RecordIngestConsume()
	ctx := logging.ContextWithCorrelationID(msg.Context(), msg.UUID)

	sig, err := DecodeSignal(msg.Payload)
	if err != nil {
		metrics.RecordIngestParseFailed()
		logging.Ctx(ctx).Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping malformed signal")
		return nil
	}

	out, err := i.recorder.RecordSignal(ctx, sig)
	switch {
	case errors.Is(err, engine.ErrInvalidSignal):
		metrics.RecordIngestParseFailed()
		logging.Ctx(ctx).Warn().Err(err).Str("message_uuid", msg.UUID).Msg("Dropping invalid signal")
		return nil
	case err != nil:
		return fmt.Errorf("record signal: %w", err)
	}

	metrics.RecordIngestProcessed()
	if out != nil && out.Directive != nil && !out.Directive.IsNoop() {
		logging.Ctx(ctx).Debug().
			Str("message_uuid", msg.UUID).
			Str("subject_id", logging.SanitizeSubjectID(sig.SubjectID)).
			Str("directive_id", out.Directive.ID).
			Msg("Queued signal produced a directive")
	}
	return nil
}

// newRouter wires the middleware chain and the consumer handler.
func (i *Ingestor) newRouter() (*message.Router, error) {
	r, err := message.NewRouter(message.RouterConfig{CloseTimeout: i.router.CloseTimeout}, i.logger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	poison, err := middleware.PoisonQueue(i.publisher, i.PoisonTopic())
	if err != nil {
		return nil, fmt.Errorf("create poison queue middleware: %w", err)
	}
	retry := middleware.Retry{
		MaxRetries:      i.router.RetryMaxRetries,
		InitialInterval: i.router.RetryInitialInterval,
		MaxInterval:     i.router.RetryMaxInterval,
		Multiplier:      i.router.RetryMultiplier,
		Logger:          i.logger,
	}
	r.AddMiddleware(poison, retry.Middleware, middleware.Recoverer)

	r.AddConsumerHandler("signal-ingest", i.cfg.Topic, nopCloseSubscriber{i.subscriber}, i.Handle)
	return r, nil
}

// Serve implements suture.Service. It runs a router until ctx is canceled.
func (i *Ingestor) Serve(ctx context.Context) error {
	r, err := i.newRouter()
	if err != nil {
		return err
	}

	logging.Info().
		Str("backend", i.cfg.Backend).
		Str("topic", i.cfg.Topic).
		Msg("Signal ingest started")

	go func() {
		select {
		case <-r.Running():
			i.runningOnce.Do(func() { close(i.running) })
		case <-ctx.Done():
		}
	}()

	if err := r.Run(ctx); err != nil {
		return fmt.Errorf("signal ingest router: %w", err)
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return errors.New("signal ingest router stopped unexpectedly")
}

// Running is closed once the first router has subscribed to the topic.
func (i *Ingestor) Running() <-chan struct{} { return i.running }

// String implements fmt.Stringer for suture logging.
func (i *Ingestor) String() string { return "signal-ingest" }

// Close releases the backend connections.
func (i *Ingestor) Close() error {
	var errs []error
	if err := i.subscriber.Close(); err != nil {
		errs = append(errs, err)
	}
	if i.publisher != nil && any(i.publisher) != any(i.subscriber) {
		if err := i.publisher.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// nopCloseSubscriber keeps the router from closing the shared subscriber, so
// a restarted router can subscribe again.
type nopCloseSubscriber struct {
	message.Subscriber
}

func (nopCloseSubscriber) Close() error { return nil }
