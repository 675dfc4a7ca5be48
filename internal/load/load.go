// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

// Package load reports the coarse system load bracket used to relax
// scoring thresholds when the platform is busy.
package load

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/logging"
	"github.com/tomtom215/riskguard/internal/metrics"
	"github.com/tomtom215/riskguard/internal/models"
)

// Probe reports the current load bracket.
type Probe interface {
	Current() models.LoadBracket
}

// Static always reports the same bracket.
type Static struct {
	bracket atomic.Value
}

// NewStatic creates a static probe.
func NewStatic(b models.LoadBracket) *Static {
	s := &Static{}
	s.Set(b)
	return s
}

// Current returns the configured bracket.
func (s *Static) Current() models.LoadBracket {
	return s.bracket.Load().(models.LoadBracket)
}

// Set changes the reported bracket.
func (s *Static) Set(b models.LoadBracket) {
	s.bracket.Store(b)
	metrics.LoadBracket.Set(bracketValue(b))
}

// SampleFunc returns the current CPU utilization percentage.
type SampleFunc func(ctx context.Context) (float64, error)

// CPU samples host CPU utilization on an interval.
type CPU struct {
	medium   float64
	high     float64
	interval time.Duration
	sample   SampleFunc
	current  atomic.Value
}

// NewCPU creates a CPU probe from cfg. It reports low until the first sample.
func NewCPU(cfg config.LoadConfig) *CPU {
	c := &CPU{
		medium:   cfg.MediumPercent,
		high:     cfg.HighPercent,
		interval: cfg.SampleInterval,
		sample:   sampleCPU,
	}
	c.current.Store(models.LoadLow)
	return c
}

// WithSampler replaces the CPU sampler. Used by tests.
func (c *CPU) WithSampler(f SampleFunc) *CPU {
	c.sample = f
	return c
}

// Current returns the bracket from the latest sample.
func (c *CPU) Current() models.LoadBracket {
	return c.current.Load().(models.LoadBracket)
}

// Bracket maps a utilization percentage to a load bracket.
func (c *CPU) Bracket(percent float64) models.LoadBracket {
	switch {
	case percent >= c.high:
		return models.LoadHigh
	case percent >= c.medium:
		return models.LoadMedium
	default:
		return models.LoadLow
	}
}

// Sample takes one reading and updates the bracket.
func (c *CPU) Sample(ctx context.Context) error {
	pct, err := c.sample(ctx)
	if err != nil {
		return err
	}
	b := c.Bracket(pct)
	if prev := c.Current(); prev != b {
		logging.Info().Str("from", string(prev)).Str("to", string(b)).Float64("cpu_percent", pct).
			Msg("System load bracket changed")
	}
	c.current.Store(b)
	metrics.LoadBracket.Set(bracketValue(b))
	return nil
}

// Serve samples until ctx is cancelled. It satisfies suture.Service.
func (c *CPU) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if err := c.Sample(ctx); err != nil && ctx.Err() == nil {
			logging.Warn().Err(err).Msg("CPU sample failed, keeping previous load bracket")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// String identifies the service in supervisor logs.
func (c *CPU) String() string {
	return "load-probe"
}

func sampleCPU(ctx context.Context) (float64, error) {
	pcts, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return 0, fmt.Errorf("read cpu percent: %w", err)
	}
	if len(pcts) == 0 {
		return 0, fmt.Errorf("read cpu percent: no data")
	}
	return pcts[0], nil
}

func bracketValue(b models.LoadBracket) float64 {
	switch b {
	case models.LoadMedium:
		return 1
	case models.LoadHigh:
		return 2
	default:
		return 0
	}
}

// New builds the configured probe. The second return value is non-nil when
// the probe needs to run as a background service.
func New(cfg config.LoadConfig) (Probe, *CPU) {
	if cfg.Mode == "cpu" {
		c := NewCPU(cfg)
		return c, c
	}
	bracket := models.LoadBracket(cfg.Static)
	if bracket == "" {
		bracket = models.LoadLow
	}
	return NewStatic(bracket), nil
}
