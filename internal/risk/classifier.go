// Riskguard - Automated Risk Scoring and Moderation Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/riskguard

package risk

import (
	"fmt"

	"github.com/tomtom215/riskguard/internal/config"
	"github.com/tomtom215/riskguard/internal/models"
)

// Band is an inclusive score range mapped to a level.
type Band struct {
	Level models.Level
	Min   int
	Max   int
}

// Classifier maps adjusted scores to levels.
type Classifier struct {
	bands []Band
	upper bool
}

// NewClassifier builds a classifier from level bands. Bands must already be
// contiguous and ordered; config.Validate enforces this at startup.
func NewClassifier(cfg config.LevelsConfig) (*Classifier, error) {
	if len(cfg.Bands) == 0 {
		return nil, &config.ConfigurationError{Field: "levels.bands", Reason: "no bands configured"}
	}
	c := &Classifier{
		bands: make([]Band, 0, len(cfg.Bands)),
		upper: cfg.Boundary == config.BoundaryUpper,
	}
	for i, b := range cfg.Bands {
		level, err := models.ParseLevel(b.Level)
		if err != nil {
			return nil, &config.ConfigurationError{Field: fmt.Sprintf("levels.bands[%d]", i), Reason: err.Error()}
		}
		c.bands = append(c.bands, Band{Level: level, Min: b.Min, Max: b.Max})
	}
	return c, nil
}

// Bands returns a copy of the configured bands.
func (c *Classifier) Bands() []Band {
	out := make([]Band, len(c.bands))
	copy(out, c.bands)
	return out
}

// Classify returns the level for score. Out-of-range scores are clamped first.
//
// With the lower boundary policy a score equal to a band's Max stays in that band
// (20 -> safe). With the upper policy it moves to the next band (20 -> attention).
func (c *Classifier) Classify(score int) models.Level {
	switch {
	case score < MinScore:
		score = MinScore
	case score > MaxScore:
		score = MaxScore
	}

	last := len(c.bands) - 1
	for i, b := range c.bands {
		if score < b.Min || score > b.Max {
			continue
		}
		if c.upper && score == b.Max && i < last {
			return c.bands[i+1].Level
		}
		return b.Level
	}
	return c.bands[last].Level
}

// ClassifySubject classifies score, short-circuiting exempt subjects to Safe.
func (c *Classifier) ClassifySubject(score int, exempt bool) models.Level {
	if exempt {
		return models.LevelSafe
	}
	return c.Classify(score)
}
