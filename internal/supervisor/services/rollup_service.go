// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Roller bumps the telemetry window when events arrived since the last bump.
type Roller interface {
	Rollup() bool
}

// RollupService bumps the telemetry window on a timer so scoring catches
// up with quiet periods that never reach the event-count threshold.
type RollupService struct {
	roller   Roller
	interval time.Duration
	logger   zerolog.Logger
}

// NewRollupService creates the service. A non-positive interval uses 30s.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRollupService(roller Roller, interval time.Duration, logger zerolog.Logger) *RollupService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &RollupService{
		roller:   roller,
		interval: interval,
		logger:   logger.With().Str("service", "window-rollup").Logger(),
	}
}

// Serve implements suture.Service.
func (s *RollupService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if s.roller.Rollup() {
				s.logger.Debug().Msg("telemetry window rolled up")
			}
		}
	}
}

func (s *RollupService) String() string {
	return "window-rollup"
}
