// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/catalogview/internal/catalog"
	"github.com/tomtom215/catalogview/internal/engine"
)

// Refresher reloads the catalog from its upstream feed.
type Refresher interface {
	Refresh(ctx context.Context) (*catalog.Snapshot, error)
}

// RefreshServiceConfig holds configuration for the refresh service.
type RefreshServiceConfig struct {
	// RefreshOnStartup loads the catalog as soon as the service starts.
	RefreshOnStartup bool

	// Interval is how often the catalog is reloaded.
	Interval time.Duration

	// Timeout bounds a single refresh.
	Timeout time.Duration
}

// RefreshService reloads the catalog periodically. Feed failures are
// logged and retried on the next tick; the previous catalog stays in place.
type RefreshService struct {
	refresher Refresher
	config    RefreshServiceConfig
	logger    zerolog.Logger
	name      string
}

// NewRefreshService creates the service. A non-positive interval uses 5m.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewRefreshService(refresher Refresher, cfg RefreshServiceConfig, logger zerolog.Logger) *RefreshService {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Minute
	}
	return &RefreshService{
		refresher: refresher,
		config:    cfg,
		logger:    logger.With().Str("service", "catalog-refresh").Logger(),
		name:      "catalog-refresh",
	}
}

// Serve implements suture.Service. It returns suture.ErrDoNotRestart when
// the engine has no feed.
func (s *RefreshService) Serve(ctx context.Context) error {
	s.logger.Info().
		Bool("refresh_on_startup", s.config.RefreshOnStartup).
		Dur("interval", s.config.Interval).
		Msg("catalog refresh service starting")

	if s.config.RefreshOnStartup {
		if err := s.refresh(ctx); errors.Is(err, engine.ErrNoFeed) {
			return suture.ErrDoNotRestart
		}
	}

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("catalog refresh service shutting down")
			return ctx.Err()

		case <-ticker.C:
			if err := s.refresh(ctx); errors.Is(err, engine.ErrNoFeed) {
				return suture.ErrDoNotRestart
			}
		}
	}
}

func (s *RefreshService) refresh(ctx context.Context) error {
	refreshCtx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	start := time.Now()
	snap, err := s.refresher.Refresh(refreshCtx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("catalog refresh failed, keeping previous catalog")
		return err
	}

	s.logger.Info().
		Uint64("version", snap.Version()).
		Int("products", snap.Len()).
		Dur("duration", time.Since(start)).
		Msg("catalog refreshed")
	return nil
}

// String returns the service name for logging.
func (s *RefreshService) String() string {
	return s.name
}
