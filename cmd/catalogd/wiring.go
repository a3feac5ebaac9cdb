// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/tomtom215/catalogview/internal/api"
	"github.com/tomtom215/catalogview/internal/catalog"
	"github.com/tomtom215/catalogview/internal/config"
	"github.com/tomtom215/catalogview/internal/derive"
	"github.com/tomtom215/catalogview/internal/engine"
	"github.com/tomtom215/catalogview/internal/logging"
	"github.com/tomtom215/catalogview/internal/resilience"
	"github.com/tomtom215/catalogview/internal/supervisor"
	"github.com/tomtom215/catalogview/internal/supervisor/services"
	"github.com/tomtom215/catalogview/internal/telemetry"
	"github.com/tomtom215/catalogview/internal/window"
	ws "github.com/tomtom215/catalogview/internal/websocket"
)

// app holds the wired components of the daemon.
type app struct {
	cfg *config.Config

	archive   *catalog.Archive
	engine    *engine.Engine
	hub       *ws.Hub
	server    *http.Server
	forwarder *telemetry.Forwarder
	pubSub    *gochannel.GoChannel
	natsPub   message.Publisher

	stopRealtime func()
}

func newApp(cfg *config.Config) (*app, error) {
	logger := logging.Logger()
	a := &app{cfg: cfg}

	feedBreaker := resilience.NewBreaker("catalog-feed", resilience.DefaultBreakerConfig(), logger)
	codecBreaker := resilience.NewBreaker("thumbnail-codec", resilience.DefaultBreakerConfig(), logger)

	deps := engine.Deps{
		Store:        catalog.NewStore(feedBreaker, logger),
		Bus:          telemetry.NewBus(telemetryConfig(cfg), logger),
		Codec:        window.NewHTTPCodec(cfg.Window.FetchTimeout, 0),
		CodecBreaker: codecBreaker,
		Feed:         newFeed(cfg),
	}

	if cfg.Catalog.ArchivePath != "" {
		archive, err := catalog.OpenArchive(cfg.Catalog.ArchivePath)
		if err != nil {
			return nil, fmt.Errorf("open catalog archive: %w", err)
		}
		a.archive = archive
		deps.Archive = archive
		logging.Info().Str("path", cfg.Catalog.ArchivePath).Msg("Catalog archive opened")
	}

	eng, err := engine.New(deps, engineConfig(cfg), logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create engine: %w", err)
	}
	a.engine = eng

	if a.archive != nil {
		if _, err := eng.Restore(); err != nil {
			logging.Warn().Err(err).Msg("Failed to restore archived catalog")
		}
	}

	if cfg.Sink.Enabled {
		publisher, err := a.sinkPublisher(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		sinkBreaker := resilience.NewBreaker("analytics-sink", resilience.DefaultBreakerConfig(), logger)
		sink := telemetry.NewWatermillSink(publisher, cfg.Sink.Topic, sinkBreaker)
		a.forwarder = telemetry.NewForwarder(deps.Bus, sink, forwarderConfig(cfg), logger)
		logging.Info().Str("topic", cfg.Sink.Topic).Bool("nats", a.natsPub != nil).Msg("Analytics sink enabled")
	}

	a.hub = ws.NewHub()

	mw := api.NewChiMiddleware(&api.ChiMiddlewareConfig{
		CORSAllowedOrigins: cfg.Server.CORSOrigins,
		CORSAllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		CORSAllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.Server.RateLimitReqs,
		RateLimitWindow:    cfg.Server.RateLimitWindow,
		RateLimitDisabled:  cfg.Server.RateLimitDisabled,
	})
	handler := api.NewHandler(eng, a.hub, mw, api.HandlerConfig{
		AssetTimeout: cfg.Window.FetchTimeout * 4,
		ItemHeight:   cfg.Window.ItemHeight,
	})
	a.stopRealtime = handler.StartRealtime()

	a.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, mw).SetupChi(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	return a, nil
}

// sinkPublisher returns the NATS publisher when a broker is configured and
// an in-process channel otherwise.
func (a *app) sinkPublisher(cfg *config.Config) (message.Publisher, error) {
	adapter := logging.NewWatermillAdapter(logging.WithComponent("analytics-sink"))

	if cfg.Sink.NATSURL != "" {
		natsCfg := telemetry.DefaultNATSConfig(cfg.Sink.NATSURL)
		natsCfg.JetStream = cfg.Sink.NATSJetStream
		pub, err := telemetry.NewNATSPublisher(natsCfg, adapter)
		if err != nil {
			return nil, fmt.Errorf("connect analytics sink: %w", err)
		}
		a.natsPub = pub
		return pub, nil
	}

	a.pubSub = gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: int64(cfg.Sink.QueueSize),
	}, adapter)
	return a.pubSub, nil
}

// addServices registers every long-running component with the tree.
func (a *app) addServices(tree *supervisor.SupervisorTree) {
	logger := logging.WithComponent("supervisor")

	// Ingest layer
	tree.AddIngestService(services.NewRefreshService(a.engine, services.RefreshServiceConfig{
		RefreshOnStartup: true,
		Interval:         a.cfg.Catalog.RefreshInterval,
		Timeout:          a.cfg.Catalog.FeedTimeout,
	}, logger))
	tree.AddIngestService(services.NewRollupService(a.engine, a.cfg.Telemetry.RollupInterval, logger))
	logging.Info().Msg("Catalog refresh and rollup services added")

	// Delivery layer
	tree.AddDeliveryService(services.NewWebSocketHubService(a.hub))
	if a.forwarder != nil {
		tree.AddDeliveryService(services.NewSinkForwarderService(a.forwarder))
		// records sent to a broker are consumed elsewhere
		if a.pubSub != nil {
			tree.AddDeliveryService(services.NewSinkConsumerService(a.pubSub, a.cfg.Sink.Topic, logger))
		}
		logging.Info().Msg("Analytics sink services added")
	}

	// API layer
	tree.AddAPIService(services.NewHTTPServerService(a.server, 10*time.Second))
	logging.Info().Str("addr", a.server.Addr).Msg("HTTP server service added")
}

// Close releases components in reverse order of creation.
func (a *app) Close() {
	if a.stopRealtime != nil {
		a.stopRealtime()
	}
	if a.forwarder != nil {
		a.forwarder.Close()
	}
	if a.pubSub != nil {
		if err := a.pubSub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing analytics pubsub")
		}
	}
	if a.natsPub != nil {
		if err := a.natsPub.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing NATS publisher")
		}
	}
	if a.engine != nil {
		a.engine.Close()
	}
	if a.archive != nil {
		if err := a.archive.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing catalog archive")
		}
	}
}

func newFeed(cfg *config.Config) catalog.Feed {
	if cfg.Catalog.FeedURL != "" {
		logging.Info().Str("url", cfg.Catalog.FeedURL).Msg("Using HTTP catalog feed")
		return catalog.NewHTTPFeed(cfg.Catalog.FeedURL, cfg.Catalog.FeedTimeout)
	}
	logging.Info().Int("size", cfg.Catalog.GeneratedSize).Msg("No feed URL configured, using generated catalog")
	return catalog.NewGeneratedFeed(cfg.Catalog.GeneratedSize, cfg.Catalog.GeneratedSeed)
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.Capacity = cfg.Telemetry.Capacity
	tc.RollupEvery = cfg.Telemetry.RollupEvery
	tc.ScoringWindow = cfg.Telemetry.ScoringWindow
	return tc
}

func engineConfig(cfg *config.Config) engine.Config {
	ec := engine.DefaultConfig()
	ec.Weights = derive.Weights{
		CartCategory: cfg.Pipeline.CartCategoryWeight,
		CartTag:      cfg.Pipeline.CartTagWeight,
		View:         cfg.Pipeline.ViewWeight,
	}
	ec.SearchDebounce = cfg.Pipeline.SearchDebounce
	ec.RelatedPriceDelta = cfg.Pipeline.RelatedPriceDelta
	ec.Window = window.Config{
		PrefetchMargin:   cfg.Window.PrefetchMargin,
		AssetCapacity:    cfg.Window.AssetCapacity,
		FetchConcurrency: cfg.Window.FetchConcurrency,
		FetchTimeout:     cfg.Window.FetchTimeout,
	}
	return ec
}

func forwarderConfig(cfg *config.Config) telemetry.ForwarderConfig {
	fc := telemetry.ForwarderConfig{
		QueueSize:      cfg.Sink.QueueSize,
		RatePerSecond:  cfg.Sink.RatePerSecond,
		Burst:          cfg.Sink.Burst,
		MaxFieldLength: cfg.Sink.MaxFieldLength,
	}
	for _, k := range cfg.Sink.Kinds {
		fc.Kinds = append(fc.Kinds, telemetry.Kind(k))
	}
	return fc
}
