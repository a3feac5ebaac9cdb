// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package telemetry

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/catalogview/internal/metrics"
)

// ErrForwarderClosed is returned by Run after Close.
var ErrForwarderClosed = errors.New("forwarder closed")

// Record is the flattened, size-bounded copy of an event handed to an
// analytics sink. It shares no memory with the bus.
type Record struct {
	ID        string    `json:"id"`
	Seq       uint64    `json:"seq"`
	Kind      string    `json:"kind"`
	Timestamp time.Time `json:"timestamp"`
	ProductID string    `json:"product_id,omitempty"`
	Query     string    `json:"query,omitempty"`
	Category  string    `json:"category,omitempty"`
	Quantity  int       `json:"quantity,omitempty"`
	Offset    float64   `json:"offset,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// Flatten copies e into a Record, truncating every string field to
// maxLen runes. A non-positive maxLen disables truncation.
func Flatten(e Event, maxLen int) Record {
	return Record{
		ID:        uuid.New().String(),
		Seq:       e.Seq,
		Kind:      string(e.Kind),
		Timestamp: e.Timestamp,
		ProductID: truncate(e.ProductID, maxLen),
		Query:     truncate(e.Query, maxLen),
		Category:  truncate(e.Category, maxLen),
		Quantity:  e.Quantity,
		Offset:    e.Offset,
		Detail:    truncate(e.Detail, maxLen),
	}
}

// Sink receives analytics records. Implementations may block; the
// Forwarder calls Deliver from its own goroutine.
type Sink interface {
	Deliver(ctx context.Context, rec Record) error
}

// ForwarderConfig configures a Forwarder.
type ForwarderConfig struct {
	// QueueSize bounds records waiting for delivery.
	QueueSize int

	// RatePerSecond limits deliveries; zero means unlimited.
	RatePerSecond float64

	// Burst is the limiter burst size.
	Burst int

	// MaxFieldLength truncates string fields of each record.
	MaxFieldLength int

	// Kinds restricts forwarded events; empty forwards every kind.
	Kinds []Kind
}

// DefaultForwarderConfig returns the default forwarder configuration.
func DefaultForwarderConfig() ForwarderConfig {
	return ForwarderConfig{
		QueueSize:      1024,
		RatePerSecond:  200,
		Burst:          50,
		MaxFieldLength: 256,
	}
}

// ForwarderStats reports forwarder counters.
type ForwarderStats struct {
	Enqueued  uint64 `json:"enqueued"`
	Delivered uint64 `json:"delivered"`
	Dropped   uint64 `json:"dropped"`
	Failed    uint64 `json:"failed"`
	Queued    int    `json:"queued"`
}

// Forwarder bridges the bus to an external analytics sink.
//
// The bus handler only flattens and enqueues without blocking; when the
// queue is full the newest record is dropped and counted. Run drains the
// queue into the sink at a bounded rate.
type Forwarder struct {
	bus     *Bus
	sink    Sink
	cfg     ForwarderConfig
	logger  zerolog.Logger
	limiter *rate.Limiter

	queue chan Record
	sub   *Subscription

	closeOnce sync.Once
	done      chan struct{}

	enqueued  atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
	failed    atomic.Uint64
}

// NewForwarder subscribes a forwarder to bus.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewForwarder(bus *Bus, sink Sink, cfg ForwarderConfig, logger zerolog.Logger) *Forwarder {
	def := DefaultForwarderConfig()
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	f := &Forwarder{
		bus:     bus,
		sink:    sink,
		cfg:     cfg,
		logger:  logger.With().Str("component", "sink-forwarder").Logger(),
		limiter: rate.NewLimiter(limit, cfg.Burst),
		queue:   make(chan Record, cfg.QueueSize),
		done:    make(chan struct{}),
	}

	pred := All()
	if len(cfg.Kinds) > 0 {
		pred = Kinds(cfg.Kinds...)
	}
	f.sub = bus.Subscribe("analytics-sink", pred, f.enqueue)
	return f
}

func (f *Forwarder) enqueue(e Event) error {
	rec := Flatten(e, f.cfg.MaxFieldLength)
	select {
	case f.queue <- rec:
		f.enqueued.Add(1)
	default:
		f.dropped.Add(1)
		metrics.SinkDropped.WithLabelValues("queue_full").Inc()
	}
	return nil
}

// Run delivers queued records until ctx is cancelled or Close is called.
func (f *Forwarder) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-f.done:
			return ErrForwarderClosed
		case rec := <-f.queue:
			if err := f.limiter.Wait(ctx); err != nil {
				return err
			}
			f.deliver(ctx, rec)
		}
	}
}

func (f *Forwarder) deliver(ctx context.Context, rec Record) {
	if err := f.sink.Deliver(ctx, rec); err != nil {
		f.failed.Add(1)
		metrics.SinkDropped.WithLabelValues("deliver_error").Inc()
		f.logger.Warn().Err(err).Uint64("seq", rec.Seq).Str("kind", rec.Kind).Msg("Failed to deliver analytics record")
		return
	}
	f.delivered.Add(1)
	metrics.SinkDelivered.Inc()
}

// Close unsubscribes from the bus and stops Run. Records still queued
// are discarded.
func (f *Forwarder) Close() {
	f.closeOnce.Do(func() {
		f.bus.Unsubscribe(f.sub)
		close(f.done)
	})
}

// Stats returns forwarder counters.
func (f *Forwarder) Stats() ForwarderStats {
	return ForwarderStats{
		Enqueued:  f.enqueued.Load(),
		Delivered: f.delivered.Load(),
		Dropped:   f.dropped.Load(),
		Failed:    f.failed.Load(),
		Queued:    len(f.queue),
	}
}
