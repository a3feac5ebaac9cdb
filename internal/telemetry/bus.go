// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package telemetry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/catalogview/internal/metrics"
)

// Default bus sizing.
const (
	DefaultCapacity      = 500
	DefaultRollupEvery   = 50
	DefaultScoringWindow = 100

	// maxErrorDetail bounds the detail text of generated error events.
	maxErrorDetail = 512
)

// ErrSubscriberPanic wraps a panic recovered from a subscriber.
var ErrSubscriberPanic = errors.New("subscriber panicked")

// Config configures a Bus.
type Config struct {
	// Capacity is the fixed ring size.
	Capacity int

	// RollupEvery bumps the window version after this many events.
	// Zero leaves bumps to Rollup.
	RollupEvery int

	// ScoringWindow is how many recent events each frozen Window holds.
	ScoringWindow int

	// Now stamps events. Defaults to time.Now.
	Now func() time.Time

	// OnWindow is called after every window version bump, outside the lock.
	OnWindow func(*Window)
}

// DefaultConfig returns the default bus configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      DefaultCapacity,
		RollupEvery:   DefaultRollupEvery,
		ScoringWindow: DefaultScoringWindow,
		Now:           time.Now,
	}
}

// Subscription identifies a registered subscriber.
type Subscription struct {
	id   uint64
	name string
}

// Name returns the name given at Subscribe.
func (s *Subscription) Name() string { return s.name }

type subscriber struct {
	sub     *Subscription
	pred    Predicate
	handler Handler
}

type windowWatcher struct {
	id uint64
	fn func(*Window)
}

// Stats is a point-in-time view of bus counters.
type Stats struct {
	Published          uint64 `json:"published"`
	Evicted            uint64 `json:"evicted"`
	SubscriberFailures uint64 `json:"subscriber_failures"`
	Subscribers        int    `json:"subscribers"`
	WindowVersion      uint64 `json:"window_version"`
	Len                int    `json:"len"`
	Capacity           int    `json:"capacity"`
}

// Bus is a bounded telemetry log with predicate-filtered synchronous
// dispatch.
//
// Publish appends to a fixed-capacity ring, evicting the single oldest event
// on overflow, then calls every subscriber whose predicate accepts the event.
// Handler errors and panics are isolated and recorded as error events.
type Bus struct {
	cfg    Config
	logger zerolog.Logger

	mu            sync.Mutex
	log           *ring
	seq           uint64
	sinceRollup   int
	windowVersion uint64
	nextSubID     uint64

	// subs and watchers are replaced on every change so they can be
	// used unlocked.
	subs     []subscriber
	watchers []windowWatcher

	window atomic.Pointer[Window]

	published atomic.Uint64
	evicted   atomic.Uint64
	failures  atomic.Uint64
}

// NewBus creates a bus. Non-positive sizes take defaults.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewBus(cfg Config, logger zerolog.Logger) *Bus {
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.RollupEvery < 0 {
		cfg.RollupEvery = 0
	}
	if cfg.ScoringWindow <= 0 {
		cfg.ScoringWindow = DefaultScoringWindow
	}
	if cfg.ScoringWindow > cfg.Capacity {
		cfg.ScoringWindow = cfg.Capacity
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	b := &Bus{
		cfg:    cfg,
		logger: logger.With().Str("component", "telemetry").Logger(),
		log:    newRing(cfg.Capacity),
	}
	b.window.Store(newWindow(0, nil))
	return b
}

// Publish validates e, assigns its sequence number and timestamp, stores it
// and notifies subscribers. The stored event is returned.
func (b *Bus) Publish(e Event) (Event, error) {
	if err := e.Validate(); err != nil {
		return Event{}, err
	}
	return b.publish(e, true), nil
}

func (b *Bus) publish(e Event, report bool) Event {
	b.mu.Lock()
	b.seq++
	e.Seq = b.seq
	e.Timestamp = b.cfg.Now().UTC()
	evicted := b.log.push(e)
	b.sinceRollup++

	var bumped *Window
	if b.cfg.RollupEvery > 0 && b.sinceRollup >= b.cfg.RollupEvery {
		bumped = b.bumpLocked()
	}
	subs := b.subs
	b.mu.Unlock()

	b.published.Add(1)
	if evicted {
		b.evicted.Add(1)
	}
	metrics.RecordTelemetryEvent(string(e.Kind), evicted)
	if bumped != nil {
		b.windowBumped(bumped)
	}

	b.dispatch(e, subs, report)
	return e
}

// dispatch delivers e to matching subscribers. Failures become error
// events once every subscriber has seen e. When report is false, failures
// are only logged.
func (b *Bus) dispatch(e Event, subs []subscriber, report bool) {
	var failed []Event
	for _, s := range subs {
		err := safeCall(s, e)
		if err == nil {
			continue
		}

		b.failures.Add(1)
		metrics.TelemetrySubscriberFailures.Inc()
		b.logger.Warn().
			Err(err).
			Str("subscriber", s.sub.name).
			Str("kind", string(e.Kind)).
			Uint64("seq", e.Seq).
			Msg("Subscriber failed")

		if report {
			failed = append(failed, Event{
				Kind:      KindError,
				ProductID: e.ProductID,
				Detail:    truncate(fmt.Sprintf("subscriber %s failed on %s #%d: %v", s.sub.name, e.Kind, e.Seq, err), maxErrorDetail),
			})
		}
	}

	for _, fe := range failed {
		b.publish(fe, false)
	}
}

func safeCall(s subscriber, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrSubscriberPanic, r)
		}
	}()
	if s.pred != nil && !s.pred(e) {
		return nil
	}
	return s.handler(e)
}

// Subscribe registers handler for events accepted by pred. A nil predicate
// accepts everything.
func (b *Bus) Subscribe(name string, pred Predicate, handler Handler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextSubID++
	sub := &Subscription{id: b.nextSubID, name: name}

	next := make([]subscriber, len(b.subs), len(b.subs)+1)
	copy(next, b.subs)
	b.subs = append(next, subscriber{sub: sub, pred: pred, handler: handler})
	metrics.TelemetrySubscribers.Set(float64(len(b.subs)))
	return sub
}

// Unsubscribe removes sub. Returns false if it was not registered.
func (b *Bus) Unsubscribe(sub *Subscription) bool {
	if sub == nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.sub.id != sub.id {
			continue
		}
		next := make([]subscriber, 0, len(b.subs)-1)
		next = append(next, b.subs[:i]...)
		next = append(next, b.subs[i+1:]...)
		b.subs = next
		metrics.TelemetrySubscribers.Set(float64(len(b.subs)))
		return true
	}
	return false
}

// SnapshotWindow returns a copy of the most recent n events in sequence
// order. The log is not modified.
func (b *Bus) SnapshotWindow(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.log.last(n)
}

// CurrentWindow returns the window frozen at the latest version bump.
func (b *Bus) CurrentWindow() *Window {
	return b.window.Load()
}

// Rollup bumps the window version if any events arrived since the last
// bump. Returns the new window, or nil when nothing changed.
func (b *Bus) Rollup() *Window {
	b.mu.Lock()
	if b.sinceRollup == 0 {
		b.mu.Unlock()
		return nil
	}
	w := b.bumpLocked()
	b.mu.Unlock()

	b.windowBumped(w)
	return w
}

func (b *Bus) bumpLocked() *Window {
	b.windowVersion++
	b.sinceRollup = 0
	w := newWindow(b.windowVersion, b.log.last(b.cfg.ScoringWindow))
	b.window.Store(w)
	return w
}

func (b *Bus) windowBumped(w *Window) {
	metrics.TelemetryWindowVersion.Set(float64(w.Version()))
	b.logger.Debug().Uint64("window_version", w.Version()).Int("events", w.Len()).Msg("Telemetry window rolled up")
	if b.cfg.OnWindow != nil {
		b.cfg.OnWindow(w)
	}

	b.mu.Lock()
	watchers := b.watchers
	b.mu.Unlock()
	for _, ww := range watchers {
		ww.fn(w)
	}
}

// WatchWindow calls fn after every window version bump, outside the bus
// lock. Unlike a subscription it never sees individual events. The
// returned function removes the watcher.
func (b *Bus) WatchWindow(fn func(*Window)) (cancel func()) {
	b.mu.Lock()
	b.nextSubID++
	id := b.nextSubID
	next := make([]windowWatcher, len(b.watchers), len(b.watchers)+1)
	copy(next, b.watchers)
	b.watchers = append(next, windowWatcher{id: id, fn: fn})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		next := make([]windowWatcher, 0, len(b.watchers))
		for _, ww := range b.watchers {
			if ww.id != id {
				next = append(next, ww)
			}
		}
		b.watchers = next
	}
}

// Len returns the number of stored events.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.log.len()
}

// Capacity returns the fixed ring size.
func (b *Bus) Capacity() int { return b.cfg.Capacity }

// Stats returns bus counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	n := b.log.len()
	subs := len(b.subs)
	b.mu.Unlock()

	return Stats{
		Published:          b.published.Load(),
		Evicted:            b.evicted.Load(),
		SubscriberFailures: b.failures.Load(),
		Subscribers:        subs,
		WindowVersion:      b.CurrentWindow().Version(),
		Len:                n,
		Capacity:           b.cfg.Capacity,
	}
}

// truncate shortens s to at most limit runes.
func truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}
