// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/catalogview/internal/cart"
	"github.com/tomtom215/catalogview/internal/catalog"
	"github.com/tomtom215/catalogview/internal/derive"
	"github.com/tomtom215/catalogview/internal/resilience"
	"github.com/tomtom215/catalogview/internal/telemetry"
	"github.com/tomtom215/catalogview/internal/window"
)

// recipeEvents selects the events the engine reacts to directly. Other kinds
// reach the view only through window version bumps.
var recipeEvents = telemetry.Kinds(telemetry.KindCartChange)

// Config configures an Engine.
type Config struct {
	Weights           derive.Weights
	SearchDebounce    time.Duration
	RelatedPriceDelta float64
	Window            window.Config
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Weights:           derive.DefaultWeights(),
		SearchDebounce:    derive.DefaultDebounce,
		RelatedPriceDelta: derive.DefaultRelatedPriceDelta,
		Window:            window.DefaultConfig(),
	}
}

// Deps are the collaborators an Engine is built from. Store, Bus and Codec
// are required; Feed, Archive and CodecBreaker are optional.
type Deps struct {
	Store        *catalog.Store
	Bus          *telemetry.Bus
	Codec        window.Codec
	CodecBreaker *resilience.Breaker
	Feed         catalog.Feed
	Archive      *catalog.Archive
}

// ViewState is a derived view together with the inputs it was built for.
type ViewState struct {
	Inputs  derive.Inputs
	View    *derive.View
	Metrics derive.Metrics
}

// CartSummary totals the cart against the current catalog. Lines whose
// product left the catalog count toward TotalItems but carry no value.
type CartSummary struct {
	Version          uint64      `json:"version"`
	Lines            []cart.Line `json:"lines"`
	UniqueItems      int         `json:"unique_items"`
	TotalItems       int         `json:"total_items"`
	TotalValue       float64     `json:"total_value"`
	AverageItemValue float64     `json:"average_item_value"`
	Missing          []string    `json:"missing,omitempty"`
}

// Engine is the UI boundary. It owns the cart ledger, the derivation
// pipeline and the render window scheduler, and wires them to the product
// store and the telemetry bus.
type Engine struct {
	cfg     Config
	logger  zerolog.Logger
	store   *catalog.Store
	bus     *telemetry.Bus
	feed    catalog.Feed
	archive *catalog.Archive

	ledger    *cart.Ledger
	pipeline  *derive.Pipeline
	scheduler *window.Scheduler
	search    *derive.Debouncer[string]
	sub       *telemetry.Subscription
	unwatch   func()

	inputsMu sync.Mutex
	inputs   derive.Inputs

	// notifyMu guards lastKey and the listener table.
	notifyMu  sync.Mutex
	lastKey   derive.RecipeKey
	notified  bool
	listeners map[uint64]func(ViewState)
	nextID    uint64

	closeOnce sync.Once
}

// New builds an engine and subscribes it to the bus.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func New(deps Deps, cfg Config, logger zerolog.Logger) (*Engine, error) {
	switch {
	case deps.Store == nil:
		return nil, fmt.Errorf("%w: store", ErrMissingDependency)
	case deps.Bus == nil:
		return nil, fmt.Errorf("%w: telemetry bus", ErrMissingDependency)
	case deps.Codec == nil:
		return nil, fmt.Errorf("%w: asset codec", ErrMissingDependency)
	}
	if cfg.RelatedPriceDelta <= 0 {
		cfg.RelatedPriceDelta = derive.DefaultRelatedPriceDelta
	}

	e := &Engine{
		cfg:       cfg,
		logger:    logger.With().Str("component", "engine").Logger(),
		store:     deps.Store,
		bus:       deps.Bus,
		feed:      deps.Feed,
		archive:   deps.Archive,
		listeners: map[uint64]func(ViewState){},
	}

	e.ledger = cart.NewLedger(deps.Bus, logger)
	e.pipeline = derive.NewPipeline(derive.Sources{
		Catalog:   deps.Store,
		Cart:      e.ledger,
		Telemetry: deps.Bus,
	}, derive.Config{
		Weights: cfg.Weights,
		OnFault: e.reportFault,
	}, logger)
	e.scheduler = window.NewScheduler(cfg.Window, deps.Store, deps.Codec, deps.CodecBreaker, logger)
	e.search = derive.NewDebouncer(cfg.SearchDebounce, e.applySearch)

	// cartChange events and window bumps are the only bus traffic that
	// changes the recipe key
	e.sub = deps.Bus.Subscribe("engine", recipeEvents, func(telemetry.Event) error {
		e.refreshView()
		return nil
	})
	e.unwatch = deps.Bus.WatchWindow(func(*telemetry.Window) {
		e.refreshView()
	})

	return e, nil
}

// Close stops the search debouncer and detaches from the bus.
func (e *Engine) Close() {
	e.closeOnce.Do(func() {
		e.search.Stop()
		e.bus.Unsubscribe(e.sub)
		e.unwatch()
	})
}

// Inputs returns the applied search term and category.
func (e *Engine) Inputs() derive.Inputs {
	e.inputsMu.Lock()
	defer e.inputsMu.Unlock()
	return e.inputs
}

// View returns the view for the applied inputs.
func (e *Engine) View() ViewState {
	in := e.Inputs()
	view, m := e.pipeline.GetView(in)
	return ViewState{Inputs: in, View: view, Metrics: m}
}

// SetSearchTerm schedules term to be applied after the debounce period.
// Only the last term of a burst is applied.
func (e *Engine) SetSearchTerm(term string) {
	e.search.Trigger(term)
}

// FlushSearch applies a pending search term immediately.
func (e *Engine) FlushSearch() bool {
	return e.search.Flush()
}

func (e *Engine) applySearch(term string) {
	e.inputsMu.Lock()
	e.inputs.SearchTerm = term
	e.inputsMu.Unlock()

	e.publish(telemetry.Event{Kind: telemetry.KindSearch, Query: term})
	e.refreshView()
}

// SelectCategory applies a category filter. Empty or "all" clears it.
func (e *Engine) SelectCategory(category string) {
	e.inputsMu.Lock()
	e.inputs.Category = category
	e.inputsMu.Unlock()

	e.publish(telemetry.Event{Kind: telemetry.KindCategorySelect, Category: category})
	e.refreshView()
}

// Publish records a UI interaction event.
func (e *Engine) Publish(ev telemetry.Event) (telemetry.Event, error) {
	if ev.Kind == telemetry.KindProductView {
		if _, ok := e.store.Current().Get(ev.ProductID); !ok && ev.ProductID != "" {
			return telemetry.Event{}, fmt.Errorf("%w: %s", ErrUnknownProduct, ev.ProductID)
		}
	}
	return e.bus.Publish(ev)
}

// RecentEvents returns up to n of the most recent events, oldest first.
func (e *Engine) RecentEvents(n int) []telemetry.Event {
	return e.bus.SnapshotWindow(n)
}

// AddToCart adds one unit of a catalog product.
func (e *Engine) AddToCart(id string) (*cart.State, error) {
	if id != "" {
		if _, ok := e.store.Current().Get(id); !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
		}
	}
	return e.ledger.Add(id)
}

// RemoveFromCart removes one unit. Products that left the catalog can
// still be removed.
func (e *Engine) RemoveFromCart(id string) (*cart.State, error) {
	return e.ledger.Remove(id)
}

// ClearCart empties the cart.
func (e *Engine) ClearCart() *cart.State {
	return e.ledger.Clear()
}

// Cart returns the current cart state.
func (e *Engine) Cart() *cart.State {
	return e.ledger.Snapshot()
}

// CartSummary totals the cart against the current catalog.
func (e *Engine) CartSummary() CartSummary {
	state := e.ledger.Snapshot()
	snap := e.store.Current()

	sum := CartSummary{
		Version:     state.Version(),
		Lines:       state.Lines(),
		UniqueItems: state.Len(),
		TotalItems:  state.TotalItems(),
	}
	for _, line := range sum.Lines {
		p, ok := snap.Get(line.ProductID)
		if !ok {
			sum.Missing = append(sum.Missing, line.ProductID)
			continue
		}
		sum.TotalValue += p.Price() * float64(line.Quantity)
	}
	if sum.TotalItems > 0 {
		sum.AverageItemValue = sum.TotalValue / float64(sum.TotalItems)
	}
	return sum
}

// ComputeWindow schedules the viewport over the current view.
func (e *Engine) ComputeWindow(top, height, itemHeight float64) window.Window {
	return e.scheduler.ComputeWindow(e.View().View, top, height, itemHeight)
}

// EnsureAssets fetches missing thumbnails for ids.
func (e *Engine) EnsureAssets(ctx context.Context, ids []string) error {
	return e.scheduler.EnsureAssets(ctx, ids)
}

// Asset returns the cached thumbnail for id.
func (e *Engine) Asset(id string) (window.Asset, window.Status) {
	return e.scheduler.Asset(id)
}

// Related returns catalog products related to id, ordered by id.
func (e *Engine) Related(id string) ([]string, error) {
	ids, ok := derive.Related(e.store.Current(), id, e.cfg.RelatedPriceDelta)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return ids, nil
}

// Product returns the record for id from the current catalog.
func (e *Engine) Product(id string) (catalog.ProductRecord, error) {
	rec, ok := e.store.Current().Record(id)
	if !ok {
		return catalog.ProductRecord{}, fmt.Errorf("%w: %s", ErrUnknownProduct, id)
	}
	return rec, nil
}

// Categories returns the categories of the current catalog.
func (e *Engine) Categories() []string {
	return e.store.Current().Categories()
}

// Refresh reloads the catalog from the feed. On failure the previous
// catalog stays in place and an error event is published. A successful
// refresh is saved to the archive when one is configured.
func (e *Engine) Refresh(ctx context.Context) (*catalog.Snapshot, error) {
	if e.feed == nil {
		return e.store.Current(), ErrNoFeed
	}

	snap, err := e.store.Refresh(ctx, e.feed)
	if err != nil {
		e.publish(telemetry.Event{Kind: telemetry.KindError, Detail: err.Error()})
		return snap, err
	}

	if e.archive != nil {
		if aerr := e.archive.Save(snap); aerr != nil {
			e.logger.Warn().Err(aerr).Uint64("version", snap.Version()).Msg("Failed to archive catalog snapshot")
		}
	}
	e.refreshView()
	return snap, nil
}

// Restore loads the archived catalog into the store. ok is false when the
// archive is empty or not configured.
func (e *Engine) Restore() (bool, error) {
	if e.archive == nil {
		return false, nil
	}
	archived, ok, err := e.archive.Load()
	if err != nil || !ok {
		return false, err
	}
	if _, err := e.store.ReplaceWithCategories(archived.Records, archived.Categories); err != nil {
		return false, fmt.Errorf("restore archived catalog: %w", err)
	}

	e.logger.Info().
		Int("products", len(archived.Records)).
		Time("saved_at", archived.SavedAt).
		Msg("Restored archived catalog")
	e.refreshView()
	return true, nil
}

// Rollup bumps the telemetry window if events arrived since the last bump.
func (e *Engine) Rollup() bool {
	return e.bus.Rollup() != nil
}

// OnViewChanged registers fn to be called with every new view. The returned
// function removes the registration.
func (e *Engine) OnViewChanged(fn func(ViewState)) (cancel func()) {
	e.notifyMu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners[id] = fn
	e.notifyMu.Unlock()

	return func() {
		e.notifyMu.Lock()
		delete(e.listeners, id)
		e.notifyMu.Unlock()
	}
}

// Stats bundles the component counters.
type Stats struct {
	Pipeline  derive.Stats    `json:"pipeline"`
	Telemetry telemetry.Stats `json:"telemetry"`
	Window    window.Stats    `json:"window"`
	Catalog   CatalogStats    `json:"catalog"`
	Cart      CartStats       `json:"cart"`
}

// CatalogStats describes the current catalog snapshot.
type CatalogStats struct {
	Version    uint64 `json:"version"`
	Products   int    `json:"products"`
	Categories int    `json:"categories"`
}

// CartStats describes the current cart.
type CartStats struct {
	Version    uint64 `json:"version"`
	Lines      int    `json:"lines"`
	TotalItems int    `json:"total_items"`
}

// Stats returns a point-in-time view of every component.
func (e *Engine) Stats() Stats {
	snap := e.store.Current()
	cs := e.ledger.Snapshot()
	return Stats{
		Pipeline:  e.pipeline.Stats(),
		Telemetry: e.bus.Stats(),
		Window:    e.scheduler.Stats(),
		Catalog: CatalogStats{
			Version:    snap.Version(),
			Products:   snap.Len(),
			Categories: len(snap.Categories()),
		},
		Cart: CartStats{Version: cs.Version(), Lines: cs.Len(), TotalItems: cs.TotalItems()},
	}
}

// refreshView recomputes the view when its recipe key changed and hands it
// to the listeners.
func (e *Engine) refreshView() {
	in := e.Inputs()
	key := e.pipeline.Key(in)

	e.notifyMu.Lock()
	if e.notified && key == e.lastKey {
		e.notifyMu.Unlock()
		return
	}
	e.lastKey = key
	e.notified = true
	ids := make([]uint64, 0, len(e.listeners))
	for id := range e.listeners {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]func(ViewState), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, e.listeners[id])
	}
	e.notifyMu.Unlock()

	view, m := e.pipeline.GetView(in)
	state := ViewState{Inputs: in, View: view, Metrics: m}
	for _, fn := range fns {
		fn(state)
	}
}

func (e *Engine) reportFault(err error) {
	e.publish(telemetry.Event{Kind: telemetry.KindError, Detail: err.Error()})
}

func (e *Engine) publish(ev telemetry.Event) {
	if _, err := e.bus.Publish(ev); err != nil {
		e.logger.Warn().Err(err).Str("kind", string(ev.Kind)).Msg("Failed to publish event")
	}
}
