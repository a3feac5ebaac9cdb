// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package derive

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/catalogview/internal/cart"
	"github.com/tomtom215/catalogview/internal/catalog"
	"github.com/tomtom215/catalogview/internal/metrics"
	"github.com/tomtom215/catalogview/internal/telemetry"
)

// ErrRecomputeFault is reported when a recomputation panics.
var ErrRecomputeFault = errors.New("view recomputation faulted")

// CatalogSource provides the current catalog snapshot.
type CatalogSource interface {
	Current() *catalog.Snapshot
}

// CartSource provides the current cart state.
type CartSource interface {
	Snapshot() *cart.State
}

// WindowSource provides the current frozen telemetry window.
type WindowSource interface {
	CurrentWindow() *telemetry.Window
}

// Sources are the pipeline's read-only collaborators.
type Sources struct {
	Catalog   CatalogSource
	Cart      CartSource
	Telemetry WindowSource
}

// Config configures a Pipeline.
type Config struct {
	Weights Weights

	// OnFault is called, outside the pipeline lock, for every recovered
	// recomputation fault.
	OnFault func(error)
}

// Stats reports pipeline counters.
type Stats struct {
	Recomputes   uint64        `json:"recomputes"`
	Hits         uint64        `json:"hits"`
	Faults       uint64        `json:"faults"`
	LastKey      RecipeKey     `json:"last_key"`
	LastDuration time.Duration `json:"last_duration"`
}

type memoEntry struct {
	key     RecipeKey
	view    *View
	metrics Metrics
}

// Pipeline derives views from the catalog, cart and telemetry window.
//
// Only the last good result is memoized. A call whose recipe key equals the
// memo key returns the memoized view without touching the catalog.
type Pipeline struct {
	src    Sources
	cfg    Config
	logger zerolog.Logger

	mu    sync.Mutex
	memo  *memoEntry
	stats Stats

	// beforeRecompute runs at the start of every recomputation.
	beforeRecompute func(RecipeKey)
}

// NewPipeline creates a pipeline.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewPipeline(src Sources, cfg Config, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		src:    src,
		cfg:    cfg,
		logger: logger.With().Str("component", "pipeline").Logger(),
	}
}

// Key captures the current input versions for in.
func (p *Pipeline) Key(in Inputs) RecipeKey {
	key, _, _, _ := p.capture(in)
	return key
}

func (p *Pipeline) capture(in Inputs) (RecipeKey, *catalog.Snapshot, *cart.State, *telemetry.Window) {
	in = in.normalize()
	snap := p.src.Catalog.Current()
	cs := p.src.Cart.Snapshot()
	win := p.src.Telemetry.CurrentWindow()

	return RecipeKey{
		CatalogVersion: snap.Version(),
		SearchTerm:     in.SearchTerm,
		Category:       in.Category,
		CartVersion:    cs.Version(),
		WindowVersion:  win.Version(),
	}, snap, cs, win
}

// GetView returns the view and metrics for in. It never panics: a faulted
// recomputation returns the previous good result.
func (p *Pipeline) GetView(in Inputs) (*View, Metrics) {
	key, snap, cs, win := p.capture(in)

	p.mu.Lock()
	if p.memo != nil && p.memo.key == key {
		p.stats.Hits++
		m := p.memo
		p.mu.Unlock()
		metrics.RecordMemoHit()
		return m.view, m.metrics.Clone()
	}

	start := time.Now()
	entry, err := p.recompute(key, snap, cs, win)
	if err != nil {
		p.stats.Faults++
		prev := p.memo
		p.mu.Unlock()

		metrics.PipelineFaults.Inc()
		p.logger.Error().Err(err).Interface("key", key).Msg("View recomputation faulted, keeping previous view")
		if p.cfg.OnFault != nil {
			p.cfg.OnFault(err)
		}
		if prev == nil {
			return &View{key: key}, Metrics{PerCategory: map[string]CategoryMetrics{}}
		}
		return prev.view, prev.metrics.Clone()
	}

	elapsed := time.Since(start)
	p.memo = entry
	p.stats.Recomputes++
	p.stats.LastKey = key
	p.stats.LastDuration = elapsed
	p.mu.Unlock()

	metrics.RecordRecompute(elapsed, entry.view.Len())
	p.logger.Debug().
		Uint64("catalog_version", key.CatalogVersion).
		Uint64("cart_version", key.CartVersion).
		Uint64("window_version", key.WindowVersion).
		Int("size", entry.view.Len()).
		Dur("duration", elapsed).
		Msg("View recomputed")
	return entry.view, entry.metrics.Clone()
}

// Last returns the memoized result, if any.
func (p *Pipeline) Last() (*View, Metrics, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.memo == nil {
		return nil, Metrics{}, false
	}
	return p.memo.view, p.memo.metrics.Clone(), true
}

// Stats returns pipeline counters.
func (p *Pipeline) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// recompute filters, scores, sorts and aggregates. Called with p.mu held.
func (p *Pipeline) recompute(key RecipeKey, snap *catalog.Snapshot, cs *cart.State, win *telemetry.Window) (entry *memoEntry, err error) {
	defer func() {
		if r := recover(); r != nil {
			entry = nil
			err = fmt.Errorf("%w: %v", ErrRecomputeFault, r)
		}
	}()

	if p.beforeRecompute != nil {
		p.beforeRecompute(key)
	}

	sc := newScorer(p.cfg.Weights, snap, cs, win)

	type scored struct {
		p     *catalog.Product
		score float64
	}
	survivors := make([]scored, 0, snap.Len())
	snap.Range(func(prod *catalog.Product) bool {
		if key.Category != "" && prod.Category() != key.Category {
			return true
		}
		if !prod.Matches(key.SearchTerm) {
			return true
		}
		survivors = append(survivors, scored{p: prod, score: sc.score(prod)})
		return true
	})

	sort.Slice(survivors, func(i, j int) bool {
		if survivors[i].score != survivors[j].score {
			return survivors[i].score > survivors[j].score
		}
		return survivors[i].p.ID() < survivors[j].p.ID()
	})

	view := &View{
		key:    key,
		ids:    make([]string, len(survivors)),
		scores: make([]float64, len(survivors)),
	}
	agg := newAggregator()
	for i, s := range survivors {
		view.ids[i] = s.p.ID()
		view.scores[i] = s.score
		agg.add(s.p)
	}

	return &memoEntry{key: key, view: view, metrics: agg.result()}, nil
}

// aggregator builds Metrics in a single pass.
type aggregator struct {
	count    int
	sum      float64
	min, max float64
	perCat   map[string]*catAgg
}

type catAgg struct {
	count int
	sum   float64
}

func newAggregator() *aggregator {
	return &aggregator{perCat: make(map[string]*catAgg)}
}

func (a *aggregator) add(p *catalog.Product) {
	price := p.Price()
	if a.count == 0 || price < a.min {
		a.min = price
	}
	if a.count == 0 || price > a.max {
		a.max = price
	}
	a.count++
	a.sum += price

	c, ok := a.perCat[p.Category()]
	if !ok {
		c = &catAgg{}
		a.perCat[p.Category()] = c
	}
	c.count++
	c.sum += price
}

func (a *aggregator) result() Metrics {
	m := Metrics{
		Count:       a.count,
		PerCategory: make(map[string]CategoryMetrics, len(a.perCat)),
	}
	if a.count == 0 {
		return m
	}

	m.AveragePrice = a.sum / float64(a.count)
	lo, hi := a.min, a.max
	m.PriceRange = PriceRange{Min: &lo, Max: &hi}
	for name, c := range a.perCat {
		m.PerCategory[name] = CategoryMetrics{Count: c.count, AveragePrice: c.sum / float64(c.count)}
	}
	return m
}
