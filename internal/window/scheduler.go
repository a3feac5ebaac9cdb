// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package window

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/tomtom215/catalogview/internal/cache"
	"github.com/tomtom215/catalogview/internal/catalog"
	"github.com/tomtom215/catalogview/internal/metrics"
	"github.com/tomtom215/catalogview/internal/resilience"
)

// Errors reported by EnsureAssets.
var (
	// ErrAssetFetch wraps a failed thumbnail fetch.
	ErrAssetFetch = errors.New("asset fetch failed")

	// ErrNoImage is recorded for ids missing from the catalog or without an image.
	ErrNoImage = errors.New("product has no image")
)

const assetCacheType = "asset"

// Sequence is an ordered list of product ids, such as a derived view.
type Sequence interface {
	Len() int
	At(i int) string
}

// CatalogSource resolves product ids to image references.
type CatalogSource interface {
	Current() *catalog.Snapshot
}

// Status describes an asset's cache state.
type Status string

// Asset states.
const (
	StatusMissing  Status = "missing"
	StatusLoading  Status = "loading"
	StatusResident Status = "resident"
	StatusFailed   Status = "failed"
)

// Asset is a cached thumbnail.
type Asset struct {
	ProductID  string
	Handle     Handle
	LastAccess uint64
	Err        error
}

// Config configures a Scheduler.
type Config struct {
	// PrefetchMargin is the number of items prefetched on each side of the
	// visible range.
	PrefetchMargin int

	// AssetCapacity bounds the thumbnail cache.
	AssetCapacity int

	// FetchConcurrency bounds parallel codec calls.
	FetchConcurrency int

	// FetchTimeout bounds a single codec call.
	FetchTimeout time.Duration
}

// DefaultConfig returns the default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		PrefetchMargin:   5,
		AssetCapacity:    200,
		FetchConcurrency: 8,
		FetchTimeout:     15 * time.Second,
	}
}

// Window is the result of ComputeWindow.
type Window struct {
	Generation   uint64   `json:"generation"`
	FirstVisible int      `json:"first_visible"`
	LastVisible  int      `json:"last_visible"`
	VisibleIDs   []string `json:"visible_ids"`
	PrefetchIDs  []string `json:"prefetch_ids"`
}

// Stats reports scheduler state.
type Stats struct {
	Generation uint64      `json:"generation"`
	Active     int         `json:"active"`
	Inflight   int         `json:"inflight"`
	Failed     int         `json:"failed"`
	Cache      cache.Stats `json:"cache"`
}

type inflightFetch struct {
	gen    uint64
	cancel context.CancelFunc
}

// Scheduler decides which thumbnails must be resident and keeps them in a
// bounded cache.
//
// Every ComputeWindow starts a new generation, pins the visible and
// prefetch ids in the cache and cancels fetches for ids that left the
// window. A fetch that completes after its generation was superseded and
// whose id is no longer in the window is discarded.
type Scheduler struct {
	cfg     Config
	catalog CatalogSource
	codec   Codec
	breaker *resilience.Breaker
	logger  zerolog.Logger

	assets *cache.LRU[Handle]
	group  singleflight.Group

	// sharedMu guards shared, the codec calls keyed by image ref.
	sharedMu  sync.Mutex
	shared    map[string]*sharedFetch
	sharedSeq uint64

	// mu guards the fields below. Inserts and repins of assets happen under mu.
	mu         sync.Mutex
	generation uint64
	active     map[string]struct{}
	inflight   map[string]inflightFetch
	failed     map[string]error
}

// NewScheduler creates a scheduler. breaker guards the codec and may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewScheduler(cfg Config, src CatalogSource, codec Codec, breaker *resilience.Breaker, logger zerolog.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.PrefetchMargin < 0 {
		cfg.PrefetchMargin = 0
	}
	if cfg.AssetCapacity <= 0 {
		cfg.AssetCapacity = def.AssetCapacity
	}
	if cfg.FetchConcurrency <= 0 {
		cfg.FetchConcurrency = def.FetchConcurrency
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = def.FetchTimeout
	}

	return &Scheduler{
		cfg:      cfg,
		catalog:  src,
		codec:    codec,
		breaker:  breaker,
		logger:   logger.With().Str("component", "window").Logger(),
		assets:   cache.NewLRU[Handle](cfg.AssetCapacity),
		active:   map[string]struct{}{},
		inflight: map[string]inflightFetch{},
		failed:   map[string]error{},
		shared:   map[string]*sharedFetch{},
	}
}

// ComputeWindow returns the visible and prefetch ids of seq for a viewport.
// Visible indices are [floor(top/itemHeight), ceil((top+height)/itemHeight)]
// clamped to seq. Invalid geometry yields an empty window.
func (s *Scheduler) ComputeWindow(seq Sequence, top, height, itemHeight float64) Window {
	first, last, ok := visibleRange(seq.Len(), top, height, itemHeight)

	w := Window{FirstVisible: -1, LastVisible: -1, VisibleIDs: []string{}, PrefetchIDs: []string{}}
	if ok {
		w.FirstVisible, w.LastVisible = first, last
		for i := first; i <= last; i++ {
			w.VisibleIDs = append(w.VisibleIDs, seq.At(i))
		}
		for i := max(0, first-s.cfg.PrefetchMargin); i < first; i++ {
			w.PrefetchIDs = append(w.PrefetchIDs, seq.At(i))
		}
		for i := last + 1; i <= min(seq.Len()-1, last+s.cfg.PrefetchMargin); i++ {
			w.PrefetchIDs = append(w.PrefetchIDs, seq.At(i))
		}
	}

	active := make(map[string]struct{}, len(w.VisibleIDs)+len(w.PrefetchIDs))
	pinned := make([]string, 0, len(active))
	for _, id := range w.VisibleIDs {
		active[id] = struct{}{}
		pinned = append(pinned, id)
	}
	for _, id := range w.PrefetchIDs {
		active[id] = struct{}{}
		pinned = append(pinned, id)
	}

	s.mu.Lock()
	s.generation++
	w.Generation = s.generation
	s.active = active
	s.assets.Repin(pinned)

	cancelled := 0
	for id, f := range s.inflight {
		if _, keep := active[id]; !keep {
			f.cancel()
			delete(s.inflight, id)
			cancelled++
		}
	}
	for id := range s.failed {
		if _, keep := active[id]; !keep {
			delete(s.failed, id)
		}
	}
	s.mu.Unlock()

	metrics.WindowGeneration.Set(float64(w.Generation))
	if cancelled > 0 {
		s.logger.Debug().Uint64("generation", w.Generation).Int("cancelled", cancelled).Msg("Cancelled out-of-window fetches")
	}
	return w
}

// visibleRange computes the clamped inclusive index range.
func visibleRange(n int, top, height, itemHeight float64) (first, last int, ok bool) {
	if n == 0 || !(itemHeight > 0) || !(height >= 0) || math.IsNaN(top) ||
		math.IsInf(top, 0) || math.IsInf(height, 0) || math.IsInf(itemHeight, 0) {
		return 0, 0, false
	}

	first = clamp(int(math.Floor(top/itemHeight)), 0, n-1)
	last = clamp(int(math.Ceil((top+height)/itemHeight)), 0, n-1)
	if last < first {
		last = first
	}
	return first, last, true
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// EnsureAssets fetches every requested id that is not cached. Cached ids
// are touched. Failed fetches are marked failed and retried by the next
// call. The returned error joins every fetch failure.
func (s *Scheduler) EnsureAssets(ctx context.Context, ids []string) error {
	snap := s.catalog.Current()

	var (
		g      errgroup.Group
		errMu  sync.Mutex
		errs   []error
		queued = make(map[string]struct{}, len(ids))
	)
	g.SetLimit(s.cfg.FetchConcurrency)

	for _, id := range ids {
		if _, dup := queued[id]; dup {
			continue
		}
		queued[id] = struct{}{}

		if _, ok := s.assets.Get(id); ok {
			metrics.CacheHits.WithLabelValues(assetCacheType).Inc()
			continue
		}
		metrics.CacheMisses.WithLabelValues(assetCacheType).Inc()

		p, ok := snap.Get(id)
		if !ok || p.ImageRef() == "" {
			s.markFailed(id, ErrNoImage)
			errMu.Lock()
			errs = append(errs, fmt.Errorf("%w: %s: %w", ErrAssetFetch, id, ErrNoImage))
			errMu.Unlock()
			continue
		}

		fctx, gen, started := s.startFetch(ctx, id)
		if !started {
			continue
		}
		ref := p.ImageRef()
		g.Go(func() error {
			if err := s.fetch(fctx, id, ref, gen); err != nil {
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
			return nil
		})
	}

	_ = g.Wait()
	return errors.Join(errs...)
}

// startFetch registers an inflight fetch for id. started is false when one
// is already running.
func (s *Scheduler) startFetch(ctx context.Context, id string) (context.Context, uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inflight[id]; busy {
		return nil, 0, false
	}
	fctx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	s.inflight[id] = inflightFetch{gen: s.generation, cancel: cancel}
	return fctx, s.generation, true
}

func (s *Scheduler) fetch(ctx context.Context, id, ref string, gen uint64) error {
	handle, err := s.fetchThumbnail(ctx, ref)

	s.mu.Lock()
	defer s.mu.Unlock()

	f, registered := s.inflight[id]
	owned := registered && f.gen == gen
	if owned {
		f.cancel()
		delete(s.inflight, id)
	}

	// a newer fetch took over, or a window move cancelled this one
	superseded := !owned && (registered || ctx.Err() != nil)

	_, inWindow := s.active[id]
	if superseded || (gen != s.generation && !inWindow) {
		metrics.AssetFetchTotal.WithLabelValues("stale").Inc()
		return nil
	}

	if err != nil {
		s.failed[id] = err
		metrics.AssetFetchTotal.WithLabelValues("failed").Inc()
		s.logger.Warn().Err(err).Str("product_id", id).Msg("Thumbnail fetch failed")
		return fmt.Errorf("%w: %s: %w", ErrAssetFetch, id, err)
	}

	delete(s.failed, id)
	stored, evicted := s.assets.Add(id, handle)
	if !stored {
		metrics.AssetFetchTotal.WithLabelValues("rejected").Inc()
		return nil
	}
	metrics.AssetFetchTotal.WithLabelValues("stored").Inc()
	metrics.CacheSize.WithLabelValues(assetCacheType).Set(float64(s.assets.Len()))
	if evicted != "" {
		metrics.CacheEvictions.WithLabelValues(assetCacheType).Inc()
	}
	return nil
}

// sharedFetch is one codec call for an image ref and the number of
// callers waiting on it. The call runs on its own context, cancelled when
// the last waiter leaves, so one caller's cancellation never fails another.
type sharedFetch struct {
	key     string
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// fetchThumbnail calls the codec once per imageRef across concurrent
// callers. Each caller stops waiting when its own ctx is done.
func (s *Scheduler) fetchThumbnail(ctx context.Context, ref string) (Handle, error) {
	sf := s.joinShared(ctx, ref)
	defer s.leaveShared(ref, sf)

	ch := s.group.DoChan(sf.key, func() (interface{}, error) {
		if s.breaker == nil {
			return s.codec.FetchThumbnail(sf.ctx, ref)
		}
		return resilience.Execute(s.breaker, func() (Handle, error) {
			return s.codec.FetchThumbnail(sf.ctx, ref)
		})
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *Scheduler) joinShared(ctx context.Context, ref string) *sharedFetch {
	s.sharedMu.Lock()
	defer s.sharedMu.Unlock()

	sf, ok := s.shared[ref]
	if !ok {
		s.sharedSeq++
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.FetchTimeout)
		// a fresh key keeps late callers off a call whose context was cancelled
		sf = &sharedFetch{key: fmt.Sprintf("%s#%d", ref, s.sharedSeq), ctx: sctx, cancel: cancel}
		s.shared[ref] = sf
	}
	sf.waiters++
	return sf
}

func (s *Scheduler) leaveShared(ref string, sf *sharedFetch) {
	s.sharedMu.Lock()
	defer s.sharedMu.Unlock()

	sf.waiters--
	if sf.waiters > 0 {
		return
	}
	sf.cancel()
	if s.shared[ref] == sf {
		delete(s.shared, ref)
	}
}

func (s *Scheduler) markFailed(id string, err error) {
	s.mu.Lock()
	s.failed[id] = err
	s.mu.Unlock()
	metrics.AssetFetchTotal.WithLabelValues("failed").Inc()
}

// Asset returns the cached asset for id and its status. A resident hit
// refreshes the entry's recency.
func (s *Scheduler) Asset(id string) (Asset, Status) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h, ok := s.assets.Get(id); ok {
		stamp, _ := s.assets.LastAccess(id)
		return Asset{ProductID: id, Handle: h, LastAccess: stamp}, StatusResident
	}
	if err, ok := s.failed[id]; ok {
		return Asset{ProductID: id, Err: err}, StatusFailed
	}
	if _, ok := s.inflight[id]; ok {
		return Asset{ProductID: id}, StatusLoading
	}
	return Asset{ProductID: id}, StatusMissing
}

// Generation returns the current window generation.
func (s *Scheduler) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generation
}

// Stats returns scheduler state.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Stats{
		Generation: s.generation,
		Active:     len(s.active),
		Inflight:   len(s.inflight),
		Failed:     len(s.failed),
		Cache:      s.assets.Stats(),
	}
}
