// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tomtom215/catalogview/internal/metrics"
	"github.com/tomtom215/catalogview/internal/resilience"
	"github.com/tomtom215/catalogview/internal/validation"
)

// Sentinel errors for catalog ingestion.
var (
	// ErrIngest wraps every failed refresh. The previous snapshot stays current.
	ErrIngest = errors.New("catalog ingest failed")

	// ErrDuplicateID is an invariant violation: two records share an id.
	ErrDuplicateID = errors.New("duplicate product id")

	// ErrInvalidRecord is an invariant violation: a record failed validation.
	ErrInvalidRecord = errors.New("invalid product record")
)

// feedResult is one complete load from a Feed.
type feedResult struct {
	records    []ProductRecord
	categories []string
}

// Store holds the current catalog snapshot.
//
// Readers call Current without locking. Replacement validates the whole
// record set first and swaps the snapshot atomically, so a failed load
// never exposes partial state.
type Store struct {
	current atomic.Pointer[Snapshot]

	// mu serializes replaces so versions are assigned in commit order.
	mu      sync.Mutex
	version uint64

	breaker *resilience.Breaker
	logger  zerolog.Logger
}

// NewStore creates a store holding the empty version-0 snapshot.
// breaker guards Refresh and may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewStore(breaker *resilience.Breaker, logger zerolog.Logger) *Store {
	s := &Store{
		breaker: breaker,
		logger:  logger.With().Str("component", "catalog").Logger(),
	}
	s.current.Store(emptySnapshot())
	return s
}

// Current returns the active snapshot. Never nil.
func (s *Store) Current() *Snapshot {
	return s.current.Load()
}

// Replace validates records and commits them as a new snapshot.
func (s *Store) Replace(records []ProductRecord) (*Snapshot, error) {
	return s.ReplaceWithCategories(records, nil)
}

// ReplaceWithCategories validates records and commits them together with
// the category list. On error nothing is committed.
func (s *Store) ReplaceWithCategories(records []ProductRecord, categories []string) (*Snapshot, error) {
	if err := validateRecords(records); err != nil {
		metrics.RecordCatalogRejected(false)
		s.logger.Warn().Err(err).Int("records", len(records)).Msg("Rejected catalog replace")
		return nil, err
	}

	s.mu.Lock()
	s.version++
	snap := buildSnapshot(s.version, records, categories)
	s.current.Store(snap)
	s.mu.Unlock()

	metrics.RecordCatalogReplace(snap.Version(), snap.Len())
	s.logger.Info().
		Uint64("version", snap.Version()).
		Int("products", snap.Len()).
		Int("categories", len(snap.categories)).
		Msg("Catalog snapshot replaced")
	return snap, nil
}

// Refresh loads the catalog and categories from feed and replaces the
// snapshot. Any failure is wrapped in ErrIngest and leaves the current
// snapshot in place.
func (s *Store) Refresh(ctx context.Context, feed Feed) (*Snapshot, error) {
	load := func() (feedResult, error) {
		records, err := feed.LoadCatalog(ctx)
		if err != nil {
			return feedResult{}, fmt.Errorf("load catalog: %w", err)
		}
		categories, err := feed.LoadCategories(ctx)
		if err != nil {
			return feedResult{}, fmt.Errorf("load categories: %w", err)
		}
		return feedResult{records: records, categories: categories}, nil
	}

	var (
		res feedResult
		err error
	)
	if s.breaker != nil {
		res, err = resilience.Execute(s.breaker, load)
	} else {
		res, err = load()
	}
	if err != nil {
		metrics.RecordCatalogRejected(true)
		s.logger.Warn().Err(err).Uint64("kept_version", s.Current().Version()).Msg("Catalog feed failed, keeping previous snapshot")
		return nil, fmt.Errorf("%w: %w", ErrIngest, err)
	}

	snap, err := s.ReplaceWithCategories(res.records, res.categories)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIngest, err)
	}
	return snap, nil
}

// validateRecords checks every record and id uniqueness.
func validateRecords(records []ProductRecord) error {
	seen := make(map[string]int, len(records))
	for i := range records {
		if verr := validation.ValidateStruct(&records[i]); verr != nil {
			return fmt.Errorf("%w: record %d (%q): %s", ErrInvalidRecord, i, records[i].ID, verr.Error())
		}
		if prev, dup := seen[records[i].ID]; dup {
			return fmt.Errorf("%w: %q at records %d and %d", ErrDuplicateID, records[i].ID, prev, i)
		}
		seen[records[i].ID] = i
	}
	return nil
}
