// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

// Package cart implements the versioned shopping cart ledger.
//
// The ledger only tracks quantities and a version counter. It never computes
// scores; consumers compare versions to know when derived data is stale.
package cart

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/tomtom215/catalogview/internal/telemetry"
)

// ErrNotInCart is returned when removing a product the cart does not hold.
var ErrNotInCart = errors.New("product not in cart")

// ErrEmptyProductID is returned for mutations without a product id.
var ErrEmptyProductID = errors.New("product id is required")

// Publisher receives cart change events.
type Publisher interface {
	Publish(e telemetry.Event) (telemetry.Event, error)
}

// Line is one cart entry.
type Line struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// State is an immutable view of the ledger at one version.
type State struct {
	version    uint64
	quantities map[string]int
}

// Version returns the ledger version this state was taken at.
func (s *State) Version() uint64 { return s.version }

// Quantity returns the quantity of id, 0 if absent.
func (s *State) Quantity(id string) int { return s.quantities[id] }

// Len returns the number of distinct products.
func (s *State) Len() int { return len(s.quantities) }

// TotalItems returns the sum of all quantities.
func (s *State) TotalItems() int {
	n := 0
	for _, q := range s.quantities {
		n += q
	}
	return n
}

// Lines returns the cart lines ordered by product id.
func (s *State) Lines() []Line {
	lines := make([]Line, 0, len(s.quantities))
	for id, q := range s.quantities {
		lines = append(lines, Line{ProductID: id, Quantity: q})
	}
	sort.Slice(lines, func(i, j int) bool { return lines[i].ProductID < lines[j].ProductID })
	return lines
}

// Ledger maps product ids to quantities.
//
// Each mutation builds a new quantity map and publishes it as a new State,
// so a State handed to a reader never changes.
type Ledger struct {
	mu    sync.Mutex
	state atomic.Pointer[State]

	publisher Publisher
	logger    zerolog.Logger
}

// NewLedger creates an empty ledger. publisher may be nil.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewLedger(publisher Publisher, logger zerolog.Logger) *Ledger {
	l := &Ledger{
		publisher: publisher,
		logger:    logger.With().Str("component", "cart").Logger(),
	}
	l.state.Store(&State{quantities: map[string]int{}})
	return l
}

// Snapshot returns the current state.
func (l *Ledger) Snapshot() *State {
	return l.state.Load()
}

// Version returns the current ledger version.
func (l *Ledger) Version() uint64 {
	return l.state.Load().version
}

// Add increments the quantity of id, creating it at 1.
func (l *Ledger) Add(id string) (*State, error) {
	if id == "" {
		return nil, ErrEmptyProductID
	}

	l.mu.Lock()
	cur := l.state.Load()
	next := cur.with(id, cur.quantities[id]+1)
	l.state.Store(next)
	l.mu.Unlock()

	l.notify(id, next)
	return next, nil
}

// Remove decrements the quantity of id, deleting the entry at zero.
// Removing an absent product returns ErrNotInCart and changes nothing.
func (l *Ledger) Remove(id string) (*State, error) {
	if id == "" {
		return nil, ErrEmptyProductID
	}

	l.mu.Lock()
	cur := l.state.Load()
	q, ok := cur.quantities[id]
	if !ok {
		l.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrNotInCart, id)
	}
	next := cur.with(id, q-1)
	l.state.Store(next)
	l.mu.Unlock()

	l.notify(id, next)
	return next, nil
}

// Clear empties the ledger. Clearing an empty ledger is not a mutation:
// the version is unchanged and no event is published.
func (l *Ledger) Clear() *State {
	l.mu.Lock()
	cur := l.state.Load()
	if len(cur.quantities) == 0 {
		l.mu.Unlock()
		return cur
	}
	next := &State{version: cur.version + 1, quantities: map[string]int{}}
	l.state.Store(next)
	l.mu.Unlock()

	l.notify("", next)
	return next
}

// with returns a copy of s with id set to q (removed when q <= 0) and the
// version bumped.
func (s *State) with(id string, q int) *State {
	m := make(map[string]int, len(s.quantities)+1)
	for k, v := range s.quantities {
		m[k] = v
	}
	if q <= 0 {
		delete(m, id)
	} else {
		m[id] = q
	}
	return &State{version: s.version + 1, quantities: m}
}

func (l *Ledger) notify(id string, s *State) {
	l.logger.Debug().Str("product_id", id).Int("quantity", s.Quantity(id)).Uint64("version", s.version).Msg("Cart changed")

	if l.publisher == nil {
		return
	}
	if _, err := l.publisher.Publish(telemetry.Event{
		Kind:      telemetry.KindCartChange,
		ProductID: id,
		Quantity:  s.Quantity(id),
	}); err != nil {
		l.logger.Warn().Err(err).Msg("Failed to publish cart change")
	}
}
