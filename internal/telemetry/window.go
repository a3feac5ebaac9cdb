// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package telemetry

// Window is an immutable slice of recent events frozen at a window version
// bump. Scoring reads a Window, never the live log, so a score depends only
// on the version it was computed at.
type Window struct {
	version uint64
	events  []Event
	views   map[string]int
}

func newWindow(version uint64, events []Event) *Window {
	views := make(map[string]int)
	for i := range events {
		if events[i].Kind == KindProductView && events[i].ProductID != "" {
			views[events[i].ProductID]++
		}
	}
	return &Window{version: version, events: events, views: views}
}

// Version returns the coarse window version.
func (w *Window) Version() uint64 { return w.version }

// Len returns the number of frozen events.
func (w *Window) Len() int { return len(w.events) }

// Events returns a copy of the frozen events, oldest first.
func (w *Window) Events() []Event {
	out := make([]Event, len(w.events))
	copy(out, w.events)
	return out
}

// Views returns the number of productView events for id in the window.
func (w *Window) Views(id string) int { return w.views[id] }
