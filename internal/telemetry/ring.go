// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package telemetry

// ring is a fixed-capacity FIFO of events. Not safe for concurrent use;
// the Bus serializes access.
type ring struct {
	buf   []Event
	start int
	size  int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Event, capacity)}
}

// push appends e, overwriting the oldest entry when full.
// Returns true if an entry was evicted.
func (r *ring) push(e Event) bool {
	c := len(r.buf)
	if r.size < c {
		r.buf[(r.start+r.size)%c] = e
		r.size++
		return false
	}
	r.buf[r.start] = e
	r.start = (r.start + 1) % c
	return true
}

// last copies the most recent n entries, oldest first.
func (r *ring) last(n int) []Event {
	if n > r.size {
		n = r.size
	}
	if n <= 0 {
		return []Event{}
	}
	out := make([]Event, n)
	c := len(r.buf)
	first := r.start + r.size - n
	for i := 0; i < n; i++ {
		out[i] = r.buf[(first+i)%c]
	}
	return out
}

func (r *ring) len() int { return r.size }

func (r *ring) capacity() int { return len(r.buf) }
