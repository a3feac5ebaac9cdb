// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

package derive

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/catalogview/internal/catalog"
)

func TestDebouncer_CoalescesBurst(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	var mu sync.Mutex
	var last string

	d := NewDebouncer(40*time.Millisecond, func(v string) {
		calls.Add(1)
		mu.Lock()
		last = v
		mu.Unlock()
	})

	for _, term := range []string{"s", "sh", "sho", "shoe", "shoes"} {
		d.Trigger(term)
		time.Sleep(5 * time.Millisecond)
	}

	time.Sleep(200 * time.Millisecond)

	if n := calls.Load(); n != 1 {
		t.Errorf("action ran %d times, want 1", n)
	}
	mu.Lock()
	defer mu.Unlock()
	if last != "shoes" {
		t.Errorf("action got %q, want the latest value", last)
	}
}

func TestDebouncer_SeparateBursts(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	d := NewDebouncer(20*time.Millisecond, func(int) { calls.Add(1) })

	d.Trigger(1)
	time.Sleep(120 * time.Millisecond)
	d.Trigger(2)
	time.Sleep(120 * time.Millisecond)

	if n := calls.Load(); n != 2 {
		t.Errorf("action ran %d times, want 2", n)
	}
}

func TestDebouncer_FlushAndStop(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	d := NewDebouncer(time.Hour, func(int) { calls.Add(1) })

	if d.Flush() {
		t.Error("Flush with nothing pending should return false")
	}

	d.Trigger(1)
	if !d.Pending() {
		t.Error("expected a pending action")
	}
	if !d.Flush() || calls.Load() != 1 {
		t.Errorf("Flush did not run the action, calls = %d", calls.Load())
	}

	d.Trigger(2)
	d.Stop()
	d.Trigger(3)
	if d.Pending() || d.Flush() {
		t.Error("a stopped debouncer must not run actions")
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", calls.Load())
	}
}

func TestDebouncer_OneRecomputePerBurst(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []catalog.ProductRecord{product("A", "books", 10), product("B", "home", 20)})

	done := make(chan struct{}, 4)
	d := NewDebouncer(30*time.Millisecond, func(term string) {
		f.pipe.GetView(Inputs{SearchTerm: term})
		done <- struct{}{}
	})

	for _, term := range []string{"i", "it", "ite", "item", "item a"} {
		d.Trigger(term)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("debounced recompute never ran")
	}
	time.Sleep(100 * time.Millisecond)

	if n := f.pipe.Stats().Recomputes; n != 1 {
		t.Errorf("Recomputes = %d, want 1", n)
	}
	view, _, _ := f.pipe.Last()
	if got := view.IDs(); len(got) != 1 || got[0] != "A" {
		t.Errorf("view = %v, want [A]", got)
	}
}
