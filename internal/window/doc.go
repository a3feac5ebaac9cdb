// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package window schedules thumbnail residency for a scrolled product list.

ComputeWindow maps a viewport onto a derived view and returns the visible
ids plus a prefetch margin on either side. Each call starts a new
generation: the window's ids are pinned in a bounded LRU, fetches for ids
that left the window are cancelled, and failed markers outside it are
dropped.

EnsureAssets fetches missing thumbnails through a Codec with bounded
concurrency. Concurrent requests for the same image reference share one
codec call. A fetch that finishes after the window moved away from its id
is discarded rather than cached.

	sched := window.NewScheduler(window.DefaultConfig(), store, codec, breaker, logger)
	w := sched.ComputeWindow(view, scrollTop, viewportHeight, 150)
	err := sched.EnsureAssets(ctx, append(w.VisibleIDs, w.PrefetchIDs...))
*/
package window
