// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package cache provides the bounded LRU used for decoded thumbnail handles.

# Overview

LRU is a generic doubly-linked-list plus hashmap cache:
  - O(1) Get, Add and Remove
  - Monotonic access stamps per entry
  - A replaceable pinned key set; pinned entries are never evicted
  - A hard capacity bound: inserts that would need to evict a pinned entry are rejected

# Usage

	assets := cache.NewLRU[Handle](200)
	assets.Repin(visibleAndPrefetchIDs)
	if stored, evicted := assets.Add(id, handle); !stored {
	    // every resident entry is pinned
	}
*/
package cache
