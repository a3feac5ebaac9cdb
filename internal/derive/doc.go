// Catalogview - Catalog Derivation Engine and Telemetry Bus
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/catalogview

/*
Package derive turns the catalog, cart and telemetry window into an ordered
product view with aggregate metrics.

# Recipe Keys

Every view is built from a RecipeKey: the catalog version, the normalized
search term, the category, the cart version and the telemetry window
version. GetView captures the key first and returns the memoized view when
the key is unchanged, so repeated reads cost O(1) and return the same *View.

# Scoring

For each product that passes the filter:

	score = CartCategory * (cart lines in the same category)
	      + CartTag      * (tags shared with those cart lines)
	      + View         * (productView events in the frozen window)
	      + log1p(price) * sqrt(review count)
	      + sum of squared review ratings

Products are sorted by score descending, then id ascending. Nothing in the
score reads a clock or a random source.

# Debouncing

Debouncer coalesces bursts of search term updates into one recomputation.
*/
package derive
