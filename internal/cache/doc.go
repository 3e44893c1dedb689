// Roastery - Point-of-Sale Analytics Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/roastery

/*
Package cache provides a thread-safe in-memory cache with TTL support.

The API serves run reports, forecasts and recommendation lists from the
artifact directory. Parsing those files on every request is wasteful, so
handlers keep decoded artifacts here until either the TTL passes or a run
completes and the cache is cleared.

# Usage Example

	c := cache.New(5 * time.Minute)
	defer c.Stop()

	key := cache.GenerateKey("recommendations", map[string]any{"product": "42", "limit": 5})
	if v, ok := c.Get(key); ok {
	    return v.([]models.Recommendation)
	}
	c.Set(key, recs)

# Expiration

Entries expire lazily on Get and in a background sweep that runs every
cleanup interval (one minute, or the TTL if shorter). Stop ends the sweep.
*/
package cache
