// Package cache holds the in-process response cache.
//
// MemoryStore maps a request key to a rendered response and its expiry instant.
// Reads apply lazy expiry, so an entry stops being visible at its expiry no
// matter when it is physically removed. Sweeper periodically deletes expired
// entries to bound memory; it never decides what is stale.
package cache
