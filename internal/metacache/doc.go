// Package metacache is the process-wide, time-bounded store of fetched video
// metadata, keyed by canonical identifier.
//
// Entries are considered absent once they are TTL old; staleness is checked
// lazily on read and stale entries are overwritten by the next fetch, never
// swept. Concurrent misses for the same identifier share one fetch through a
// singleflight group. Fetch failures are never cached.
package metacache
