package metacache

import (
	"context"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/sync/singleflight"

	"ytstream/internal/logging"
	"ytstream/internal/provider"
	"ytstream/internal/urlnorm"
)

// DefaultTTL is how long fetched metadata is served from the cache.
const DefaultTTL = 600 * time.Second

// FetchFunc performs the provider lookup on a cache miss.
type FetchFunc func(ctx context.Context) (*provider.Video, error)

// Observer records cache activity. The metrics package provides the
// Prometheus implementation; nil disables recording.
type Observer interface {
	ObserveHit()
	ObserveMiss()
	ObserveFetchError()
	ObserveEntries(n int)
}

type entry struct {
	data      *provider.Video
	fetchedAt time.Time
}

// Cache maps canonical identifiers to metadata.
type Cache struct {
	ttl      time.Duration
	now      func() time.Time
	entries  *xsync.MapOf[urlnorm.ID, entry]
	group    singleflight.Group
	observer Observer
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides DefaultTTL. Non-positive values are ignored.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		c.now = now
	}
}

// WithObserver attaches an activity observer.
func WithObserver(o Observer) Option {
	return func(c *Cache) {
		c.observer = o
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		ttl:     DefaultTTL,
		now:     time.Now,
		entries: xsync.NewMapOf[urlnorm.ID, entry](),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Len returns the number of stored entries, stale ones included.
func (c *Cache) Len() int {
	return c.entries.Size()
}

// Get returns the fresh entry for id, if any.
func (c *Cache) Get(id urlnorm.ID) (*provider.Video, bool) {
	e, ok := c.entries.Load(id)
	if !ok || c.now().Sub(e.fetchedAt) >= c.ttl {
		return nil, false
	}
	return e.data, true
}

// GetOrFetch returns fresh cached metadata for id or calls fetch and stores
// its result. Concurrent callers missing on the same id share a single fetch,
// which runs detached from the first caller's cancellation so a disconnecting
// client cannot fail the others; providers bound it with their own timeout.
func (c *Cache) GetOrFetch(ctx context.Context, id urlnorm.ID, fetch FetchFunc) (*provider.Video, error) {
	if v, ok := c.Get(id); ok {
		logging.Debug("Serving cached info for %s", id.VideoID())
		if c.observer != nil {
			c.observer.ObserveHit()
		}
		return v, nil
	}

	if c.observer != nil {
		c.observer.ObserveMiss()
	}

	result, err, shared := c.group.Do(string(id), func() (interface{}, error) {
		// Another flight may have stored it between Get and Do.
		if v, ok := c.Get(id); ok {
			return v, nil
		}

		v, err := fetch(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}

		c.entries.Store(id, entry{data: v, fetchedAt: c.now()})
		if c.observer != nil {
			c.observer.ObserveEntries(c.entries.Size())
		}
		return v, nil
	})
	if err != nil {
		if c.observer != nil {
			c.observer.ObserveFetchError()
		}
		return nil, err
	}

	if shared {
		logging.Debug("Shared in-flight fetch for %s", id.VideoID())
	}
	return result.(*provider.Video), nil
}
