package handlers

import (
	"context"
	"sync/atomic"
	"time"

	"ytstream/internal/formats"
	"ytstream/internal/metacache"
	"ytstream/internal/provider"
	"ytstream/internal/streaming"
	"ytstream/internal/urlnorm"
)

// Deliverer streams a resolved selection to a sink. *delivery.Engine
// implements it.
type Deliverer interface {
	Deliver(ctx context.Context, sel formats.Selection, sink *streaming.Sink) error
	Active() int
}

type Handlers struct {
	cache      *metacache.Cache
	provider   provider.Provider
	engine     Deliverer
	sinkConfig streaming.SinkConfig
	started    time.Time
	now        func() time.Time

	providerReady atomic.Bool
	ffmpegReady   atomic.Bool
}

// New creates the HTTP handlers. Readiness starts false until SetReadiness
// is called with the results of the startup checks.
func New(cache *metacache.Cache, p provider.Provider, engine Deliverer) *Handlers {
	return &Handlers{
		cache:      cache,
		provider:   p,
		engine:     engine,
		sinkConfig: streaming.DefaultSinkConfig(),
		started:    time.Now(),
		now:        time.Now,
	}
}

// SetReadiness records whether the metadata provider and ffmpeg passed
// their checks.
func (h *Handlers) SetReadiness(providerOK, ffmpegOK bool) {
	h.providerReady.Store(providerOK)
	h.ffmpegReady.Store(ffmpegOK)
}

// lookup returns cached metadata for id, fetching it on a miss.
func (h *Handlers) lookup(ctx context.Context, id urlnorm.ID) (*provider.Video, error) {
	return h.cache.GetOrFetch(ctx, id, func(ctx context.Context) (*provider.Video, error) {
		return h.provider.Fetch(ctx, id)
	})
}
