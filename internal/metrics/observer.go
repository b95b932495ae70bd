package metrics

import (
	"context"
	"strconv"
	"time"

	"ytstream/internal/delivery"
	"ytstream/internal/metacache"
	"ytstream/internal/provider"
	"ytstream/internal/urlnorm"
)

// cacheObserver implements metacache.Observer using the Prometheus metrics
// declared in this package.
type cacheObserver struct{}

// NewCacheObserver creates an observer that records metadata cache activity.
func NewCacheObserver() metacache.Observer {
	return &cacheObserver{}
}

func (o *cacheObserver) ObserveHit()          { CacheHitsTotal.Inc() }
func (o *cacheObserver) ObserveMiss()         { CacheMissesTotal.Inc() }
func (o *cacheObserver) ObserveFetchError()   { CacheFetchErrorsTotal.Inc() }
func (o *cacheObserver) ObserveEntries(n int) { CacheEntries.Set(float64(n)) }

// deliveryObserver implements delivery.Observer.
type deliveryObserver struct{}

// NewDeliveryObserver creates an observer that records stream sessions.
func NewDeliveryObserver() delivery.Observer {
	return &deliveryObserver{}
}

func (o *deliveryObserver) SessionStarted(string) {
	StreamSessionsActive.Inc()
}

func (o *deliveryObserver) SessionFinished(mode, outcome string, bytes int64, duration time.Duration) {
	StreamSessionsActive.Dec()
	StreamSessionsTotal.WithLabelValues(mode, outcome).Inc()
	StreamSessionDuration.WithLabelValues(mode).Observe(duration.Seconds())
	StreamBytesTotal.WithLabelValues(mode).Add(float64(bytes))
}

func (o *deliveryObserver) FFmpegExited(code int) {
	FFmpegExitsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// instrumentedProvider records fetch counts and latency for a Provider.
type instrumentedProvider struct {
	provider.Provider
}

// InstrumentProvider wraps p so every Fetch is counted and timed.
func InstrumentProvider(p provider.Provider) provider.Provider {
	return &instrumentedProvider{Provider: p}
}

func (p *instrumentedProvider) Fetch(ctx context.Context, id urlnorm.ID) (*provider.Video, error) {
	start := time.Now()
	v, err := p.Provider.Fetch(ctx, id)

	name := p.Name()
	ProviderFetchDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	status := "success"
	if err != nil {
		status = "error"
	}
	ProviderFetchesTotal.WithLabelValues(name, status).Inc()
	return v, err
}
