// Package metrics provides Prometheus instrumentation for ytstream.
//
// All metrics are registered with the default registry through promauto and
// are prefixed with "ytstream_". They are served by a dedicated metrics
// server, separate from the public API listener.
//
// # Metric Categories
//
// ## HTTP Metrics
//
//   - HTTPRequestsTotal: requests by method, route template and status
//   - HTTPRequestDuration: request duration by method and route template;
//     buckets reach 15 minutes because stream requests last as long as the
//     download
//   - HTTPRequestsInFlight: requests currently being served
//
// ## Metadata Cache Metrics
//
//   - CacheHitsTotal, CacheMissesTotal: lookup outcomes
//   - CacheFetchErrorsTotal: failed fetches on miss (never cached)
//   - CacheEntries: stored entries, stale ones included
//
// ## Provider Metrics
//
//   - ProviderFetchesTotal: fetches by provider and status
//   - ProviderFetchDuration: fetch latency by provider
//
// ## Stream Delivery Metrics
//
//   - StreamSessionsTotal: finished sessions by mode (direct, merge) and
//     outcome (closed, failed, cancelled)
//   - StreamSessionDuration: session duration by mode
//   - StreamBytesTotal: body bytes sent by mode
//   - StreamSessionsActive: sessions in flight
//   - FFmpegExitsTotal: ffmpeg exits by code, -1 when killed by a signal
//
// # Observers
//
// Core packages do not import this package. Instead they declare small
// observer interfaces ([metacache.Observer], [delivery.Observer]) and this
// package supplies the Prometheus implementations:
//
//	cache := metacache.New(metacache.WithObserver(metrics.NewCacheObserver()))
//	engine := delivery.New(delivery.Config{Observer: metrics.NewDeliveryObserver()})
//	p = metrics.InstrumentProvider(p)
//
// # Collector
//
// [Collector] periodically resyncs the gauges from authoritative counts
// (cache size, live sessions) so they stay correct even if an incremental
// update is lost.
//
// # Initialization
//
// Call [InitializeMetrics] once at startup so labelled series exist from
// the first scrape, and [SetAppInfo] to publish build information.
package metrics
