/*
Package types holds the shared value types and interfaces of scancache.

It exists so the outer packages can depend on the cache's contracts without
importing the cache itself: pkg/api serves any Controller, internal/metrics
implements MetricsSink, and Stats is the snapshot both of them exchange.

Controller is the type-independent administrative face of a cache manager
(stats, invalidation, cleanup, clear, close). The generic lookup path stays
on the concrete manager type; everything an external tool layer needs is
here.

MetricsSink receives cache events (hits, misses, evictions, expirations,
invalidations, gauge updates) for export. The cache depends only on this
interface; the Prometheus binding lives in internal/metrics.

The tier and invalidation-cause constants are the label values used in
metrics and log fields.
*/
package types
