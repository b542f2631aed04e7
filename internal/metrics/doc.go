/*
Package metrics exports cache events as Prometheus metrics.

Collector implements types.MetricsSink, so a cache manager publishes into it
directly; the series live in a private registry served at /metrics (with
OpenMetrics negotiation) alongside a /health endpoint.

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "scancache",
	}, logger)
	if err != nil {
		log.Fatal(err)
	}

	manager, err := cache.NewManager[Result](opts, logger, collector)
	...
	_ = collector.Start()
	defer collector.Stop(ctx)

# Series

	scancache_requests_total{result,tier}    lookups by hit/miss and serving tier
	scancache_evictions_total{tier}          capacity evictions
	scancache_expirations_total{tier}        TTL expirations removed
	scancache_invalidations_total{cause}     explicit / pattern / file_change
	scancache_compute_duration_seconds       histogram of miss computations
	scancache_entries{tier}                  resident entries per tier
	scancache_memory_bytes                   approximate memory tier size
	scancache_file_watches                   active source file watches

A disabled collector accepts every event and records nothing, so callers
never branch on whether metrics are on.
*/
package metrics
