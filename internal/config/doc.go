/*
Package config provides configuration management for scancache with
multi-source support.

Configuration is resolved in precedence order: compiled-in defaults, then a
YAML file, then SCANCACHE_* environment variables.

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile("scancache.yaml"); err != nil {
		log.Fatal(err)
	}
	if err := cfg.LoadFromEnv(); err != nil {
		log.Fatal(err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger, err := cfg.BuildLogger()

# Sections

  - global: log level and format; BuildLogger turns these into the process
    zap logger (json maps to the production config, console to development).
  - cache: the cache.Options passed to cache.NewManager (TTL, memory
    capacity, disk tier, file watching, compression, periodic cleanup).
  - metrics: the metrics.Config for the Prometheus exposition endpoint.
  - admin: the api.ServerConfig for the administrative HTTP server.

# Environment Variables

	SCANCACHE_LOG_LEVEL          global.log_level
	SCANCACHE_LOG_FORMAT         global.log_format
	SCANCACHE_TTL                cache.ttl (Go duration)
	SCANCACHE_MAX_MEMORY_ENTRIES cache.max_memory_entries
	SCANCACHE_DISK_CACHE         cache.enable_disk_cache
	SCANCACHE_DISK_CACHE_PATH    cache.disk_cache_path
	SCANCACHE_FILE_WATCHING      cache.enable_file_watching
	SCANCACHE_COMPRESSION        cache.enable_compression
	SCANCACHE_CLEANUP_INTERVAL   cache.cleanup_interval (Go duration)
	SCANCACHE_METRICS_ENABLED    metrics.enabled
	SCANCACHE_METRICS_PORT       metrics.port
	SCANCACHE_ADMIN_ADDRESS      admin.address

Validation fails fast with a structured configuration error: an unknown log
level or format, a negative TTL or cleanup interval, a non-positive memory
capacity, an empty disk path while the disk tier is enabled, or an
out-of-range metrics port.
*/
package config
