// Package metrics provides Prometheus instrumentation for verimeta.
package metrics

import "time"

// MetadataResolve records a metadata resolution.
func MetadataResolve(status string) {
	if !enabled {
		return
	}
	resolveTotal.WithLabelValues(status).Inc()
}

// MetadataEvict records a cache eviction.
func MetadataEvict(status string) {
	if !enabled {
		return
	}
	evictTotal.WithLabelValues(status).Inc()
}

// CacheLookup records a metadata cache lookup.
func CacheLookup(result string) {
	if !enabled {
		return
	}
	cacheLookupTotal.WithLabelValues(result).Inc()
}

// SourceFetch records one upstream fetch attempt and its latency.
func SourceFetch(source, result string, duration time.Duration) {
	if !enabled {
		return
	}
	sourceFetchTotal.WithLabelValues(source, result).Inc()
	sourceFetchDuration.WithLabelValues(source).Observe(duration.Seconds())
}
