// Package cache provides the API key lookup caches: a Redis-backed one shared
// by all API instances and an in-process fallback.
package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks cache effectiveness. The zero registry (nil) creates
// unregistered collectors, which is what tests use.
type Metrics struct {
	hits    prometheus.Counter
	misses  prometheus.Counter
	errors  prometheus.Counter
	sets    prometheus.Counter
	deletes prometheus.Counter
}

// NewMetrics registers the cache counters for the named cache with reg.
func NewMetrics(reg prometheus.Registerer, name string) *Metrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"cache": name}
	return &Metrics{
		hits: f.NewCounter(prometheus.CounterOpts{
			Name:        "invoicegen_cache_hits_total",
			Help:        "Total number of cache hits",
			ConstLabels: labels,
		}),
		misses: f.NewCounter(prometheus.CounterOpts{
			Name:        "invoicegen_cache_misses_total",
			Help:        "Total number of cache misses",
			ConstLabels: labels,
		}),
		errors: f.NewCounter(prometheus.CounterOpts{
			Name:        "invoicegen_cache_errors_total",
			Help:        "Total number of cache backend errors",
			ConstLabels: labels,
		}),
		sets: f.NewCounter(prometheus.CounterOpts{
			Name:        "invoicegen_cache_sets_total",
			Help:        "Total number of cache sets",
			ConstLabels: labels,
		}),
		deletes: f.NewCounter(prometheus.CounterOpts{
			Name:        "invoicegen_cache_deletes_total",
			Help:        "Total number of cache invalidations",
			ConstLabels: labels,
		}),
	}
}
