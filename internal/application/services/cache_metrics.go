package services

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	tierDurable = "durable"
	tierLocal   = "local"

	resultHit   = "hit"
	resultMiss  = "miss"
	resultOK    = "ok"
	resultError = "error"
)

var (
	cacheOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Cache operations by operation, tier and result",
		},
		[]string{"operation", "tier", "result"},
	)

	cacheDurableState = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_durable_state",
			Help: "Durable cache tier state: 0 connecting, 1 available, 2 disabled",
		},
	)

	cacheLocalEntries = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cache_local_entries",
			Help: "Entries held by the in-process cache tier at the last stats read",
		},
	)

	cacheSweeperEvictions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cache_sweeper_evictions_total",
			Help: "Expired local cache entries removed by the periodic sweeper",
		},
	)
)

func init() {
	prometheus.MustRegister(cacheOperations)
	prometheus.MustRegister(cacheDurableState)
	prometheus.MustRegister(cacheLocalEntries)
	prometheus.MustRegister(cacheSweeperEvictions)
}

// RecordSweep is the sweeper observer feeding cache_sweeper_evictions_total.
func RecordSweep(evicted int) {
	cacheSweeperEvictions.Add(float64(evicted))
}

func observeCacheOp(operation, tier, result string) {
	cacheOperations.WithLabelValues(operation, tier, result).Inc()
}
