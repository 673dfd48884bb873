package observability

import "github.com/prometheus/client_golang/prometheus"

var (
	// RateLimitHitsTotal counts Hit evaluations by policy and outcome
	// ("allowed"/"denied").
	RateLimitHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flux_rate_limit_hits_total",
			Help: "Total number of rate limit evaluations by policy and outcome",
		},
		[]string{"policy", "outcome"},
	)

	// StoreFailuresTotal counts Hit evaluations that failed open/closed due
	// to a wire or script error, by whether fail_silently absorbed it.
	StoreFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flux_store_failures_total",
			Help: "Total number of store/script failures observed during Hit",
		},
		[]string{"outcome"},
	)

	// PoolExhaustedTotal counts Borrow calls that timed out waiting for a
	// free connection slot.
	PoolExhaustedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flux_pool_exhausted_total",
			Help: "Total number of pool borrow timeouts",
		},
	)

	// AnalyticsEventsProcessedTotal counts stream entries the aggregation
	// worker has folded into the hash counters.
	AnalyticsEventsProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "flux_analytics_events_processed_total",
			Help: "Total number of analytics stream entries aggregated",
		},
	)
)

func init() {
	prometheus.MustRegister(
		RateLimitHitsTotal,
		StoreFailuresTotal,
		PoolExhaustedTotal,
		AnalyticsEventsProcessedTotal,
	)
}
