package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the API
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, route pattern, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// PlanRuns counts route computations by kind and outcome
	PlanRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "plan_runs_total", Help: "Route computations by kind and outcome."},
		[]string{"kind", "outcome"},
	)
	// GeocodeLookups counts gazetteer lookups by kind (city|zone) and match method
	GeocodeLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "gazetteer_lookups_total", Help: "Gazetteer lookups by kind and match method."},
		[]string{"kind", "method"},
	)

	// StoreCalls counts record-store calls by operation and outcome
	StoreCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "record_store_calls_total", Help: "Record store calls by operation and outcome."},
		[]string{"op", "outcome"},
	)
	// StoreLatency tracks record-store call latencies in milliseconds
	StoreLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "record_store_latency_ms", Help: "Record store call latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"op", "outcome"},
	)
)

// RegisterDefault registers collectors to the default registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(PlanRuns)
		Registry.MustRegister(GeocodeLookups)
		Registry.MustRegister(StoreCalls)
		Registry.MustRegister(StoreLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once

// ObservePlan matches the planner's observer hook.
func ObservePlan(kind, outcome string) { PlanRuns.WithLabelValues(kind, outcome).Inc() }

// ObserveLookup matches the gazetteer's observer hook.
func ObserveLookup(kind, method string) { GeocodeLookups.WithLabelValues(kind, method).Inc() }

// ObserveStore matches the record-store observer hook.
func ObserveStore(op string, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	StoreCalls.WithLabelValues(op, outcome).Inc()
	StoreLatency.WithLabelValues(op, outcome).Observe(float64(elapsed.Milliseconds()))
}
