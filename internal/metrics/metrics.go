package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service
	Registry = prometheus.NewRegistry()
	// HTTPRequests counts requests by method, path, and status
	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "http_requests_total", Help: "Total HTTP requests."},
		[]string{"method", "path", "status"},
	)
	// HTTPDuration records request durations in seconds
	HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "http_request_duration_seconds", Help: "HTTP request duration in seconds.", Buckets: prometheus.DefBuckets},
		[]string{"method", "path", "status"},
	)

	// SamplesProcessed counts telemetry fixes by source and outcome
	// (ok, stale, invalid).
	SamplesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "telemetry_samples_total", Help: "Telemetry samples by source and outcome."},
		[]string{"source", "outcome"},
	)
	// SampleDuration records engine evaluation time per sample in seconds
	SampleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{Name: "telemetry_evaluate_duration_seconds", Help: "Engine evaluation time per sample.", Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1}},
	)
	// ComplianceEvents counts emitted events by type and zone
	ComplianceEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "compliance_events_total", Help: "Compliance events by type and zone."},
		[]string{"type", "zone"},
	)
	// ActiveMemberships gauges vehicles currently inside zones, per zone
	ActiveMemberships = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "zone_active_memberships", Help: "Vehicles currently inside each zone."},
		[]string{"zone"},
	)
	// ZonesLoaded gauges the size of the active zone snapshot
	ZonesLoaded = prometheus.NewGauge(
		prometheus.GaugeOpts{Name: "zones_loaded", Help: "Zones in the active snapshot."},
	)
	// SweepRuns counts sweeper passes
	SweepRuns = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "compliance_sweeps_total", Help: "Sweeper passes."},
	)

	// WebhookDeliveries counts webhook delivery outcomes by event type and status
	WebhookDeliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_deliveries_total", Help: "Webhook deliveries by event type and status."},
		[]string{"event_type", "status"},
	)
	// WebhookLatency tracks webhook delivery latencies in milliseconds
	WebhookLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_delivery_latency_ms", Help: "Webhook delivery latency in ms.", Buckets: []float64{10, 50, 100, 200, 500, 1000, 2000, 5000}},
		[]string{"event_type", "status"},
	)
)

// RegisterDefault registers collectors to the dedicated registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(HTTPRequests)
		Registry.MustRegister(HTTPDuration)
		Registry.MustRegister(SamplesProcessed)
		Registry.MustRegister(SampleDuration)
		Registry.MustRegister(ComplianceEvents)
		Registry.MustRegister(ActiveMemberships)
		Registry.MustRegister(ZonesLoaded)
		Registry.MustRegister(SweepRuns)
		Registry.MustRegister(WebhookDeliveries)
		Registry.MustRegister(WebhookLatency)
		// Go/process collectors on our registry
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

var regOnce sync.Once
