package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// Registry is the dedicated Prometheus registry for the service.
	Registry = prometheus.NewRegistry()

	// WebhookEvents counts inbound webhook events by source and outcome.
	WebhookEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "webhook_events_total", Help: "Inbound webhook events by source and outcome."},
		[]string{"source", "outcome"},
	)
	// WebhookProcessing tracks webhook handler processing time in seconds.
	// The EcoManager sender expects a response within 5 seconds.
	WebhookProcessing = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{Name: "webhook_processing_seconds", Help: "Webhook processing duration in seconds.", Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}},
		[]string{"source"},
	)
	// SyncRuns counts sync runs by mode and outcome.
	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sync_runs_total", Help: "Order sync runs by mode and outcome."},
		[]string{"mode", "outcome"},
	)
	// SyncedOrders counts orders materialized per store.
	SyncedOrders = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "sync_orders_synced_total", Help: "Orders materialized per store."},
		[]string{"store"},
	)
)

var regOnce sync.Once

// RegisterDefault registers all collectors on the service registry.
func RegisterDefault() {
	regOnce.Do(func() {
		Registry.MustRegister(WebhookEvents)
		Registry.MustRegister(WebhookProcessing)
		Registry.MustRegister(SyncRuns)
		Registry.MustRegister(SyncedOrders)
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}
