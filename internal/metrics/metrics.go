// Package metrics exposes Prometheus instrumentation for the Sellforge server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Fulfillment holds counters for the purchase-fulfillment pipeline.
type Fulfillment struct {
	EventsProcessed prometheus.Counter
	EventsIgnored   prometheus.Counter
	Duplicates      prometheus.Counter
	PartialFailures prometheus.Counter
	Reconciled      prometheus.Counter
}

// NewFulfillment creates and registers the fulfillment counters.
func NewFulfillment(reg prometheus.Registerer) *Fulfillment {
	f := &Fulfillment{
		EventsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sellforge_fulfillment_events_processed_total",
			Help: "Completed-checkout events fully fulfilled.",
		}),
		EventsIgnored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sellforge_fulfillment_events_ignored_total",
			Help: "Webhook events acknowledged as no-ops.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sellforge_fulfillment_duplicates_total",
			Help: "Duplicate deliveries resolved idempotently.",
		}),
		PartialFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sellforge_fulfillment_partial_failures_total",
			Help: "Events where a write failed after the purchase committed.",
		}),
		Reconciled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sellforge_fulfillment_reconciled_total",
			Help: "Webhook deliveries repaired by the reconciler.",
		}),
	}
	if reg != nil {
		reg.MustRegister(f.EventsProcessed, f.EventsIgnored, f.Duplicates, f.PartialFailures, f.Reconciled)
	}
	return f
}
