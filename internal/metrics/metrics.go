package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
)

const namespace = "wispbill"

// Metrics holds the billing engine's Prometheus collectors
type Metrics struct {
	registry *prometheus.Registry

	// Invoice generation
	InvoicesGenerated *prometheus.CounterVec
	InvoiceRunSeconds prometheus.Histogram

	// Payments
	PaymentsRecorded *prometheus.CounterVec
	PaymentAmount    *prometheus.CounterVec

	// Advance credit
	AdvanceAllocationsApplied prometheus.Counter

	// Dunning
	DunningRuns        *prometheus.CounterVec
	AccountTransitions *prometheus.CounterVec
	ProfileChanges     *prometheus.CounterVec

	// Side effects and events
	ExternalCallFailures *prometheus.CounterVec
	EventsPublished      *prometheus.CounterVec
	EventsConsumed       *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// Module provides a process-wide Metrics bound to its own registry
var Module = fx.Options(
	fx.Provide(NewMetrics),
)

// NewMetrics creates and registers every collector on a fresh registry
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

func NewMetricsWithRegistry(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,

		InvoicesGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "invoice_generation_items_total",
				Help:      "Customers processed by invoice runs, by outcome",
			},
			[]string{"status"},
		),
		InvoiceRunSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "invoice_run_duration_seconds",
				Help:      "Duration of a full invoice generation run",
				Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
			},
		),
		PaymentsRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_recorded_total",
				Help:      "Payments recorded, by method",
			},
			[]string{"method"},
		),
		PaymentAmount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payments_amount_total",
				Help:      "Net amount collected, by method",
			},
			[]string{"method"},
		),
		AdvanceAllocationsApplied: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "advance_allocations_applied_total",
				Help:      "Advance monthly allocations applied to invoices",
			},
		),
		DunningRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dunning_runs_total",
				Help:      "Dunning evaluator runs, by trigger and whether they acted",
			},
			[]string{"trigger", "ran"},
		),
		AccountTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "account_transitions_total",
				Help:      "Suspend and reactivate outcomes",
			},
			[]string{"outcome"},
		),
		ProfileChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "network_profile_changes_total",
				Help:      "Network profile change calls, by result",
			},
			[]string{"result"},
		),
		ExternalCallFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "external_call_failures_total",
				Help:      "Failed post-commit side effects, by collaborator",
			},
			[]string{"system"},
		),
		EventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_published_total",
				Help:      "Domain events published, by name",
			},
			[]string{"event"},
		),
		EventsConsumed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_consumed_total",
				Help:      "Domain events consumed by the in-process event log",
			},
			[]string{"event"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests, by method, route and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}

	registry.MustRegister(
		m.InvoicesGenerated,
		m.InvoiceRunSeconds,
		m.PaymentsRecorded,
		m.PaymentAmount,
		m.AdvanceAllocationsApplied,
		m.DunningRuns,
		m.AccountTransitions,
		m.ProfileChanges,
		m.ExternalCallFailures,
		m.EventsPublished,
		m.EventsConsumed,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSince records the seconds elapsed since start on h
func ObserveSince(h prometheus.Observer, start time.Time) {
	h.Observe(time.Since(start).Seconds())
}
