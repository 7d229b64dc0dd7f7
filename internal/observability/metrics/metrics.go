package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics aggregates the billing core's prometheus instruments.
type Metrics struct {
	registry *prometheus.Registry

	webhookEvents *prometheus.CounterVec
	ledgerEntries *prometheus.CounterVec
	payouts       *prometheus.CounterVec

	jobRuns      *prometheus.CounterVec
	jobErrors    *prometheus.CounterVec
	jobDuration  *prometheus.HistogramVec
	jobProcessed *prometheus.CounterVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())

	m := &Metrics{
		registry: registry,
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aifans",
			Subsystem: "webhook",
			Name:      "events_total",
			Help:      "Inbound processor notifications by type and outcome.",
		}, []string{"event_type", "result"}),
		ledgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aifans",
			Subsystem: "ledger",
			Name:      "entries_total",
			Help:      "Ledger entries created, by source type.",
		}, []string{"source_type"}),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aifans",
			Subsystem: "payout",
			Name:      "requests_total",
			Help:      "Payout requests by outcome.",
		}, []string{"result"}),
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aifans",
			Subsystem: "sweeper",
			Name:      "job_runs_total",
			Help:      "Sweeper job executions.",
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aifans",
			Subsystem: "sweeper",
			Name:      "job_errors_total",
			Help:      "Sweeper job failures.",
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "aifans",
			Subsystem: "sweeper",
			Name:      "job_duration_seconds",
			Help:      "Sweeper job wall time.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		jobProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "aifans",
			Subsystem: "sweeper",
			Name:      "rows_processed_total",
			Help:      "Rows transitioned by sweeper jobs.",
		}, []string{"job"}),
	}

	registry.MustRegister(
		m.webhookEvents,
		m.ledgerEntries,
		m.payouts,
		m.jobRuns,
		m.jobErrors,
		m.jobDuration,
		m.jobProcessed,
	)

	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) RecordWebhookEvent(eventType, result string) {
	if m == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalize(eventType), normalize(result)).Inc()
}

func (m *Metrics) RecordLedgerEntry(sourceType string) {
	if m == nil {
		return
	}
	m.ledgerEntries.WithLabelValues(normalize(sourceType)).Inc()
}

func (m *Metrics) RecordPayout(result string) {
	if m == nil {
		return
	}
	m.payouts.WithLabelValues(normalize(result)).Inc()
}

func (m *Metrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(normalize(job)).Inc()
}

func (m *Metrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(normalize(job)).Inc()
}

func (m *Metrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(normalize(job)).Observe(d.Seconds())
}

func (m *Metrics) AddJobProcessed(job string, n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.jobProcessed.WithLabelValues(normalize(job)).Add(float64(n))
}

func normalize(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" {
		return "unknown"
	}
	return v
}
