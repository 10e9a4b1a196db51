package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for Mailfold
type Metrics struct {
	// Delivery counters
	EmailsSentTotal   prometheus.Counter
	EmailsFailedTotal prometheus.Counter

	// Campaign lifecycle
	CampaignRunsTotal   *prometheus.CounterVec
	SchedulerFiresTotal prometheus.Counter

	// API metrics
	APIRequestsTotal          *prometheus.CounterVec
	APIRequestDurationSeconds *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		EmailsSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfold_emails_sent_total",
				Help: "Total number of successfully delivered emails",
			},
		),
		EmailsFailedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfold_emails_failed_total",
				Help: "Total number of emails the transport could not deliver",
			},
		),
		CampaignRunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailfold_campaign_runs_total",
				Help: "Total number of campaign executions by terminal status",
			},
			[]string{"status"},
		),
		SchedulerFiresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailfold_scheduler_fires_total",
				Help: "Total number of scheduled campaigns dispatched by the scheduler",
			},
		),
		APIRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailfold_api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		APIRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailfold_api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		registry: reg,
	}

	reg.MustRegister(
		m.EmailsSentTotal,
		m.EmailsFailedTotal,
		m.CampaignRunsTotal,
		m.SchedulerFiresTotal,
		m.APIRequestsTotal,
		m.APIRequestDurationSeconds,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Nil-safe recording helpers so callers can run without metrics wired
// (tests, one-off CLI invocations).

func (m *Metrics) EmailSent() {
	if m == nil {
		return
	}
	m.EmailsSentTotal.Inc()
}

func (m *Metrics) EmailFailed() {
	if m == nil {
		return
	}
	m.EmailsFailedTotal.Inc()
}

func (m *Metrics) CampaignRun(status string) {
	if m == nil {
		return
	}
	m.CampaignRunsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) SchedulerFire() {
	if m == nil {
		return
	}
	m.SchedulerFiresTotal.Inc()
}
