// Package metrics содержит Prometheus-метрики ядра.
// Все методы безопасны для nil *Metrics, поэтому в тестах метрики можно не передавать.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionsCheckedIn   prometheus.Counter
	SessionsClosed      *prometheus.CounterVec
	EntriesRecorded     prometheus.Counter
	EntriesSuppressed   prometheus.Counter
	OverstayEscalations *prometheus.CounterVec
	IncidentsCreated    *prometheus.CounterVec
	VisitorsArchived    prometheus.Counter
	JobRuns             *prometheus.CounterVec
	JobFailures         *prometheus.CounterVec
	JobDuration         *prometheus.HistogramVec
	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	AuthFailures        prometheus.Counter
}

// New регистрирует метрики в reg (prometheus.DefaultRegisterer в проде)
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsCheckedIn: factory.NewCounter(prometheus.CounterOpts{
			Name: "ivisit_sessions_checked_in_total",
			Help: "Total number of visitor sessions opened",
		}),
		SessionsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ivisit_sessions_closed_total",
			Help: "Total number of visitor sessions closed, by final status",
		}, []string{"status"}),
		EntriesRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "ivisit_entries_recorded_total",
			Help: "Total number of checkpoint entries recorded",
		}),
		EntriesSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "ivisit_entries_duplicate_suppressed_total",
			Help: "Total number of duplicate scans suppressed",
		}),
		OverstayEscalations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ivisit_overstay_escalations_total",
			Help: "Total number of overstay escalations, by kind (soft, hard)",
		}, []string{"kind"}),
		IncidentsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ivisit_incidents_created_total",
			Help: "Total number of pass incidents created, by type",
		}, []string{"type"}),
		VisitorsArchived: factory.NewCounter(prometheus.CounterOpts{
			Name: "ivisit_visitors_archived_total",
			Help: "Total number of visitors archived",
		}),
		JobRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ivisit_job_runs_total",
			Help: "Total number of scheduled job runs",
		}, []string{"job"}),
		JobFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ivisit_job_failures_total",
			Help: "Total number of failed scheduled job runs",
		}, []string{"job"}),
		JobDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ivisit_job_duration_seconds",
			Help:    "Duration of scheduled job runs",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "ivisit_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ivisit_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		AuthFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ivisit_auth_failures_total",
			Help: "Total number of rejected guard tokens",
		}),
	}
}

func (m *Metrics) IncCheckIn() {
	if m == nil {
		return
	}
	m.SessionsCheckedIn.Inc()
}

func (m *Metrics) IncSessionClosed(status string) {
	if m == nil {
		return
	}
	m.SessionsClosed.WithLabelValues(status).Inc()
}

func (m *Metrics) IncEntryRecorded() {
	if m == nil {
		return
	}
	m.EntriesRecorded.Inc()
}

func (m *Metrics) IncEntrySuppressed() {
	if m == nil {
		return
	}
	m.EntriesSuppressed.Inc()
}

func (m *Metrics) IncOverstay(kind string) {
	if m == nil {
		return
	}
	m.OverstayEscalations.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncIncident(incidentType string) {
	if m == nil {
		return
	}
	m.IncidentsCreated.WithLabelValues(incidentType).Inc()
}

func (m *Metrics) AddVisitorsArchived(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.VisitorsArchived.Add(float64(n))
}

// ObserveJob фиксирует запуск задачи, ее длительность и результат
func (m *Metrics) ObserveJob(job string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job).Inc()
	m.JobDuration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		m.JobFailures.WithLabelValues(job).Inc()
	}
}

func (m *Metrics) ObserveHTTP(method, route, status string, took time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func (m *Metrics) IncAuthFailure() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}
