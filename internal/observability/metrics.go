package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	activeSessions      prometheus.Gauge
	sessionOpsTotal     *prometheus.CounterVec
	sessionLoadDuration prometheus.Histogram
	sessionSaveDuration prometheus.Histogram
	expiredSessions     prometheus.Counter
	importTotal         *prometheus.CounterVec
	anxietyUpdates      *prometheus.CounterVec

	chatRequestTotal    *prometheus.CounterVec
	chatRequestDuration *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			activeSessions: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "active_sessions",
					Help: "Current stored session count.",
				},
			),
			sessionOpsTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_operations_total",
					Help: "Total session operations by operation and status.",
				},
				[]string{"op", "status"},
			),
			sessionLoadDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_load_duration_seconds",
					Help:    "Session store load duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			sessionSaveDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "session_save_duration_seconds",
					Help:    "Session store save duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			expiredSessions: prometheus.NewCounter(
				prometheus.CounterOpts{
					Name: "sessions_expired_total",
					Help: "Total sessions reset by expiry cleanup.",
				},
			),
			importTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "session_imports_total",
					Help: "Total session imports by status (success, partial, failure).",
				},
				[]string{"status"},
			),
			anxietyUpdates: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "anxiety_level_updates_total",
					Help: "Total anxiety level updates by resulting level.",
				},
				[]string{"level"},
			),
			chatRequestTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "chat_requests_total",
					Help: "Total chat backend requests by outcome (success, transport_error, status_error).",
				},
				[]string{"outcome"},
			),
			chatRequestDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "chat_request_duration_seconds",
					Help:    "Chat backend request duration in seconds by outcome.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"outcome"},
			),
		}

		prometheus.MustRegister(
			m.activeSessions,
			m.sessionOpsTotal,
			m.sessionLoadDuration,
			m.sessionSaveDuration,
			m.expiredSessions,
			m.importTotal,
			m.anxietyUpdates,
			m.chatRequestTotal,
			m.chatRequestDuration,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

func SetActiveSessions(count int) {
	m := getMetrics()
	m.activeSessions.Set(float64(count))
}

func RecordSessionOp(op string, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.sessionOpsTotal.WithLabelValues(op, status).Inc()
}

func RecordSessionLoad(duration time.Duration) {
	m := getMetrics()
	m.sessionLoadDuration.Observe(duration.Seconds())
}

func RecordSessionSave(duration time.Duration) {
	m := getMetrics()
	m.sessionSaveDuration.Observe(duration.Seconds())
}

func RecordExpiredSession() {
	m := getMetrics()
	m.expiredSessions.Inc()
}

func RecordImport(status string) {
	m := getMetrics()
	m.importTotal.WithLabelValues(status).Inc()
}

func RecordAnxietyUpdate(level string) {
	m := getMetrics()
	m.anxietyUpdates.WithLabelValues(level).Inc()
}

func RecordChatRequest(outcome string, duration time.Duration) {
	m := getMetrics()
	m.chatRequestTotal.WithLabelValues(outcome).Inc()
	m.chatRequestDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}
