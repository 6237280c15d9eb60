package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — Prometheus метрики анкеты.
//
// Все методы безопасны для nil: компоненты работают и без метрик (тесты, CLI).
type Metrics struct {
	sessionsStarted *prometheus.CounterVec
	activeSessions  prometheus.Gauge
	actions         *prometheus.CounterVec
	submissions     prometheus.Counter
	events          *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	webhooks        *prometheus.CounterVec
	resumePurged    prometheus.Counter
}

// NewMetrics регистрирует метрики в reg (nil — prometheus.DefaultRegisterer).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		sessionsStarted: f.NewCounterVec(prometheus.CounterOpts{
			Name: "questionnaire_sessions_started_total",
			Help: "Sessions started, by mode (new|resumed).",
		}, []string{"mode"}),
		activeSessions: f.NewGauge(prometheus.GaugeOpts{
			Name: "questionnaire_sessions_active",
			Help: "Sessions held in memory.",
		}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "questionnaire_actions_total",
			Help: "Engine actions, by action and outcome.",
		}, []string{"action", "outcome"}),
		submissions: f.NewCounter(prometheus.CounterOpts{
			Name: "questionnaire_submissions_total",
			Help: "Submitted questionnaires.",
		}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Name: "questionnaire_events_total",
			Help: "Lifecycle notifications, by type and status.",
		}, []string{"type", "status"}),
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "questionnaire_http_requests_total",
			Help: "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "questionnaire_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		webhooks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "questionnaire_webhook_deliveries_total",
			Help: "Webhook deliveries, by status (delivered|retry|rejected).",
		}, []string{"status"}),
		resumePurged: f.NewCounter(prometheus.CounterOpts{
			Name: "questionnaire_resume_snapshots_purged_total",
			Help: "Expired resume snapshots removed by the janitor.",
		}),
	}
}

// SessionStarted учитывает новую сессию.
func (m *Metrics) SessionStarted(resumed bool) {
	if m == nil {
		return
	}
	mode := "new"
	if resumed {
		mode = "resumed"
	}
	m.sessionsStarted.WithLabelValues(mode).Inc()
}

// SetActiveSessions выставляет число сессий в памяти.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}

// Action учитывает действие движка.
func (m *Metrics) Action(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

// Submitted учитывает отправку анкеты.
func (m *Metrics) Submitted() {
	if m == nil {
		return
	}
	m.submissions.Inc()
}

// Event учитывает доставку события.
func (m *Metrics) Event(eventType string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "failed"
	}
	m.events.WithLabelValues(eventType, status).Inc()
}

// HTTPRequest учитывает HTTP запрос.
func (m *Metrics) HTTPRequest(method, route string, status int, dur time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

// Webhook учитывает попытку доставки в webhook.
func (m *Metrics) Webhook(status string) {
	if m == nil {
		return
	}
	m.webhooks.WithLabelValues(status).Inc()
}

// ResumePurged учитывает удалённые снапшоты.
func (m *Metrics) ResumePurged(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.resumePurged.Add(float64(n))
}
