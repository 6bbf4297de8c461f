// Package metrics holds the Prometheus collectors for the server and worker.
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"budget/internal/core"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "budget"

type Metrics struct {
	registry *prometheus.Registry

	expensesCreated    prometheus.Counter
	expensesDeleted    prometheus.Counter
	validationFailures prometheus.Counter
	storeErrors        *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
	eventsMirrored     *prometheus.CounterVec
	sessionEvents      *prometheus.CounterVec
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
	rateLimited        prometheus.Counter
	suspicious         prometheus.Counter
}

// New creates collectors on a private registry, including the Go runtime and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		expensesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "expenses_created_total",
			Help: "Expenses successfully stored.",
		}),
		expensesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "expenses_deleted_total",
			Help: "Expenses successfully deleted.",
		}),
		validationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "expense_validation_failures_total",
			Help: "Expense submissions rejected by validation.",
		}),
		storeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "store_errors_total",
			Help: "Document store failures by operation and kind.",
		}, []string{"op", "kind"}),
		eventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_published_total",
			Help: "Expense change events published, by type and result.",
		}, []string{"type", "result"}),
		eventsMirrored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "events_mirrored_total",
			Help: "Expense change events applied to the mirror, by type and result.",
		}, []string{"type", "result"}),
		sessionEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "session_events_total",
			Help: "Session changes by kind.",
		}, []string{"kind"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rate_limited_requests_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		suspicious: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "suspicious_requests_total",
			Help: "Requests flagged by the security detector.",
		}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.expensesCreated, m.expensesDeleted, m.validationFailures,
		m.storeErrors, m.eventsPublished, m.eventsMirrored, m.sessionEvents,
		m.httpRequests, m.httpDuration, m.rateLimited, m.suspicious,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ExpenseCreated() {
	if m != nil {
		m.expensesCreated.Inc()
	}
}

func (m *Metrics) ExpenseDeleted() {
	if m != nil {
		m.expensesDeleted.Inc()
	}
}

// ObserveError classifies err: validation failures and store errors are
// counted, anything else is ignored.
func (m *Metrics) ObserveError(op string, err error) {
	if m == nil || err == nil {
		return
	}
	var verr *core.ValidationError
	if errors.As(err, &verr) {
		m.validationFailures.Inc()
		return
	}
	var serr *core.StoreError
	if errors.As(err, &serr) {
		m.storeErrors.WithLabelValues(op, string(serr.Kind)).Inc()
	}
}

func (m *Metrics) EventPublished(eventType string, err error) {
	if m != nil {
		m.eventsPublished.WithLabelValues(eventType, result(err)).Inc()
	}
}

func (m *Metrics) EventMirrored(eventType string, err error) {
	if m != nil {
		m.eventsMirrored.WithLabelValues(eventType, result(err)).Inc()
	}
}

func (m *Metrics) SessionEvent(kind string) {
	if m != nil {
		m.sessionEvents.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) RateLimited() {
	if m != nil {
		m.rateLimited.Inc()
	}
}

func (m *Metrics) SuspiciousRequest() {
	if m != nil {
		m.suspicious.Inc()
	}
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
