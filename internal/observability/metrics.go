package observability

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Authorization outcomes
const (
	OutcomeAllowed       = "allowed"
	OutcomeLoginRequired = "login_required"
	OutcomeDenied        = "denied"
)

// Metrics holds the page guard collectors on a private registry
type Metrics struct {
	registry       *prometheus.Registry
	requests       *prometheus.CounterVec
	decisions      *prometheus.CounterVec
	lockdowns      prometheus.Counter
	controls       *prometheus.CounterVec
	authorizations *prometheus.CounterVec
	signOuts       *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageguard_http_requests_total",
				Help: "Total HTTP requests by method and status.",
			},
			[]string{"method", "status"},
		),
		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageguard_decisions_total",
				Help: "Page access decisions by outcome.",
			},
			[]string{"decision"},
		),
		lockdowns: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "pageguard_lockdowns_total",
				Help: "Read-only lockdowns applied to served pages.",
			},
		),
		controls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageguard_controls_disabled_total",
				Help: "Controls disabled by read-only lockdowns.",
			},
			[]string{"kind"},
		),
		authorizations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageguard_action_authorizations_total",
				Help: "Action authorization checks by outcome.",
			},
			[]string{"outcome"},
		),
		signOuts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageguard_signouts_total",
				Help: "Sign-out requests by confirmation.",
			},
			[]string{"confirmed"},
		),
	}

	m.registry.MustRegister(
		m.requests,
		m.decisions,
		m.lockdowns,
		m.controls,
		m.authorizations,
		m.signOuts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// RecordDecision counts one access decision
func (m *Metrics) RecordDecision(decision string) {
	m.decisions.WithLabelValues(decision).Inc()
}

// RecordLockdown counts one lockdown and the controls it disabled
func (m *Metrics) RecordLockdown(buttons, fields int) {
	m.lockdowns.Inc()
	m.controls.WithLabelValues("button").Add(float64(buttons))
	m.controls.WithLabelValues("field").Add(float64(fields))
}

// RecordAuthorization counts one action authorization check
func (m *Metrics) RecordAuthorization(outcome string) {
	m.authorizations.WithLabelValues(outcome).Inc()
}

// RecordSignOut counts one sign-out request
func (m *Metrics) RecordSignOut(confirmed bool) {
	m.signOuts.WithLabelValues(strconv.FormatBool(confirmed)).Inc()
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Middleware counts requests by method and response status
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		m.requests.WithLabelValues(r.Method, strconv.Itoa(rw.status)).Inc()
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap lets http.ResponseController reach the underlying writer
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
