// Package metrics exposes the show core's Prometheus metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session end outcomes used as the outcome label.
const (
	OutcomeCompleted = "completed"
	OutcomeStopped   = "stopped"
)

// Metrics holds the Prometheus collectors for the scheduler, play sessions
// and the HTTP API. Each instance owns its registry.
type Metrics struct {
	registry *prometheus.Registry

	tickDuration    prometheus.Histogram
	ticksTotal      prometheus.Counter
	tickFailures    prometheus.Counter
	affectedLast    prometheus.Gauge
	runningContexts prometheus.Gauge
	contexts        prometheus.Gauge
	sessionsStarted prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	noticesTotal    *prometheus.CounterVec
	commandsTotal   *prometheus.CounterVec
	requestsTotal   *prometheus.CounterVec
}

// New creates and registers the show core's metrics.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "showcore_tick_duration_seconds",
			Help:    "Time spent in one scheduler tick",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05},
		}),
		ticksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showcore_ticks_total",
			Help: "Total number of scheduler ticks",
		}),
		tickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showcore_tick_context_failures_total",
			Help: "Total number of context updates that failed during a tick",
		}),
		affectedLast: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "showcore_tick_affected_elements",
			Help: "Elements affected by the most recent tick",
		}),
		runningContexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "showcore_running_contexts",
			Help: "Contexts running during the most recent tick",
		}),
		contexts: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "showcore_contexts",
			Help: "Contexts currently registered",
		}),
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "showcore_sessions_started_total",
			Help: "Total number of play sessions started",
		}),
		sessionsEnded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "showcore_sessions_ended_total",
			Help: "Total number of play sessions ended, by outcome",
		}, []string{"outcome"}),
		noticesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "showcore_notices_total",
			Help: "Executor messages and non-fatal errors, by level",
		}, []string{"level"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "showcore_commands_total",
			Help: "Transport commands received, by source and action",
		}, []string{"source", "action"}),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "showcore_http_requests_total",
			Help: "HTTP requests served, by status code",
		}, []string{"code"}),
	}

	m.registry.MustRegister(
		m.tickDuration,
		m.ticksTotal,
		m.tickFailures,
		m.affectedLast,
		m.runningContexts,
		m.contexts,
		m.sessionsStarted,
		m.sessionsEnded,
		m.noticesTotal,
		m.commandsTotal,
		m.requestsTotal,
	)
	return m
}

// ObserveTick records one scheduler tick.
func (m *Metrics) ObserveTick(d time.Duration, running, affected, failures int) {
	m.ticksTotal.Inc()
	m.tickDuration.Observe(d.Seconds())
	m.runningContexts.Set(float64(running))
	m.affectedLast.Set(float64(affected))
	if failures > 0 {
		m.tickFailures.Add(float64(failures))
	}
}

// SetContexts sets the registered contexts gauge.
func (m *Metrics) SetContexts(n int) {
	m.contexts.Set(float64(n))
}

// IncSessionStarted counts a started play session.
func (m *Metrics) IncSessionStarted() {
	m.sessionsStarted.Inc()
}

// IncSessionEnded counts an ended play session.
func (m *Metrics) IncSessionEnded(completed bool) {
	outcome := OutcomeStopped
	if completed {
		outcome = OutcomeCompleted
	}
	m.sessionsEnded.WithLabelValues(outcome).Inc()
}

// IncNotice counts an executor notice at level (message, error).
func (m *Metrics) IncNotice(level string) {
	m.noticesTotal.WithLabelValues(level).Inc()
}

// IncCommand counts a transport command from source (api, mqtt).
func (m *Metrics) IncCommand(source, action string) {
	m.commandsTotal.WithLabelValues(source, action).Inc()
}

// IncRequest counts an HTTP response with the given status code.
func (m *Metrics) IncRequest(status int) {
	m.requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

// Registry returns the registry backing m.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves the metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		h.ServeHTTP(w, r)
	})
}
