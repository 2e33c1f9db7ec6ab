package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	AuthCommands     *prometheus.CounterVec
	GatewayLatency   *prometheus.HistogramVec
	PhaseTransitions *prometheus.CounterVec
	Ready            prometheus.Gauge
	EventsDropped    prometheus.Counter
	MealsSaved       prometheus.Counter
	HTTPLatency      *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg.
// Tests pass a fresh prometheus.NewRegistry() to avoid duplicate registration.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthCommands: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "calorie_auth_commands_total",
			Help: "Auth commands by command and outcome",
		}, []string{"command", "outcome"}),
		GatewayLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calorie_auth_gateway_duration_ms",
			Help:    "Latency of identity gateway calls in milliseconds",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}, []string{"operation"}),
		PhaseTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "calorie_auth_phase_transitions_total",
			Help: "Session lifecycle transitions between phases",
		}, []string{"from", "to"}),
		Ready: factory.NewGauge(prometheus.GaugeOpts{
			Name: "calorie_auth_ready",
			Help: "1 once the bootstrap session fetch has resolved",
		}),
		EventsDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "calorie_auth_events_dropped_total",
			Help: "Auth transition events dropped because the publish queue was full",
		}),
		MealsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "calorie_meals_saved_total",
			Help: "Meal records saved",
		}),
		HTTPLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calorie_http_request_duration_ms",
			Help:    "HTTP request latency in milliseconds by route and status",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}, []string{"method", "route", "status"}),
	}
}

// ObserveCommand records the outcome of an auth command.
func (m *Metrics) ObserveCommand(command, outcome string) {
	m.AuthCommands.WithLabelValues(command, outcome).Inc()
}

// ObserveGatewayLatency records how long a gateway call took.
func (m *Metrics) ObserveGatewayLatency(operation string, d time.Duration) {
	m.GatewayLatency.WithLabelValues(operation).Observe(float64(d.Microseconds()) / 1000.0)
}

// ObserveTransition counts a phase change and tracks readiness.
func (m *Metrics) ObserveTransition(from, to string) {
	m.PhaseTransitions.WithLabelValues(from, to).Inc()
	if to != "bootstrapping" {
		m.Ready.Set(1)
	}
}

// ObserveHTTP records one served request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPLatency.WithLabelValues(method, route, strconv.Itoa(status)).Observe(float64(d.Microseconds()) / 1000.0)
}
