package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all metrics for the sizing engine
type Registry struct {
	// Oracle metrics
	OracleCalls        *prometheus.CounterVec
	OracleCallDuration *prometheus.HistogramVec
	OracleFailures     *prometheus.CounterVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration *prometheus.HistogramVec
	RunCost     *prometheus.GaugeVec

	// Strategy metrics
	EvolutionTrials prometheus.Counter
	PolishChecks    prometheus.Counter
	PolishSavings   prometheus.Counter

	// Job service metrics
	JobsInFlight prometheus.Gauge

	registry *prometheus.Registry
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the process-wide metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a registry with every collector initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initOracleMetrics()
	r.initRunMetrics()

	return r
}

func (r *Registry) initOracleMetrics() {
	r.OracleCalls = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipesizer_oracle_calls_total",
			Help: "Total number of hydraulic oracle calls",
		},
		[]string{"mode"},
	)

	r.OracleCallDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipesizer_oracle_call_duration_seconds",
			Help:    "Hydraulic oracle call duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1.0, 10.0},
		},
		[]string{"mode"},
	)

	r.OracleFailures = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipesizer_oracle_failures_total",
			Help: "Total number of failed hydraulic oracle calls",
		},
		[]string{"mode"},
	)
}

func (r *Registry) initRunMetrics() {
	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipesizer_runs_total",
			Help: "Total number of sizing runs by outcome",
		},
		[]string{"algorithm", "outcome"},
	)

	r.RunDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipesizer_run_duration_seconds",
			Help:    "Sizing run duration in seconds",
			Buckets: []float64{0.1, 1, 10, 60, 300, 600, 1800},
		},
		[]string{"algorithm"},
	)

	r.RunCost = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pipesizer_run_cost",
			Help: "Cost of the last solution found per algorithm",
		},
		[]string{"algorithm"},
	)

	r.EvolutionTrials = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pipesizer_evolution_trials_total",
			Help: "Total number of evolutionary trials completed",
		},
	)

	r.PolishChecks = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pipesizer_polish_checks_total",
			Help: "Total number of feasibility checks made by the polish refiner",
		},
	)

	r.PolishSavings = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "pipesizer_polish_savings_total",
			Help: "Accumulated cost saved by the polish refiner",
		},
	)

	r.JobsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "pipesizer_jobs_in_flight",
			Help: "Number of sizing jobs currently running in the job service",
		},
	)
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
