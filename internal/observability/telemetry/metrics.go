package telemetry

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ==================== Run Metrics ====================

	// RunsTotal tracks allocation/schedule/unified runs by kind and outcome.
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_runs_total",
		Help: "Total planning runs by kind and status",
	}, []string{"kind", "status"}) // kind: allocation|schedule|unified; status: domain.RunStatus values

	// RunDuration tracks wall-clock duration of a full orchestration run.
	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleet_run_duration_seconds",
		Help:    "Duration of a planning run end to end",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"kind"})

	// UnallocatedRoutesTotal tracks routes left unallocated per run.
	UnallocatedRoutesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_unallocated_routes_total",
		Help: "Routes that could not be allocated to any vehicle",
	}, []string{"site_id"})

	// ShortfallKWhTotal tracks unmet charge demand reported by schedule runs.
	ShortfallKWhTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_schedule_shortfall_kwh_total",
		Help: "Energy shortfall reported by scheduling runs",
	}, []string{"site_id"})

	// ==================== Constraint Metrics ====================

	// ConstraintRejectionsTotal tracks hard-constraint rejections by name.
	ConstraintRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_constraint_rejections_total",
		Help: "Candidate sequences rejected by a hard constraint",
	}, []string{"constraint"})

	// CandidatesEvaluated tracks how many sequence candidates were generated
	// and survived constraint evaluation, per run.
	CandidatesEvaluated = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleet_sequence_candidates_evaluated",
		Help:    "Number of feasible sequence candidates produced per run",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
	}, []string{"site_id"})

	// ==================== Solver Engine Metrics ====================

	// SolverEngineCallsTotal tracks calls into the pluggable solver engine.
	SolverEngineCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_solver_engine_calls_total",
		Help: "Calls to the solver engine by backend and outcome",
	}, []string{"engine", "outcome"}) // engine: remote|greedy; outcome: ok|error

	// SolverEngineFallbacksTotal tracks remote-to-greedy fallbacks.
	SolverEngineFallbacksTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fleet_solver_engine_fallbacks_total",
		Help: "Times the remote engine was unhealthy and greedy was used",
	})

	// SolverEngineLatency tracks solver call latency by backend.
	SolverEngineLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleet_solver_engine_latency_seconds",
		Help:    "Solver engine call latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
	}, []string{"engine"})

	// ==================== Infrastructure Metrics ====================

	// HTTPRequestDuration tracks HTTP request duration
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleet_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path", "status"})

	// HTTPRequestsTotal tracks total HTTP requests
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// DatabaseLatency tracks database query latency
	DatabaseLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "fleet_database_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
	}, []string{"operation", "table"})

	// CacheHitsTotal tracks cache hits and misses
	CacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_cache_hits_total",
		Help: "Total cache hits and misses",
	}, []string{"result"}) // hit, miss

	// MessageQueueMessagesTotal tracks message queue messages
	MessageQueueMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fleet_mq_messages_total",
		Help: "Total message queue messages",
	}, []string{"topic", "status"}) // status: published, consumed, failed
)

// RecordRunCompleted increments metrics when an orchestration run finishes.
func RecordRunCompleted(kind, status string, durationSeconds float64) {
	RunsTotal.WithLabelValues(kind, status).Inc()
	RunDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordAllocationOutcome records per-site unallocated-route counts.
func RecordAllocationOutcome(siteID string, unallocated int) {
	if unallocated > 0 {
		UnallocatedRoutesTotal.WithLabelValues(siteID).Add(float64(unallocated))
	}
}

// RecordScheduleShortfall records per-site reported charge shortfall.
func RecordScheduleShortfall(siteID string, shortfallKWh float64) {
	if shortfallKWh > 0 {
		ShortfallKWhTotal.WithLabelValues(siteID).Add(shortfallKWh)
	}
}

// RecordConstraintRejection records a hard-constraint rejection.
func RecordConstraintRejection(constraintName string) {
	ConstraintRejectionsTotal.WithLabelValues(constraintName).Inc()
}

// RecordSolverEngineCall records a solver engine invocation outcome and
// latency, and a fallback if the greedy backend was used.
func RecordSolverEngineCall(engine string, err error, latencySeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	SolverEngineCallsTotal.WithLabelValues(engine, outcome).Inc()
	SolverEngineLatency.WithLabelValues(engine).Observe(latencySeconds)
	if engine == "greedy" {
		SolverEngineFallbacksTotal.Inc()
	}
}

// RecordHTTPRequest records an HTTP request metric
func RecordHTTPRequest(method, path string, status int, durationSeconds float64) {
	statusStr := fmt.Sprintf("%d", status)
	HTTPRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, statusStr).Observe(durationSeconds)
}

// RecordCacheAccess records a cache access metric
func RecordCacheAccess(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	CacheHitsTotal.WithLabelValues(result).Inc()
}
