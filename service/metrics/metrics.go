package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the application.
// Following the explicit dependency injection pattern, this struct
// is passed to all components that need to record metrics.
type Metrics struct {
	// Donation Metrics
	donationsDispatchedTotal *prometheus.CounterVec
	donationRequestDuration  prometheus.Histogram
	donationPairsLoadedTotal prometheus.Counter

	// Challenge Metrics
	challengesFetchedTotal *prometheus.CounterVec
	challengesSolvedTotal  prometheus.Counter
	challengesExpiredTotal prometheus.Counter

	// Solver Metrics
	solverRunsTotal   *prometheus.CounterVec
	solverRunDuration prometheus.Histogram

	// Submission Metrics
	solutionSubmissionsTotal *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance and registers all collectors.
// If registry is nil, prometheus.DefaultRegisterer is used.
func NewMetrics(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &Metrics{
		// Donation Metrics
		donationsDispatchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "donations_dispatched_total",
				Help: "Total number of donation requests dispatched by status class",
			},
			[]string{"status"},
		),
		donationRequestDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "donation_request_duration_seconds",
				Help:    "Duration of donation HTTP requests in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
		),
		donationPairsLoadedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "donation_pairs_loaded_total",
				Help: "Total number of donation pairs loaded from input files",
			},
		),

		// Challenge Metrics
		challengesFetchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challenges_fetched_total",
				Help: "Total number of challenge fetch attempts by outcome",
			},
			[]string{"status"},
		),
		challengesSolvedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "challenges_solved_total",
				Help: "Total number of challenges solved and accepted",
			},
		),
		challengesExpiredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "challenges_expired_total",
				Help: "Total number of challenges expired past their submission deadline",
			},
		),

		// Solver Metrics
		solverRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solver_runs_total",
				Help: "Total number of solver binary invocations by outcome",
			},
			[]string{"status"},
		),
		solverRunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "solver_run_duration_seconds",
				Help:    "Duration of solver binary runs in seconds",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
			},
		),

		// Submission Metrics
		solutionSubmissionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solution_submissions_total",
				Help: "Total number of solution submissions by outcome",
			},
			[]string{"status"},
		),
	}
}

// Donation metric helpers

// RecordDonationDispatched records one donation request with duration.
// Status is a status-code class ("2xx".."5xx") or "transport_error".
func (m *Metrics) RecordDonationDispatched(status string, duration float64) {
	m.donationsDispatchedTotal.WithLabelValues(status).Inc()
	m.donationRequestDuration.Observe(duration)
}

// RecordPairsLoaded records donation pairs loaded from an input file.
func (m *Metrics) RecordPairsLoaded(count int) {
	m.donationPairsLoadedTotal.Add(float64(count))
}

// Challenge metric helpers

// RecordChallengeFetched records a challenge fetch attempt.
// Status is one of "new", "duplicate", "error".
func (m *Metrics) RecordChallengeFetched(status string) {
	m.challengesFetchedTotal.WithLabelValues(status).Inc()
}

// RecordChallengeSolved records an accepted solution.
func (m *Metrics) RecordChallengeSolved() {
	m.challengesSolvedTotal.Inc()
}

// RecordChallengeExpired records a challenge expired past its deadline.
func (m *Metrics) RecordChallengeExpired() {
	m.challengesExpiredTotal.Inc()
}

// Solver metric helpers

// RecordSolverRun records a solver invocation with duration.
// Status is "success" or "error".
func (m *Metrics) RecordSolverRun(status string, duration float64) {
	m.solverRunsTotal.WithLabelValues(status).Inc()
	m.solverRunDuration.Observe(duration)
}

// Submission metric helpers

// RecordSolutionSubmission records a solution submission attempt.
// Status is one of "accepted", "rejected", "transport_error".
func (m *Metrics) RecordSolutionSubmission(status string) {
	m.solutionSubmissionsTotal.WithLabelValues(status).Inc()
}

// StatusClass groups an HTTP status code by class for metric labels.
func StatusClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500 && code < 600:
		return "5xx"
	default:
		return "unknown"
	}
}
