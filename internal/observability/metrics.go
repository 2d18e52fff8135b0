package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequestsTotal  *prometheus.CounterVec
	httpLatencySeconds *prometheus.HistogramVec
	httpErrorsTotal    *prometheus.CounterVec

	problemRequestsTotal *prometheus.CounterVec
	feedbackScores       *prometheus.HistogramVec
	interviewerTurns     *prometheus.CounterVec
	voiceDegradedTotal   *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors shared by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockint_http_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		httpLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mockint_http_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route"})

		httpErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockint_http_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		problemRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockint_problem_requests_total",
			Help: "Problem lookups by source and outcome.",
		}, []string{"source", "outcome"})

		feedbackScores = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mockint_feedback_score",
			Help:    "Distribution of final feedback scores.",
			Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		}, []string{"mode"})

		interviewerTurns = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockint_interviewer_turns_total",
			Help: "Interviewer replies produced, by action.",
		}, []string{"action"})

		voiceDegradedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mockint_voice_degraded_total",
			Help: "Voice responses that fell back to text, by reason.",
		}, []string{"endpoint", "reason"})

		prometheus.MustRegister(
			httpRequestsTotal, httpLatencySeconds, httpErrorsTotal,
			problemRequestsTotal, feedbackScores, interviewerTurns, voiceDegradedTotal,
		)
	})
}

// HTTPRequests exposes the request counter.
func HTTPRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return httpRequestsTotal
}

// HTTPLatency exposes the request latency histogram.
func HTTPLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return httpLatencySeconds
}

// HTTPErrors exposes the error response counter.
func HTTPErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return httpErrorsTotal
}

// ProblemRequests counts problem lookups.
func ProblemRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return problemRequestsTotal
}

// FeedbackScores observes final feedback scores.
func FeedbackScores() *prometheus.HistogramVec {
	RegisterMetrics()
	return feedbackScores
}

// InterviewerTurns counts interviewer replies.
func InterviewerTurns() *prometheus.CounterVec {
	RegisterMetrics()
	return interviewerTurns
}

// VoiceDegraded counts voice responses returned without audio.
func VoiceDegraded() *prometheus.CounterVec {
	RegisterMetrics()
	return voiceDegradedTotal
}
