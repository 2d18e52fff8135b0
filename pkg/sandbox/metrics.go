package sandbox

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeCompleted    = "completed"
	outcomeCompileError = "compile_error"
	outcomeFailed       = "failed"
)

var (
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mockint",
		Subsystem: "sandbox",
		Name:      "run_duration_seconds",
		Help:      "Duration of candidate code evaluations",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"backend"})

	runOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mockint",
		Subsystem: "sandbox",
		Name:      "runs_total",
		Help:      "Number of candidate code evaluations by outcome",
	}, []string{"backend", "outcome"})

	caseTimeouts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mockint",
		Subsystem: "sandbox",
		Name:      "case_timeouts_total",
		Help:      "Number of test cases interrupted at the deadline",
	}, []string{"backend"})
)

func observeRun(backend string, started time.Time, err error) {
	runDuration.WithLabelValues(backend).Observe(time.Since(started).Seconds())

	outcome := outcomeCompleted
	if err != nil {
		outcome = outcomeFailed
		var compileErr *CompileError
		if errors.As(err, &compileErr) {
			outcome = outcomeCompileError
		}
	}
	runOutcomes.WithLabelValues(backend, outcome).Inc()
}
