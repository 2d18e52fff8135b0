package ai

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	completionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mockint",
		Subsystem: "llm",
		Name:      "completion_duration_seconds",
		Help:      "Duration of LLM completion requests",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32},
	}, []string{"provider", "model"})

	completionFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mockint",
		Subsystem: "llm",
		Name:      "completion_failures_total",
		Help:      "Number of failed LLM completion requests",
	}, []string{"provider", "model"})
)
