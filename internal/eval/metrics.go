package eval

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finrag_eval_pairs_total",
			Help: "Total number of (question, model) pairs evaluated",
		},
		[]string{"model"},
	)

	failureCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finrag_eval_pair_failures_total",
			Help: "Pairs whose answer or judge call failed",
		},
		[]string{"model", "stage"},
	)

	correctCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "finrag_eval_correct_total",
			Help: "Pairs judged CORRECT",
		},
		[]string{"model"},
	)

	accuracyGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "finrag_eval_accuracy",
			Help: "Accuracy of the most recent evaluation run (0.0-1.0)",
		},
		[]string{"model"},
	)
)

// ObserveOutcome counts one evaluated pair.
func ObserveOutcome(o PairOutcome) {
	labels := prometheus.Labels{"model": o.Result.Model}
	evaluationCounter.With(labels).Inc()
	if o.Err != nil {
		failureCounter.With(prometheus.Labels{"model": o.Result.Model, "stage": o.Stage}).Inc()
	}
	if o.Result.IsCorrect {
		correctCounter.With(labels).Inc()
	}
}

// ObserveSummaries publishes per-model accuracy.
func ObserveSummaries(summaries []ModelSummary) {
	for _, s := range summaries {
		accuracyGauge.With(prometheus.Labels{"model": s.Model}).Set(s.Accuracy)
	}
}
