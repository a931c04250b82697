package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Commit outcomes.
const (
	CommitCommitted = "committed"
	CommitDuplicate = "duplicate"
	CommitFailed    = "failed"
)

var (
	analysisSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_submitted_total",
			Help: "Ideas submitted to the AI service by result",
		},
		[]string{"result"},
	)

	watchesActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "analysis_watches_active",
			Help: "Status streams currently being watched",
		},
	)

	watchOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_watch_outcomes_total",
			Help: "Terminal watch events by kind",
		},
		[]string{"outcome"},
	)

	commits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_commits_total",
			Help: "Result commits by outcome",
		},
		[]string{"outcome"},
	)

	commitDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analysis_commit_duration_seconds",
			Help:    "Duration of the result commit transaction",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	rejectedFrames = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "analysis_rejected_frames_total",
			Help: "Status stream messages that failed validation",
		},
	)
)

// IncSubmitted counts a submit attempt; result is "accepted" or an error code.
func IncSubmitted(result string) {
	analysisSubmitted.WithLabelValues(result).Inc()
}

// WatchStarted marks a watch as active and returns the func that ends it.
func WatchStarted() func() {
	watchesActive.Inc()
	return watchesActive.Dec
}

// IncWatchOutcome counts a terminal watch event.
func IncWatchOutcome(outcome string) {
	watchOutcomes.WithLabelValues(outcome).Inc()
}

// ObserveCommit records one commit attempt.
func ObserveCommit(outcome string, d time.Duration) {
	commits.WithLabelValues(outcome).Inc()
	commitDuration.Observe(d.Seconds())
}

// IncRejectedFrame counts a status message that failed validation.
func IncRejectedFrame() {
	rejectedFrames.Inc()
}

// Handler exposes the default registry in Prometheus text format.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
