package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"path", "method", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)
	submissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_total",
			Help: "Total number of graded submissions",
		},
		[]string{"type", "outcome"},
	)
	sandboxRunDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sandbox_run_duration_seconds",
			Help:    "Wall time spent executing untrusted code",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"language"},
	)
	sandboxFaults = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sandbox_faults_total",
			Help: "Sandbox executions that ended in a fault",
		},
		[]string{"fault"},
	)
	xpAwardedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "xp_awarded_total",
			Help: "Total XP committed to the progression ledger",
		},
	)
	leaderboardRebuilds = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "leaderboard_rebuilds_total",
			Help: "Full leaderboard index rebuilds",
		},
	)
)

// Register registers all collectors. Call once from main.
func Register() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		submissionsTotal,
		sandboxRunDuration,
		sandboxFaults,
		xpAwardedTotal,
		leaderboardRebuilds,
	)
}

// Handler returns the /metrics endpoint handler.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// Middleware records request counts and latencies per route.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(path, c.Request.Method, status).Inc()
		httpRequestDuration.WithLabelValues(path, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}

// ObserveSubmission records one graded submission.
func ObserveSubmission(challengeType, outcome string) {
	submissionsTotal.WithLabelValues(challengeType, outcome).Inc()
}

// ObserveSandboxRun records wall time for one sandbox execution.
func ObserveSandboxRun(language string, elapsed time.Duration) {
	sandboxRunDuration.WithLabelValues(language).Observe(elapsed.Seconds())
}

// ObserveSandboxFault records a faulted sandbox execution.
func ObserveSandboxFault(fault string) {
	sandboxFaults.WithLabelValues(fault).Inc()
}

// ObserveXPAwarded records XP committed by the ledger.
func ObserveXPAwarded(xp int) {
	if xp > 0 {
		xpAwardedTotal.Add(float64(xp))
	}
}

// ObserveLeaderboardRebuild records one full index rebuild.
func ObserveLeaderboardRebuild() {
	leaderboardRebuilds.Inc()
}
