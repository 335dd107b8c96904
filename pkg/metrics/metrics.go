package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursemarket_http_requests_total",
			Help: "Total number of HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursemarket_http_request_duration_seconds",
			Help:    "HTTP request latency distribution.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	dbQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "coursemarket_db_query_duration_seconds",
			Help:    "Database query latency distribution.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"operation", "table"},
	)

	purchasesReconciled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coursemarket_purchases_reconciled_total",
			Help: "Purchases reconciled, labelled by the signal that created them.",
		},
		[]string{"source"},
	)

	lessonAssignments = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "coursemarket_lesson_assignments_total",
			Help: "Instructor assignments created by the matching engine.",
		},
	)
)

// Middleware collects per-request Prometheus metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Use the route template rather than the raw path to keep cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		status := strconv.Itoa(c.Writer.Status())
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordDBQuery observes a database query for the metrics endpoint.
func RecordDBQuery(operation, table string, elapsed time.Duration) {
	dbQueryDuration.WithLabelValues(operation, table).Observe(elapsed.Seconds())
}

// RecordPurchaseReconciled counts a reconciled purchase. Source is "confirm"
// for the client confirmation path and "webhook" for gateway delivery.
func RecordPurchaseReconciled(source string) {
	purchasesReconciled.WithLabelValues(source).Inc()
}

// RecordLessonAssignment counts a successful instructor assignment.
func RecordLessonAssignment() {
	lessonAssignments.Inc()
}
