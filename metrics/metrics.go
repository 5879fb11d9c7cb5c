package metrics

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickpad_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quickpad_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	// Note lifecycle metrics
	notesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickpad_notes_total",
			Help: "Total number of note operations",
		},
		[]string{"operation"}, // save, load, delete, change_url
	)

	// Upload metrics
	uploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickpad_uploads_total",
			Help: "Total number of upload batches",
		},
		[]string{"status"}, // accepted, rejected
	)

	uploadBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "quickpad_upload_bytes_total",
			Help: "Total bytes of accepted uploads",
		},
	)

	// Database metrics
	dbConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quickpad_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	dbConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quickpad_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	dbQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickpad_db_queries_total",
			Help: "Total number of database queries",
		},
		[]string{"operation"}, // select, insert, update, delete
	)

	// Error metrics
	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quickpad_errors_total",
			Help: "Total number of errors",
		},
		[]string{"type", "component"},
	)
)

// PrometheusMiddleware creates a Fiber middleware for Prometheus metrics
func PrometheusMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		duration := time.Since(start).Seconds()
		method := c.Method()
		path := c.Route().Path
		if path == "" {
			path = c.Path()
		}
		statusCode := strconv.Itoa(c.Response().StatusCode())

		httpRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(duration)

		return err
	}
}

// IncrementNoteOperation increments the note operation counter
func IncrementNoteOperation(operation string) {
	notesTotal.WithLabelValues(operation).Inc()
}

// IncrementUploadBatch records an upload batch outcome
func IncrementUploadBatch(status string) {
	uploadsTotal.WithLabelValues(status).Inc()
}

// AddUploadBytes records accepted upload volume
func AddUploadBytes(n int64) {
	uploadBytes.Add(float64(n))
}

// UpdateDatabaseMetrics updates database connection metrics
func UpdateDatabaseMetrics(active, idle int) {
	dbConnectionsActive.Set(float64(active))
	dbConnectionsIdle.Set(float64(idle))
}

// IncrementDatabaseQuery increments the database query counter
func IncrementDatabaseQuery(operation string) {
	dbQueriesTotal.WithLabelValues(operation).Inc()
}

// IncrementError increments the error counter
func IncrementError(errorType, component string) {
	errorsTotal.WithLabelValues(errorType, component).Inc()
}
