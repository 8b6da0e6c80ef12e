package prometheus

import (
	"strconv"
	"sync"
	"time"

	"github.com/AndrewKorobchuk/tsd/pkg/config"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Backend metrics
	RemoteCallHistogram *prometheus.HistogramVec

	// Cache metrics
	SyncCounter          *prometheus.CounterVec
	CachedRowsGauge      *prometheus.GaugeVec
	DBOperationHistogram *prometheus.HistogramVec

	// Document workflow metrics
	DocumentSaveCounter *prometheus.CounterVec

	// Local HTTP surface metrics
	RequestDurationHistogram *prometheus.HistogramVec
	APIRequestCounter        *prometheus.CounterVec
	APIErrorCounter          *prometheus.CounterVec

	// Namespace prefix for metrics
	namespace string

	initOnce sync.Once
)

// InitMetrics initializes all Prometheus metrics. Calls after the first are ignored.
func InitMetrics(cfg *config.Config) {
	initOnce.Do(func() {
		namespace = cfg.Metrics.Prefix

		RemoteCallHistogram = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Duration of backend REST calls in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"endpoint", "status"},
		)

		SyncCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "directory_sync_total",
				Help:      "Total number of directory sync attempts",
			},
			[]string{"entity", "outcome"},
		)

		CachedRowsGauge = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cached_rows",
				Help:      "Number of rows held in the local cache after the last sync",
			},
			[]string{"entity"},
		)

		DBOperationHistogram = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cache_operation_duration_seconds",
				Help:      "Duration of local cache operations in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		)

		DocumentSaveCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "document_save_total",
				Help:      "Total number of document save attempts",
			},
			[]string{"outcome"},
		)

		RequestDurationHistogram = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		)

		APIRequestCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_requests_total",
				Help:      "Total number of API requests",
			},
			[]string{"method", "path"},
		)

		APIErrorCounter = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of API errors",
			},
			[]string{"method", "path", "status"},
		)
	})
}

// MetricsMiddleware tracks request metrics
func MetricsMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if APIRequestCounter == nil {
				return next(c)
			}

			start := time.Now()

			APIRequestCounter.With(prometheus.Labels{
				"method": c.Request().Method,
				"path":   c.Path(),
			}).Inc()

			err := next(c)

			status := strconv.Itoa(c.Response().Status)
			RequestDurationHistogram.With(prometheus.Labels{
				"method": c.Request().Method,
				"path":   c.Path(),
				"status": status,
			}).Observe(time.Since(start).Seconds())

			if c.Response().Status >= 400 {
				APIErrorCounter.With(prometheus.Labels{
					"method": c.Request().Method,
					"path":   c.Path(),
					"status": status,
				}).Inc()
			}

			return err
		}
	}
}

// HandlerFunc returns a HTTP handler for metrics endpoint
func HandlerFunc() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// TrackDBOperation returns a function that tracks cache operation duration
func TrackDBOperation(operation string) func(time.Time) {
	return func(startTime time.Time) {
		if DBOperationHistogram == nil {
			return
		}
		DBOperationHistogram.With(prometheus.Labels{
			"operation": operation,
		}).Observe(time.Since(startTime).Seconds())
	}
}

// ObserveRemoteCall records the duration of one backend call
func ObserveRemoteCall(endpoint, status string, d time.Duration) {
	if RemoteCallHistogram == nil {
		return
	}
	RemoteCallHistogram.With(prometheus.Labels{
		"endpoint": endpoint,
		"status":   status,
	}).Observe(d.Seconds())
}

// RecordSync counts a directory sync and, on success, the resulting row count
func RecordSync(entity string, rows int, err error) {
	if SyncCounter == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	SyncCounter.With(prometheus.Labels{
		"entity":  entity,
		"outcome": outcome,
	}).Inc()

	if err == nil {
		CachedRowsGauge.With(prometheus.Labels{"entity": entity}).Set(float64(rows))
	}
}

// RecordDocumentSave counts a finished document save attempt
func RecordDocumentSave(outcome string) {
	if DocumentSaveCounter == nil {
		return
	}
	DocumentSaveCounter.With(prometheus.Labels{"outcome": outcome}).Inc()
}
