package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every Prometheus collector the API server registers.
type Metrics struct {
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	queryResultCount *prometheus.HistogramVec
	commitLag        *prometheus.GaugeVec
}

// NewMetrics creates and registers the server's Prometheus collectors.
func NewMetrics() *Metrics {
	return &Metrics{
		httpRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "spatialdb_http_requests_total",
				Help: "Total number of HTTP requests handled by the query layer.",
			},
			[]string{"method", "route", "status"},
		),
		httpRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spatialdb_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		queryResultCount: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "spatialdb_query_result_count",
				Help:    "Number of entries returned by a bbox query.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"design_doc", "index"},
		),
		commitLag: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "spatialdb_commit_lag_seq",
				Help: "current_seq minus purge_seq for the most recently observed group state.",
			},
			[]string{"design_doc"},
		),
	}
}

// InstrumentHandler wraps next with request-count and duration metrics
// tagged by method and route.
func (m *Metrics) InstrumentHandler(method, route string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			next(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)
		m.httpRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(rec.status)).Inc()
	}
}

// RecordQuery observes a bbox query's result count.
func (m *Metrics) RecordQuery(designDoc, index string, n int) {
	if m == nil {
		return
	}
	m.queryResultCount.WithLabelValues(designDoc, index).Observe(float64(n))
}

// RecordCommitLag sets the commit-lag gauge for a design document.
func (m *Metrics) RecordCommitLag(designDoc string, currentSeq, purgeSeq uint64) {
	if m == nil {
		return
	}
	m.commitLag.WithLabelValues(designDoc).Set(float64(currentSeq) - float64(purgeSeq))
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}
