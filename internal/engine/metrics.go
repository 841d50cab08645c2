package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the query metrics shared by every dataset.
type Metrics struct {
	queries     *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	rowsScanned *prometheus.CounterVec
	bytesRead   *prometheus.CounterVec
}

// NewMetrics registers the query metrics with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photon",
			Name:      "queries_total",
			Help:      "Queries executed, by dataset and outcome.",
		}, []string{"dataset", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "photon",
			Name:      "query_duration_seconds",
			Help:      "Time spent planning and scanning a query.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"dataset"}),
		rowsScanned: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photon",
			Name:      "rows_scanned_total",
			Help:      "Records read from dataset sources.",
		}, []string{"dataset"}),
		bytesRead: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "photon",
			Name:      "bytes_read_total",
			Help:      "Bytes read from dataset sources after decompression.",
		}, []string{"dataset"}),
	}
}

func (m *Metrics) observe(dataset string, stats *Stats, err error, d time.Duration) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
		if kind, ok := KindOf(err); ok {
			status = kind.String()
		}
	}
	m.queries.WithLabelValues(dataset, status).Inc()
	m.duration.WithLabelValues(dataset).Observe(d.Seconds())
	if stats != nil {
		m.rowsScanned.WithLabelValues(dataset).Add(float64(stats.RowsScanned))
		m.bytesRead.WithLabelValues(dataset).Add(float64(stats.BytesRead))
	}
}
