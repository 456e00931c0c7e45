package service

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the upload pipeline's prometheus collectors.
type Metrics struct {
	uploads             *prometheus.CounterVec
	storedBytes         *prometheus.HistogramVec
	compressionRatio    *prometheus.HistogramVec
	compressionDuration *prometheus.HistogramVec
	mirrorFailures      prometheus.Counter
}

// NewMetrics creates the upload collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		uploads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploads_total",
				Help: "Uploads processed, by category and outcome (finalized or a failure kind).",
			},
			[]string{"category", "outcome"},
		),
		storedBytes: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upload_stored_bytes",
				Help:    "Size of finalized uploads after compression.",
				Buckets: prometheus.ExponentialBuckets(16<<10, 4, 8),
			},
			[]string{"category"},
		),
		compressionRatio: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upload_compression_ratio",
				Help:    "Final size divided by original size for compressed uploads.",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
			[]string{"category"},
		),
		compressionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "upload_compression_duration_seconds",
				Help:    "Time spent in the compression stage.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"category", "result"},
		),
		mirrorFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "upload_mirror_failures_total",
				Help: "Object-storage mirror operations that failed.",
			},
		),
	}

	for _, c := range []prometheus.Collector{
		m.uploads,
		m.storedBytes,
		m.compressionRatio,
		m.compressionDuration,
		m.mirrorFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) finalized(category string, originalBytes, finalBytes int64) {
	m.uploads.WithLabelValues(category, "finalized").Inc()
	m.storedBytes.WithLabelValues(category).Observe(float64(finalBytes))
	if originalBytes > 0 {
		m.compressionRatio.WithLabelValues(category).Observe(float64(finalBytes) / float64(originalBytes))
	}
}

func (m *Metrics) failed(category string, kind Kind) {
	m.uploads.WithLabelValues(category, string(kind)).Inc()
}

func (m *Metrics) compressed(category string, ok bool, seconds float64) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.compressionDuration.WithLabelValues(category, result).Observe(seconds)
}
