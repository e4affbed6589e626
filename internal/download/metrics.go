package download

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	downloadBytes = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "shardd_download_bytes",
		Help: "Bytes present on disk for the most recent acquisition sample",
	})

	ensureTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shardd_ensure_total",
		Help: "Shard acquisitions by result",
	}, []string{"result"})

	ensureDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "shardd_ensure_duration_seconds",
		Help:    "Time to resolve a shard's artifacts",
		Buckets: []float64{0.001, 0.01, 0.1, 1, 10, 60, 300, 1800},
	})
)

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsNotFound(err):
		return "not_found"
	case IsMissingArtifact(err):
		return "missing_artifact"
	case IsTransferFailure(err):
		return "transfer_failure"
	default:
		return "error"
	}
}
