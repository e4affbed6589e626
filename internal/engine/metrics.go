package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "shardd_engine_loads_total",
		Help: "Shards loaded into the engine cache slot",
	})

	inferTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "shardd_infer_total",
		Help: "Inference steps by pipeline stage",
	}, []string{"stage"})
)
