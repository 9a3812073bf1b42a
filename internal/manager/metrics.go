package manager

import "github.com/prometheus/client_golang/prometheus"

var (
	contextsLive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "llamactx",
		Name:      "contexts_live",
		Help:      "Number of open model contexts.",
	})
	opensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llamactx",
		Name:      "open_total",
		Help:      "Context open attempts by result.",
	}, []string{"result"})
	generationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "llamactx",
		Name:      "generations_total",
		Help:      "Finished generations by outcome (ok, stopped, error).",
	}, []string{"outcome"})
	busyRejections = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "llamactx",
		Name:      "busy_rejections_total",
		Help:      "Completions rejected because the context was already generating.",
	})
	fragmentsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "llamactx",
		Name:      "fragments_total",
		Help:      "Streamed fragments delivered to listeners.",
	})
	generationsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "llamactx",
		Name:      "generations_active",
		Help:      "Generations currently holding a context.",
	})
	generationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "llamactx",
		Name:      "generation_duration_seconds",
		Help:      "Wall time of a generation from reservation to completion notice.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
)

func init() {
	prometheus.MustRegister(contextsLive, opensTotal, generationsTotal, busyRejections, fragmentsTotal, generationsActive, generationDuration)
}
