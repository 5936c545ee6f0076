package getwork

import (
	"sync"

	"github.com/hnsnode/hnsnode/util"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	prometheusGetWork           prometheus.Counter
	prometheusGetWorkDuration   prometheus.Histogram
	prometheusSubmitWork        *prometheus.CounterVec
	prometheusSubmitWorkLatency prometheus.Histogram
	prometheusRebuilds          *prometheus.CounterVec
	prometheusDiscardedAttempts prometheus.Counter
	prometheusAttemptFee        prometheus.Gauge
	prometheusAttemptTxs        prometheus.Histogram
	prometheusAttemptHeight     prometheus.Gauge
)

var (
	prometheusMetricsInitOnce sync.Once
)

func initPrometheusMetrics() {
	prometheusMetricsInitOnce.Do(_initPrometheusMetrics)
}

func _initPrometheusMetrics() {
	prometheusGetWork = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hnsnode",
			Subsystem: "getwork",
			Name:      "get_work",
			Help:      "Number of calls to GetWork",
		},
	)

	prometheusGetWorkDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hnsnode",
			Subsystem: "getwork",
			Name:      "get_work_duration",
			Help:      "Duration of GetWork including template rebuilds",
			Buckets:   util.MetricsBucketsMilliSeconds,
		},
	)

	prometheusSubmitWork = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hnsnode",
			Subsystem: "getwork",
			Name:      "submit_work",
			Help:      "Number of submitted solutions by result",
		},
		[]string{"reason"},
	)

	prometheusSubmitWorkLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hnsnode",
			Subsystem: "getwork",
			Name:      "submit_work_duration",
			Help:      "Duration of SubmitWork",
			Buckets:   util.MetricsBucketsMicroSeconds,
		},
	)

	prometheusRebuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "hnsnode",
			Subsystem: "getwork",
			Name:      "rebuilds",
			Help:      "Number of template rebuilds by reason",
		},
		[]string{"reason"},
	)

	prometheusDiscardedAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "hnsnode",
			Subsystem: "getwork",
			Name:      "discarded_attempts",
			Help:      "Number of templates discarded because the tip moved while building",
		},
	)

	prometheusAttemptFee = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hnsnode",
			Subsystem: "getwork",
			Name:      "attempt_fee",
			Help:      "Total fee of the current template",
		},
	)

	prometheusAttemptTxs = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "hnsnode",
			Subsystem: "getwork",
			Name:      "attempt_transactions",
			Help:      "Number of transactions in built templates",
			Buckets:   util.MetricsBucketsTxCount,
		},
	)

	prometheusAttemptHeight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "hnsnode",
			Subsystem: "getwork",
			Name:      "attempt_height",
			Help:      "Height of the current template",
		},
	)
}
