package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for DexLedger.
type Metrics struct {
	// --- Write path ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec
	LogSequence prometheus.Gauge

	// --- Channels & backpressure ---
	ChannelSize     *prometheus.GaugeVec
	ChannelCapacity *prometheus.GaugeVec
	PublishDrops    prometheus.Counter
	PublishedEvents prometheus.Counter
	PublishErrors   prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistErrors        prometheus.Counter
	PersistRetry         prometheus.Counter
	PersistLastSequence  prometheus.Gauge

	// --- Snapshot & replay ---
	SnapshotTaken     prometheus.Counter
	SnapshotDuration  prometheus.Histogram
	SnapshotLastSeq   prometheus.Gauge
	ReplayEventsTotal prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	queryBuckets := []float64{
		0.0001, 0.00025, 0.0005, 0.001, 0.0025,
		0.005, 0.01, 0.025, 0.05, 0.1,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_ops_applied_total",
			Help: "Mutations successfully committed by the exchange",
		}, []string{"op"}),
		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_ops_rejected_total",
			Help: "Mutations refused by a write-path precondition",
		}, []string{"op", "reason"}),
		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dex_op_duration_seconds",
			Help:    "Time spent inside the exchange critical section",
			Buckets: opBuckets,
		}, []string{"op"}),
		LogSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dex_log_sequence",
			Help: "Last sequence appended to the event log",
		}),

		ChannelSize: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dex_channel_size",
			Help: "Current channel occupancy",
		}, []string{"channel"}),
		ChannelCapacity: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dex_channel_capacity",
			Help: "Channel capacity",
		}, []string{"channel"}),
		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dex_publish_drops_total",
			Help: "Events dropped on the publish channel (consumers re-read the log)",
		}),
		PublishedEvents: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dex_published_events_total",
			Help: "Events published to the outbound stream",
		}),
		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dex_publish_errors_total",
			Help: "Outbound publish failures",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dex_persist_events_written_total",
			Help: "Events written to the durable event log",
		}),
		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dex_persist_batch_size",
			Help:    "Events per persistence flush",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		PersistErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dex_persist_errors_total",
			Help: "Persistence flush failures",
		}),
		PersistRetry: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dex_persist_retry_total",
			Help: "Persistence flush retries",
		}),
		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dex_persist_last_sequence",
			Help: "Last sequence durably written",
		}),

		SnapshotTaken: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dex_snapshot_taken_total",
			Help: "State snapshots persisted",
		}),
		SnapshotDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "dex_snapshot_duration_seconds",
			Help:    "Time to capture and persist a snapshot",
			Buckets: queryBuckets,
		}),
		SnapshotLastSeq: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "dex_snapshot_last_sequence",
			Help: "Sequence of the latest snapshot",
		}),
		ReplayEventsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "dex_replay_events_total",
			Help: "Events replayed from the durable log on startup",
		}),

		QueryRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_query_requests_total",
			Help: "Read API requests",
		}, []string{"endpoint"}),
		QueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dex_query_duration_seconds",
			Help:    "Read API latency",
			Buckets: queryBuckets,
		}, []string{"endpoint"}),
		QueryErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "dex_query_errors_total",
			Help: "Read API failures",
		}, []string{"endpoint"}),
	}
}
