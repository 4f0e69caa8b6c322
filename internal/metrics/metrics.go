package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	PollsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribgateway_polls_total",
			Help: "RIB polls against the daemon, by result.",
		},
		[]string{"result"},
	)

	PollDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ribgateway_poll_duration_seconds",
			Help:    "End-to-end fetch and decode latency of one RIB poll.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
	)

	RoutesDecoded = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ribgateway_routes_decoded",
			Help: "Routes decoded from the most recent RIB snapshot.",
		},
	)

	LastPollTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ribgateway_last_poll_timestamp_seconds",
			Help: "Unix timestamp of the last successful RIB poll.",
		},
	)

	DecodeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribgateway_decode_errors_total",
			Help: "Malformed path attributes downgraded to absent.",
		},
		[]string{"attribute"},
	)

	EmptyDestinationsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ribgateway_empty_destinations_total",
			Help: "Destinations skipped because they carried no paths.",
		},
	)

	SinkPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribgateway_sink_publish_total",
			Help: "Snapshot deliveries per sink, by result.",
		},
		[]string{"sink", "result"},
	)

	SinkPublishDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ribgateway_sink_publish_duration_seconds",
			Help:    "Latency of delivering one snapshot to a sink.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5},
		},
		[]string{"sink"},
	)

	DBRowsWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribgateway_db_rows_written_total",
			Help: "Rows written to the archive, by table.",
		},
		[]string{"table"},
	)

	SnapshotsPurgedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ribgateway_snapshots_purged_total",
			Help: "Archived snapshots removed by retention maintenance.",
		},
	)

	NeighborOpsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ribgateway_neighbor_ops_total",
			Help: "Peer lifecycle operations issued to the daemon.",
		},
		[]string{"op", "result"},
	)
)

var registerOnce sync.Once

// Register installs all collectors in the default registry. Safe to call
// more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			PollsTotal,
			PollDuration,
			RoutesDecoded,
			LastPollTimestamp,
			DecodeErrorsTotal,
			EmptyDestinationsTotal,
			SinkPublishTotal,
			SinkPublishDuration,
			DBRowsWrittenTotal,
			SnapshotsPurgedTotal,
			NeighborOpsTotal,
		)
	})
}
