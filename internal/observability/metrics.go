package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for CurveBank.
type Metrics struct {
	// --- Market operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec
	StateHashDur prometheus.Histogram
	Sequence     *prometheus.GaugeVec

	// --- Reserve state ---
	ReserveVirtQuote *prometheus.GaugeVec
	ReserveRealQuote *prometheus.GaugeVec
	ReserveToken     *prometheus.GaugeVec
	TokenTotalSupply *prometheus.GaugeVec
	TokenMaxSupply   *prometheus.GaugeVec
	TokenTotalDebt   *prometheus.GaugeVec
	MarketPrice      *prometheus.GaugeVec
	FloorPrice       *prometheus.GaugeVec

	// --- Fees ---
	FeesRouted     *prometheus.CounterVec
	FeesRedirected *prometheus.CounterVec

	// --- Channel & backpressure ---
	ChannelSize         *prometheus.GaugeVec
	ChannelCapacity     *prometheus.GaugeVec
	ChannelUtilization  *prometheus.GaugeVec
	PublishDrops        prometheus.Counter
	PersistBackpressure prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistFeesWritten   prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistRetry         prometheus.Counter
	PersistLastSequence  *prometheus.GaugeVec

	// --- Snapshot ---
	SnapshotTaken    prometheus.Counter
	SnapshotDuration prometheus.Histogram

	// --- Stream ---
	StreamPublished     *prometheus.CounterVec
	StreamPublishErrors prometheus.Counter

	// --- Query API ---
	QueryRequests *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	QueryErrors   *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics on the
// default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers the metric set on an explicit registerer.
// Tests use fresh registries to avoid duplicate-registration panics.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	auto := promauto.With(reg)

	latencyBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "curvebank_ops_applied_total",
			Help: "Operations successfully committed",
		}, []string{"op"}),

		OpsRejected: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "curvebank_ops_rejected_total",
			Help: "Operations rejected before commit",
		}, []string{"op", "reason"}),

		OpDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "curvebank_op_duration_seconds",
			Help:    "Time to validate and commit one operation",
			Buckets: latencyBuckets,
		}, []string{"op"}),

		StateHashDur: auto.NewHistogram(prometheus.HistogramOpts{
			Name:    "curvebank_state_hash_duration_seconds",
			Help:    "Time to compute the state hash",
			Buckets: latencyBuckets,
		}),

		Sequence: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_sequence",
			Help: "Current per-instance sequence number",
		}, []string{"instance"}),

		ReserveVirtQuote: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_reserve_virt_quote",
			Help: "Virtual quote backing (wad, approximate)",
		}, []string{"instance"}),

		ReserveRealQuote: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_reserve_real_quote",
			Help: "Real quote backing (wad, approximate)",
		}, []string{"instance"}),

		ReserveToken: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_reserve_token",
			Help: "Unissued token reserve (wad, approximate)",
		}, []string{"instance"}),

		TokenTotalSupply: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_token_total_supply",
			Help: "Issued token supply (wad, approximate)",
		}, []string{"instance"}),

		TokenMaxSupply: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_token_max_supply",
			Help: "Issuable ceiling (wad, approximate)",
		}, []string{"instance"}),

		TokenTotalDebt: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_token_total_debt",
			Help: "Outstanding borrow debt (quote-wad, approximate)",
		}, []string{"instance"}),

		MarketPrice: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_market_price",
			Help: "Spot price quote/token (wad, approximate)",
		}, []string{"instance"}),

		FloorPrice: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_floor_price",
			Help: "Floor price quote/token (wad, approximate)",
		}, []string{"instance"}),

		FeesRouted: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "curvebank_fees_routed_total",
			Help: "Fee shares paid to a recipient",
		}, []string{"category", "asset"}),

		FeesRedirected: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "curvebank_fees_redirected_total",
			Help: "Fee shares redirected into the reserve or retired",
		}, []string{"asset"}),

		ChannelSize: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_channel_size",
			Help: "Current items in channel",
		}, []string{"name"}),

		ChannelCapacity: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_channel_capacity",
			Help: "Channel capacity (constant)",
		}, []string{"name"}),

		ChannelUtilization: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_channel_utilization",
			Help: "Channel size / capacity (0.0-1.0)",
		}, []string{"name"}),

		PublishDrops: auto.NewCounter(prometheus.CounterOpts{
			Name: "curvebank_publish_drops_total",
			Help: "Events dropped due to full publish channel",
		}),

		PersistBackpressure: auto.NewCounter(prometheus.CounterOpts{
			Name: "curvebank_persist_backpressure_total",
			Help: "Times an operation blocked on the persist channel",
		}),

		PersistEventsWritten: auto.NewCounter(prometheus.CounterOpts{
			Name: "curvebank_persist_events_written_total",
			Help: "Events written to Postgres",
		}),

		PersistFeesWritten: auto.NewCounter(prometheus.CounterOpts{
			Name: "curvebank_persist_fees_written_total",
			Help: "Fee rows written to Postgres",
		}),

		PersistBatchSize: auto.NewHistogram(prometheus.HistogramOpts{
			Name:    "curvebank_persist_batch_size",
			Help:    "Events per batch",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500},
		}),

		PersistBatchDur: auto.NewHistogram(prometheus.HistogramOpts{
			Name:    "curvebank_persist_batch_duration_seconds",
			Help:    "Postgres batch write duration",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "curvebank_persist_errors_total",
			Help: "Persistence errors",
		}, []string{"error_type"}),

		PersistRetry: auto.NewCounter(prometheus.CounterOpts{
			Name: "curvebank_persist_retry_total",
			Help: "Persistence retries",
		}),

		PersistLastSequence: auto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "curvebank_persist_last_sequence",
			Help: "Last persisted sequence per instance",
		}, []string{"instance"}),

		SnapshotTaken: auto.NewCounter(prometheus.CounterOpts{
			Name: "curvebank_snapshot_taken_total",
			Help: "Reserve snapshots written",
		}),

		SnapshotDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Name:    "curvebank_snapshot_duration_seconds",
			Help:    "Snapshot write time",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		}),

		StreamPublished: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "curvebank_stream_published_total",
			Help: "Events published to JetStream",
		}, []string{"event_type"}),

		StreamPublishErrors: auto.NewCounter(prometheus.CounterOpts{
			Name: "curvebank_stream_publish_errors_total",
			Help: "JetStream publish failures",
		}),

		QueryRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "curvebank_query_requests_total",
			Help: "Query requests",
		}, []string{"endpoint", "status"}),

		QueryDuration: auto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "curvebank_query_duration_seconds",
			Help:    "Query latency",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}, []string{"endpoint"}),

		QueryErrors: auto.NewCounterVec(prometheus.CounterOpts{
			Name: "curvebank_query_errors_total",
			Help: "Query errors",
		}, []string{"endpoint", "code"}),
	}
}

// SetChannelMetrics updates channel utilization metrics.
func (m *Metrics) SetChannelMetrics(name string, size, capacity int) {
	m.ChannelSize.WithLabelValues(name).Set(float64(size))
	m.ChannelCapacity.WithLabelValues(name).Set(float64(capacity))
	if capacity > 0 {
		m.ChannelUtilization.WithLabelValues(name).Set(float64(size) / float64(capacity))
	}
}
