package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the pool engine.
type Metrics struct {
	// --- Pool operations ---
	OpsApplied  *prometheus.CounterVec
	OpsRejected *prometheus.CounterVec
	OpDuration  *prometheus.HistogramVec

	// --- Pool state ---
	PoolBalance    prometheus.Gauge
	TotalLocked    prometheus.Gauge
	LockBuckets    prometheus.Gauge
	ShareSupply    prometheus.Gauge
	WithdrawSupply prometheus.Gauge
	BucketsSwept   prometheus.Counter

	// --- Fees ---
	PoolFeeRate      prometheus.Gauge
	TreasuryFeesPaid prometheus.Counter
	FeeQuoteRejected prometheus.Counter

	// --- Persistence ---
	PersistEventsWritten prometheus.Counter
	PersistBatchSize     prometheus.Histogram
	PersistBatchDur      prometheus.Histogram
	PersistErrors        *prometheus.CounterVec
	PersistLastSequence  prometheus.Gauge

	// --- Publishing ---
	PublishDrops  prometheus.Counter
	PublishErrors prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	opBuckets := []float64{
		0.000001, 0.000005, 0.00001, 0.000025, 0.00005,
		0.0001, 0.00025, 0.0005, 0.001, 0.002, 0.005, 0.01,
	}

	return &Metrics{
		OpsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_ops_applied_total",
			Help: "Pool operations successfully applied",
		}, []string{"op"}),

		OpsRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_ops_rejected_total",
			Help: "Pool operations rejected, by failure reason",
		}, []string{"op", "reason"}),

		OpDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pool_op_duration_seconds",
			Help:    "Time to apply a single pool operation",
			Buckets: opBuckets,
		}, []string{"op"}),

		PoolBalance: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_asset_balance",
			Help: "Collateral asset balance held by the pool",
		}),

		TotalLocked: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_total_locked",
			Help: "Collateral locked against open option positions",
		}),

		LockBuckets: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_lock_buckets",
			Help: "Active lock buckets (distinct expirations)",
		}),

		ShareSupply: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_share_supply",
			Help: "Outstanding share claims",
		}),

		WithdrawSupply: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_withdraw_supply",
			Help: "Outstanding postdated-withdraw claims",
		}),

		BucketsSwept: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_buckets_swept_total",
			Help: "Expired buckets released by sweeps",
		}),

		PoolFeeRate: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_fee_rate",
			Help: "Last quoted utilization fee rate",
		}),

		TreasuryFeesPaid: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_treasury_fee_events_total",
			Help: "Fee collections routed to the protocol treasury",
		}),

		FeeQuoteRejected: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_fee_quote_rejected_total",
			Help: "Fee quotes rejected for utilization at or above 100%",
		}),

		PersistEventsWritten: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_persist_events_written_total",
			Help: "Events written to the Postgres event log",
		}),

		PersistBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_persist_batch_size",
			Help:    "Events per persistence flush",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250},
		}),

		PersistBatchDur: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "pool_persist_batch_duration_seconds",
			Help:    "Time to flush one persistence batch",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		PersistErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "pool_persist_errors_total",
			Help: "Persistence failures, by stage",
		}, []string{"stage"}),

		PersistLastSequence: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "pool_persist_last_sequence",
			Help: "Sequence of the last event durably written",
		}),

		PublishDrops: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_publish_drops_total",
			Help: "Events dropped on the non-blocking publish channel",
		}),

		PublishErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "pool_publish_errors_total",
			Help: "NATS publish failures (non-fatal)",
		}),
	}
}
