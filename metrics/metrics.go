package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ActionsExecuted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitysvc_actions_total",
			Help: "Total number of entity actions executed",
		},
		[]string{"entity", "action", "outcome"},
	)

	ActionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "entitysvc_action_duration_seconds",
			Help:    "Time taken to execute entity actions",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"entity", "action"},
	)

	Transactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitysvc_transactions_total",
			Help: "Total number of action transactions by result (commit, rollback, rollback_failed)",
		},
		[]string{"result"},
	)

	MetadataCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "entitysvc_metadata_cache_hits_total",
			Help: "Total number of entity descriptor cache hits",
		},
	)

	MetadataCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "entitysvc_metadata_cache_misses_total",
			Help: "Total number of entity descriptor cache misses",
		},
	)

	MetadataErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitysvc_metadata_errors_total",
			Help: "Total number of entity descriptor source errors",
		},
		[]string{"source", "operation"},
	)

	SQLitePoolOpenConnections = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "entitysvc_sqlite_pool_open_connections",
			Help: "Number of open connections in the SQLite pool",
		},
		[]string{"pool"},
	)

	SQLitePoolInUse = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "entitysvc_sqlite_pool_in_use",
			Help: "Number of SQLite connections currently in use",
		},
		[]string{"pool"},
	)

	SQLitePoolIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "entitysvc_sqlite_pool_idle",
			Help: "Number of idle SQLite connections",
		},
		[]string{"pool"},
	)

	SQLitePoolWaitCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "entitysvc_sqlite_pool_wait_count_total",
			Help: "Total number of waits for a SQLite connection",
		},
		[]string{"pool"},
	)
)

// Outcome labels
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Transaction result labels
const (
	TxCommit         = "commit"
	TxRollback       = "rollback"
	TxRollbackFailed = "rollback_failed"
)
