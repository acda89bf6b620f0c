package refdb

import (
	"time"

	"github.com/aviator-co/refdb/internal/refs"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a prometheus.Collector for reference transactions.
type Metrics struct {
	transactions *prometheus.CounterVec
	updates      *prometheus.CounterVec
	lockWait     prometheus.Histogram
}

// NewMetrics returns metrics that have to be registered by the caller.
func NewMetrics() *Metrics {
	return &Metrics{
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refdb_transactions_total",
				Help: "Total number of reference transactions by result (committed or aborted)",
			},
			[]string{"result"},
		),
		updates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "refdb_updates_total",
				Help: "Total number of updates in committed transactions by kind and outcome (updated or rejected)",
			},
			[]string{"kind", "outcome"},
		),
		lockWait: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "refdb_lock_wait_seconds",
				Help:    "Time spent waiting to lock the references of a transaction",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
		),
	}
}

func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(m, ch)
}

func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.transactions.Collect(ch)
	m.updates.Collect(ch)
	m.lockWait.Collect(ch)
}

func (m *Metrics) observeLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}

func (m *Metrics) observeTransaction(result string, applied *refs.Applied) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(result).Inc()
	if applied == nil {
		return
	}
	for _, u := range applied.Updated {
		m.updates.WithLabelValues(updatedKind(u), "updated").Inc()
	}
	for _, r := range applied.Rejected {
		m.updates.WithLabelValues(updateKind(r.Update), "rejected").Inc()
	}
}

func updateKind(u refs.Update) string {
	switch u.(type) {
	case refs.DirectUpdate:
		return "direct"
	case refs.SymbolicUpdate:
		return "symbolic"
	case refs.RemoveUpdate:
		return "remove"
	default:
		return "unknown"
	}
}

func updatedKind(u refs.Updated) string {
	switch u.(type) {
	case refs.UpdatedDirect:
		return "direct"
	case refs.UpdatedSymbolic:
		return "symbolic"
	case refs.Removed:
		return "remove"
	default:
		return "unknown"
	}
}
