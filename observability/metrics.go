package observability

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RewardsMetrics exposes Prometheus collectors for the settlement engine.
type RewardsMetrics struct {
	settlements *prometheus.CounterVec
	settled     *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	custodied   prometheus.Gauge
}

var (
	rewardsMetricsOnce sync.Once
	rewardsRegistry    *RewardsMetrics
)

// Rewards returns the lazily-initialised metrics registry for the reward
// settlement engine.
func Rewards() *RewardsMetrics {
	rewardsMetricsOnce.Do(func() {
		rewardsRegistry = &RewardsMetrics{
			settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardledger",
				Subsystem: "settlement",
				Name:      "commits_total",
				Help:      "Committed settlements segmented by distribution path.",
			}, []string{"path"}),
			settled: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardledger",
				Subsystem: "settlement",
				Name:      "amount_total",
				Help:      "Cumulative settled amount segmented by distribution path.",
			}, []string{"path"}),
			failures: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rewardledger",
				Subsystem: "settlement",
				Name:      "failures_total",
				Help:      "Rejected operations segmented by path and reason.",
			}, []string{"path", "reason"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rewardledger",
				Subsystem: "settlement",
				Name:      "duration_seconds",
				Help:      "Latency distribution for mutating engine operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"path"}),
			custodied: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rewardledger",
				Subsystem: "vault",
				Name:      "custodied_balance",
				Help:      "Asset amount currently held by the ledger gateway.",
			}),
		}
		prometheus.MustRegister(
			rewardsRegistry.settlements,
			rewardsRegistry.settled,
			rewardsRegistry.failures,
			rewardsRegistry.latency,
			rewardsRegistry.custodied,
		)
	})
	return rewardsRegistry
}

// RecordSettlement counts a committed settlement and its amount.
func (m *RewardsMetrics) RecordSettlement(path string, amount *big.Int) {
	if m == nil {
		return
	}
	m.settlements.WithLabelValues(path).Inc()
	if amount != nil {
		m.settled.WithLabelValues(path).Add(bigToFloat(amount))
	}
}

// RecordFailure counts a rejected operation by reason.
func (m *RewardsMetrics) RecordFailure(path, reason string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(path, reason).Inc()
}

// ObserveLatency records the wall time taken by a mutating operation.
func (m *RewardsMetrics) ObserveLatency(path string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.WithLabelValues(path).Observe(d.Seconds())
}

// SetCustodiedBalance publishes the gateway balance after a mutation.
func (m *RewardsMetrics) SetCustodiedBalance(balance *big.Int) {
	if m == nil || balance == nil {
		return
	}
	m.custodied.Set(bigToFloat(balance))
}

func bigToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
