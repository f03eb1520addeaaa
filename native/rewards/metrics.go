package rewards

import "rewardledger/observability"

// Metrics exposes Prometheus collectors for settlement engine instrumentation.
type Metrics = observability.RewardsMetrics

// NewMetrics returns the lazily initialised metrics registry.
func NewMetrics() *Metrics { return observability.Rewards() }
