package infra

import (
	"sync/atomic"
	"time"
)

// Metrics provides lightweight observability without external dependencies.
// Uses atomic operations for thread-safety.
type Metrics struct {
	// Counters
	opsApplied   atomic.Uint64
	opsRejected  atomic.Uint64
	bidsAccepted atomic.Uint64
	settlements  atomic.Uint64
	withdrawals  atomic.Uint64

	// Latency tracking
	latencySumNs atomic.Int64
	latencyCount atomic.Uint64

	// Gauges
	feedClients atomic.Int32
}

// GlobalMetrics is the singleton metrics instance.
var GlobalMetrics = &Metrics{}

// RecordOp records one processed operation with its latency.
func (m *Metrics) RecordOp(latencyNs int64, rejected bool) {
	if rejected {
		m.opsRejected.Add(1)
	} else {
		m.opsApplied.Add(1)
	}
	m.latencySumNs.Add(latencyNs)
	m.latencyCount.Add(1)
}

// RecordBid records an accepted bid.
func (m *Metrics) RecordBid() {
	m.bidsAccepted.Add(1)
}

// RecordSettlement records a finalized auction.
func (m *Metrics) RecordSettlement() {
	m.settlements.Add(1)
}

// RecordWithdrawal records a refunded escrow.
func (m *Metrics) RecordWithdrawal() {
	m.withdrawals.Add(1)
}

// IncrementFeedClients increments connected feed clients by 1.
func (m *Metrics) IncrementFeedClients() {
	m.feedClients.Add(1)
}

// DecrementFeedClients decrements connected feed clients by 1.
func (m *Metrics) DecrementFeedClients() {
	m.feedClients.Add(-1)
}

// Snapshot holds a point-in-time metrics view.
type Snapshot struct {
	OpsApplied   uint64
	OpsRejected  uint64
	BidsAccepted uint64
	Settlements  uint64
	Withdrawals  uint64
	AvgLatency   time.Duration
	FeedClients  int32
}

// GetSnapshot returns the current metric values.
func (m *Metrics) GetSnapshot() Snapshot {
	snap := Snapshot{
		OpsApplied:   m.opsApplied.Load(),
		OpsRejected:  m.opsRejected.Load(),
		BidsAccepted: m.bidsAccepted.Load(),
		Settlements:  m.settlements.Load(),
		Withdrawals:  m.withdrawals.Load(),
		FeedClients:  m.feedClients.Load(),
	}
	if count := m.latencyCount.Load(); count > 0 {
		snap.AvgLatency = time.Duration(m.latencySumNs.Load() / int64(count))
	}
	return snap
}

// Reset zeroes all metrics (for tests).
func (m *Metrics) Reset() {
	m.opsApplied.Store(0)
	m.opsRejected.Store(0)
	m.bidsAccepted.Store(0)
	m.settlements.Store(0)
	m.withdrawals.Store(0)
	m.latencySumNs.Store(0)
	m.latencyCount.Store(0)
	m.feedClients.Store(0)
}
