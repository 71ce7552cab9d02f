package infra

import (
	"sync"
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	m := &Metrics{}

	t.Run("counts ops by outcome", func(t *testing.T) {
		m.Reset()
		m.RecordOp(int64(time.Millisecond), false)
		m.RecordOp(int64(3*time.Millisecond), false)
		m.RecordOp(int64(2*time.Millisecond), true)

		snap := m.GetSnapshot()
		if snap.OpsApplied != 2 || snap.OpsRejected != 1 {
			t.Errorf("applied=%d rejected=%d, want 2/1", snap.OpsApplied, snap.OpsRejected)
		}
		if snap.AvgLatency != 2*time.Millisecond {
			t.Errorf("avg latency = %v, want 2ms", snap.AvgLatency)
		}
	})

	t.Run("domain counters", func(t *testing.T) {
		m.Reset()
		m.RecordBid()
		m.RecordBid()
		m.RecordSettlement()
		m.RecordWithdrawal()

		snap := m.GetSnapshot()
		if snap.BidsAccepted != 2 || snap.Settlements != 1 || snap.Withdrawals != 1 {
			t.Errorf("snapshot = %+v", snap)
		}
	})

	t.Run("concurrent updates", func(t *testing.T) {
		m.Reset()
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 100; j++ {
					m.RecordOp(1, false)
				}
			}()
		}
		wg.Wait()

		if snap := m.GetSnapshot(); snap.OpsApplied != 1000 {
			t.Errorf("applied = %d, want 1000", snap.OpsApplied)
		}
	})

	t.Run("feed client gauge", func(t *testing.T) {
		m.Reset()
		m.IncrementFeedClients()
		m.IncrementFeedClients()
		m.DecrementFeedClients()

		if snap := m.GetSnapshot(); snap.FeedClients != 1 {
			t.Errorf("feed clients = %d, want 1", snap.FeedClients)
		}
	})
}
