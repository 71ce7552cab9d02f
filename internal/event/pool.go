package event

import (
	"sync"
)

// operationPool recycles OperationEvent allocations on the sequencer hotpath.
//
// Usage:
//
//	ev := AcquireOperationEvent()
//	ev.Op = "bid"
//	// ... emit event ...
//	ReleaseOperationEvent(ev)  // Return to pool after the last consumer
var operationPool = sync.Pool{
	New: func() interface{} {
		return &OperationEvent{}
	},
}

// AcquireOperationEvent gets an OperationEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireOperationEvent() *OperationEvent {
	return operationPool.Get().(*OperationEvent)
}

// ReleaseOperationEvent returns an OperationEvent to the pool.
// The event is reset to zero values before being pooled.
func ReleaseOperationEvent(ev *OperationEvent) {
	if ev == nil {
		return
	}
	ev.Seq = 0
	ev.Ts = 0
	ev.Op = ""
	ev.Status = ""
	ev.Account = ""
	ev.Actor = ""
	ev.Amount = 0
	ev.Fee = 0
	ev.Error = ""
	ev.LatencyNs = 0

	operationPool.Put(ev)
}
