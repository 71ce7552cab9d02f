// Package event defines the applied-operation events flowing from the
// sequencer to the persistence log and the websocket feed.
package event

// Type identifies an event category.
type Type string

const (
	// TypeOperation is emitted once per processed engine operation.
	TypeOperation Type = "operation"
)

// Event is anything the sequencer emits.
type Event interface {
	GetSeq() uint64
	GetType() Type
}

// BaseEvent carries the fields shared by all events.
type BaseEvent struct {
	Seq uint64 `json:"seq"`
	Ts  int64  `json:"ts"` // unix microseconds
}

func (b *BaseEvent) GetSeq() uint64 {
	return b.Seq
}

// OperationEvent describes one applied (or rejected) engine operation.
type OperationEvent struct {
	BaseEvent
	Op      string `json:"op"`
	Status  string `json:"status"` // "applied" or "rejected"
	Account string `json:"account,omitempty"`
	Actor   string `json:"actor,omitempty"`
	Amount  uint64 `json:"amount,omitempty"`
	Fee     uint64 `json:"fee,omitempty"`
	Error   string `json:"error,omitempty"`

	// LatencyNs is how long the engine dispatch took; not serialized.
	LatencyNs int64 `json:"-"`
}

func (e *OperationEvent) GetType() Type {
	return TypeOperation
}

const (
	StatusApplied  = "applied"
	StatusRejected = "rejected"
)
