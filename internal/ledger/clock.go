package ledger

import (
	"sync/atomic"
	"time"
)

// Clock supplies the authoritative ledger time (slot). All deadline checks
// read it at execution time, never at submission time.
type Clock interface {
	Slot() uint64
}

// WallClock maps wall time to slots at a fixed slot duration.
type WallClock struct {
	Genesis      time.Time
	SlotDuration time.Duration
}

// NewWallClock creates a wall clock ticking from now.
func NewWallClock(slotDuration time.Duration) *WallClock {
	return &WallClock{Genesis: time.Now(), SlotDuration: slotDuration}
}

func (c *WallClock) Slot() uint64 {
	elapsed := time.Since(c.Genesis)
	if elapsed < 0 {
		return 0
	}
	return uint64(elapsed / c.SlotDuration)
}

// ManualClock is a test clock advanced explicitly.
type ManualClock struct {
	slot atomic.Uint64
}

func (c *ManualClock) Slot() uint64 {
	return c.slot.Load()
}

// Set moves the clock to an absolute slot.
func (c *ManualClock) Set(slot uint64) {
	c.slot.Store(slot)
}

// Advance moves the clock forward by n slots.
func (c *ManualClock) Advance(n uint64) {
	c.slot.Add(n)
}
