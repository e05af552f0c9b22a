package engine

import "sync/atomic"

// Clock is the monotonic logical clock stamping change records.
//
// Rebase replays records in capture order; seq numbers make that order
// explicit and durable instead of depending on wall-clock timestamps.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations),
// though mutations for one product are serialized externally anyway.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock resuming from a specific sequence number.
// The engine seeds this with the highest persisted record seq so that
// restarts never reuse or reorder sequence numbers.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and increments the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
