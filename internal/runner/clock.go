package runner

import "sync/atomic"

// Clock is a monotonic logical clock used to stamp assertion records.
//
// Wall-clock timestamps are never used for ordering: records from a run
// carry a strictly increasing seq so reporters can interleave output from
// different tests deterministically.
//
// Thread-safety: Clock is safe for concurrent use (atomic operations).
// Assertions recorded from async callbacks may tick it off the scheduler
// goroutine.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a new clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number and increments the clock.
// Each call returns a unique, increasing value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without incrementing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
