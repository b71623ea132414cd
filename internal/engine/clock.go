package engine

import "sync/atomic"

// Clock stamps machine events with seq numbers. Seqs order a workflow's
// audit records independently of wall time. A Clock is safe for
// concurrent use, so the per-request machines of one process may share it.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first seq is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt returns a clock whose first seq is last+1, where last is the
// seq of the newest persisted record of the workflow being resumed.
func NewClockAt(last int64) *Clock {
	c := &Clock{}
	c.seq.Store(last)
	return c
}

// Next advances the clock and returns the new seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last seq handed out, or the starting point if Next
// has not been called.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
